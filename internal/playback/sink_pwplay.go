package playback

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// PipeWireSink plays PCM through a pw-play child process.
type PipeWireSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func NewPipeWireSink(sampleRate, channels int) (Sink, error) {
	if _, err := exec.LookPath("pw-play"); err != nil {
		return nil, fmt.Errorf("pw-play not found: %w (install pipewire-tools)", err)
	}

	cmd := exec.Command("pw-play",
		"--format", "s16le",
		"--rate", strconv.Itoa(sampleRate),
		"--channels", strconv.Itoa(channels),
		"-")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start pw-play: %w", err)
	}

	return &PipeWireSink{cmd: cmd, stdin: stdin}, nil
}

// PipeWireSinkFactory returns a SinkFactory for the given PCM format.
func PipeWireSinkFactory(sampleRate, channels int) SinkFactory {
	return func() (Sink, error) {
		return NewPipeWireSink(sampleRate, channels)
	}
}

func (s *PipeWireSink) Write(pcm []byte) error {
	_, err := s.stdin.Write(pcm)
	return err
}

func (s *PipeWireSink) Close() error {
	s.stdin.Close()
	return s.cmd.Wait()
}
