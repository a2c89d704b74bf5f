package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Frame is one chunk of mixed 16-bit little-endian mono PCM.
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

// Source labels used by default. "microphone" is the user's mic,
// "system" is the desktop monitor carrying the meeting audio.
const (
	SourceMicrophone = "microphone"
	SourceSystem     = "system"
)

type Config struct {
	SampleRate        int
	Channels          int
	Format            string
	FrameSize         int // bytes of PCM per mixed frame
	ChannelBufferSize int
	// Sources maps a source label to a pw-record target.
	// Empty target means the PipeWire default for that label.
	Sources map[string]string
}

func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		Channels:          1,
		Format:            "s16le",
		FrameSize:         4096,
		ChannelBufferSize: 20,
		Sources: map[string]string{
			SourceMicrophone: "",
			SourceSystem:     "@DEFAULT_AUDIO_SINK@.monitor",
		},
	}
}

// Source supplies mixed PCM frames from the meeting plus the user's mic.
type Source interface {
	Start(ctx context.Context) (<-chan Frame, <-chan error, error)
	Stop() error
	SetMuted(muted bool)
	SetVolume(source string, level float64) error
	IsRunning() bool
}

// PipeWireSource runs one pw-record per configured source and mixes the
// streams in software, applying per-source gain.
type PipeWireSource struct {
	config  Config
	running atomic.Bool
	muted   atomic.Bool

	mu      sync.Mutex // guards cancel, gains, streams
	cancel  context.CancelFunc
	gains   map[string]float64
	streams map[string]*stream

	wg sync.WaitGroup
}

// stream buffers raw PCM read from one pw-record child.
type stream struct {
	mu  sync.Mutex
	buf []byte
}

func (s *stream) write(p []byte) {
	s.mu.Lock()
	s.buf = append(s.buf, p...)
	s.mu.Unlock()
}

// take removes up to n bytes; short reads are padded with silence by the mixer.
func (s *stream) take(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < n {
		n = len(s.buf)
	}
	out := s.buf[:n:n]
	s.buf = s.buf[n:]
	return out
}

func NewPipeWireSource(config Config) *PipeWireSource {
	gains := make(map[string]float64, len(config.Sources))
	for label := range config.Sources {
		gains[label] = 1.0
	}
	return &PipeWireSource{
		config:  config,
		gains:   gains,
		streams: make(map[string]*stream),
	}
}

func NewDefaultSource() *PipeWireSource { return NewPipeWireSource(DefaultConfig()) }

func (p *PipeWireSource) IsRunning() bool { return p.running.Load() }

func (p *PipeWireSource) SetMuted(muted bool) { p.muted.Store(muted) }

// SetVolume sets the software gain for one source label, 0..1.
func (p *PipeWireSource) SetVolume(source string, level float64) error {
	if level < 0 || level > 1 {
		return fmt.Errorf("invalid volume %f for source %q", level, source)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.gains[source]; !ok {
		return fmt.Errorf("unknown source %q", source)
	}
	p.gains[source] = level
	return nil
}

func (p *PipeWireSource) Start(ctx context.Context) (<-chan Frame, <-chan error, error) {
	if p.running.Load() {
		return nil, nil, fmt.Errorf("already capturing")
	}
	if err := p.validateConfig(); err != nil {
		return nil, nil, err
	}
	if err := CheckPipeWireAvailable(ctx); err != nil {
		return nil, nil, fmt.Errorf("PipeWire not available: %w", err)
	}

	captureCtx, cancel := context.WithCancel(ctx)

	frameCh := make(chan Frame, p.config.ChannelBufferSize)
	errCh := make(chan error, 1)

	p.mu.Lock()
	p.cancel = cancel
	for label := range p.config.Sources {
		p.streams[label] = &stream{}
	}
	p.mu.Unlock()

	p.running.Store(true)

	for label, target := range p.config.Sources {
		p.wg.Add(1)
		go p.readLoop(captureCtx, label, target, errCh)
	}

	p.wg.Add(1)
	go p.mixLoop(captureCtx, frameCh)

	return frameCh, errCh, nil
}

func (p *PipeWireSource) Stop() error {
	if !p.running.Load() {
		return nil
	}

	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.running.Store(false)
	return nil
}

// readLoop runs a pw-record child for one source and feeds its stream buffer.
func (p *PipeWireSource) readLoop(ctx context.Context, label, target string, errCh chan<- error) {
	defer p.wg.Done()

	args := []string{
		"--format", p.config.Format,
		"--rate", strconv.Itoa(p.config.SampleRate),
		"--channels", strconv.Itoa(p.config.Channels),
	}
	if target != "" {
		args = append(args, "--target", target)
	}
	args = append(args, "-")

	cmd := exec.CommandContext(ctx, "pw-record", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.emitErr(errCh, fmt.Errorf("capture %s: stdout pipe: %w", label, err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.emitErr(errCh, fmt.Errorf("capture %s: stderr pipe: %w", label, err))
		return
	}
	if err := cmd.Start(); err != nil {
		p.emitErr(errCh, fmt.Errorf("capture %s: start pw-record: %w", label, err))
		return
	}
	defer cmd.Wait()

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Printf("capture %s stderr: %s", label, scanner.Text())
		}
	}()

	p.mu.Lock()
	st := p.streams[label]
	p.mu.Unlock()

	buffer := make([]byte, p.config.FrameSize)
	for {
		n, readErr := stdout.Read(buffer)
		if n > 0 {
			st.write(buffer[:n])
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || ctx.Err() != nil {
				return
			}
			p.emitErr(errCh, fmt.Errorf("capture %s: read: %w", label, readErr))
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// mixLoop sums all source streams into mixed frames at a fixed cadence.
// Sources that are behind contribute silence for the missing tail.
func (p *PipeWireSource) mixLoop(ctx context.Context, frameCh chan<- Frame) {
	defer p.wg.Done()
	// errCh stays open: the read loops send on it and can lose the shutdown
	// race, so only the frame channel signals completion.
	defer close(frameCh)

	bytesPerSecond := p.config.SampleRate * p.config.Channels * 2
	interval := time.Duration(p.config.FrameSize) * time.Second / time.Duration(bytesPerSecond)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var droppedCount int
	lastDropLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if p.muted.Load() {
			// discard whatever accumulated so unmute does not replay stale audio
			p.mu.Lock()
			for _, st := range p.streams {
				st.take(p.config.FrameSize)
			}
			p.mu.Unlock()
			continue
		}

		mixed := p.mixFrame()
		if mixed == nil {
			continue
		}

		frame := Frame{Data: mixed, Timestamp: time.Now()}
		select {
		case frameCh <- frame:
		default:
			droppedCount++
			if time.Since(lastDropLog) > time.Second {
				log.Printf("capture: dropped %d frames due to backpressure", droppedCount)
				lastDropLog = time.Now()
				droppedCount = 0
			}
		}
	}
}

// mixFrame pulls one frame's worth of samples from each stream, applies the
// source gain, sums with clamping and returns the mixed PCM. Returns nil if
// no stream had any data.
func (p *PipeWireSource) mixFrame() []byte {
	n := p.config.FrameSize
	acc := make([]int32, n/2)
	any := false

	p.mu.Lock()
	for label, st := range p.streams {
		gain := p.gains[label]
		data := st.take(n)
		if len(data) == 0 {
			continue
		}
		any = true
		for i := 0; i+1 < len(data); i += 2 {
			sample := int16(data[i]) | int16(data[i+1])<<8
			acc[i/2] += int32(float64(sample) * gain)
		}
	}
	p.mu.Unlock()

	if !any {
		return nil
	}

	out := make([]byte, n)
	for i, s := range acc {
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func (p *PipeWireSource) emitErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
	log.Printf("capture error: %v", err)
}

func (p *PipeWireSource) validateConfig() error {
	if p.config.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", p.config.SampleRate)
	}
	if p.config.Channels <= 0 {
		return fmt.Errorf("invalid Channels: %d", p.config.Channels)
	}
	if p.config.FrameSize <= 0 || p.config.FrameSize%2 != 0 {
		return fmt.Errorf("invalid FrameSize: %d", p.config.FrameSize)
	}
	if p.config.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid ChannelBufferSize: %d", p.config.ChannelBufferSize)
	}
	if p.config.Format == "" {
		return fmt.Errorf("invalid Format: empty")
	}
	if len(p.config.Sources) == 0 {
		return fmt.Errorf("no capture sources configured")
	}
	return nil
}

func CheckPipeWireAvailable(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, "pw-cli", "info")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}
