package capture

import (
	"context"
	"errors"
	"testing"
)

func pcm(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func decode(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return out
}

func testSource(frameSize int) *PipeWireSource {
	cfg := DefaultConfig()
	cfg.FrameSize = frameSize
	return NewPipeWireSource(cfg)
}

func TestMixFrame_SumsSources(t *testing.T) {
	p := testSource(8)
	p.streams[SourceMicrophone] = &stream{}
	p.streams[SourceSystem] = &stream{}

	p.streams[SourceMicrophone].write(pcm(100, 200, 300, 400))
	p.streams[SourceSystem].write(pcm(10, 20, 30, 40))

	got := decode(p.mixFrame())
	want := []int16{110, 220, 330, 440}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("sample %d = %d, want %d", i, got[i], w)
		}
	}
}

func TestMixFrame_ShortStreamPadsWithSilence(t *testing.T) {
	p := testSource(8)
	p.streams[SourceMicrophone] = &stream{}
	p.streams[SourceSystem] = &stream{}

	p.streams[SourceMicrophone].write(pcm(100, 200, 300, 400))
	p.streams[SourceSystem].write(pcm(10)) // only one sample available

	got := decode(p.mixFrame())
	want := []int16{110, 200, 300, 400}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("sample %d = %d, want %d", i, got[i], w)
		}
	}
}

func TestMixFrame_NoDataReturnsNil(t *testing.T) {
	p := testSource(8)
	p.streams[SourceMicrophone] = &stream{}

	if got := p.mixFrame(); got != nil {
		t.Errorf("mixFrame with empty streams = %v, want nil", got)
	}
}

func TestMixFrame_ClampsOverflow(t *testing.T) {
	p := testSource(4)
	p.streams[SourceMicrophone] = &stream{}
	p.streams[SourceSystem] = &stream{}

	p.streams[SourceMicrophone].write(pcm(30000, -30000))
	p.streams[SourceSystem].write(pcm(30000, -30000))

	got := decode(p.mixFrame())
	if got[0] != 32767 {
		t.Errorf("positive overflow = %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("negative overflow = %d, want -32768", got[1])
	}
}

func TestMixFrame_AppliesGain(t *testing.T) {
	p := testSource(4)
	p.streams[SourceMicrophone] = &stream{}

	if err := p.SetVolume(SourceMicrophone, 0.5); err != nil {
		t.Fatal(err)
	}
	p.streams[SourceMicrophone].write(pcm(1000, -1000))

	got := decode(p.mixFrame())
	if got[0] != 500 || got[1] != -500 {
		t.Errorf("gained samples = %v, want [500 -500]", got)
	}
}

func TestSetVolume_Validation(t *testing.T) {
	p := testSource(8)
	if err := p.SetVolume(SourceMicrophone, 1.5); err == nil {
		t.Error("volume above 1 accepted")
	}
	if err := p.SetVolume(SourceMicrophone, -0.1); err == nil {
		t.Error("negative volume accepted")
	}
	if err := p.SetVolume("bogus", 0.5); err == nil {
		t.Error("unknown source accepted")
	}
	if err := p.SetVolume(SourceSystem, 0); err != nil {
		t.Errorf("muting a source via volume 0: %v", err)
	}
}

func TestStream_TakeDrainsInOrder(t *testing.T) {
	st := &stream{}
	st.write([]byte{1, 2, 3, 4})
	st.write([]byte{5, 6})

	if got := st.take(4); len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Errorf("first take = %v", got)
	}
	if got := st.take(4); len(got) != 2 || got[0] != 5 {
		t.Errorf("second take = %v", got)
	}
	if got := st.take(4); len(got) != 0 {
		t.Errorf("drained stream returned %v", got)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"zero channels", func(c *Config) { c.Channels = 0 }},
		{"odd frame size", func(c *Config) { c.FrameSize = 4095 }},
		{"zero buffer", func(c *Config) { c.ChannelBufferSize = 0 }},
		{"empty format", func(c *Config) { c.Format = "" }},
		{"no sources", func(c *Config) { c.Sources = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := NewPipeWireSource(cfg).validateConfig(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}

	if err := NewPipeWireSource(DefaultConfig()).validateConfig(); err != nil {
		t.Errorf("default config rejected: %v", err)
	}
}

func TestMixLoop_LateReadErrorAfterShutdown(t *testing.T) {
	p := testSource(8)
	ctx, cancel := context.WithCancel(context.Background())
	frameCh := make(chan Frame, 1)
	errCh := make(chan error, 1)

	p.wg.Add(1)
	go p.mixLoop(ctx, frameCh)
	cancel()
	p.wg.Wait()

	// a read loop that lost the shutdown race may still report its error;
	// the channel must accept it
	p.emitErr(errCh, errors.New("read |0: file already closed"))

	if _, ok := <-frameCh; ok {
		t.Error("frame emitted after shutdown")
	}
	select {
	case <-errCh:
	default:
		t.Error("late error was dropped")
	}
}
