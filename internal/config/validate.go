package config

import (
	"fmt"

	"github.com/lialabs/liameet/internal/provider"
)

func (c *Config) Validate() error {
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("invalid capture.sample_rate: %d", c.Capture.SampleRate)
	}
	if c.Capture.Channels <= 0 {
		return fmt.Errorf("invalid capture.channels: %d", c.Capture.Channels)
	}
	if c.Capture.FrameSize <= 0 {
		return fmt.Errorf("invalid capture.frame_size: %d", c.Capture.FrameSize)
	}
	if c.Capture.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid capture.channel_buffer_size: %d", c.Capture.ChannelBufferSize)
	}
	if c.Capture.Format == "" {
		return fmt.Errorf("invalid capture.format: empty")
	}

	for _, name := range c.Transcription.Backends {
		p := provider.GetProvider(name)
		if p == nil {
			return fmt.Errorf("unknown transcription backend: %s", name)
		}
		if !p.SupportsTranscription() {
			return fmt.Errorf("provider %s does not support streaming transcription", name)
		}
	}
	if c.Transcription.VADEnabled {
		if c.Transcription.VADThreshold <= 0 || c.Transcription.VADThreshold >= 1 {
			return fmt.Errorf("invalid transcription.vad_threshold: %v (must be in (0, 1))", c.Transcription.VADThreshold)
		}
		if c.Transcription.VADHangover < 0 {
			return fmt.Errorf("invalid transcription.vad_hangover: %d", c.Transcription.VADHangover)
		}
	}

	rp := provider.GetProvider(c.Realtime.Provider)
	if rp == nil {
		return fmt.Errorf("unknown realtime.provider: %s", c.Realtime.Provider)
	}
	if !rp.SupportsRealtime() {
		return fmt.Errorf("provider %s does not expose a realtime endpoint", c.Realtime.Provider)
	}
	if rp.RequiresAPIKey() && c.resolveAPIKeyForProvider(c.Realtime.Provider) == "" {
		return fmt.Errorf("%s API key required for realtime: not found in config (providers.%s.api_key) or environment variable (%s)",
			c.Realtime.Provider, c.Realtime.Provider, provider.EnvVarForProvider(c.Realtime.Provider))
	}
	if c.Realtime.ConnectTimeout <= 0 {
		return fmt.Errorf("invalid realtime.connect_timeout: %v", c.Realtime.ConnectTimeout)
	}
	if c.Realtime.SetupGrace <= 0 {
		return fmt.Errorf("invalid realtime.setup_grace: %v", c.Realtime.SetupGrace)
	}

	if c.Assembly.FlushDelay <= 0 {
		return fmt.Errorf("invalid assembly.flush_delay: %v", c.Assembly.FlushDelay)
	}
	if c.Assembly.MinSegmentLength <= 0 {
		return fmt.Errorf("invalid assembly.min_segment_length: %d", c.Assembly.MinSegmentLength)
	}

	if c.Correction.Enabled {
		lp := provider.GetProvider(c.Correction.Provider)
		if lp == nil || !lp.SupportsLLM() {
			return fmt.Errorf("invalid correction.provider: %s (must be openai or groq)", c.Correction.Provider)
		}
		if c.resolveAPIKeyForProvider(c.Correction.Provider) == "" {
			return fmt.Errorf("%s API key required for correction: not found in config (providers.%s.api_key) or environment variable (%s)",
				c.Correction.Provider, c.Correction.Provider, provider.EnvVarForProvider(c.Correction.Provider))
		}
	}

	validKinds := map[string]bool{"general": true, "actions": true, "minutes": true}
	if !validKinds[c.Summary.Kind] {
		return fmt.Errorf("invalid summary.kind: %s (must be general, actions or minutes)", c.Summary.Kind)
	}

	if c.Session.AutosaveInterval <= 0 {
		return fmt.Errorf("invalid session.autosave_interval: %v", c.Session.AutosaveInterval)
	}
	if c.Session.ReconnectMaxAttempts <= 0 {
		return fmt.Errorf("invalid session.reconnect_max_attempts: %d", c.Session.ReconnectMaxAttempts)
	}
	if c.Session.ReconnectBaseDelay <= 0 {
		return fmt.Errorf("invalid session.reconnect_base_delay: %v", c.Session.ReconnectBaseDelay)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr required when metrics.enabled = true")
	}

	return nil
}
