package config

import (
	"os"

	"github.com/lialabs/liameet/internal/backend"
	"github.com/lialabs/liameet/internal/capture"
	"github.com/lialabs/liameet/internal/llm"
	"github.com/lialabs/liameet/internal/playback"
	"github.com/lialabs/liameet/internal/provider"
	"github.com/lialabs/liameet/internal/realtime"
	"github.com/lialabs/liameet/internal/session"
	"github.com/lialabs/liameet/internal/vad"
)

func (c *Config) ToCaptureConfig() capture.Config {
	sources := map[string]string{
		capture.SourceMicrophone: c.Capture.MicrophoneTarget,
	}
	if c.Capture.SystemTarget != "" {
		sources[capture.SourceSystem] = c.Capture.SystemTarget
	}
	return capture.Config{
		SampleRate:        c.Capture.SampleRate,
		Channels:          c.Capture.Channels,
		Format:            c.Capture.Format,
		FrameSize:         c.Capture.FrameSize,
		ChannelBufferSize: c.Capture.ChannelBufferSize,
		Sources:           sources,
	}
}

// ToBackendConfig builds the adapter config for one transcription provider.
func (c *Config) ToBackendConfig(providerName string) backend.Config {
	cfg := backend.Config{
		Provider: providerName,
		APIKey:   c.resolveAPIKeyForProvider(providerName),
		Language: c.Transcription.Language,
		Model:    c.Transcription.Model,
	}
	if c.Transcription.VADEnabled {
		if gate, err := vad.NewGate(c.Transcription.VADThreshold, c.Transcription.VADHangover); err == nil {
			cfg.Gate = gate
		}
	}
	return cfg
}

func (c *Config) ToRealtimeConfig() realtime.Config {
	cfg := realtime.DefaultConfig()
	cfg.APIKey = c.resolveAPIKeyForProvider(c.Realtime.Provider)
	cfg.Voice = c.Realtime.Voice
	cfg.ConnectTimeout = c.Realtime.ConnectTimeout
	cfg.SetupGrace = c.Realtime.SetupGrace
	cfg.SessionCap = c.Realtime.SessionCap
	cfg.EventBuffer = c.Realtime.EventBuffer

	if p := provider.GetProvider(c.Realtime.Provider); p != nil {
		cfg.Endpoint = p.RealtimeEndpoint()
		if c.Realtime.Model != "" {
			cfg.Model = c.Realtime.Model
		} else {
			cfg.Model = p.DefaultRealtimeModel()
		}
	}
	return cfg
}

// ToLLMConfig builds the adapter config for correction and summaries.
// Returns false when correction is disabled or no key is available.
func (c *Config) ToLLMConfig() (llm.Config, bool) {
	if !c.Correction.Enabled {
		return llm.Config{}, false
	}
	key := c.resolveAPIKeyForProvider(c.Correction.Provider)
	if key == "" {
		return llm.Config{}, false
	}
	return llm.Config{
		Provider: c.Correction.Provider,
		APIKey:   key,
		Model:    c.Correction.Model,
	}, true
}

func (c *Config) ToSessionConfig() session.Config {
	return session.Config{
		BackendOrder:          c.Transcription.Backends,
		Language:              c.Transcription.Language,
		FlushDelay:            c.Assembly.FlushDelay,
		MinSegmentLength:      c.Assembly.MinSegmentLength,
		CorrectionDelay:       c.Correction.Delay,
		AutosaveInterval:      c.Session.AutosaveInterval,
		DurationCheckInterval: c.Session.DurationCheckInterval,
		CapMargin:             c.Session.CapMargin,
		ReconnectMaxAttempts:  c.Session.ReconnectMaxAttempts,
		ReconnectBaseDelay:    c.Session.ReconnectBaseDelay,
		SummaryKind:           llm.SummaryKind(c.Summary.Kind),
	}
}

func (c *Config) ToPlaybackConfig() playback.Config {
	return playback.Config{
		SampleRate: c.Playback.SampleRate,
		Channels:   c.Playback.Channels,
		QueueDepth: c.Playback.QueueDepth,
	}
}

// StoragePath resolves the database location, falling back to the default
// data directory.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	return GetDataPath()
}

// resolveAPIKeyForProvider returns the API key for a provider, preferring
// the config file over the environment.
func (c *Config) resolveAPIKeyForProvider(providerName string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[providerName]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}
	if envVar := provider.EnvVarForProvider(providerName); envVar != "" {
		return os.Getenv(envVar)
	}
	return ""
}
