package config

import "time"

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16le",
			FrameSize:         4096,
			ChannelBufferSize: 20,
			MicrophoneTarget:  "",
			SystemTarget:      "@DEFAULT_AUDIO_SINK@.monitor",
		},
		Transcription: TranscriptionConfig{
			Backends:     []string{"deepgram", "openai"},
			Language:     "",
			VADEnabled:   true,
			VADThreshold: 0.01,
			VADHangover:  3,
		},
		Realtime: RealtimeConfig{
			Provider:       "gemini",
			Voice:          "Aoede",
			ConnectTimeout: 15 * time.Second,
			SetupGrace:     3 * time.Second,
			SessionCap:     10 * time.Minute,
			EventBuffer:    100,
		},
		Assembly: AssemblyConfig{
			FlushDelay:       4 * time.Second,
			MinSegmentLength: 3,
		},
		Correction: CorrectionConfig{
			Enabled:  true,
			Provider: "groq",
			Delay:    2 * time.Second,
		},
		Summary: SummaryConfig{
			Kind: "general",
		},
		Session: SessionConfig{
			AutosaveInterval:      10 * time.Second,
			DurationCheckInterval: 30 * time.Second,
			CapMargin:             time.Minute,
			ReconnectMaxAttempts:  5,
			ReconnectBaseDelay:    time.Second,
		},
		Playback: PlaybackConfig{
			SampleRate: 24000,
			Channels:   1,
			QueueDepth: 64,
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    "",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9465",
		},
		Notifications: NotificationsConfig{
			Enabled: false,
		},
		Providers: make(map[string]ProviderConfig),
	}
}
