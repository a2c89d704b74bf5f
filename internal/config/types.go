package config

import "time"

type Config struct {
	Capture       CaptureConfig             `toml:"capture"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Realtime      RealtimeConfig            `toml:"realtime"`
	Assembly      AssemblyConfig            `toml:"assembly"`
	Correction    CorrectionConfig          `toml:"correction"`
	Summary       SummaryConfig             `toml:"summary"`
	Session       SessionConfig             `toml:"session"`
	Playback      PlaybackConfig            `toml:"playback"`
	Storage       StorageConfig             `toml:"storage"`
	Metrics       MetricsConfig             `toml:"metrics"`
	Notifications NotificationsConfig       `toml:"notifications"`
	Providers     map[string]ProviderConfig `toml:"providers"`
}

// ProviderConfig holds the API key for a provider
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}

type CaptureConfig struct {
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	Format            string `toml:"format"`
	FrameSize         int    `toml:"frame_size"`
	ChannelBufferSize int    `toml:"channel_buffer_size"`
	MicrophoneTarget  string `toml:"microphone_target"` // empty = PipeWire default source
	SystemTarget      string `toml:"system_target"`     // empty = no system audio
}

type TranscriptionConfig struct {
	// Backends is the provider preference order; the first one that starts
	// wins, the rest are fallbacks.
	Backends     []string `toml:"backends"`
	Language     string   `toml:"language"`
	Model        string   `toml:"model"`
	VADEnabled   bool     `toml:"vad_enabled"`
	VADThreshold float64  `toml:"vad_threshold"`
	VADHangover  int      `toml:"vad_hangover"`
}

type RealtimeConfig struct {
	Provider       string        `toml:"provider"`
	Model          string        `toml:"model"`
	Voice          string        `toml:"voice"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
	SetupGrace     time.Duration `toml:"setup_grace"`
	SessionCap     time.Duration `toml:"session_cap"`
	EventBuffer    int           `toml:"event_buffer"`
}

type AssemblyConfig struct {
	FlushDelay       time.Duration `toml:"flush_delay"`
	MinSegmentLength int           `toml:"min_segment_length"`
}

// CorrectionConfig configures the asynchronous LLM cleanup pass
type CorrectionConfig struct {
	Enabled  bool          `toml:"enabled"`
	Provider string        `toml:"provider"`
	Model    string        `toml:"model"`
	Delay    time.Duration `toml:"delay"`
}

type SummaryConfig struct {
	Kind string `toml:"kind"` // "general", "actions" or "minutes"
}

type SessionConfig struct {
	AutosaveInterval      time.Duration `toml:"autosave_interval"`
	DurationCheckInterval time.Duration `toml:"duration_check_interval"`
	CapMargin             time.Duration `toml:"cap_margin"`
	ReconnectMaxAttempts  int           `toml:"reconnect_max_attempts"`
	ReconnectBaseDelay    time.Duration `toml:"reconnect_base_delay"`
}

type PlaybackConfig struct {
	SampleRate int `toml:"sample_rate"`
	Channels   int `toml:"channels"`
	QueueDepth int `toml:"queue_depth"`
}

type StorageConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // empty = user data dir
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type NotificationsConfig struct {
	Enabled bool `toml:"enabled"`
}
