package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	liameetDir := filepath.Join(configDir, "liameet")
	if err := os.MkdirAll(liameetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(liameetDir, "config.toml"), nil
}

// GetDataPath returns the default location of the session database.
func GetDataPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "liameet", "sessions.db"), nil
}

// Load reads the config file, writing the defaults first if none exists.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Printf("config: no config at %s, writing defaults", configPath)
		if err := WriteDefault(configPath); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	log.Printf("config: loading configuration from %s", configPath)
	var config Config
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if config.Providers == nil {
		config.Providers = make(map[string]ProviderConfig)
	}
	config.applyDefaults()

	return &config, nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(DefaultConfig()); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

// applyDefaults fills zero values so a sparse user config still works.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = def.Capture.SampleRate
	}
	if c.Capture.Channels == 0 {
		c.Capture.Channels = def.Capture.Channels
	}
	if c.Capture.Format == "" {
		c.Capture.Format = def.Capture.Format
	}
	if c.Capture.FrameSize == 0 {
		c.Capture.FrameSize = def.Capture.FrameSize
	}
	if c.Capture.ChannelBufferSize == 0 {
		c.Capture.ChannelBufferSize = def.Capture.ChannelBufferSize
	}
	if len(c.Transcription.Backends) == 0 {
		c.Transcription.Backends = def.Transcription.Backends
	}
	if c.Transcription.VADThreshold == 0 {
		c.Transcription.VADThreshold = def.Transcription.VADThreshold
	}
	if c.Transcription.VADHangover == 0 {
		c.Transcription.VADHangover = def.Transcription.VADHangover
	}
	if c.Realtime.Provider == "" {
		c.Realtime.Provider = def.Realtime.Provider
	}
	if c.Realtime.Voice == "" {
		c.Realtime.Voice = def.Realtime.Voice
	}
	if c.Realtime.ConnectTimeout == 0 {
		c.Realtime.ConnectTimeout = def.Realtime.ConnectTimeout
	}
	if c.Realtime.SetupGrace == 0 {
		c.Realtime.SetupGrace = def.Realtime.SetupGrace
	}
	if c.Realtime.SessionCap == 0 {
		c.Realtime.SessionCap = def.Realtime.SessionCap
	}
	if c.Realtime.EventBuffer == 0 {
		c.Realtime.EventBuffer = def.Realtime.EventBuffer
	}
	if c.Assembly.FlushDelay == 0 {
		c.Assembly.FlushDelay = def.Assembly.FlushDelay
	}
	if c.Assembly.MinSegmentLength == 0 {
		c.Assembly.MinSegmentLength = def.Assembly.MinSegmentLength
	}
	if c.Correction.Provider == "" {
		c.Correction.Provider = def.Correction.Provider
	}
	if c.Correction.Delay == 0 {
		c.Correction.Delay = def.Correction.Delay
	}
	if c.Summary.Kind == "" {
		c.Summary.Kind = def.Summary.Kind
	}
	if c.Session.AutosaveInterval == 0 {
		c.Session.AutosaveInterval = def.Session.AutosaveInterval
	}
	if c.Session.DurationCheckInterval == 0 {
		c.Session.DurationCheckInterval = def.Session.DurationCheckInterval
	}
	if c.Session.CapMargin == 0 {
		c.Session.CapMargin = def.Session.CapMargin
	}
	if c.Session.ReconnectMaxAttempts == 0 {
		c.Session.ReconnectMaxAttempts = def.Session.ReconnectMaxAttempts
	}
	if c.Session.ReconnectBaseDelay == 0 {
		c.Session.ReconnectBaseDelay = def.Session.ReconnectBaseDelay
	}
	if c.Playback.SampleRate == 0 {
		c.Playback.SampleRate = def.Playback.SampleRate
	}
	if c.Playback.Channels == 0 {
		c.Playback.Channels = def.Playback.Channels
	}
	if c.Playback.QueueDepth == 0 {
		c.Playback.QueueDepth = def.Playback.QueueDepth
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = def.Metrics.Addr
	}
}
