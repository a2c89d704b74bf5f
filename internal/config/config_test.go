package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func validConfig() *Config {
	c := DefaultConfig()
	c.Providers["gemini"] = ProviderConfig{APIKey: "gemini-key"}
	c.Providers["groq"] = ProviderConfig{APIKey: "groq-key"}
	return c
}

func TestValidate_DefaultsWithKeysAreValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("default config with keys invalid: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.Capture.SampleRate = 0 }},
		{"empty format", func(c *Config) { c.Capture.Format = "" }},
		{"unknown backend", func(c *Config) { c.Transcription.Backends = []string{"nope"} }},
		{"backend without transcription", func(c *Config) { c.Transcription.Backends = []string{"groq"} }},
		{"vad threshold out of range", func(c *Config) { c.Transcription.VADThreshold = 1.5 }},
		{"unknown realtime provider", func(c *Config) { c.Realtime.Provider = "nope" }},
		{"realtime provider without realtime", func(c *Config) { c.Realtime.Provider = "deepgram" }},
		{"missing realtime key", func(c *Config) { delete(c.Providers, "gemini") }},
		{"zero connect timeout", func(c *Config) { c.Realtime.ConnectTimeout = 0 }},
		{"zero flush delay", func(c *Config) { c.Assembly.FlushDelay = 0 }},
		{"bad correction provider", func(c *Config) { c.Correction.Provider = "deepgram" }},
		{"missing correction key", func(c *Config) { delete(c.Providers, "groq") }},
		{"bad summary kind", func(c *Config) { c.Summary.Kind = "haiku" }},
		{"zero reconnect attempts", func(c *Config) { c.Session.ReconnectMaxAttempts = 0 }},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestValidate_CorrectionDisabledNeedsNoKey(t *testing.T) {
	c := validConfig()
	delete(c.Providers, "groq")
	c.Correction.Enabled = false
	if err := c.Validate(); err != nil {
		t.Errorf("config with correction disabled invalid: %v", err)
	}
}

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	c := &Config{}
	c.applyDefaults()

	if c.Capture.SampleRate != 16000 {
		t.Errorf("sample rate = %d", c.Capture.SampleRate)
	}
	if len(c.Transcription.Backends) == 0 {
		t.Error("backend order empty")
	}
	if c.Realtime.Provider != "gemini" {
		t.Errorf("realtime provider = %q", c.Realtime.Provider)
	}
	if c.Assembly.FlushDelay != 4*time.Second {
		t.Errorf("flush delay = %v", c.Assembly.FlushDelay)
	}
	if c.Session.ReconnectMaxAttempts != 5 {
		t.Errorf("reconnect attempts = %d", c.Session.ReconnectMaxAttempts)
	}
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}

	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		t.Fatal(err)
	}
	if c.Capture.SampleRate != 16000 {
		t.Errorf("sample rate = %d after round trip", c.Capture.SampleRate)
	}
	if c.Realtime.Voice != "Aoede" {
		t.Errorf("voice = %q after round trip", c.Realtime.Voice)
	}
}

func TestResolveAPIKey_ConfigBeatsEnv(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "from-env")

	c := validConfig()
	if got := c.resolveAPIKeyForProvider("deepgram"); got != "from-env" {
		t.Errorf("key = %q, want env fallback", got)
	}

	c.Providers["deepgram"] = ProviderConfig{APIKey: "from-config"}
	if got := c.resolveAPIKeyForProvider("deepgram"); got != "from-config" {
		t.Errorf("key = %q, want config to win", got)
	}

	if got := c.resolveAPIKeyForProvider("unknown"); got != "" {
		t.Errorf("key for unknown provider = %q", got)
	}
}

func TestToSessionConfig(t *testing.T) {
	c := validConfig()
	c.Transcription.Backends = []string{"openai"}
	c.Summary.Kind = "minutes"

	sc := c.ToSessionConfig()
	if len(sc.BackendOrder) != 1 || sc.BackendOrder[0] != "openai" {
		t.Errorf("backend order = %v", sc.BackendOrder)
	}
	if string(sc.SummaryKind) != "minutes" {
		t.Errorf("summary kind = %q", sc.SummaryKind)
	}
	if sc.FlushDelay != c.Assembly.FlushDelay {
		t.Errorf("flush delay not mapped")
	}
}

func TestToCaptureConfig_SystemTargetOptional(t *testing.T) {
	c := validConfig()
	c.Capture.SystemTarget = ""

	cc := c.ToCaptureConfig()
	if _, ok := cc.Sources["system"]; ok {
		t.Error("system source configured without a target")
	}
	if _, ok := cc.Sources["microphone"]; !ok {
		t.Error("microphone source missing")
	}
}

func TestToBackendConfig_GateFollowsVADFlag(t *testing.T) {
	c := validConfig()

	c.Transcription.VADEnabled = true
	if got := c.ToBackendConfig("deepgram"); got.Gate == nil {
		t.Error("gate missing with vad enabled")
	}

	c.Transcription.VADEnabled = false
	if got := c.ToBackendConfig("deepgram"); got.Gate != nil {
		t.Error("gate present with vad disabled")
	}
}

func TestStoragePath(t *testing.T) {
	c := validConfig()
	c.Storage.Path = "/tmp/custom.db"
	if got, err := c.StoragePath(); err != nil || got != "/tmp/custom.db" {
		t.Errorf("StoragePath = (%q, %v)", got, err)
	}

	c.Storage.Path = ""
	got, err := c.StoragePath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "sessions.db" {
		t.Errorf("default path = %q", got)
	}
}

func TestWriteDefault_BadPath(t *testing.T) {
	if err := WriteDefault(filepath.Join(string(os.PathSeparator), "nonexistent-dir-for-test", "config.toml")); err == nil {
		t.Error("write into missing directory succeeded")
	}
}
