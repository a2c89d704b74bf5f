package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/lialabs/liameet/internal/provider"
	"github.com/lialabs/liameet/internal/vad"
)

// Result is one best-effort transcription result. Empty text must be
// ignored by the receiver.
type Result struct {
	Text       string
	Speaker    string
	Confidence float64
	IsFinal    bool
}

type ResultFunc func(Result)
type ErrorFunc func(error)

// Backend is a pluggable streaming transcription service. Exactly one
// backend instance is live per session; the orchestrator owns it.
type Backend interface {
	Name() string

	// Start opens the upstream connection and begins delivering results.
	// Callbacks fire from the backend's reader goroutine.
	Start(ctx context.Context, onResult ResultFunc, onError ErrorFunc) error

	// AddAudio forwards one chunk of 16 kHz mono PCM.
	AddAudio(chunk []byte) error

	// Stop closes the upstream connection. Safe to call when not started.
	Stop() error
}

// Config holds settings shared by all backend adapters.
type Config struct {
	Provider string
	APIKey   string
	Language string
	Model    string
	Endpoint *provider.EndpointConfig
	Gate     *vad.Gate // optional; nil sends all audio upstream
}

// internal reconnect pacing shared by the websocket adapters
var defaultRetryDelays = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
}

// New creates a backend adapter by provider name.
func New(cfg Config) (Backend, error) {
	p := provider.GetProvider(cfg.Provider)
	if p == nil {
		return nil, fmt.Errorf("unknown transcription provider: %s", cfg.Provider)
	}
	if !p.SupportsTranscription() {
		return nil, fmt.Errorf("provider %s does not support streaming transcription", cfg.Provider)
	}
	if p.RequiresAPIKey() && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key required", cfg.Provider)
	}
	if cfg.Model == "" {
		cfg.Model = p.DefaultTranscriptionModel()
	}
	if cfg.Endpoint == nil {
		cfg.Endpoint = p.TranscriptionEndpoint()
	}

	switch cfg.Provider {
	case provider.ProviderDeepgram:
		return NewDeepgramBackend(cfg), nil
	case provider.ProviderOpenAI:
		return NewOpenAIRealtimeBackend(cfg), nil
	default:
		return nil, fmt.Errorf("no streaming adapter for provider: %s", cfg.Provider)
	}
}
