package provider

// DeepgramProvider implements Provider for Deepgram streaming transcription
type DeepgramProvider struct{}

func (p *DeepgramProvider) Name() string                { return ProviderDeepgram }
func (p *DeepgramProvider) RequiresAPIKey() bool        { return true }
func (p *DeepgramProvider) SupportsTranscription() bool { return true }
func (p *DeepgramProvider) SupportsRealtime() bool      { return false }
func (p *DeepgramProvider) SupportsLLM() bool           { return false }

func (p *DeepgramProvider) DefaultTranscriptionModel() string { return "nova-3" }
func (p *DeepgramProvider) DefaultRealtimeModel() string      { return "" }
func (p *DeepgramProvider) DefaultLLMModel() string           { return "" }

func (p *DeepgramProvider) TranscriptionEndpoint() *EndpointConfig {
	return &EndpointConfig{BaseURL: "wss://api.deepgram.com", Path: "/v1/listen"}
}

func (p *DeepgramProvider) RealtimeEndpoint() *EndpointConfig { return nil }
