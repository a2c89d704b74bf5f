package provider

// OpenAIProvider implements Provider for OpenAI realtime transcription and chat completion
type OpenAIProvider struct{}

func (p *OpenAIProvider) Name() string                { return ProviderOpenAI }
func (p *OpenAIProvider) RequiresAPIKey() bool        { return true }
func (p *OpenAIProvider) SupportsTranscription() bool { return true }
func (p *OpenAIProvider) SupportsRealtime() bool      { return false }
func (p *OpenAIProvider) SupportsLLM() bool           { return true }

func (p *OpenAIProvider) DefaultTranscriptionModel() string { return "gpt-4o-transcribe" }
func (p *OpenAIProvider) DefaultRealtimeModel() string      { return "" }
func (p *OpenAIProvider) DefaultLLMModel() string           { return "gpt-4o-mini" }

func (p *OpenAIProvider) TranscriptionEndpoint() *EndpointConfig {
	return &EndpointConfig{BaseURL: "wss://api.openai.com", Path: "/v1/realtime"}
}

func (p *OpenAIProvider) RealtimeEndpoint() *EndpointConfig { return nil }
