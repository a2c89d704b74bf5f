package provider

// GeminiProvider implements Provider for the Gemini Live duplex endpoint,
// used both for assistant replies and as the transcription path of last resort.
type GeminiProvider struct{}

func (p *GeminiProvider) Name() string                { return ProviderGemini }
func (p *GeminiProvider) RequiresAPIKey() bool        { return true }
func (p *GeminiProvider) SupportsTranscription() bool { return false }
func (p *GeminiProvider) SupportsRealtime() bool      { return true }
func (p *GeminiProvider) SupportsLLM() bool           { return false }

func (p *GeminiProvider) DefaultTranscriptionModel() string { return "" }
func (p *GeminiProvider) DefaultRealtimeModel() string {
	return "gemini-2.0-flash-live-001"
}
func (p *GeminiProvider) DefaultLLMModel() string { return "" }

func (p *GeminiProvider) TranscriptionEndpoint() *EndpointConfig { return nil }

func (p *GeminiProvider) RealtimeEndpoint() *EndpointConfig {
	return &EndpointConfig{
		BaseURL: "wss://generativelanguage.googleapis.com",
		Path:    "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent",
	}
}
