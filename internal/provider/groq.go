package provider

// GroqProvider implements Provider for Groq chat completion (correction/summary fallback)
type GroqProvider struct{}

func (p *GroqProvider) Name() string                { return ProviderGroq }
func (p *GroqProvider) RequiresAPIKey() bool        { return true }
func (p *GroqProvider) SupportsTranscription() bool { return false }
func (p *GroqProvider) SupportsRealtime() bool      { return false }
func (p *GroqProvider) SupportsLLM() bool           { return true }

func (p *GroqProvider) DefaultTranscriptionModel() string { return "" }
func (p *GroqProvider) DefaultRealtimeModel() string      { return "" }
func (p *GroqProvider) DefaultLLMModel() string           { return "llama-3.3-70b-versatile" }

func (p *GroqProvider) TranscriptionEndpoint() *EndpointConfig { return nil }
func (p *GroqProvider) RealtimeEndpoint() *EndpointConfig      { return nil }
