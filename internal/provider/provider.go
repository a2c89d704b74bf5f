package provider

// Provider describes a remote service liameet can talk to: streaming
// transcription, realtime bidirectional audio, or plain chat completion.
type Provider interface {
	Name() string
	RequiresAPIKey() bool
	SupportsTranscription() bool
	SupportsRealtime() bool
	SupportsLLM() bool
	DefaultTranscriptionModel() string
	DefaultRealtimeModel() string
	DefaultLLMModel() string
	TranscriptionEndpoint() *EndpointConfig
	RealtimeEndpoint() *EndpointConfig
}

// EndpointConfig holds HTTP/WebSocket endpoint configuration
type EndpointConfig struct {
	BaseURL string // e.g. "wss://api.deepgram.com"
	Path    string // e.g. "/v1/listen"
}

var registry = make(map[string]Provider)

func init() {
	Register(&DeepgramProvider{})
	Register(&OpenAIProvider{})
	Register(&GeminiProvider{})
	Register(&GroqProvider{})
}

// Register adds a provider to the registry
func Register(p Provider) {
	registry[p.Name()] = p
}

// GetProvider returns a provider by name, or nil if not found
func GetProvider(name string) Provider {
	return registry[name]
}

// ListProviders returns all registered provider names
func ListProviders() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ListProvidersWithTranscription returns providers that support streaming transcription
func ListProvidersWithTranscription() []string {
	var names []string
	for name, p := range registry {
		if p.SupportsTranscription() {
			names = append(names, name)
		}
	}
	return names
}

// ListProvidersWithRealtime returns providers that expose a realtime duplex endpoint
func ListProvidersWithRealtime() []string {
	var names []string
	for name, p := range registry {
		if p.SupportsRealtime() {
			names = append(names, name)
		}
	}
	return names
}
