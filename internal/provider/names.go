package provider

// Provider name constants for config and registry
const (
	ProviderDeepgram = "deepgram"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderGroq     = "groq"
)

// Environment variable names for API keys
const (
	EnvDeepgramKey = "DEEPGRAM_API_KEY"
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvGroqKey     = "GROQ_API_KEY"
)

// Backend adapter type constants
const (
	AdapterDeepgram       = "deepgram"
	AdapterOpenAIRealtime = "openai-realtime"
)

// EnvVarForProvider returns the environment variable name for a provider's API key
func EnvVarForProvider(provider string) string {
	switch provider {
	case ProviderDeepgram:
		return EnvDeepgramKey
	case ProviderOpenAI:
		return EnvOpenAIKey
	case ProviderGemini:
		return EnvGeminiKey
	case ProviderGroq:
		return EnvGroqKey
	default:
		return ""
	}
}
