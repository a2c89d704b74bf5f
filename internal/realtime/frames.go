package realtime

// Wire frames for the Gemini Live duplex endpoint. The setup and audio
// chunk schemas follow the provider's published shapes and must not drift.

// client -> server

type clientFrame struct {
	Setup         *setupFrame         `json:"setup,omitempty"`
	RealtimeInput *realtimeInputFrame `json:"realtimeInput,omitempty"`
	ClientContent *clientContentFrame `json:"clientContent,omitempty"`
}

type setupFrame struct {
	Model             string            `json:"model"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	// empty object enables the dedicated input-audio transcription events
	InputAudioTranscription *struct{} `json:"inputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig *voiceConfig `json:"voiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type realtimeInputFrame struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 PCM
}

type clientContentFrame struct {
	Turns        []content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// server -> client

type serverFrame struct {
	SetupComplete *struct{}           `json:"setupComplete,omitempty"`
	ServerContent *serverContentFrame `json:"serverContent,omitempty"`
	GoAway        *goAwayFrame        `json:"goAway,omitempty"`
}

type serverContentFrame struct {
	ModelTurn          *content            `json:"modelTurn,omitempty"`
	TurnComplete       bool                `json:"turnComplete,omitempty"`
	Interrupted        bool                `json:"interrupted,omitempty"`
	InputTranscription *transcriptionFrame `json:"inputTranscription,omitempty"`
}

type transcriptionFrame struct {
	Text string `json:"text"`
}

type goAwayFrame struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}
