package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// OpenAIRealtimeBackend implements Backend over the OpenAI Realtime API,
// configured for transcription only: no model responses, server VAD commits.
type OpenAIRealtimeBackend struct {
	cfg      Config
	conn     *websocket.Conn
	onResult ResultFunc
	onError  ErrorFunc
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool

	maxRetries  int
	retryDelays []time.Duration
}

// outgoing message types
type oaiSessionUpdate struct {
	Type    string           `json:"type"`
	Session oaiSessionConfig `json:"session"`
}

type oaiSessionConfig struct {
	Modalities              []string          `json:"modalities,omitempty"`
	InputAudioFormat        string            `json:"input_audio_format,omitempty"`
	InputAudioTranscription *oaiTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection           *oaiTurnDetection `json:"turn_detection,omitempty"`
}

type oaiTranscription struct {
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
}

type oaiTurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    bool    `json:"create_response"`
}

type oaiAudioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// incoming server events
type oaiServerEvent struct {
	Type       string    `json:"type"`
	ItemID     string    `json:"item_id,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Error      *oaiError `json:"error,omitempty"`
}

type oaiError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func NewOpenAIRealtimeBackend(cfg Config) *OpenAIRealtimeBackend {
	return &OpenAIRealtimeBackend{
		cfg:         cfg,
		maxRetries:  3,
		retryDelays: defaultRetryDelays,
	}
}

func (b *OpenAIRealtimeBackend) Name() string { return "openai-realtime" }

func (b *OpenAIRealtimeBackend) Start(ctx context.Context, onResult ResultFunc, onError ErrorFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("backend already started")
	}
	b.onResult = onResult
	b.onError = onError
	b.ctx, b.cancel = context.WithCancel(ctx)

	if err := b.connectLocked(); err != nil {
		return err
	}
	b.started = true

	b.wg.Add(1)
	go b.readLoop()

	log.Printf("openai-realtime: connected, model=%s, language=%s", b.cfg.Model, b.cfg.Language)
	return nil
}

// connectLocked dials and configures the session. Must be called with mu held.
func (b *OpenAIRealtimeBackend) connectLocked() error {
	u, err := url.Parse(b.cfg.Endpoint.BaseURL + b.cfg.Endpoint.Path)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("model", b.cfg.Model)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+b.cfg.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := websocket.DefaultDialer.DialContext(b.ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			log.Printf("openai-realtime: dial failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	b.conn = conn

	if err := b.configureSession(); err != nil {
		conn.Close()
		b.conn = nil
		return fmt.Errorf("configure session: %w", err)
	}
	return nil
}

// configureSession requests transcription-only mode with server VAD.
func (b *OpenAIRealtimeBackend) configureSession() error {
	update := oaiSessionUpdate{
		Type: "session.update",
		Session: oaiSessionConfig{
			Modalities:       []string{"text"},
			InputAudioFormat: "pcm16",
			InputAudioTranscription: &oaiTranscription{
				Model: b.cfg.Model,
			},
			TurnDetection: &oaiTurnDetection{
				Type:              "server_vad",
				Threshold:         0.5,
				PrefixPaddingMs:   300,
				SilenceDurationMs: 500,
				CreateResponse:    false,
			},
		},
	}
	if b.cfg.Language != "" {
		update.Session.InputAudioTranscription.Language = b.cfg.Language
	}
	return b.conn.WriteJSON(update)
}

func (b *OpenAIRealtimeBackend) reconnect() bool {
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		select {
		case <-b.ctx.Done():
			return false
		default:
		}

		if attempt > 0 {
			delay := b.retryDelays[attempt-1]
			log.Printf("openai-realtime: reconnect attempt %d/%d after %v", attempt+1, b.maxRetries, delay)
			select {
			case <-b.ctx.Done():
				return false
			case <-time.After(delay):
			}
		} else {
			log.Printf("openai-realtime: reconnect attempt %d/%d", attempt+1, b.maxRetries)
		}

		b.mu.Lock()
		if b.conn != nil {
			b.conn.Close()
			b.conn = nil
		}
		err := b.connectLocked()
		b.mu.Unlock()

		if err == nil {
			log.Printf("openai-realtime: reconnected successfully")
			return true
		}
		log.Printf("openai-realtime: reconnect failed: %v", err)
	}
	return false
}

func (b *OpenAIRealtimeBackend) readLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()

		if conn == nil {
			if !b.reconnect() {
				b.onError(fmt.Errorf("openai-realtime: connection lost, reconnection failed after %d attempts", b.maxRetries))
				return
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-b.ctx.Done():
				return
			default:
			}
			log.Printf("openai-realtime: read error: %v, attempting reconnection", err)
			if !b.reconnect() {
				b.onError(fmt.Errorf("openai-realtime: websocket read: %w, reconnection failed", err))
				return
			}
			continue
		}

		var event oaiServerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("openai-realtime: parse error: %v", err)
			continue
		}
		b.handleEvent(event)
	}
}

func (b *OpenAIRealtimeBackend) handleEvent(event oaiServerEvent) {
	switch event.Type {
	case "conversation.item.input_audio_transcription.completed":
		if event.Transcript != "" {
			b.onResult(Result{Text: event.Transcript, IsFinal: true})
		}

	case "conversation.item.input_audio_transcription.failed":
		if event.Error != nil {
			b.onError(fmt.Errorf("openai-realtime: transcription failed: %s", event.Error.Message))
		}

	case "error":
		if event.Error != nil {
			errMsg := event.Error.Message
			if event.Error.Code != "" {
				errMsg = fmt.Sprintf("%s: %s", event.Error.Code, errMsg)
			}
			b.onError(fmt.Errorf("openai-realtime: %s", errMsg))
		}

	case "session.created", "session.updated",
		"input_audio_buffer.speech_started", "input_audio_buffer.speech_stopped",
		"input_audio_buffer.committed", "conversation.item.created",
		"rate_limits.updated":
		// informational

	default:
		log.Printf("openai-realtime: unhandled event type: %s", event.Type)
	}
}

// AddAudio sends one 16 kHz PCM chunk, resampled to the 24 kHz the API expects.
func (b *OpenAIRealtimeBackend) AddAudio(chunk []byte) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return fmt.Errorf("backend not started")
	}
	conn := b.conn
	b.mu.Unlock()

	select {
	case <-b.ctx.Done():
		return b.ctx.Err()
	default:
	}

	if conn == nil {
		return fmt.Errorf("no connection")
	}
	if b.cfg.Gate != nil && !b.cfg.Gate.IsVoiced(chunk) {
		return nil
	}

	msg := oaiAudioAppend{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(Resample16to24(chunk)),
	}

	b.mu.Lock()
	err := conn.WriteJSON(msg)
	b.mu.Unlock()

	if err != nil {
		log.Printf("openai-realtime: write error: %v, attempting reconnection", err)
		if b.reconnect() {
			b.mu.Lock()
			conn = b.conn
			if conn != nil {
				err = conn.WriteJSON(msg)
			}
			b.mu.Unlock()
			if conn != nil && err == nil {
				return nil
			}
		}
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (b *OpenAIRealtimeBackend) Stop() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	if b.cancel != nil {
		b.cancel()
	}
	conn := b.conn
	b.started = false
	b.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	b.wg.Wait()

	log.Printf("openai-realtime: closed")
	return nil
}
