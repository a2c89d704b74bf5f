package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DeepgramBackend implements Backend over Deepgram's realtime listen socket.
type DeepgramBackend struct {
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

// Deepgram WebSocket response types (incoming)
type deepgramWSResponse struct {
	Type        string           `json:"type"`
	Channel     *deepgramChannel `json:"channel,omitempty"`
	Error       *deepgramError   `json:"error,omitempty"`
	IsFinal     bool             `json:"is_final,omitempty"`
	SpeechFinal bool             `json:"speech_final,omitempty"`
}

type deepgramChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives,omitempty"`
}

type deepgramAlternative struct {
	Transcript string         `json:"transcript"`
	Confidence float64        `json:"confidence"`
	Words      []deepgramWord `json:"words,omitempty"`
}

type deepgramWord struct {
	Word    string `json:"word"`
	Speaker *int   `json:"speaker,omitempty"`
}

type deepgramError struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

func NewDeepgramBackend(cfg Config) *DeepgramBackend {
	return &DeepgramBackend{
		cfg:         cfg,
		maxRetries:  3,
		retryDelays: defaultRetryDelays,
	}
}

func (b *DeepgramBackend) Name() string { return "deepgram" }

func (b *DeepgramBackend) Start(ctx context.Context, onResult ResultFunc, onError ErrorFunc) error {
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

	log.Printf("deepgram: connected, model=%s, language=%s", b.cfg.Model, b.cfg.Language)
	return nil
}

// connectLocked establishes the WebSocket connection. Must be called with mu held.
func (b *DeepgramBackend) connectLocked() error {
	wsURL, err := b.buildURL()
	if err != nil {
		return fmt.Errorf("build websocket url: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+b.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(b.ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("deepgram: dial failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	b.conn = conn
	return nil
}

func (b *DeepgramBackend) buildURL() (string, error) {
	u, err := url.Parse(b.cfg.Endpoint.BaseURL + b.cfg.Endpoint.Path)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	q.Set("model", b.cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("channels", "1")
	q.Set("interim_results", "false")
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	q.Set("diarize", "true")
	if b.cfg.Language != "" {
		q.Set("language", b.cfg.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// reconnect re-establishes the connection with bounded backoff.
// Returns true if reconnection succeeded.
func (b *DeepgramBackend) reconnect() bool {
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		select {
		case <-b.ctx.Done():
			return false
		default:
		}

		if attempt > 0 {
			delay := b.retryDelays[attempt-1]
			log.Printf("deepgram: reconnect attempt %d/%d after %v", attempt+1, b.maxRetries, delay)
			select {
			case <-b.ctx.Done():
				return false
			case <-time.After(delay):
			}
		} else {
			log.Printf("deepgram: reconnect attempt %d/%d", attempt+1, b.maxRetries)
		}

		b.mu.Lock()
		if b.conn != nil {
			b.conn.Close()
			b.conn = nil
		}
		err := b.connectLocked()
		b.mu.Unlock()

		if err == nil {
			log.Printf("deepgram: reconnected successfully")
			return true
		}
		log.Printf("deepgram: reconnect failed: %v", err)
	}
	return false
}

func (b *DeepgramBackend) readLoop() {
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
				b.onError(fmt.Errorf("deepgram: connection lost, reconnection failed after %d attempts", b.maxRetries))
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
			log.Printf("deepgram: read error: %v, attempting reconnection", err)
			if !b.reconnect() {
				b.onError(fmt.Errorf("deepgram: websocket read: %w, reconnection failed", err))
				return
			}
			continue
		}

		var resp deepgramWSResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			log.Printf("deepgram: parse error: %v", err)
			continue
		}

		switch resp.Type {
		case "Results":
			if resp.Channel == nil || len(resp.Channel.Alternatives) == 0 {
				continue
			}
			alt := resp.Channel.Alternatives[0]
			if alt.Transcript == "" {
				continue
			}
			b.onResult(Result{
				Text:       alt.Transcript,
				Speaker:    speakerLabel(alt.Words),
				Confidence: alt.Confidence,
				IsFinal:    resp.IsFinal || resp.SpeechFinal,
			})

		case "Error":
			if resp.Error != nil {
				errMsg := resp.Error.Message
				if resp.Error.Description != "" {
					errMsg = fmt.Sprintf("%s: %s", errMsg, resp.Error.Description)
				}
				b.onError(fmt.Errorf("deepgram: %s", errMsg))
			}

		case "Metadata", "UtteranceEnd", "SpeechStarted":
			// informational

		default:
			log.Printf("deepgram: unknown message type: %s", resp.Type)
		}
	}
}

// speakerLabel maps the dominant diarization tag of an utterance to a label.
func speakerLabel(words []deepgramWord) string {
	counts := make(map[int]int)
	for _, w := range words {
		if w.Speaker != nil {
			counts[*w.Speaker]++
		}
	}
	best, bestCount := -1, 0
	for sp, c := range counts {
		if c > bestCount {
			best, bestCount = sp, c
		}
	}
	if best < 0 {
		return ""
	}
	return fmt.Sprintf("Speaker %d", best+1)
}

// AddAudio sends one PCM chunk upstream. Silent chunks are dropped by the
// voice gate when one is configured.
func (b *DeepgramBackend) AddAudio(chunk []byte) error {
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

	b.mu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, chunk)
	b.mu.Unlock()

	if err != nil {
		log.Printf("deepgram: write error: %v, attempting reconnection", err)
		if b.reconnect() {
			b.mu.Lock()
			conn = b.conn
			if conn != nil {
				err = conn.WriteMessage(websocket.BinaryMessage, chunk)
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

func (b *DeepgramBackend) Stop() error {
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

	// close websocket outside of lock (readLoop may be blocked on read)
	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	b.wg.Wait()

	log.Printf("deepgram: closed")
	return nil
}
