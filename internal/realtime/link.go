package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lialabs/liameet/internal/provider"
)

// ConnState is the tri-state of a link instance. Audio must never be sent
// while the state is not StateReady.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected              // socket open, setup not yet acknowledged
	StateReady
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

// Mode selects the system instruction sent during the setup handshake.
type Mode string

const (
	ModeTranscription Mode = "transcription"
	ModeInteractive   Mode = "interactive"
)

type EventType int

const (
	EventAudio EventType = iota + 1 // assistant speech, decoded PCM
	EventText                       // assistant reply text
	EventInputTranscription         // transcription of the audio we sent
	EventTurnComplete
	EventClosed // socket closed unexpectedly
)

type Event struct {
	Type  EventType
	Audio []byte
	Text  string
	Err   error
}

var ErrNotReady = errors.New("realtime link not ready")

const (
	transcriptionInstruction = "You are a verbatim transcription engine. " +
		"Transcribe the incoming audio exactly as spoken, in the speaker's language. " +
		"Never answer, comment, translate or summarize. Produce no output other than the transcript."

	interactiveInstruction = "You are Lia, a meeting assistant participating in a live call. " +
		"Answer briefly and conversationally when addressed. " +
		"Base your answers on what has been said in the meeting."
)

type Config struct {
	Endpoint       *provider.EndpointConfig
	APIKey         string
	Model          string
	Voice          string
	ConnectTimeout time.Duration // socket must open within this window
	SetupGrace     time.Duration // implicit-ack window once the socket is open
	SessionCap     time.Duration // provider-imposed connection lifetime
	EventBuffer    int
}

func DefaultConfig() Config {
	return Config{
		Model:          "gemini-2.0-flash-live-001",
		Voice:          "Aoede",
		ConnectTimeout: 15 * time.Second,
		SetupGrace:     3 * time.Second,
		SessionCap:     10 * time.Minute,
		EventBuffer:    100,
	}
}

// Link is a persistent duplex connection to the realtime model endpoint.
// One instance is owned by one session; the events channel survives
// reconnects and closes only on Close.
type Link struct {
	cfg    Config
	events chan Event

	mu          sync.Mutex
	conn        *websocket.Conn
	state       ConnState
	mode        Mode
	connectedAt time.Time
	everReady   bool // setup completed at least once on some connection
	closed      bool
	cancel      context.CancelFunc
	setupAck    chan struct{}

	wg sync.WaitGroup
}

func New(cfg Config) *Link {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 100
	}
	return &Link{
		cfg:    cfg,
		events: make(chan Event, cfg.EventBuffer),
	}
}

func (l *Link) Events() <-chan Event { return l.events }

func (l *Link) State() ConnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Link) Ready() bool { return l.State() == StateReady }

// EverReady reports whether setup completed at least once; an unexpected
// close before first setup is a connect failure, not a reconnect case.
func (l *Link) EverReady() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.everReady
}

// Elapsed is the wall-clock time since the current connection was established.
func (l *Link) Elapsed() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateDisconnected || l.connectedAt.IsZero() {
		return 0
	}
	return time.Since(l.connectedAt)
}

// NearCap reports whether the connection is within margin of the provider's
// session-duration cap and should be proactively cycled.
func (l *Link) NearCap(margin time.Duration) bool {
	if l.cfg.SessionCap <= 0 {
		return false
	}
	return l.Elapsed() >= l.cfg.SessionCap-margin
}

// Connect dials the endpoint, runs the setup handshake for the given mode
// and waits for the explicit setup acknowledgement — or, failing that, for
// the grace period to elapse with the socket still open (implicit ack).
// Resets the session-duration clock on success.
func (l *Link) Connect(ctx context.Context, mode Mode) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return fmt.Errorf("link closed")
	}
	if l.state != StateDisconnected {
		l.mu.Unlock()
		return fmt.Errorf("link already connected")
	}
	l.mode = mode
	l.setupAck = make(chan struct{})
	ack := l.setupAck
	l.mu.Unlock()

	dialCtx, cancelDial := context.WithTimeout(ctx, l.cfg.ConnectTimeout)
	defer cancelDial()

	wsURL, err := l.buildURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("realtime dial: %w", err)
	}

	if err := conn.WriteJSON(l.setupFrame(mode)); err != nil {
		conn.Close()
		return fmt.Errorf("realtime setup: %w", err)
	}

	readCtx, cancelRead := context.WithCancel(context.Background())

	l.mu.Lock()
	l.conn = conn
	l.state = StateConnected
	l.connectedAt = time.Now()
	l.cancel = cancelRead
	l.mu.Unlock()

	l.wg.Add(1)
	go l.readLoop(readCtx, conn)

	// some deployments omit the setup acknowledgement; a quiet open socket
	// past the grace window counts as an implicit ack
	select {
	case <-ack:
	case <-time.After(l.cfg.SetupGrace):
		if l.State() == StateDisconnected {
			return fmt.Errorf("realtime setup: connection closed during handshake")
		}
		log.Printf("realtime: no setup ack within %v, treating open socket as ready", l.cfg.SetupGrace)
	case <-ctx.Done():
		l.teardown(false)
		return ctx.Err()
	}

	l.mu.Lock()
	l.state = StateReady
	l.everReady = true
	l.mu.Unlock()

	log.Printf("realtime: ready, model=%s, mode=%s", l.cfg.Model, mode)
	return nil
}

func (l *Link) buildURL() (string, error) {
	if l.cfg.Endpoint == nil {
		return "", fmt.Errorf("realtime endpoint not configured")
	}
	u, err := url.Parse(l.cfg.Endpoint.BaseURL + l.cfg.Endpoint.Path)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("key", l.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (l *Link) setupFrame(mode Mode) clientFrame {
	instruction := transcriptionInstruction
	if mode == ModeInteractive {
		instruction = interactiveInstruction
	}
	return clientFrame{
		Setup: &setupFrame{
			Model: l.cfg.Model,
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: &voiceConfig{
						PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: l.cfg.Voice},
					},
				},
			},
			SystemInstruction: &content{
				Parts: []part{{Text: instruction}},
			},
			InputAudioTranscription: &struct{}{},
		},
	}
}

func (l *Link) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer l.wg.Done()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return // intentional close
			default:
			}

			l.mu.Lock()
			wasClosed := l.closed
			l.state = StateDisconnected
			l.conn = nil
			l.mu.Unlock()

			if !wasClosed {
				l.emit(Event{Type: EventClosed, Err: err})
			}
			return
		}

		var frame serverFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Printf("realtime: parse error: %v", err)
			continue
		}
		l.handleFrame(frame)
	}
}

func (l *Link) handleFrame(frame serverFrame) {
	if frame.SetupComplete != nil {
		l.mu.Lock()
		ack := l.setupAck
		l.setupAck = nil
		l.mu.Unlock()
		if ack != nil {
			close(ack)
		}
		return
	}

	if frame.GoAway != nil {
		log.Printf("realtime: server goAway, timeLeft=%s", frame.GoAway.TimeLeft)
		return
	}

	sc := frame.ServerContent
	if sc == nil {
		return
	}

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		l.emit(Event{Type: EventInputTranscription, Text: sc.InputTranscription.Text})
	}

	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					log.Printf("realtime: bad audio payload: %v", err)
					continue
				}
				l.emit(Event{Type: EventAudio, Audio: pcm})
			}
			if p.Text != "" {
				l.emit(Event{Type: EventText, Text: p.Text})
			}
		}
	}

	if sc.TurnComplete {
		l.emit(Event{Type: EventTurnComplete})
	}
}

func (l *Link) emit(ev Event) {
	select {
	case l.events <- ev:
	default:
		log.Printf("realtime: event buffer full, dropping %d", ev.Type)
	}
}

// SendAudio forwards one 16 kHz mono PCM chunk. Rejected unless ready.
func (l *Link) SendAudio(pcm []byte) error {
	l.mu.Lock()
	if l.state != StateReady || l.conn == nil {
		l.mu.Unlock()
		return ErrNotReady
	}
	conn := l.conn
	frame := clientFrame{
		RealtimeInput: &realtimeInputFrame{
			MediaChunks: []mediaChunk{{
				MimeType: "audio/pcm;rate=16000",
				Data:     base64.StdEncoding.EncodeToString(pcm),
			}},
		},
	}
	err := conn.WriteJSON(frame)
	l.mu.Unlock()

	if err != nil {
		return fmt.Errorf("realtime audio write: %w", err)
	}
	return nil
}

// SendText submits a complete user turn.
func (l *Link) SendText(text string) error {
	l.mu.Lock()
	if l.state != StateReady || l.conn == nil {
		l.mu.Unlock()
		return ErrNotReady
	}
	conn := l.conn
	frame := clientFrame{
		ClientContent: &clientContentFrame{
			Turns:        []content{{Role: "user", Parts: []part{{Text: text}}}},
			TurnComplete: true,
		},
	}
	err := conn.WriteJSON(frame)
	l.mu.Unlock()

	if err != nil {
		return fmt.Errorf("realtime text write: %w", err)
	}
	return nil
}

// Disconnect closes the current connection without closing the link; the
// caller may Connect again (proactive cycling before the duration cap).
func (l *Link) Disconnect() {
	l.teardown(false)
}

// Close shuts the link down permanently and closes the events channel.
func (l *Link) Close() error {
	l.teardown(true)
	return nil
}

func (l *Link) teardown(final bool) {
	l.mu.Lock()
	if final {
		if l.closed {
			l.mu.Unlock()
			return
		}
		l.closed = true
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	conn := l.conn
	l.conn = nil
	l.state = StateDisconnected
	l.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	l.wg.Wait()

	if final {
		close(l.events)
		log.Printf("realtime: closed")
	}
}
