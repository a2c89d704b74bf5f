package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lialabs/liameet/internal/provider"
)

// liveServer fakes the realtime endpoint: it records client frames and can
// push server frames.
type liveServer struct {
	t        *testing.T
	ackSetup bool
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	setups []setupFrame
	inputs int
}

func newLiveServer(t *testing.T, ackSetup bool) (*liveServer, Config) {
	s := &liveServer{t: t, ackSetup: ackSetup}
	srv := httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.SetupGrace = 200 * time.Millisecond
	cfg.Endpoint = &provider.EndpointConfig{
		BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Path:    "/live",
	}
	return s, cfg
}

func (s *liveServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Setup != nil {
			s.mu.Lock()
			s.setups = append(s.setups, *frame.Setup)
			s.mu.Unlock()
			if s.ackSetup {
				s.push(`{"setupComplete":{}}`)
			}
		}
		if frame.RealtimeInput != nil {
			s.mu.Lock()
			s.inputs++
			s.mu.Unlock()
		}
	}
}

func (s *liveServer) push(raw string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.t.Fatal("no client connected")
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		s.t.Logf("server push: %v", err)
	}
}

func (s *liveServer) lastSetup() setupFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.setups) == 0 {
		s.t.Fatal("no setup frame received")
	}
	return s.setups[len(s.setups)-1]
}

func (s *liveServer) inputCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs
}

func collectEvents(l *Link) (func(EventType) int, func(EventType) Event) {
	var mu sync.Mutex
	var events []Event
	go func() {
		for ev := range l.Events() {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}
	}()
	count := func(typ EventType) int {
		mu.Lock()
		defer mu.Unlock()
		n := 0
		for _, ev := range events {
			if ev.Type == typ {
				n++
			}
		}
		return n
	}
	last := func(typ EventType) Event {
		mu.Lock()
		defer mu.Unlock()
		for i := len(events) - 1; i >= 0; i-- {
			if events[i].Type == typ {
				return events[i]
			}
		}
		return Event{}
	}
	return count, last
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestConnect_ExplicitSetupAck(t *testing.T) {
	srv, cfg := newLiveServer(t, true)
	l := New(cfg)
	defer l.Close()

	start := time.Now()
	if err := l.Connect(context.Background(), ModeTranscription); err != nil {
		t.Fatal(err)
	}
	if !l.Ready() {
		t.Error("link not ready after explicit ack")
	}
	if !l.EverReady() {
		t.Error("EverReady false after successful setup")
	}
	// an explicit ack must not wait out the grace period
	if time.Since(start) >= cfg.SetupGrace {
		t.Error("connect waited for the grace period despite explicit ack")
	}

	setup := srv.lastSetup()
	if setup.Model == "" {
		t.Error("setup frame missing model")
	}
	if setup.InputAudioTranscription == nil {
		t.Error("setup frame missing input transcription request")
	}
}

func TestConnect_ImplicitAckAfterGrace(t *testing.T) {
	_, cfg := newLiveServer(t, false)
	l := New(cfg)
	defer l.Close()

	if err := l.Connect(context.Background(), ModeTranscription); err != nil {
		t.Fatal(err)
	}
	if !l.Ready() {
		t.Error("open socket past the grace period should count as ready")
	}
}

func TestConnect_ModeSelectsInstruction(t *testing.T) {
	srv, cfg := newLiveServer(t, true)
	l := New(cfg)
	defer l.Close()

	if err := l.Connect(context.Background(), ModeInteractive); err != nil {
		t.Fatal(err)
	}
	setup := srv.lastSetup()
	if setup.SystemInstruction == nil || len(setup.SystemInstruction.Parts) == 0 {
		t.Fatal("setup frame missing system instruction")
	}
	if !strings.Contains(setup.SystemInstruction.Parts[0].Text, "Lia") {
		t.Error("interactive mode did not select the assistant persona")
	}
}

func TestSendAudio_RejectedBeforeReady(t *testing.T) {
	_, cfg := newLiveServer(t, true)
	l := New(cfg)
	defer l.Close()

	if err := l.SendAudio([]byte{1, 2}); !errors.Is(err, ErrNotReady) {
		t.Errorf("SendAudio before connect = %v, want ErrNotReady", err)
	}
	if err := l.SendText("hi"); !errors.Is(err, ErrNotReady) {
		t.Errorf("SendText before connect = %v, want ErrNotReady", err)
	}
}

func TestSendAudio_ReachesServer(t *testing.T) {
	srv, cfg := newLiveServer(t, true)
	l := New(cfg)
	defer l.Close()

	if err := l.Connect(context.Background(), ModeTranscription); err != nil {
		t.Fatal(err)
	}
	if err := l.SendAudio(make([]byte, 256)); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, func() bool { return srv.inputCount() == 1 })
}

func TestServerFrames_BecomeEvents(t *testing.T) {
	srv, cfg := newLiveServer(t, true)
	l := New(cfg)
	defer l.Close()

	count, last := collectEvents(l)

	if err := l.Connect(context.Background(), ModeTranscription); err != nil {
		t.Fatal(err)
	}

	srv.push(`{"serverContent":{"inputTranscription":{"text":"hola a todos"}}}`)
	srv.push(`{"serverContent":{"modelTurn":{"parts":[{"text":"Claro,"},{"inlineData":{"mimeType":"audio/pcm","data":"AAAA"}}]}}}`)
	srv.push(`{"serverContent":{"turnComplete":true}}`)

	waitUntil(t, func() bool { return count(EventTurnComplete) == 1 })

	if got := last(EventInputTranscription).Text; got != "hola a todos" {
		t.Errorf("input transcription = %q", got)
	}
	if got := last(EventText).Text; got != "Claro," {
		t.Errorf("reply text = %q", got)
	}
	if got := last(EventAudio).Audio; len(got) != 3 {
		t.Errorf("decoded audio = %d bytes, want 3", len(got))
	}
}

func TestUnexpectedClose_EmitsEventClosed(t *testing.T) {
	srv, cfg := newLiveServer(t, true)
	l := New(cfg)
	defer l.Close()

	count, _ := collectEvents(l)

	if err := l.Connect(context.Background(), ModeTranscription); err != nil {
		t.Fatal(err)
	}

	srv.mu.Lock()
	srv.conn.Close()
	srv.mu.Unlock()

	waitUntil(t, func() bool { return count(EventClosed) == 1 })
	waitUntil(t, func() bool { return l.State() == StateDisconnected })
}

func TestDisconnect_AllowsReconnect(t *testing.T) {
	_, cfg := newLiveServer(t, true)
	l := New(cfg)
	defer l.Close()

	count, _ := collectEvents(l)

	if err := l.Connect(context.Background(), ModeTranscription); err != nil {
		t.Fatal(err)
	}
	l.Disconnect()
	if l.Ready() {
		t.Error("still ready after Disconnect")
	}

	// intentional teardown must not look like a dropped connection
	time.Sleep(50 * time.Millisecond)
	if n := count(EventClosed); n != 0 {
		t.Errorf("got %d EventClosed after intentional disconnect, want 0", n)
	}

	if err := l.Connect(context.Background(), ModeTranscription); err != nil {
		t.Fatalf("reconnect after Disconnect: %v", err)
	}
	if !l.Ready() {
		t.Error("not ready after reconnect")
	}
}

func TestClose_Idempotent(t *testing.T) {
	_, cfg := newLiveServer(t, true)
	l := New(cfg)

	if err := l.Connect(context.Background(), ModeTranscription); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Connect(context.Background(), ModeTranscription); err == nil {
		t.Error("Connect after Close succeeded")
	}
}

func TestNearCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionCap = 0
	l := New(cfg)
	if l.NearCap(time.Minute) {
		t.Error("NearCap true with no session cap configured")
	}

	cfg = DefaultConfig()
	cfg.SessionCap = 10 * time.Minute
	l = New(cfg)
	// disconnected link has no elapsed time
	if l.NearCap(time.Minute) {
		t.Error("NearCap true while disconnected")
	}
}
