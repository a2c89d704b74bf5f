package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lialabs/liameet/internal/provider"
)

func TestNew_ProviderValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "nonexistent", APIKey: "k"},
			wantErr: "unknown transcription provider",
		},
		{
			name:    "provider without transcription",
			cfg:     Config{Provider: provider.ProviderGroq, APIKey: "k"},
			wantErr: "does not support streaming transcription",
		},
		{
			name:    "missing api key",
			cfg:     Config{Provider: provider.ProviderDeepgram},
			wantErr: "API key required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_AppliesProviderDefaults(t *testing.T) {
	b, err := New(Config{Provider: provider.ProviderDeepgram, APIKey: "test-key"})
	if err != nil {
		t.Fatal(err)
	}
	dg, ok := b.(*DeepgramBackend)
	if !ok {
		t.Fatalf("got %T, want *DeepgramBackend", b)
	}
	if dg.cfg.Model == "" {
		t.Error("default model not applied")
	}
	if dg.cfg.Endpoint == nil {
		t.Error("default endpoint not applied")
	}
}

func TestDeepgram_BuildURL(t *testing.T) {
	b := NewDeepgramBackend(Config{
		Provider: provider.ProviderDeepgram,
		APIKey:   "k",
		Model:    "nova-3",
		Language: "es",
		Endpoint: &provider.EndpointConfig{BaseURL: "wss://api.deepgram.com", Path: "/v1/listen"},
	})

	got, err := b.buildURL()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"model=nova-3",
		"encoding=linear16",
		"sample_rate=16000",
		"channels=1",
		"diarize=true",
		"interim_results=false",
		"language=es",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("url %q missing %q", got, want)
		}
	}
}

func TestSpeakerLabel(t *testing.T) {
	sp := func(n int) *int { return &n }

	tests := []struct {
		name  string
		words []deepgramWord
		want  string
	}{
		{"no words", nil, ""},
		{"no diarization", []deepgramWord{{Word: "hi"}}, ""},
		{"single speaker", []deepgramWord{{Word: "hi", Speaker: sp(0)}}, "Speaker 1"},
		{
			"dominant speaker wins",
			[]deepgramWord{
				{Word: "a", Speaker: sp(1)},
				{Word: "b", Speaker: sp(1)},
				{Word: "c", Speaker: sp(0)},
			},
			"Speaker 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := speakerLabel(tt.words); got != tt.want {
				t.Errorf("speakerLabel = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeepgram_AddAudioBeforeStart(t *testing.T) {
	b := NewDeepgramBackend(Config{Provider: provider.ProviderDeepgram, APIKey: "k"})
	if err := b.AddAudio([]byte{1, 2}); err == nil {
		t.Error("AddAudio before Start succeeded")
	}
}

// wsEcho runs a test websocket server that records binary frames and can
// push JSON messages to the client.
type wsEcho struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conn   *websocket.Conn
	binary [][]byte
}

func newWSEcho(t *testing.T) (*wsEcho, *httptest.Server) {
	e := &wsEcho{t: t}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := e.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		e.mu.Lock()
		e.conn = conn
		e.mu.Unlock()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				e.mu.Lock()
				e.binary = append(e.binary, data)
				e.mu.Unlock()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return e, srv
}

func (e *wsEcho) send(v string) {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		e.t.Fatal("no client connected")
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(v)); err != nil {
		e.t.Fatalf("server write: %v", err)
	}
}

func (e *wsEcho) binaryCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.binary)
}

func TestDeepgram_StreamRoundTrip(t *testing.T) {
	echo, srv := newWSEcho(t)

	b := NewDeepgramBackend(Config{
		Provider: provider.ProviderDeepgram,
		APIKey:   "k",
		Model:    "nova-3",
		Endpoint: &provider.EndpointConfig{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"), Path: "/v1/listen"},
	})

	var mu sync.Mutex
	var results []Result
	onResult := func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}
	onError := func(err error) { t.Logf("backend error: %v", err) }

	if err := b.Start(context.Background(), onResult, onError); err != nil {
		t.Fatal(err)
	}
	defer b.Stop()

	if err := b.AddAudio(make([]byte, 512)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && echo.binaryCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if echo.binaryCount() != 1 {
		t.Fatalf("server received %d binary frames, want 1", echo.binaryCount())
	}

	echo.send(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello there","confidence":0.97,"words":[{"word":"hello","speaker":0}]}]}}`)

	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(results)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Text != "hello there" || !r.IsFinal || r.Speaker != "Speaker 1" {
		t.Errorf("result = %+v", r)
	}
}

func TestResample16to24_Length(t *testing.T) {
	in := make([]byte, 320) // 160 samples at 16 kHz
	out := Resample16to24(in)
	if len(out) != 480 {
		t.Errorf("resampled length = %d, want 480", len(out))
	}
	if got := Resample16to24(nil); len(got) != 0 {
		t.Errorf("resampling empty input produced %d bytes", len(got))
	}
}
