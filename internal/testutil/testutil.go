package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/lialabs/liameet/internal/backend"
	"github.com/lialabs/liameet/internal/capture"
	"github.com/lialabs/liameet/internal/realtime"
	"github.com/lialabs/liameet/internal/session"
)

// MockAudioSource is a capture.Source fed by the test.
type MockAudioSource struct {
	mu      sync.Mutex
	frames  chan capture.Frame
	errs    chan error
	running bool
	muted   bool
	stopped int
}

func NewMockAudioSource() *MockAudioSource {
	return &MockAudioSource{
		frames: make(chan capture.Frame, 64),
		errs:   make(chan error, 4),
	}
}

func (m *MockAudioSource) Start(ctx context.Context) (<-chan capture.Frame, <-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	return m.frames, m.errs, nil
}

func (m *MockAudioSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.stopped++
	return nil
}

func (m *MockAudioSource) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

func (m *MockAudioSource) SetVolume(source string, level float64) error { return nil }

func (m *MockAudioSource) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MockAudioSource) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *MockAudioSource) StopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Push emits one frame into the source's channel.
func (m *MockAudioSource) Push(data []byte) {
	m.frames <- capture.Frame{Data: data, Timestamp: time.Now()}
}

// MockBackend records audio and lets the test drive the callbacks.
type MockBackend struct {
	BackendName string
	StartErr    error

	mu       sync.Mutex
	onResult backend.ResultFunc
	onError  backend.ErrorFunc
	audio    [][]byte
	started  bool
	stopped  bool
}

func NewMockBackend(name string) *MockBackend {
	return &MockBackend{BackendName: name}
}

func (m *MockBackend) Name() string { return m.BackendName }

func (m *MockBackend) Start(ctx context.Context, onResult backend.ResultFunc, onError backend.ErrorFunc) error {
	if m.StartErr != nil {
		return m.StartErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onResult = onResult
	m.onError = onError
	m.started = true
	return nil
}

func (m *MockBackend) AddAudio(chunk []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = append(m.audio, chunk)
	return nil
}

func (m *MockBackend) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *MockBackend) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *MockBackend) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *MockBackend) AudioChunks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audio)
}

// EmitResult drives the result callback as the upstream service would.
func (m *MockBackend) EmitResult(text, speaker string) {
	m.mu.Lock()
	cb := m.onResult
	m.mu.Unlock()
	if cb != nil {
		cb(backend.Result{Text: text, Speaker: speaker, IsFinal: true})
	}
}

// EmitError drives the error callback.
func (m *MockBackend) EmitError(err error) {
	m.mu.Lock()
	cb := m.onError
	m.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// MockLink is a session.ModelLink driven entirely by the test.
type MockLink struct {
	ConnectErr error
	FailTimes  int // first N Connect calls fail
	nearCap    bool

	mu        sync.Mutex
	events    chan realtime.Event
	ready     bool
	everReady bool
	mode      realtime.Mode
	connects  int
	audio     [][]byte
	texts     []string
	closed    bool
}

func NewMockLink() *MockLink {
	return &MockLink{events: make(chan realtime.Event, 64)}
}

func (m *MockLink) Connect(ctx context.Context, mode realtime.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	if m.FailTimes > 0 {
		m.FailTimes--
		return context.DeadlineExceeded
	}
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.mode = mode
	m.ready = true
	m.everReady = true
	return nil
}

func (m *MockLink) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
}

func (m *MockLink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.ready = false
	close(m.events)
	return nil
}

func (m *MockLink) SendAudio(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return realtime.ErrNotReady
	}
	m.audio = append(m.audio, pcm)
	return nil
}

func (m *MockLink) SendText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return realtime.ErrNotReady
	}
	m.texts = append(m.texts, text)
	return nil
}

func (m *MockLink) Events() <-chan realtime.Event { return m.events }

func (m *MockLink) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *MockLink) EverReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.everReady
}

func (m *MockLink) NearCap(margin time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nearCap
}

func (m *MockLink) SetNearCap(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nearCap = v
}

func (m *MockLink) Mode() realtime.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *MockLink) Connects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

func (m *MockLink) AudioChunks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audio)
}

func (m *MockLink) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Emit pushes one event as the remote endpoint would. The link must have
// been connected; dropping ready first simulates an unexpected close.
func (m *MockLink) Emit(ev realtime.Event) {
	m.events <- ev
}

// DropConnection simulates the socket dying: not ready anymore, then an
// EventClosed on the events channel.
func (m *MockLink) DropConnection(err error) {
	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()
	m.events <- realtime.Event{Type: realtime.EventClosed, Err: err}
}

// MockStore records persistence calls in memory.
type MockStore struct {
	CreateErr error
	BatchErr  error

	mu       sync.Mutex
	sessions []*session.Session
	batches  [][]session.Segment
	segments map[string]session.Segment
	ended    int
}

func NewMockStore() *MockStore {
	return &MockStore{segments: make(map[string]session.Segment)}
}

func (m *MockStore) CreateSession(ctx context.Context, sess *session.Session) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, sess)
	return nil
}

func (m *MockStore) EndSession(ctx context.Context, sess *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended++
	return nil
}

func (m *MockStore) AddTranscriptBatch(ctx context.Context, sessionID string, segs []session.Segment) error {
	if m.BatchErr != nil {
		return m.BatchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, segs)
	for _, seg := range segs {
		m.segments[seg.ID] = seg
	}
	return nil
}

func (m *MockStore) Batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *MockStore) SegmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.segments)
}

func (m *MockStore) Segment(id string) (session.Segment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seg, ok := m.segments[id]
	return seg, ok
}

func (m *MockStore) Ended() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

// MockLLMAdapter returns a canned response or an error.
type MockLLMAdapter struct {
	Response string
	Err      error

	mu    sync.Mutex
	calls []string
}

func (m *MockLLMAdapter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, userPrompt)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}
	// echo: one unchanged line per input line
	return userPrompt, nil
}

func (m *MockLLMAdapter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockSink collects played PCM.
type MockSink struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (m *MockSink) Write(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, pcm)
	return nil
}

func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockSink) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
