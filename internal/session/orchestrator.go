package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lialabs/liameet/internal/assembler"
	"github.com/lialabs/liameet/internal/backend"
	"github.com/lialabs/liameet/internal/capture"
	"github.com/lialabs/liameet/internal/llm"
	"github.com/lialabs/liameet/internal/metrics"
	"github.com/lialabs/liameet/internal/notify"
	"github.com/lialabs/liameet/internal/realtime"
	"github.com/lialabs/liameet/internal/speaker"
)

// ErrAlreadyActive is returned when StartSession is called while a session
// is in progress.
var ErrAlreadyActive = errors.New("a session is already active")

// ErrLinkNotReady is returned when the assistant is invoked before the
// realtime link completed its setup handshake.
var ErrLinkNotReady = errors.New("realtime link is not ready")

// assistantName labels segments spoken by the assistant.
const assistantName = "Lia"

type Config struct {
	// BackendOrder is the preference list of transcription providers.
	// Backends are tried in order at startup and on runtime failure; when
	// the list is exhausted, audio falls through to the realtime link's
	// input transcription.
	BackendOrder []string
	Language     string

	FlushDelay       time.Duration
	MinSegmentLength int
	CorrectionDelay  time.Duration

	AutosaveInterval      time.Duration
	DurationCheckInterval time.Duration
	CapMargin             time.Duration

	ReconnectMaxAttempts int
	ReconnectBaseDelay   time.Duration

	SummaryKind llm.SummaryKind
}

func DefaultConfig() Config {
	return Config{
		BackendOrder:          []string{"deepgram", "openai"},
		FlushDelay:            4 * time.Second,
		MinSegmentLength:      3,
		CorrectionDelay:       2 * time.Second,
		AutosaveInterval:      10 * time.Second,
		DurationCheckInterval: 30 * time.Second,
		CapMargin:             time.Minute,
		ReconnectMaxAttempts:  5,
		ReconnectBaseDelay:    time.Second,
		SummaryKind:           llm.SummaryGeneral,
	}
}

// Deps are the orchestrator's collaborators. Store, LLM, Playback, Speaker,
// Notifier and Metrics are optional; nil disables the feature.
type Deps struct {
	Source     capture.Source
	NewBackend func(provider string) (backend.Backend, error)
	Link       ModelLink
	Store      Store
	LLM        llm.Adapter
	Playback   Player
	Speaker    speaker.Tracker
	Notifier   notify.Notifier
	Metrics    *metrics.Metrics
}

// StartOptions describe the meeting a session records.
type StartOptions struct {
	Platform string
	Title    string
	Language string
	Metadata map[string]string
}

// Orchestrator owns one meeting session at a time: audio routing between
// the transcription backend and the realtime link, transcript assembly and
// correction, assistant turns, playback and persistence.
//
// All externally-driven callbacks (backend results, link events, timers)
// serialize on one mutex; outward Events callbacks always fire with the
// mutex released.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	events Events

	mu      sync.Mutex
	status  Status
	sess    *Session
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started time.Time

	segments []Segment
	unsaved  []Segment

	asm  *assembler.Assembler
	corr *assembler.Corrector

	activeBackend  backend.Backend
	backendName    string
	nextBackendIdx int

	linkMode     realtime.Mode
	reconnecting bool

	currentSpeaker string
	backendSpeaker string

	replyBuf   strings.Builder
	replyStart time.Time
}

func NewOrchestrator(cfg Config, deps Deps, events Events) *Orchestrator {
	def := DefaultConfig()
	if len(cfg.BackendOrder) == 0 {
		cfg.BackendOrder = def.BackendOrder
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = def.FlushDelay
	}
	if cfg.MinSegmentLength <= 0 {
		cfg.MinSegmentLength = def.MinSegmentLength
	}
	if cfg.CorrectionDelay <= 0 {
		cfg.CorrectionDelay = def.CorrectionDelay
	}
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = def.AutosaveInterval
	}
	if cfg.DurationCheckInterval <= 0 {
		cfg.DurationCheckInterval = def.DurationCheckInterval
	}
	if cfg.CapMargin <= 0 {
		cfg.CapMargin = def.CapMargin
	}
	if cfg.ReconnectMaxAttempts <= 0 {
		cfg.ReconnectMaxAttempts = def.ReconnectMaxAttempts
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.SummaryKind == "" {
		cfg.SummaryKind = def.SummaryKind
	}
	return &Orchestrator{cfg: cfg, deps: deps, events: events, status: StatusIdle}
}

// StartSession begins recording a meeting. Legal only from idle.
func (o *Orchestrator) StartSession(ctx context.Context, opts StartOptions) (*Session, error) {
	o.mu.Lock()
	if o.status != StatusIdle {
		o.mu.Unlock()
		return nil, ErrAlreadyActive
	}
	fire := o.transitionLocked(StatusConnecting)

	language := opts.Language
	if language == "" {
		language = o.cfg.Language
	}
	sess := &Session{
		ID:        uuid.New().String(),
		Platform:  opts.Platform,
		Title:     opts.Title,
		StartedAt: time.Now(),
		Language:  language,
		Metadata:  opts.Metadata,
	}
	o.sess = sess
	o.started = sess.StartedAt
	o.segments = nil
	o.unsaved = nil
	o.nextBackendIdx = 0
	o.reconnecting = false
	o.currentSpeaker = ""
	o.backendSpeaker = ""
	o.replyBuf.Reset()
	o.ctx, o.cancel = context.WithCancel(context.Background())

	o.asm = assembler.New(assembler.Config{
		FlushDelay: o.cfg.FlushDelay,
		MinLength:  o.cfg.MinSegmentLength,
	}, o.onAssembledText)

	if o.deps.LLM != nil {
		o.corr = assembler.NewCorrector(o.correctBatch, o.cfg.CorrectionDelay, o.onCorrected)
	} else {
		o.corr = nil
	}
	o.mu.Unlock()
	fire()

	fail := func(err error) (*Session, error) {
		o.deps.Source.Stop()
		o.deps.Link.Close()
		if o.deps.Speaker != nil {
			o.deps.Speaker.Stop()
		}
		o.mu.Lock()
		b := o.activeBackend
		o.activeBackend = nil
		o.backendName = ""
		o.cancel()
		fire := o.transitionLocked(StatusError)
		o.mu.Unlock()
		// cancelling the context does not unblock the adapter's socket read,
		// Stop does
		if b != nil {
			b.Stop()
		}
		fire()
		o.fireError(err)
		return nil, err
	}

	if o.deps.Store != nil {
		if err := o.deps.Store.CreateSession(ctx, sess); err != nil {
			return fail(fmt.Errorf("create session record: %w", err))
		}
	}

	frames, srcErrs, err := o.deps.Source.Start(o.ctx)
	if err != nil {
		return fail(fmt.Errorf("start audio source: %w", err))
	}

	if o.deps.Speaker != nil {
		if err := o.deps.Speaker.Start(o.ctx, o.onSpeakerChange, o.onRoster); err != nil {
			log.Printf("session: speaker tracker unavailable: %v", err)
		}
	}

	o.mu.Lock()
	o.startBackendLocked()
	o.mu.Unlock()

	o.mu.Lock()
	o.linkMode = realtime.ModeTranscription
	o.mu.Unlock()
	if err := o.deps.Link.Connect(o.ctx, realtime.ModeTranscription); err != nil {
		return fail(fmt.Errorf("connect realtime link: %w", err))
	}

	o.wg.Add(3)
	go o.consumeAudio(frames, srcErrs)
	go o.consumeLinkEvents()
	go o.runTimers()

	o.mu.Lock()
	fire = o.transitionLocked(StatusTranscribing)
	o.mu.Unlock()
	fire()

	notify.SessionStarted(o.deps.Notifier, opts.Title)
	log.Printf("session: started %s (%s)", sess.ID, opts.Title)
	return sess, nil
}

// startBackendLocked tries the remaining providers in order and activates
// the first that starts. With none left, audio falls through to the link.
func (o *Orchestrator) startBackendLocked() {
	for o.nextBackendIdx < len(o.cfg.BackendOrder) {
		name := o.cfg.BackendOrder[o.nextBackendIdx]
		o.nextBackendIdx++

		b, err := o.deps.NewBackend(name)
		if err != nil {
			log.Printf("session: backend %s unavailable: %v", name, err)
			continue
		}
		if err := b.Start(o.ctx, o.onBackendResult, o.onBackendError); err != nil {
			log.Printf("session: backend %s failed to start: %v", name, err)
			continue
		}
		o.activeBackend = b
		o.backendName = name
		log.Printf("session: transcription backend: %s", name)
		return
	}
	o.activeBackend = nil
	o.backendName = ""
	log.Printf("session: no transcription backend available, using realtime link input transcription")
}

// consumeAudio routes captured frames according to the current status.
func (o *Orchestrator) consumeAudio(frames <-chan capture.Frame, errs <-chan error) {
	defer o.wg.Done()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			o.handleChunk(f.Data)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("session: audio source: %v", err)
			o.fireError(fmt.Errorf("audio source: %w", err))
		case <-o.ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) handleChunk(data []byte) {
	o.mu.Lock()
	if o.status == StatusEnded || o.status == StatusError {
		o.mu.Unlock()
		return
	}

	switch o.status {
	case StatusLiaResponding:
		o.mu.Unlock()
		if err := o.deps.Link.SendAudio(data); err != nil && !errors.Is(err, realtime.ErrNotReady) {
			log.Printf("session: send audio to link: %v", err)
		}
		o.deps.Metrics.ChunkRouted("link")
		return
	case StatusTranscribing:
		if b := o.activeBackend; b != nil {
			o.mu.Unlock()
			if err := b.AddAudio(data); err != nil {
				log.Printf("session: backend audio: %v", err)
			}
			o.deps.Metrics.ChunkRouted("backend")
			return
		}
		// Last resort: the link's input transcription.
		o.mu.Unlock()
		if err := o.deps.Link.SendAudio(data); err != nil && !errors.Is(err, realtime.ErrNotReady) {
			log.Printf("session: send audio to link: %v", err)
		}
		o.deps.Metrics.ChunkRouted("link")
		return
	default:
		// paused, connecting, reconnecting: drop.
		o.mu.Unlock()
		o.deps.Metrics.ChunkRouted("dropped")
	}
}

// onBackendResult feeds a transcription fragment into the assembler.
func (o *Orchestrator) onBackendResult(res backend.Result) {
	if strings.TrimSpace(res.Text) == "" {
		return
	}
	o.mu.Lock()
	if o.status == StatusEnded || o.status == StatusError {
		o.mu.Unlock()
		return
	}
	if res.Speaker != "" {
		o.backendSpeaker = res.Speaker
	}
	asm := o.asm
	o.mu.Unlock()
	asm.AddFragment(res.Text)
}

// onBackendError permanently retires the failed backend and falls back to
// the next provider in order. The session keeps running.
func (o *Orchestrator) onBackendError(err error) {
	o.mu.Lock()
	if o.status == StatusEnded || o.status == StatusError {
		o.mu.Unlock()
		return
	}
	failed := o.activeBackend
	name := o.backendName
	o.activeBackend = nil
	o.backendName = ""
	o.startBackendLocked()
	o.mu.Unlock()

	log.Printf("session: backend %s failed, disabled for the rest of the session: %v", name, err)
	o.deps.Metrics.BackendFailure(name)
	if failed != nil {
		// Stop asynchronously: this callback runs on the backend's own
		// goroutine, which Stop waits for.
		go failed.Stop()
	}
	o.fireError(fmt.Errorf("transcription backend %s failed: %w", name, err))
}

// onAssembledText publishes one transcript segment.
func (o *Orchestrator) onAssembledText(text string) {
	o.mu.Lock()
	if o.sess == nil {
		o.mu.Unlock()
		return
	}
	seg := Segment{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Offset:    time.Since(o.started),
		Speaker:   o.speakerLocked(),
		Text:      text,
		Language:  o.sess.Language,
	}
	o.segments = append(o.segments, seg)
	o.unsaved = append(o.unsaved, seg)
	corr := o.corr
	o.mu.Unlock()

	o.deps.Metrics.SegmentPublished("transcript", len(text))
	if o.events.OnSegment != nil {
		o.events.OnSegment(seg)
	}
	if corr != nil {
		corr.Enqueue(seg.ID, seg.Text)
	}
}

func (o *Orchestrator) speakerLocked() string {
	if o.currentSpeaker != "" {
		return o.currentSpeaker
	}
	return o.backendSpeaker
}

// correctBatch is the Corrector's fix function.
func (o *Orchestrator) correctBatch(ctx context.Context, lines []string) ([]string, error) {
	out, err := llm.CorrectLines(ctx, o.deps.LLM, lines)
	if err != nil {
		o.deps.Metrics.CorrectionBatch("error")
		return nil, err
	}
	o.deps.Metrics.CorrectionBatch("ok")
	return out, nil
}

// onCorrected replaces a segment's text in place and re-announces it.
func (o *Orchestrator) onCorrected(id, text string) {
	o.mu.Lock()
	var updated *Segment
	for i := range o.segments {
		if o.segments[i].ID == id {
			if o.segments[i].Text == text {
				break
			}
			o.segments[i].Text = text
			seg := o.segments[i]
			o.unsaved = append(o.unsaved, seg)
			updated = &seg
			break
		}
	}
	o.mu.Unlock()

	if updated != nil && o.events.OnSegment != nil {
		o.events.OnSegment(*updated)
	}
}

func (o *Orchestrator) onSpeakerChange(name string) {
	o.mu.Lock()
	o.currentSpeaker = name
	o.mu.Unlock()
}

func (o *Orchestrator) onRoster(names []string) {
	o.mu.Lock()
	if o.sess != nil {
		o.sess.Participants = append([]string(nil), names...)
	}
	o.mu.Unlock()
}

// consumeLinkEvents drives transcription fragments, assistant audio and
// text, turn boundaries and unexpected closes off the realtime link.
func (o *Orchestrator) consumeLinkEvents() {
	defer o.wg.Done()
	for ev := range o.deps.Link.Events() {
		switch ev.Type {
		case realtime.EventInputTranscription:
			o.onLinkInputTranscription(ev.Text)
		case realtime.EventText:
			o.onLinkText(ev.Text)
		case realtime.EventAudio:
			o.onLinkAudio(ev.Audio)
		case realtime.EventTurnComplete:
			o.onTurnComplete()
		case realtime.EventClosed:
			o.onLinkClosed(ev.Err)
		}
	}
}

func (o *Orchestrator) onLinkInputTranscription(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	o.mu.Lock()
	if o.status == StatusEnded || o.status == StatusError {
		o.mu.Unlock()
		return
	}
	asm := o.asm
	o.mu.Unlock()
	asm.AddFragment(text)
}

func (o *Orchestrator) onLinkText(text string) {
	o.mu.Lock()
	if o.status != StatusLiaResponding {
		o.mu.Unlock()
		return
	}
	if o.replyBuf.Len() == 0 {
		o.replyStart = time.Now()
	}
	o.replyBuf.WriteString(text)
	o.mu.Unlock()
}

func (o *Orchestrator) onLinkAudio(pcm []byte) {
	o.mu.Lock()
	responding := o.status == StatusLiaResponding
	o.mu.Unlock()
	if !responding || o.deps.Playback == nil {
		return
	}
	if _, err := o.deps.Playback.Enqueue(pcm); err != nil {
		log.Printf("session: playback: %v", err)
	}
}

// onTurnComplete closes the assistant's turn: publish the reply as a
// segment and route audio back to transcription.
func (o *Orchestrator) onTurnComplete() {
	o.mu.Lock()
	if o.status != StatusLiaResponding {
		o.mu.Unlock()
		return
	}
	text := strings.TrimSpace(o.replyBuf.String())
	start := o.replyStart
	o.replyBuf.Reset()

	var seg Segment
	if text != "" && o.sess != nil {
		if start.IsZero() {
			start = time.Now()
		}
		seg = Segment{
			ID:               uuid.New().String(),
			Timestamp:        start,
			Offset:           start.Sub(o.started),
			Speaker:          assistantName,
			Text:             text,
			IsAssistantReply: true,
			Language:         o.sess.Language,
		}
		o.segments = append(o.segments, seg)
		o.unsaved = append(o.unsaved, seg)
	}
	fire := o.transitionLocked(StatusTranscribing)
	o.mu.Unlock()
	fire()

	if text != "" {
		o.deps.Metrics.SegmentPublished("assistant_reply", len(text))
		if o.events.OnSegment != nil {
			o.events.OnSegment(seg)
		}
		if o.events.OnAssistantReply != nil {
			o.events.OnAssistantReply(text)
		}
	}
}

// onLinkClosed handles an unexpected link drop with a bounded reconnect
// loop. Closes before the link ever became ready, or after the session
// ended, are ignored.
func (o *Orchestrator) onLinkClosed(cause error) {
	o.mu.Lock()
	if o.status == StatusEnded || o.status == StatusError || o.reconnecting {
		o.mu.Unlock()
		return
	}
	if !o.deps.Link.EverReady() {
		o.mu.Unlock()
		return
	}
	o.reconnecting = true
	mode := o.linkMode
	ctx := o.ctx
	fire := o.transitionLocked(StatusReconnecting)
	o.mu.Unlock()
	fire()

	log.Printf("session: realtime link dropped (%v), reconnecting", cause)

	delay := o.cfg.ReconnectBaseDelay
	for attempt := 1; attempt <= o.cfg.ReconnectMaxAttempts; attempt++ {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			o.mu.Lock()
			o.reconnecting = false
			o.mu.Unlock()
			return
		}
		delay = delay * 3 / 2

		o.deps.Metrics.ReconnectAttempt()
		if err := o.deps.Link.Connect(ctx, mode); err != nil {
			log.Printf("session: reconnect attempt %d/%d failed: %v",
				attempt, o.cfg.ReconnectMaxAttempts, err)
			continue
		}

		o.mu.Lock()
		o.reconnecting = false
		if o.status == StatusEnded || o.status == StatusError {
			o.mu.Unlock()
			return
		}
		fire := o.transitionLocked(StatusTranscribing)
		o.mu.Unlock()
		fire()
		log.Printf("session: realtime link reconnected")
		return
	}

	o.mu.Lock()
	o.reconnecting = false
	if o.status == StatusEnded {
		o.mu.Unlock()
		return
	}
	fire = o.transitionLocked(StatusError)
	o.mu.Unlock()
	fire()
	err := Fatal(fmt.Errorf("realtime link lost after %d reconnect attempts, manual restart required", o.cfg.ReconnectMaxAttempts))
	o.fireError(err)
	notify.SessionError(o.deps.Notifier, err)
}

// runTimers drives periodic persistence and the provider session-duration
// check.
func (o *Orchestrator) runTimers() {
	defer o.wg.Done()
	save := time.NewTicker(o.cfg.AutosaveInterval)
	capCheck := time.NewTicker(o.cfg.DurationCheckInterval)
	defer save.Stop()
	defer capCheck.Stop()

	for {
		select {
		case <-save.C:
			o.persistBatch(o.ctx)
		case <-capCheck.C:
			o.maybeCycleLink()
		case <-o.ctx.Done():
			return
		}
	}
}

// maybeCycleLink proactively reconnects the link before the provider's
// session-duration cap kills it mid-stream. Skipped while the assistant is
// speaking; the next tick retries.
func (o *Orchestrator) maybeCycleLink() {
	o.mu.Lock()
	if o.status != StatusTranscribing && o.status != StatusPaused {
		o.mu.Unlock()
		return
	}
	if !o.deps.Link.NearCap(o.cfg.CapMargin) {
		o.mu.Unlock()
		return
	}
	mode := o.linkMode
	ctx := o.ctx
	o.mu.Unlock()

	log.Printf("session: realtime link nearing provider session cap, cycling connection")
	o.deps.Link.Disconnect()
	if err := o.deps.Link.Connect(ctx, mode); err != nil {
		log.Printf("session: proactive reconnect failed: %v", err)
		o.onLinkClosed(err)
	}
}

// persistBatch writes unsaved segments to the store. Failures keep the
// batch for the next attempt.
func (o *Orchestrator) persistBatch(ctx context.Context) {
	if o.deps.Store == nil {
		return
	}
	o.mu.Lock()
	if o.sess == nil || len(o.unsaved) == 0 {
		o.mu.Unlock()
		return
	}
	batch := o.unsaved
	o.unsaved = nil
	id := o.sess.ID
	o.mu.Unlock()

	if err := o.deps.Store.AddTranscriptBatch(ctx, id, batch); err != nil {
		log.Printf("session: persist %d segments failed, will retry: %v", len(batch), err)
		o.mu.Lock()
		o.unsaved = append(batch, o.unsaved...)
		o.mu.Unlock()
	}
}

// InvokeAssistant switches the session into an assistant turn. Only valid
// while transcribing (a paused session stays paused, its source muted), and
// the link must have completed its setup handshake. promptText, when
// non-empty, is sent to the model immediately and recorded as an invocation
// segment.
func (o *Orchestrator) InvokeAssistant(promptText string) error {
	o.mu.Lock()
	if o.status != StatusTranscribing {
		o.mu.Unlock()
		return fmt.Errorf("cannot invoke assistant while %s", o.status)
	}
	if !o.deps.Link.Ready() {
		o.mu.Unlock()
		return ErrLinkNotReady
	}
	needsModeSwitch := o.linkMode != realtime.ModeInteractive
	o.linkMode = realtime.ModeInteractive
	ctx := o.ctx
	fire := o.transitionLocked(StatusLiaResponding)
	o.mu.Unlock()

	if needsModeSwitch {
		// The system instruction is bound at setup, so switching to the
		// interactive persona means cycling the connection once.
		o.deps.Link.Disconnect()
		if err := o.deps.Link.Connect(ctx, realtime.ModeInteractive); err != nil {
			o.mu.Lock()
			o.linkMode = realtime.ModeTranscription
			back := o.transitionLocked(StatusTranscribing)
			o.mu.Unlock()
			back()
			// Disconnect emits no close event, so the reconnect loop must
			// be kicked here or the link stays down for good.
			go o.onLinkClosed(err)
			return fmt.Errorf("switch link to interactive mode: %w", err)
		}
	}
	fire()

	if promptText != "" {
		if err := o.deps.Link.SendText(promptText); err != nil {
			log.Printf("session: send invocation prompt: %v", err)
		}
		o.mu.Lock()
		var seg Segment
		if o.sess != nil {
			seg = Segment{
				ID:                    uuid.New().String(),
				Timestamp:             time.Now(),
				Offset:                time.Since(o.started),
				Speaker:               o.speakerLocked(),
				Text:                  promptText,
				IsAssistantInvocation: true,
				Language:              o.sess.Language,
			}
			o.segments = append(o.segments, seg)
			o.unsaved = append(o.unsaved, seg)
		}
		o.mu.Unlock()
		if seg.ID != "" && o.events.OnSegment != nil {
			o.events.OnSegment(seg)
		}
	}
	return nil
}

// Pause mutes capture without tearing anything down.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	if o.status != StatusTranscribing {
		o.mu.Unlock()
		return fmt.Errorf("cannot pause while %s", o.status)
	}
	fire := o.transitionLocked(StatusPaused)
	o.mu.Unlock()

	o.deps.Source.SetMuted(true)
	fire()
	return nil
}

func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	if o.status != StatusPaused {
		o.mu.Unlock()
		return fmt.Errorf("cannot resume while %s", o.status)
	}
	fire := o.transitionLocked(StatusTranscribing)
	o.mu.Unlock()

	o.deps.Source.SetMuted(false)
	fire()
	return nil
}

// EndSession closes the session and returns the finalized record. Calling
// it again (or with no session active) returns nil.
func (o *Orchestrator) EndSession(ctx context.Context, generateSummary bool) (*Session, error) {
	o.mu.Lock()
	if o.status == StatusIdle || o.status == StatusEnded {
		o.mu.Unlock()
		return nil, nil
	}
	// Flip first: the audio guard drops anything still in flight.
	fire := o.transitionLocked(StatusEnded)
	sess := o.sess
	asm := o.asm
	corr := o.corr
	b := o.activeBackend
	cancel := o.cancel
	o.activeBackend = nil
	o.mu.Unlock()

	o.deps.Source.Stop()
	cancel()

	if o.deps.Speaker != nil {
		if err := o.deps.Speaker.Stop(); err != nil {
			log.Printf("session: stop speaker tracker: %v", err)
		}
	}

	// Flush the tail fragment before closing the corrector; Close waits for
	// any in-flight batch but drops ones still waiting on the timer.
	asm.Flush()
	if corr != nil {
		corr.Close()
	}
	if b != nil {
		b.Stop()
	}
	o.deps.Link.Close()
	if o.deps.Playback != nil {
		o.deps.Playback.Stop()
	}
	o.wg.Wait()

	o.persistBatch(ctx)

	now := time.Now()
	o.mu.Lock()
	sess.EndedAt = &now
	segmentCount := len(o.segments)
	o.mu.Unlock()

	if generateSummary && o.deps.LLM != nil {
		if summary, err := o.summarize(ctx, o.cfg.SummaryKind); err != nil {
			log.Printf("session: summary generation failed: %v", err)
		} else {
			o.mu.Lock()
			sess.Summary = summary
			sess.SummaryKind = string(o.cfg.SummaryKind)
			o.mu.Unlock()
		}
	}

	if o.deps.Store != nil {
		if err := o.deps.Store.EndSession(ctx, sess); err != nil {
			log.Printf("session: finalize session record: %v", err)
		}
	}

	fire()
	if o.events.OnEnded != nil {
		o.events.OnEnded(sess)
	}
	notify.SessionEnded(o.deps.Notifier, segmentCount)
	log.Printf("session: ended %s (%d segments)", sess.ID, segmentCount)
	return sess, nil
}

// GenerateSummary produces a summary of the transcript so far and records
// it on the session.
func (o *Orchestrator) GenerateSummary(ctx context.Context, kind llm.SummaryKind) (string, error) {
	if o.deps.LLM == nil {
		return "", fmt.Errorf("no llm adapter configured")
	}
	if kind == "" {
		kind = o.cfg.SummaryKind
	}
	summary, err := o.summarize(ctx, kind)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	if o.sess != nil {
		o.sess.Summary = summary
		o.sess.SummaryKind = string(kind)
	}
	o.mu.Unlock()
	return summary, nil
}

func (o *Orchestrator) summarize(ctx context.Context, kind llm.SummaryKind) (string, error) {
	o.mu.Lock()
	var sb strings.Builder
	for _, seg := range o.segments {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, seg.Text)
	}
	o.mu.Unlock()
	return llm.Summarize(ctx, o.deps.LLM, sb.String(), kind)
}

// Status returns the current lifecycle state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Current returns the active (or most recent) session, or nil.
func (o *Orchestrator) Current() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess
}

// Transcript returns a snapshot of the published segments.
func (o *Orchestrator) Transcript() []Segment {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Segment(nil), o.segments...)
}

// transitionLocked updates status under the lock and returns the callback
// to fire after release.
func (o *Orchestrator) transitionLocked(s Status) func() {
	if o.status == s {
		return func() {}
	}
	o.status = s
	o.deps.Metrics.SetStatus(string(s), AllStatuses)
	cb := o.events.OnStatus
	return func() {
		if cb != nil {
			cb(s)
		}
	}
}

func (o *Orchestrator) fireError(err error) {
	if o.events.OnError != nil {
		o.events.OnError(err)
	}
}
