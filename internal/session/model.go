package session

import (
	"context"
	"time"

	"github.com/lialabs/liameet/internal/realtime"
)

// Status is the orchestrator's lifecycle state.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusConnecting    Status = "connecting"
	StatusTranscribing  Status = "transcribing"
	StatusLiaResponding Status = "lia_responding"
	StatusPaused        Status = "paused"
	StatusReconnecting  Status = "reconnecting"
	StatusError         Status = "error"
	StatusEnded         Status = "ended"
)

// AllStatuses lists every status, for gauges and validation.
var AllStatuses = []string{
	string(StatusIdle), string(StatusConnecting), string(StatusTranscribing),
	string(StatusLiaResponding), string(StatusPaused), string(StatusReconnecting),
	string(StatusError), string(StatusEnded),
}

// Session is one recorded meeting.
type Session struct {
	ID           string
	Platform     string
	Title        string
	StartedAt    time.Time
	EndedAt      *time.Time
	Participants []string
	Language     string
	Metadata     map[string]string
	Summary      string
	SummaryKind  string
}

// Segment is one published transcript line. Corrected segments are
// re-published under the same ID with new text.
type Segment struct {
	ID                    string
	Timestamp             time.Time
	Offset                time.Duration
	Speaker               string
	Text                  string
	IsAssistantReply      bool
	IsAssistantInvocation bool
	Language              string
	Confidence            float64
}

// Store persists sessions and their transcripts.
type Store interface {
	CreateSession(ctx context.Context, sess *Session) error
	EndSession(ctx context.Context, sess *Session) error
	AddTranscriptBatch(ctx context.Context, sessionID string, segs []Segment) error
}

// ModelLink is the bidirectional realtime model connection the orchestrator
// drives. *realtime.Link satisfies it.
type ModelLink interface {
	Connect(ctx context.Context, mode realtime.Mode) error
	Disconnect()
	Close() error
	SendAudio(pcm []byte) error
	SendText(text string) error
	Events() <-chan realtime.Event
	Ready() bool
	EverReady() bool
	NearCap(margin time.Duration) bool
}

// Player schedules assistant speech for gapless playback.
type Player interface {
	Enqueue(pcm []byte) (time.Time, error)
	Stop()
}

// Events are the orchestrator's outward callbacks. All fire outside the
// orchestrator's lock; nil callbacks are skipped.
type Events struct {
	OnSegment        func(seg Segment) // new segment, or replacement under the same ID
	OnAssistantReply func(text string)
	OnStatus         func(status Status)
	OnError          func(err error)
	OnEnded          func(sess *Session)
}
