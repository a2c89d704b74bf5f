package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lialabs/liameet/internal/session"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession() *session.Session {
	return &session.Session{
		ID:           "sess-1",
		Platform:     "meet",
		Title:        "weekly sync",
		StartedAt:    time.Now().Truncate(time.Second),
		Participants: []string{"Ana", "Bruno"},
		Language:     "es",
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := testSession()
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	ended := time.Now()
	sess.EndedAt = &ended
	sess.Summary = "short recap"
	sess.SummaryKind = "general"
	if err := s.EndSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	sessions, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	got := sessions[0]
	if got.ID != "sess-1" || got.Title != "weekly sync" || got.Summary != "short recap" {
		t.Errorf("session = %+v", got)
	}
	if got.EndedAt == nil {
		t.Error("EndedAt not persisted")
	}
	if len(got.Participants) != 2 || got.Participants[0] != "Ana" {
		t.Errorf("participants = %v", got.Participants)
	}
}

func TestTranscriptBatch_UpsertsCorrections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := testSession()
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	segs := []session.Segment{
		{ID: "seg-1", Timestamp: time.Now(), Offset: 2 * time.Second, Speaker: "Ana", Text: "ho la a todos"},
		{ID: "seg-2", Timestamp: time.Now(), Offset: 5 * time.Second, Speaker: "Lia", Text: "Hello!", IsAssistantReply: true},
	}
	if err := s.AddTranscriptBatch(ctx, sess.ID, segs); err != nil {
		t.Fatal(err)
	}

	// corrected text arrives again under the same id
	segs[0].Text = "hola a todos"
	if err := s.AddTranscriptBatch(ctx, sess.ID, segs[:1]); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetTranscript(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("transcript has %d segments, want 2", len(got))
	}
	if got[0].Text != "hola a todos" {
		t.Errorf("correction not applied: %q", got[0].Text)
	}
	if got[0].Offset != 2*time.Second {
		t.Errorf("offset = %v, want 2s", got[0].Offset)
	}
	if !got[1].IsAssistantReply {
		t.Error("assistant reply flag lost")
	}
}

func TestAddTranscriptBatch_EmptyIsNoop(t *testing.T) {
	s := openTestStore(t)
	if err := s.AddTranscriptBatch(context.Background(), "whatever", nil); err != nil {
		t.Fatal(err)
	}
}

func TestGetTranscript_UnknownSession(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetTranscript(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d segments for unknown session", len(got))
	}
}
