package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lialabs/liameet/internal/session"
)

// SQLite persists sessions and transcript segments in a local database.
// It implements session.Store.
type SQLite struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	platform     TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMP NOT NULL,
	ended_at     TIMESTAMP,
	participants TEXT NOT NULL DEFAULT '',
	language     TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL DEFAULT '',
	summary_kind TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS segments (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL REFERENCES sessions(id),
	created_at    TIMESTAMP NOT NULL,
	offset_ms     INTEGER NOT NULL,
	speaker       TEXT NOT NULL DEFAULT '',
	text          TEXT NOT NULL,
	is_reply      INTEGER NOT NULL DEFAULT 0,
	is_invocation INTEGER NOT NULL DEFAULT 0,
	language      TEXT NOT NULL DEFAULT '',
	confidence    REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_segments_session ON segments(session_id, offset_ms);
`

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CreateSession(ctx context.Context, sess *session.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, platform, title, started_at, participants, language)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Platform, sess.Title, sess.StartedAt,
		strings.Join(sess.Participants, ","), sess.Language)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// EndSession records the end time, final roster and summary for a session.
func (s *SQLite) EndSession(ctx context.Context, sess *session.Session) error {
	endedAt := time.Now()
	if sess.EndedAt != nil {
		endedAt = *sess.EndedAt
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET ended_at = ?, participants = ?, language = ?, summary = ?, summary_kind = ?
		WHERE id = ?`,
		endedAt, strings.Join(sess.Participants, ","), sess.Language,
		sess.Summary, sess.SummaryKind, sess.ID)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	return nil
}

// AddTranscriptBatch upserts a batch of segments. Corrected segments arrive
// again under the same id and replace the earlier text.
func (s *SQLite) AddTranscriptBatch(ctx context.Context, sessionID string, segs []session.Segment) error {
	if len(segs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segments (id, session_id, created_at, offset_ms, speaker, text,
			is_reply, is_invocation, language, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, speaker = excluded.speaker`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, seg := range segs {
		if _, err := stmt.ExecContext(ctx,
			seg.ID, sessionID, seg.Timestamp, seg.Offset.Milliseconds(),
			seg.Speaker, seg.Text,
			boolInt(seg.IsAssistantReply), boolInt(seg.IsAssistantInvocation),
			seg.Language, seg.Confidence); err != nil {
			return fmt.Errorf("insert segment %s: %w", seg.ID, err)
		}
	}
	return tx.Commit()
}

// GetTranscript returns a session's segments ordered by offset.
func (s *SQLite) GetTranscript(ctx context.Context, sessionID string) ([]session.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, offset_ms, speaker, text, is_reply, is_invocation, language, confidence
		FROM segments WHERE session_id = ? ORDER BY offset_ms`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var segs []session.Segment
	for rows.Next() {
		var seg session.Segment
		var offsetMS int64
		var reply, invocation int
		if err := rows.Scan(&seg.ID, &seg.Timestamp, &offsetMS, &seg.Speaker, &seg.Text,
			&reply, &invocation, &seg.Language, &seg.Confidence); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.Offset = time.Duration(offsetMS) * time.Millisecond
		seg.IsAssistantReply = reply != 0
		seg.IsAssistantInvocation = invocation != 0
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// ListSessions returns recent sessions, newest first.
func (s *SQLite) ListSessions(ctx context.Context, limit int) ([]session.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, platform, title, started_at, ended_at, participants, language, summary, summary_kind
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		var sess session.Session
		var endedAt sql.NullTime
		var participants string
		if err := rows.Scan(&sess.ID, &sess.Platform, &sess.Title, &sess.StartedAt,
			&endedAt, &participants, &sess.Language, &sess.Summary, &sess.SummaryKind); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			sess.EndedAt = &t
		}
		if participants != "" {
			sess.Participants = strings.Split(participants, ",")
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
