// Package journal persists an audit record per completed session.
// Only timing and outcome are stored, never conversation content.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	duration_ms   INTEGER NOT NULL,
	status        TEXT NOT NULL,
	exit_code     INTEGER NOT NULL DEFAULT 0,
	message_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions (started_at);
`

// Entry is one journaled session.
type Entry struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	DurationMillis int64     `json:"duration_ms"`
	Status         string    `json:"status"`
	ExitCode       int       `json:"exit_code"`
	MessageCount   int       `json:"message_count"`
}

// Journal is a SQLite-backed session log.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path.
// Use ":memory:" for an ephemeral journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	// SQLite allows a single writer; session recording is serial anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts one session entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, duration_ms, status, exit_code, message_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.StartedAt.UTC().Format(time.RFC3339Nano), e.DurationMillis,
		e.Status, e.ExitCode, e.MessageCount,
	)
	if err != nil {
		return fmt.Errorf("recording session: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, status, exit_code, message_count
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedAt string
		if err := rows.Scan(&e.ID, &startedAt, &e.DurationMillis, &e.Status, &e.ExitCode, &e.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			e.StartedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the retention window and returns the
// number removed.
func (j *Journal) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := j.db.ExecContext(ctx, `DELETE FROM sessions WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning sessions: %w", err)
	}
	return res.RowsAffected()
}
