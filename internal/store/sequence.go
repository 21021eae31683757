package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// sequenceCounter orders LLM calls and stage transitions on one axis, so
// `gatekeep llm list` can be read against a session's history.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

const (
	createSequence = `CREATE TABLE IF NOT EXISTS event_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL
	)`

	// A database whose counter row went missing resumes after the highest
	// sequence already stored.
	seedSequence = `INSERT OR IGNORE INTO event_sequence (id, next_val)
		SELECT 1, COALESCE(MAX(sequence), 0) + 1 FROM (
			SELECT sequence FROM llm_request_events
			UNION ALL
			SELECT sequence FROM session_events
		)`

	nextSequence = `UPDATE event_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`
)

// newSequenceCounter must run after migrate, which creates the event tables.
func newSequenceCounter(ctx context.Context, db *sql.DB) (*sequenceCounter, error) {
	for _, stmt := range []string{createSequence, seedSequence} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("prepare event sequence: %w", err)
		}
	}
	return &sequenceCounter{db: db}, nil
}

func (c *sequenceCounter) Next(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	if err := c.db.QueryRowContext(ctx, nextSequence).Scan(&n); err != nil {
		return 0, fmt.Errorf("next event sequence: %w", err)
	}
	return n, nil
}
