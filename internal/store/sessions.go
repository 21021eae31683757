package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/gatekeep/internal/assessment"
)

// SessionRepo persists whole sessions as JSON documents. The indexed
// columns mirror the fields List filters on.
type SessionRepo struct {
	db *sql.DB
}

var _ assessment.SessionRepo = (*SessionRepo)(nil)

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (r *SessionRepo) Create(ctx context.Context, s *assessment.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	query, args := builder().Insert("sessions").
		Columns("id", "candidate_id", "email", "current_stage", "status", "started_at", "updated_at", "data").
		Values(s.ID, s.CandidateID, s.Profile.Email, string(s.CurrentStage), status(s),
			s.StartedAt.UTC(), s.UpdatedAt.UTC(), data).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert session %s: %w", s.ID, err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*assessment.Session, error) {
	b := builder()
	query, args := b.Select("data").
		From(b.Table("sessions")).
		Where(entsql.EQ("id", id)).
		Query()

	var data []byte
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, assessment.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", id, err)
	}
	return decodeSession(data)
}

func (r *SessionRepo) Save(ctx context.Context, s *assessment.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	query, args := builder().Update("sessions").
		Set("current_stage", string(s.CurrentStage)).
		Set("status", status(s)).
		Set("updated_at", s.UpdatedAt.UTC()).
		Set("data", data).
		Where(entsql.EQ("id", s.ID)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	if n == 0 {
		return assessment.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepo) List(ctx context.Context, f assessment.ListFilter) ([]*assessment.Session, error) {
	b := builder()
	sel := b.Select("data").From(b.Table("sessions"))
	if f.Stage != "" {
		sel.Where(entsql.EQ("current_stage", string(f.Stage)))
	}
	if f.Active {
		sel.Where(entsql.And(
			entsql.IsNull("status"),
			entsql.NotIn("current_stage", string(assessment.StageCompleted), string(assessment.StageTerminated)),
		))
	}
	if f.CandidateID != "" {
		sel.Where(entsql.EQ("candidate_id", f.CandidateID))
	}
	sel.OrderBy(entsql.Desc("started_at"), entsql.Desc("id"))
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*assessment.Session
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func decodeSession(data []byte) (*assessment.Session, error) {
	var s assessment.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// status is the verdict column value, NULL while the session is running.
func status(s *assessment.Session) any {
	if s.Verdict == nil {
		return nil
	}
	return string(s.Verdict.FinalStatus)
}
