package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/llm"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit     int       // max results (0 = unlimited)
	After     int64     // sequence > After
	Before    int64     // sequence < Before
	From      time.Time // timestamp >= From
	To        time.Time // timestamp <= To
	SessionID string
	Purpose   string
}

// LLMRequestRecord is a stored LLM request event.
type LLMRequestRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	llm.RequestEvent
}

// LLMUsageStats aggregates token usage for one purpose.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates token usage for one provider and model.
type LLMModelUsage struct {
	Provider     string
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo appends and queries audit events. Every event takes its
// sequence from the shared counter.
type EventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

var (
	_ llm.EventRecorder             = (*EventRepo)(nil)
	_ assessment.TransitionRecorder = (*EventRepo)(nil)
)

// AppendLLMRequest records an LLM API call event.
func (r *EventRepo) AppendLLMRequest(ctx context.Context, e llm.RequestEvent) error {
	seq, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}

	query, args := builder().Insert("llm_request_events").
		Columns("sequence", "timestamp", "session_id", "provider", "model", "purpose",
			"input_tokens", "output_tokens", "latency_ms", "success", "error_message",
			"request_body", "response_body").
		Values(seq, time.Now().UTC(), e.SessionID, e.Provider, e.Model, e.Purpose,
			e.InputTokens, e.OutputTokens, e.LatencyMs, e.Success, e.ErrorMessage,
			e.RequestBody, e.ResponseBody).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert llm event: %w", err)
	}
	return nil
}

// AppendTransition records a stage change of a session.
func (r *EventRepo) AppendTransition(ctx context.Context, sessionID string, t assessment.Transition) error {
	seq, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}

	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	query, args := builder().Insert("session_events").
		Columns("sequence", "timestamp", "session_id", "from_stage", "to_stage", "reason").
		Values(seq, at.UTC(), sessionID, string(t.From), string(t.To), t.Reason).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// Transitions returns the recorded stage changes of a session in order.
func (r *EventRepo) Transitions(ctx context.Context, sessionID string) ([]assessment.Transition, error) {
	b := builder()
	query, args := b.Select("from_stage", "to_stage", "timestamp", "reason").
		From(b.Table("session_events")).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("sequence").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []assessment.Transition
	for rows.Next() {
		var (
			t        assessment.Transition
			from, to string
		)
		if err := rows.Scan(&from, &to, &t.At, &t.Reason); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.From, t.To = assessment.Stage(from), assessment.Stage(to)
		out = append(out, t)
	}
	return out, rows.Err()
}

var llmColumns = []string{
	"id", "sequence", "timestamp", "session_id", "provider", "model", "purpose",
	"input_tokens", "output_tokens", "latency_ms", "success", "error_message",
	"request_body", "response_body",
}

// QueryLLMEvents returns LLM events, most recent first.
func (r *EventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestRecord, error) {
	b := builder()
	sel := b.Select(llmColumns...).From(b.Table("llm_request_events"))
	if opts.After > 0 {
		sel.Where(entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		sel.Where(entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		sel.Where(entsql.GTE("timestamp", opts.From.UTC()))
	}
	if !opts.To.IsZero() {
		sel.Where(entsql.LTE("timestamp", opts.To.UTC()))
	}
	if opts.SessionID != "" {
		sel.Where(entsql.EQ("session_id", opts.SessionID))
	}
	if opts.Purpose != "" {
		sel.Where(entsql.EQ("purpose", opts.Purpose))
	}
	sel.OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query llm events: %w", err)
	}
	defer rows.Close()

	var out []LLMRequestRecord
	for rows.Next() {
		rec, err := scanLLMRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetLLMEvent returns a single LLM event by ID, or nil if not found.
func (r *EventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMRequestRecord, error) {
	b := builder()
	query, args := b.Select(llmColumns...).
		From(b.Table("llm_request_events")).
		Where(entsql.EQ("id", id)).
		Query()

	rec, err := scanLLMRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLLMRecord(row scanner) (*LLMRequestRecord, error) {
	var rec LLMRequestRecord
	err := row.Scan(&rec.ID, &rec.Sequence, &rec.Timestamp, &rec.SessionID, &rec.Provider,
		&rec.Model, &rec.Purpose, &rec.InputTokens, &rec.OutputTokens, &rec.LatencyMs,
		&rec.Success, &rec.ErrorMessage, &rec.RequestBody, &rec.ResponseBody)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan llm event: %w", err)
	}
	return &rec, nil
}

// LLMUsageByPurpose aggregates calls and tokens per purpose.
func (r *EventRepo) LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error) {
	b := builder()
	t := b.Table("llm_request_events")
	query, args := b.Select(
		t.C("purpose"),
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(entsql.Sum(t.C("input_tokens")), "input"),
		entsql.As(entsql.Sum(t.C("output_tokens")), "output"),
		entsql.As("CAST(AVG("+t.C("latency_ms")+") AS INTEGER)", "avg_ms"),
	).
		From(t).
		GroupBy(t.C("purpose")).
		OrderBy(entsql.Desc("calls")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query llm usage: %w", err)
	}
	defer rows.Close()

	var out []LLMUsageStats
	for rows.Next() {
		var st LLMUsageStats
		if err := rows.Scan(&st.Purpose, &st.Calls, &st.InputTokens, &st.OutputTokens, &st.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan llm usage: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// LLMUsageByModel aggregates calls and tokens per provider and model.
func (r *EventRepo) LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error) {
	b := builder()
	t := b.Table("llm_request_events")
	query, args := b.Select(
		t.C("provider"),
		t.C("model"),
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As(entsql.Sum(t.C("input_tokens")), "input"),
		entsql.As(entsql.Sum(t.C("output_tokens")), "output"),
	).
		From(t).
		GroupBy(t.C("provider"), t.C("model")).
		OrderBy(t.C("provider"), t.C("model")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query model usage: %w", err)
	}
	defer rows.Close()

	var out []LLMModelUsage
	for rows.Next() {
		var mu LLMModelUsage
		if err := rows.Scan(&mu.Provider, &mu.Model, &mu.Calls, &mu.InputTokens, &mu.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan model usage: %w", err)
		}
		out = append(out, mu)
	}
	return out, rows.Err()
}
