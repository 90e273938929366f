package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// DispatchRun is the audit record of one bulk-dispatch batch. Results holds
// the per-contact outcomes as a JSONB snapshot, written once when the batch
// finishes and never updated.
type DispatchRun struct {
	ID           uuid.UUID
	ScopeEmail   sql.NullString // null for an unscoped (all-contacts) run
	Total        int
	SuccessCount int
	ErrorCount   int
	Results      pqtype.NullRawMessage
	StartedAt    time.Time
	FinishedAt   time.Time
}

// RecordDispatchRunParams carries the finished batch tally into the audit
// table.
type RecordDispatchRunParams struct {
	ScopeEmail   sql.NullString
	Total        int
	SuccessCount int
	ErrorCount   int
	Results      pqtype.NullRawMessage
	StartedAt    time.Time
}

const dispatchRunColumns = `id, scope_email, total, success_count, error_count, results, started_at, finished_at`

// RecordDispatchRun inserts the audit row for a completed batch.
func (s *Store) RecordDispatchRun(ctx context.Context, p RecordDispatchRunParams) (DispatchRun, error) {
	row := s.pool.QueryRowContext(ctx, `
		INSERT INTO dispatch_runs (id, scope_email, total, success_count, error_count, results, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING `+dispatchRunColumns,
		uuid.New(), p.ScopeEmail, p.Total, p.SuccessCount, p.ErrorCount, p.Results, p.StartedAt)

	var r DispatchRun
	err := row.Scan(&r.ID, &r.ScopeEmail, &r.Total, &r.SuccessCount, &r.ErrorCount, &r.Results, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return DispatchRun{}, fmt.Errorf("store: record dispatch run: %w", err)
	}
	return r, nil
}

// ListDispatchRuns returns the most recent batches, newest first.
func (s *Store) ListDispatchRuns(ctx context.Context, limit int) ([]DispatchRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.QueryContext(ctx, `
		SELECT `+dispatchRunColumns+`
		FROM dispatch_runs
		ORDER BY finished_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list dispatch runs: %w", err)
	}
	defer rows.Close()

	var runs []DispatchRun
	for rows.Next() {
		var r DispatchRun
		if err := rows.Scan(&r.ID, &r.ScopeEmail, &r.Total, &r.SuccessCount, &r.ErrorCount, &r.Results, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("store: scan dispatch run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate dispatch runs: %w", err)
	}
	return runs, nil
}
