package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one row of fur_runs.
type Run struct {
	ID          string     `json:"id"`
	Section     string     `json:"seccion"`
	Status      string     `json:"status"`
	Total       int        `json:"total"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Records     int        `json:"records"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StartRun records the beginning of an ingestion.
func (db *DB) StartRun(ctx context.Context, id, section string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO fur_runs (id, seccion, status) VALUES ($1, $2, $3)`,
		id, section, RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of an ingestion.
func (db *DB) FinishRun(ctx context.Context, id, status string, total, succeeded, failed, records int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE fur_runs SET status = $2, total = $3, succeeded = $4, failed = $5, records = $6, completed_at = NOW()
		 WHERE id = $1`,
		id, status, total, succeeded, failed, records,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, seccion, status, total, succeeded, failed, records, started_at, completed_at
		 FROM fur_runs WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Section, &r.Status, &r.Total, &r.Succeeded, &r.Failed, &r.Records, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, seccion, status, total, succeeded, failed, records, started_at, completed_at
		 FROM fur_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Section, &r.Status, &r.Total, &r.Succeeded, &r.Failed, &r.Records, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
