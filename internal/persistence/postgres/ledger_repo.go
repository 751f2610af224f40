// Package postgres persists the ingestion-run ledger: one row per
// (symbol, start_timestamp, end_timestamp) ingestion invocation, recording
// how many snapshots/embeddings/points it produced. Adapted from the
// teacher's premove_repo.go upsert-by-unique-key pattern — sqlx + lib/pq,
// ON CONFLICT DO UPDATE keyed on the run's natural identity instead of
// (ts, symbol, venue).
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// IngestionRun is one row of the ledger.
type IngestionRun struct {
	ID                  int64      `db:"id"`
	Symbol              string     `db:"symbol"`
	StartTimestamp       int64      `db:"start_timestamp"`
	EndTimestamp         int64      `db:"end_timestamp"`
	IntervalMinutes      int        `db:"interval_minutes"`
	SnapshotsCreated     int        `db:"snapshots_created"`
	EmbeddingsGenerated  int        `db:"embeddings_generated"`
	PointsUploaded       int        `db:"points_uploaded"`
	Status               string     `db:"status"`
	ErrorMessage         *string    `db:"error_message"`
	StartedAt            time.Time  `db:"started_at"`
	CompletedAt          *time.Time `db:"completed_at"`
}

// LedgerRepo records and queries ingestion runs.
type LedgerRepo interface {
	RecordRun(ctx context.Context, run IngestionRun) (IngestionRun, error)
	ListRecent(ctx context.Context, symbol string, limit int) ([]IngestionRun, error)
}

type ledgerRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewLedgerRepo creates a PostgreSQL-backed ingestion-run ledger.
func NewLedgerRepo(db *sqlx.DB, timeout time.Duration) LedgerRepo {
	return &ledgerRepo{db: db, timeout: timeout}
}

// RecordRun upserts a run keyed on (symbol, start_timestamp, end_timestamp),
// matching the teacher's premove_artifacts upsert-by-natural-key shape.
func (r *ledgerRepo) RecordRun(ctx context.Context, run IngestionRun) (IngestionRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO ingestion_runs
		(symbol, start_timestamp, end_timestamp, interval_minutes, snapshots_created,
		 embeddings_generated, points_uploaded, status, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol, start_timestamp, end_timestamp) DO UPDATE SET
			interval_minutes = EXCLUDED.interval_minutes,
			snapshots_created = EXCLUDED.snapshots_created,
			embeddings_generated = EXCLUDED.embeddings_generated,
			points_uploaded = EXCLUDED.points_uploaded,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			completed_at = EXCLUDED.completed_at
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		run.Symbol, run.StartTimestamp, run.EndTimestamp, run.IntervalMinutes,
		run.SnapshotsCreated, run.EmbeddingsGenerated, run.PointsUploaded,
		run.Status, run.ErrorMessage, run.StartedAt, run.CompletedAt).
		Scan(&run.ID)
	if err != nil {
		return IngestionRun{}, fmt.Errorf("failed to record ingestion run: %w", err)
	}

	return run, nil
}

// ListRecent returns the most recent runs for a symbol, newest first.
func (r *ledgerRepo) ListRecent(ctx context.Context, symbol string, limit int) ([]IngestionRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, symbol, start_timestamp, end_timestamp, interval_minutes,
		       snapshots_created, embeddings_generated, points_uploaded,
		       status, error_message, started_at, completed_at
		FROM ingestion_runs
		WHERE symbol = $1
		ORDER BY started_at DESC
		LIMIT $2`

	var runs []IngestionRun
	if err := r.db.SelectContext(ctx, &runs, query, symbol, limit); err != nil {
		return nil, fmt.Errorf("failed to list ingestion runs: %w", err)
	}
	return runs, nil
}
