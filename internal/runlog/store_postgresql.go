package runlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const insertStepRunSQL = `
	INSERT INTO step_runs (id, run_id, timestamp, scenario, step, method, path,
		status, elapsed_ms, outcome, error_type, message)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO NOTHING
`

// PostgreSQLStore implements Store for PostgreSQL databases.
type PostgreSQLStore struct {
	pool          *pgxpool.Pool
	sweeper *sweeper
}

// NewPostgreSQLStore creates a new PostgreSQL history store.
// It creates the step_runs table if it doesn't exist and starts
// a background cleanup goroutine if retention is configured.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS step_runs (
			id UUID PRIMARY KEY,
			run_id TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			scenario TEXT NOT NULL,
			step TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			status INTEGER NOT NULL DEFAULT 0,
			elapsed_ms BIGINT NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL,
			error_type TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create step_runs table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_step_runs_timestamp ON step_runs(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_step_runs_run_id ON step_runs(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_step_runs_scenario ON step_runs(scenario)",
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &PostgreSQLStore{
		pool: pool,
	}
	store.sweeper = startSweeper(retentionDays, CleanupInterval, store.prune)

	return store, nil
}

// WriteBatch writes records to PostgreSQL. Small batches skip the transaction.
func (s *PostgreSQLStore) WriteBatch(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	if len(records) < 10 {
		return s.writeBatchSmall(ctx, records)
	}
	return s.writeBatchLarge(ctx, records)
}

func (s *PostgreSQLStore) writeBatchSmall(ctx context.Context, records []*Record) error {
	var errs []error

	for _, r := range records {
		if _, err := s.pool.Exec(ctx, insertStepRunSQL, recordArgs(r)...); err != nil {
			slog.Warn("failed to insert run history record", "error", err, "id", r.ID)
			errs = append(errs, fmt.Errorf("insert %s: %w", r.ID, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to insert %d of %d records: %w", len(errs), len(records), errors.Join(errs...))
	}
	return nil
}

func (s *PostgreSQLStore) writeBatchLarge(ctx context.Context, records []*Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range records {
		if _, err := tx.Exec(ctx, insertStepRunSQL, recordArgs(r)...); err != nil {
			// the transaction is aborted after the first error
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func recordArgs(r *Record) []any {
	return []any{r.ID, r.RunID, r.Timestamp, r.Scenario, r.Step, r.Method, r.Path,
		r.Status, r.ElapsedMs, r.Outcome, r.ErrorType, r.Message}
}

// Flush is a no-op for PostgreSQL as writes are synchronous.
func (s *PostgreSQLStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. The pool is owned by the storage layer.
func (s *PostgreSQLStore) Close() error {
	s.sweeper.stop()
	return nil
}

// prune deletes records older than cutoff.
func (s *PostgreSQLStore) prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM step_runs WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
