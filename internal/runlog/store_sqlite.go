package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SQLite has a default limit of 999 bindable parameters per query (SQLITE_MAX_VARIABLE_NUMBER).
const (
	maxSQLiteParams   = 999
	columnsPerRecord  = 12
	maxRecordsPerStmt = maxSQLiteParams / columnsPerRecord // 83 records
)

// sqliteTimeLayout is fixed width so text comparison orders timestamps correctly.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	db            *sql.DB
	sweeper *sweeper
}

// NewSQLiteStore creates a new SQLite history store.
// It creates the step_runs table if it doesn't exist and starts
// a background cleanup goroutine if retention is configured.
func NewSQLiteStore(db *sql.DB, retentionDays int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS step_runs (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			scenario TEXT NOT NULL,
			step TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			status INTEGER NOT NULL DEFAULT 0,
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
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
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &SQLiteStore{
		db: db,
	}
	store.sweeper = startSweeper(retentionDays, CleanupInterval, store.prune)

	return store, nil
}

// WriteBatch writes records using multi-row inserts, chunked to stay within
// SQLite's parameter limit. Records already stored are ignored.
func (s *SQLiteStore) WriteBatch(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	for i := 0; i < len(records); i += maxRecordsPerStmt {
		end := min(i+maxRecordsPerStmt, len(records))
		chunk := records[i:end]

		placeholders := make([]string, len(chunk))
		values := make([]any, 0, len(chunk)*columnsPerRecord)

		for j, r := range chunk {
			placeholders[j] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
			values = append(values,
				r.ID,
				r.RunID,
				r.Timestamp.UTC().Format(sqliteTimeLayout),
				r.Scenario,
				r.Step,
				r.Method,
				r.Path,
				r.Status,
				r.ElapsedMs,
				r.Outcome,
				r.ErrorType,
				r.Message,
			)
		}

		query := `INSERT OR IGNORE INTO step_runs (id, run_id, timestamp, scenario, step, method,
			path, status, elapsed_ms, outcome, error_type, message) VALUES ` +
			strings.Join(placeholders, ",")

		if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
			return fmt.Errorf("failed to insert step_runs batch %d: %w", i/maxRecordsPerStmt, err)
		}
	}

	return nil
}

// Flush is a no-op for SQLite as writes are synchronous.
func (s *SQLiteStore) Flush(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine. The database is owned by the storage layer.
func (s *SQLiteStore) Close() error {
	s.sweeper.stop()
	return nil
}

// prune deletes records older than cutoff.
func (s *SQLiteStore) prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM step_runs WHERE timestamp < ?", cutoff.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
