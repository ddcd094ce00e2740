package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteReader implements Reader for SQLite databases.
type SQLiteReader struct {
	db *sql.DB
}

// NewSQLiteReader creates a new SQLite history reader.
func NewSQLiteReader(db *sql.DB) (*SQLiteReader, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteReader{db: db}, nil
}

func (r *SQLiteReader) Records(ctx context.Context, params QueryParams) (*RecordPage, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)
	conditions, args := sqlConditions(params, func(int) string { return "?" })
	where := buildWhereClause(conditions)

	page := &RecordPage{Records: make([]Record, 0), Limit: limit, Offset: offset}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM step_runs"+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count run history: %w", err)
	}

	query := `SELECT id, run_id, timestamp, scenario, step, method, path, status, elapsed_ms,
		outcome, error_type, message FROM step_runs` + where +
		` ORDER BY timestamp DESC, id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec Record
		var ts string
		if err := rows.Scan(&rec.ID, &rec.RunID, &ts, &rec.Scenario, &rec.Step, &rec.Method, &rec.Path,
			&rec.Status, &rec.ElapsedMs, &rec.Outcome, &rec.ErrorType, &rec.Message); err != nil {
			return nil, fmt.Errorf("failed to scan run history row: %w", err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("invalid timestamp %q in run history: %w", ts, err)
		}
		page.Records = append(page.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run history rows: %w", err)
	}

	return page, nil
}
