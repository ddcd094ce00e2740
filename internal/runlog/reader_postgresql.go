package runlog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLReader implements Reader for PostgreSQL databases.
type PostgreSQLReader struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLReader creates a new PostgreSQL history reader.
func NewPostgreSQLReader(pool *pgxpool.Pool) (*PostgreSQLReader, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}
	return &PostgreSQLReader{pool: pool}, nil
}

func (r *PostgreSQLReader) Records(ctx context.Context, params QueryParams) (*RecordPage, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)
	conditions, args := sqlConditions(params, func(n int) string { return "$" + strconv.Itoa(n) })
	where := buildWhereClause(conditions)

	page := &RecordPage{Records: make([]Record, 0), Limit: limit, Offset: offset}
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM step_runs"+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count run history: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT id::text, run_id, timestamp, scenario, step, method, path, status,
		elapsed_ms, outcome, error_type, message FROM step_runs%s
		ORDER BY timestamp DESC, id LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Timestamp, &rec.Scenario, &rec.Step, &rec.Method,
			&rec.Path, &rec.Status, &rec.ElapsedMs, &rec.Outcome, &rec.ErrorType, &rec.Message); err != nil {
			return nil, fmt.Errorf("failed to scan run history row: %w", err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		page.Records = append(page.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run history rows: %w", err)
	}

	return page, nil
}
