// Package runlog records the outcome of every executed step so run history survives the
// process. Records are buffered in memory and written in batches to SQLite, PostgreSQL or
// MongoDB.
package runlog

import (
	"context"
	"time"
)

// Store defines the interface for run history backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// WriteBatch writes multiple records to storage.
	// This is called by the Logger when flushing buffered records.
	WriteBatch(ctx context.Context, records []*Record) error

	// Flush forces any pending writes to complete.
	// Called during graceful shutdown.
	Flush(ctx context.Context) error

	// Close releases resources and flushes pending writes.
	Close() error
}

// Record is the stored outcome of one step.
type Record struct {
	// ID is a unique identifier for this record (UUID)
	ID string `json:"id" bson:"_id"`

	// RunID groups the records of one harness run
	RunID string `json:"run_id" bson:"run_id"`

	// Timestamp is when the step finished
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	Scenario string `json:"scenario" bson:"scenario"`
	Step     string `json:"step" bson:"step"`
	Method   string `json:"method" bson:"method"`
	Path     string `json:"path" bson:"path"`

	// Status is 0 when no response was received
	Status    int    `json:"status" bson:"status"`
	ElapsedMs int64  `json:"elapsed_ms" bson:"elapsed_ms"`
	Outcome   string `json:"outcome" bson:"outcome"`

	ErrorType string `json:"error_type,omitempty" bson:"error_type,omitempty"`
	Message   string `json:"message,omitempty" bson:"message,omitempty"`
}

// Config holds run history configuration
type Config struct {
	// Enabled controls whether history is recorded
	Enabled bool

	// BufferSize is the number of records to buffer before dropping
	BufferSize int

	// FlushInterval is how often to flush buffered records
	FlushInterval time.Duration

	// RetentionDays is how long to keep records (0 = forever)
	RetentionDays int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		RetentionDays: 30,
	}
}

// QueryParams filters and pages history queries. Empty filters match everything.
type QueryParams struct {
	RunID    string
	Scenario string
	Outcome  string
	Limit    int
	Offset   int
}

// RecordPage is one page of records, newest first.
type RecordPage struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Reader provides read access to run history for the monitor API.
type Reader interface {
	// Records returns matching records ordered by timestamp descending.
	Records(ctx context.Context, params QueryParams) (*RecordPage, error)
}
