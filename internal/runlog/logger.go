package runlog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"petcontract/internal/core"
	"petcontract/internal/scenario"
)

// Logger provides async buffered history writes.
// Records are collected in a channel and flushed to the store either when a batch
// fills up or at regular intervals.
type Logger struct {
	store         Store
	config        Config
	buffer        chan *Record
	done          chan struct{}
	wg            sync.WaitGroup
	writes        sync.WaitGroup // tracks in-flight Write calls
	flushInterval time.Duration
	closed        atomic.Bool
	dropped       atomic.Int64
}

// NewLogger creates a new async buffered Logger and starts its flush goroutine.
func NewLogger(store Store, cfg Config) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	l := &Logger{
		store:         store,
		config:        cfg,
		buffer:        make(chan *Record, cfg.BufferSize),
		done:          make(chan struct{}),
		flushInterval: cfg.FlushInterval,
	}

	l.wg.Add(1)
	go l.flushLoop()

	return l
}

// Write queues a record for async writing.
// This method is non-blocking. If the buffer is full or the logger is closed,
// the record is dropped.
func (l *Logger) Write(rec *Record) {
	if rec == nil {
		return
	}
	if l.closed.Load() {
		return
	}

	l.writes.Add(1)
	defer l.writes.Done()

	// Close may have run between the first check and Add(1)
	if l.closed.Load() {
		return
	}

	select {
	case l.buffer <- rec:
	default:
		l.dropped.Add(1)
		slog.Warn("run history buffer full, dropping record",
			"run_id", rec.RunID,
			"scenario", rec.Scenario,
			"step", rec.Step,
		)
	}
}

// Dropped returns the number of records discarded because the buffer was full.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Config returns the logger configuration
func (l *Logger) Config() Config {
	return l.config
}

// Observer returns a scenario observer that records every finished step under runID.
func (l *Logger) Observer(runID string) scenario.Observer {
	return &observer{write: l.Write, runID: runID}
}

// Close stops the logger and flushes remaining records.
// Close is idempotent.
func (l *Logger) Close() error {
	if l.closed.Swap(true) {
		return nil
	}

	l.writes.Wait()
	close(l.done)
	l.wg.Wait()

	return l.store.Close()
}

func (l *Logger) flushLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	batch := make([]*Record, 0, BatchFlushThreshold)

	for {
		select {
		case rec := <-l.buffer:
			batch = append(batch, rec)
			if len(batch) >= BatchFlushThreshold {
				l.flushBatch(batch)
				batch = make([]*Record, 0, BatchFlushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				l.flushBatch(batch)
				batch = make([]*Record, 0, BatchFlushThreshold)
			}

		case <-l.done:
			close(l.buffer)
			for rec := range l.buffer {
				batch = append(batch, rec)
			}
			if len(batch) > 0 {
				l.flushBatch(batch)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := l.store.Flush(ctx); err != nil {
				slog.Error("failed to flush run history store", "error", err)
			}
			cancel()
			return
		}
	}
}

func (l *Logger) flushBatch(batch []*Record) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := l.store.WriteBatch(ctx, batch); err != nil {
		slog.Error("failed to write run history batch",
			"error", err,
			"count", len(batch),
		)
	}
}

// observer adapts scenario step notifications into records.
type observer struct {
	write func(*Record)
	runID string
}

func (o *observer) StepFinished(scenarioName string, step scenario.StepResult) {
	o.write(NewRecord(o.runID, scenarioName, step))
}

func (o *observer) ScenarioFinished(*scenario.Result) {}

// NewRecord converts a step outcome into a record stamped with the current time.
func NewRecord(runID, scenarioName string, step scenario.StepResult) *Record {
	rec := &Record{
		ID:        uuid.NewString(),
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Scenario:  scenarioName,
		Step:      step.Name,
		Method:    step.Method,
		Path:      step.Path,
		Status:    step.Status,
		ElapsedMs: step.Elapsed.Milliseconds(),
		Outcome:   string(step.Outcome),
	}
	if step.Err != nil {
		rec.Message = step.Err.Error()
		var he *core.HarnessError
		if errors.As(step.Err, &he) {
			rec.ErrorType = string(he.Type)
			rec.Message = he.Message
		}
	}
	return rec
}

// NoopLogger is a logger that does nothing (used when history is disabled)
type NoopLogger struct{}

// Write does nothing
func (l *NoopLogger) Write(_ *Record) {}

// Config returns an empty config
func (l *NoopLogger) Config() Config {
	return Config{Enabled: false}
}

// Observer returns an observer that records nothing
func (l *NoopLogger) Observer(_ string) scenario.Observer {
	return &observer{write: func(*Record) {}}
}

// Close does nothing
func (l *NoopLogger) Close() error {
	return nil
}

// LoggerInterface defines the interface for loggers (both real and noop)
type LoggerInterface interface {
	Write(rec *Record)
	Config() Config
	Observer(runID string) scenario.Observer
	Close() error
}
