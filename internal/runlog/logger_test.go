package runlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petcontract/internal/core"
	"petcontract/internal/scenario"
)

// mockStore implements Store for testing
type mockStore struct {
	mu      sync.Mutex
	records []*Record
	batches int
	closed  bool
}

func (m *mockStore) WriteBatch(_ context.Context, records []*Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	m.batches++
	return nil
}

func (m *mockStore) Flush(context.Context) error { return nil }

func (m *mockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockStore) snapshot() ([]*Record, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, len(m.records))
	copy(out, m.records)
	return out, m.batches, m.closed
}

func TestLogger_FlushesOnInterval(t *testing.T) {
	store := &mockStore{}
	logger := NewLogger(store, Config{Enabled: true, BufferSize: 100, FlushInterval: 20 * time.Millisecond})
	defer logger.Close()

	for i := 0; i < 5; i++ {
		logger.Write(&Record{ID: fmt.Sprintf("rec-%d", i), RunID: "run-1"})
	}

	require.Eventually(t, func() bool {
		records, _, _ := store.snapshot()
		return len(records) == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLogger_FlushesAtBatchThreshold(t *testing.T) {
	store := &mockStore{}
	logger := NewLogger(store, Config{Enabled: true, BufferSize: 500, FlushInterval: time.Hour})
	defer logger.Close()

	for i := 0; i < BatchFlushThreshold; i++ {
		logger.Write(&Record{ID: fmt.Sprintf("rec-%d", i)})
	}

	require.Eventually(t, func() bool {
		records, batches, _ := store.snapshot()
		return len(records) == BatchFlushThreshold && batches == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLogger_CloseDrainsBuffer(t *testing.T) {
	store := &mockStore{}
	logger := NewLogger(store, Config{Enabled: true, BufferSize: 100, FlushInterval: time.Hour})

	for i := 0; i < 7; i++ {
		logger.Write(&Record{ID: fmt.Sprintf("rec-%d", i)})
	}
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close(), "close is idempotent")

	records, _, closed := store.snapshot()
	assert.Len(t, records, 7)
	assert.True(t, closed)

	logger.Write(&Record{ID: "late"})
	records, _, _ = store.snapshot()
	assert.Len(t, records, 7, "writes after close are ignored")
}

func TestLogger_DropsWhenBufferFull(t *testing.T) {
	block := make(chan struct{})
	store := &blockingStore{mockStore: &mockStore{}, release: block}
	logger := NewLogger(store, Config{Enabled: true, BufferSize: 2, FlushInterval: time.Hour})

	for i := 0; i < BatchFlushThreshold+10; i++ {
		logger.Write(&Record{ID: fmt.Sprintf("rec-%d", i)})
	}

	assert.Positive(t, logger.Dropped())
	close(block)
	require.NoError(t, logger.Close())
}

// blockingStore holds every WriteBatch until release is closed.
type blockingStore struct {
	*mockStore
	release chan struct{}
}

func (b *blockingStore) WriteBatch(ctx context.Context, records []*Record) error {
	<-b.release
	return b.mockStore.WriteBatch(ctx, records)
}

func TestLogger_Defaults(t *testing.T) {
	logger := NewLogger(&mockStore{}, Config{Enabled: true})
	defer logger.Close()

	assert.Equal(t, 1000, logger.Config().BufferSize)
	assert.Equal(t, 5*time.Second, logger.Config().FlushInterval)
}

func TestLogger_Observer(t *testing.T) {
	store := &mockStore{}
	logger := NewLogger(store, Config{Enabled: true, FlushInterval: time.Hour})

	obs := logger.Observer("run-42")
	obs.StepFinished("pets: lifecycle", scenario.StepResult{
		Name:    "create pet",
		Method:  "POST",
		Path:    "/pet",
		Status:  200,
		Elapsed: 120 * time.Millisecond,
		Outcome: scenario.OutcomePassed,
	})
	obs.StepFinished("pets: lifecycle", scenario.StepResult{
		Name:    "read pet",
		Method:  "GET",
		Path:    "/pet/1001",
		Status:  404,
		Outcome: scenario.OutcomeFailed,
		Err:     core.NewAssertionError("unexpected status", "200", "404"),
	})
	obs.ScenarioFinished(&scenario.Result{Scenario: "pets: lifecycle"})
	require.NoError(t, logger.Close())

	records, _, _ := store.snapshot()
	require.Len(t, records, 2)

	assert.Equal(t, "run-42", records[0].RunID)
	assert.Equal(t, "create pet", records[0].Step)
	assert.Equal(t, int64(120), records[0].ElapsedMs)
	assert.Equal(t, "passed", records[0].Outcome)
	assert.Empty(t, records[0].ErrorType)
	assert.NotEmpty(t, records[0].ID)

	assert.Equal(t, "failed", records[1].Outcome)
	assert.Equal(t, string(core.ErrorTypeAssertion), records[1].ErrorType)
	assert.Equal(t, "unexpected status", records[1].Message)
	assert.NotEqual(t, records[0].ID, records[1].ID)
}

func TestNewRecord_PlainError(t *testing.T) {
	rec := NewRecord("run", "sc", scenario.StepResult{Name: "s", Outcome: scenario.OutcomeFailed, Err: errors.New("boom")})

	assert.Empty(t, rec.ErrorType)
	assert.Equal(t, "boom", rec.Message)
}

func TestNoopLogger(t *testing.T) {
	var logger LoggerInterface = &NoopLogger{}

	logger.Write(&Record{ID: "ignored"})
	logger.Observer("run").StepFinished("sc", scenario.StepResult{Name: "s"})

	assert.False(t, logger.Config().Enabled)
	assert.NoError(t, logger.Close())
}

func TestClampLimitOffset(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, 50, 0},
		{-1, -5, 50, 0},
		{10, 20, 10, 20},
		{500, 0, 200, 0},
	}
	for _, tt := range tests {
		limit, offset := clampLimitOffset(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, limit)
		assert.Equal(t, tt.wantOffset, offset)
	}
}

func TestSweeper(t *testing.T) {
	cutoffs := make(chan time.Time, 10)
	s := startSweeper(30, 10*time.Millisecond, func(_ context.Context, cutoff time.Time) (int64, error) {
		cutoffs <- cutoff
		return 0, nil
	})
	require.NotNil(t, s)

	first := <-cutoffs // immediate run
	<-cutoffs          // ticker run
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), first, time.Minute)

	stopped := make(chan struct{})
	go func() {
		s.stop()
		s.stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_DisabledWithoutRetention(t *testing.T) {
	s := startSweeper(0, time.Millisecond, func(context.Context, time.Time) (int64, error) {
		t.Fatal("prune must not run without retention")
		return 0, nil
	})

	assert.Nil(t, s)
	s.stop()
}
