//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petcontract/internal/runlog"
)

type historyBackend struct {
	name  string
	open  func(t *testing.T) (runlog.Store, runlog.Reader)
	dupes bool
}

func historyBackends() []historyBackend {
	return []historyBackend{
		{
			name: "postgresql",
			open: func(t *testing.T) (runlog.Store, runlog.Reader) {
				t.Helper()
				store, err := runlog.NewPostgreSQLStore(testCtx, pgPool, 0)
				require.NoError(t, err)
				t.Cleanup(func() { _ = store.Close() })
				reader, err := runlog.NewPostgreSQLReader(pgPool)
				require.NoError(t, err)
				return store, reader
			},
			dupes: true,
		},
		{
			name: "mongodb",
			open: func(t *testing.T) (runlog.Store, runlog.Reader) {
				t.Helper()
				db := mongoDatabase(t)
				store, err := runlog.NewMongoDBStore(testCtx, db, 30)
				require.NoError(t, err)
				t.Cleanup(func() { _ = store.Close() })
				reader, err := runlog.NewMongoDBReader(db)
				require.NoError(t, err)
				return store, reader
			},
		},
	}
}

func makeRecords(runID string, n int) []*runlog.Record {
	base := time.Now().UTC().Truncate(time.Millisecond)
	records := make([]*runlog.Record, n)
	for i := range records {
		outcome := "passed"
		if i%3 == 0 {
			outcome = "failed"
		}
		records[i] = &runlog.Record{
			ID:        uuid.NewString(),
			RunID:     runID,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Scenario:  fmt.Sprintf("scenario-%d", i%4),
			Step:      fmt.Sprintf("step-%d", i),
			Method:    "GET",
			Path:      fmt.Sprintf("/pet/%d", i),
			Status:    200,
			ElapsedMs: int64(i),
			Outcome:   outcome,
		}
	}
	return records
}

func TestHistory_WriteAndQuery(t *testing.T) {
	for _, backend := range historyBackends() {
		t.Run(backend.name, func(t *testing.T) {
			store, reader := backend.open(t)
			runID := uuid.NewString()
			records := makeRecords(runID, 30)

			require.NoError(t, store.WriteBatch(testCtx, records))

			page, err := reader.Records(testCtx, runlog.QueryParams{RunID: runID, Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, 30, page.Total)
			require.Len(t, page.Records, 10)
			assert.Equal(t, "step-29", page.Records[0].Step, "newest first")
			assert.Equal(t, runID, page.Records[0].RunID)
			assert.Equal(t, "/pet/29", page.Records[0].Path)

			page, err = reader.Records(testCtx, runlog.QueryParams{RunID: runID, Limit: 10, Offset: 25})
			require.NoError(t, err)
			assert.Len(t, page.Records, 5)
			assert.Equal(t, 25, page.Offset)

			page, err = reader.Records(testCtx, runlog.QueryParams{RunID: runID, Outcome: "failed", Limit: 200})
			require.NoError(t, err)
			assert.Equal(t, 10, page.Total)
			for _, rec := range page.Records {
				assert.Equal(t, "failed", rec.Outcome)
			}

			page, err = reader.Records(testCtx, runlog.QueryParams{RunID: runID, Scenario: "scenario-1"})
			require.NoError(t, err)
			assert.Equal(t, 8, page.Total)
			assert.Equal(t, 50, page.Limit, "default page size")
		})
	}
}

func TestHistory_UnknownRunIsEmpty(t *testing.T) {
	for _, backend := range historyBackends() {
		t.Run(backend.name, func(t *testing.T) {
			_, reader := backend.open(t)

			page, err := reader.Records(testCtx, runlog.QueryParams{RunID: uuid.NewString()})
			require.NoError(t, err)
			assert.Zero(t, page.Total)
			assert.Empty(t, page.Records)
		})
	}
}

func TestHistory_DuplicateRecords(t *testing.T) {
	for _, backend := range historyBackends() {
		t.Run(backend.name, func(t *testing.T) {
			store, reader := backend.open(t)
			runID := uuid.NewString()
			records := makeRecords(runID, 5)
			require.NoError(t, store.WriteBatch(testCtx, records))

			err := store.WriteBatch(testCtx, records)
			if backend.dupes {
				require.NoError(t, err)
			} else {
				var partial *runlog.PartialWriteError
				require.True(t, errors.As(err, &partial), "got %v", err)
				assert.Equal(t, 5, partial.FailedCount)
				assert.ErrorIs(t, err, runlog.ErrPartialWrite)
			}

			page, err := reader.Records(testCtx, runlog.QueryParams{RunID: runID})
			require.NoError(t, err)
			assert.Equal(t, 5, page.Total)
		})
	}
}

func TestHistory_LargeBatch(t *testing.T) {
	for _, backend := range historyBackends() {
		t.Run(backend.name, func(t *testing.T) {
			store, reader := backend.open(t)
			runID := uuid.NewString()

			require.NoError(t, store.WriteBatch(testCtx, makeRecords(runID, 250)))

			ctx, cancel := context.WithTimeout(testCtx, 10*time.Second)
			defer cancel()
			page, err := reader.Records(ctx, runlog.QueryParams{RunID: runID, Limit: 1000})
			require.NoError(t, err)
			assert.Equal(t, 250, page.Total)
			assert.Len(t, page.Records, 200, "limit is capped")
		})
	}
}
