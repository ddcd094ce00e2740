package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petcontract/internal/cache"
	"petcontract/internal/report"
	"petcontract/internal/runlog"
	"petcontract/internal/storage"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func do(t *testing.T, srv http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	t.Run("ok without storage", func(t *testing.T) {
		rec := do(t, New(nil), "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	})

	t.Run("degraded when storage is down", func(t *testing.T) {
		rec := do(t, New(&Config{Storage: fakePinger{err: errors.New("connection refused")}}), "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body map[string]string
		decode(t, rec, &body)
		assert.Equal(t, "degraded", body["status"])
		assert.Contains(t, body["storage"], "connection refused")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "petcontract_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	tests := []struct {
		name     string
		config   *Config
		path     string
		wantCode int
	}{
		{"disabled", &Config{Gatherer: reg}, "/metrics", http.StatusNotFound},
		{"default path", &Config{MetricsEnabled: true, Gatherer: reg}, "/metrics", http.StatusOK},
		{"custom path", &Config{MetricsEnabled: true, MetricsEndpoint: "/internal/metrics", Gatherer: reg}, "/internal/metrics", http.StatusOK},
		{"public despite api key", &Config{MetricsEnabled: true, Gatherer: reg, APIKey: "secret"}, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, New(tt.config), tt.path)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Contains(t, rec.Body.String(), "petcontract_test_total 1")
			}
		})
	}
}

func TestLatestRun(t *testing.T) {
	ctx := context.Background()
	c := cache.NewLocalCache("")
	srv := New(&Config{Cache: c})

	rec := do(t, srv, "/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, c.Set(ctx, &report.Summary{RunID: "run-7", Scenarios: 3, PassedScenarios: 3}))

	rec = do(t, srv, "/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var got report.Summary
	decode(t, rec, &got)
	assert.Equal(t, "run-7", got.RunID)
	assert.Equal(t, 3, got.PassedScenarios)
}

func TestRecords(t *testing.T) {
	store, err := storage.NewSQLite(storage.SQLiteConfig{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	defer store.Close()

	writer, err := runlog.NewSQLiteStore(store.SQLiteDB(), 0)
	require.NoError(t, err)
	reader, err := runlog.NewSQLiteReader(store.SQLiteDB())
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, writer.WriteBatch(context.Background(), []*runlog.Record{
		{ID: "a", RunID: "run-1", Timestamp: now, Scenario: "pets: lifecycle", Step: "create pet", Outcome: "passed"},
		{ID: "b", RunID: "run-1", Timestamp: now.Add(time.Second), Scenario: "store: inventory", Step: "read inventory", Outcome: "failed"},
	}))

	srv := New(&Config{Reader: reader, Storage: store})

	rec := do(t, srv, "/runs/records?run_id=run-1&outcome=failed")
	require.Equal(t, http.StatusOK, rec.Code)
	var page runlog.RecordPage
	decode(t, rec, &page)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "read inventory", page.Records[0].Step)

	rec = do(t, srv, "/runs/records?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, New(nil), "/runs/records")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	srv := New(&Config{APIKey: "secret", Cache: cache.NewLocalCache("")})

	tests := []struct {
		name     string
		path     string
		headers  []string
		wantCode int
	}{
		{"health is public", "/health", nil, http.StatusOK},
		{"missing header", "/runs/latest", nil, http.StatusUnauthorized},
		{"wrong scheme", "/runs/latest", []string{"Authorization", "Basic secret"}, http.StatusUnauthorized},
		{"wrong key", "/runs/latest", []string{"Authorization", "Bearer nope"}, http.StatusUnauthorized},
		{"valid key", "/runs/latest", []string{"Authorization", "Bearer secret"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.path, tt.headers...)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
