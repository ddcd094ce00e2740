//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"petcontract/config"
	"petcontract/internal/app"
	"petcontract/internal/petstore/petstoretest"
	"petcontract/internal/report"
)

const testAPIKey = "e2e-monitor-key"

// harness bundles a fake pet store and a monitor-mode app pointed at it.
type harness struct {
	petstore *petstoretest.Server
	app      *app.App
	server   *httptest.Server
	cfg      *config.Config
}

// newConfig returns a config targeting baseURL with history in a temporary SQLite file.
func newConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Defaults()
	cfg.BaseURL = baseURL
	cfg.Storage.Enabled = true
	cfg.Storage.SQLite.Path = filepath.Join(dir, "history.db")
	cfg.Storage.FlushInterval = 50 * time.Millisecond
	cfg.Cache.Path = filepath.Join(dir, "latest-run.json")
	cfg.Monitor.APIKey = testAPIKey
	return cfg
}

func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	t.Helper()

	ps := petstoretest.NewServer()
	t.Cleanup(ps.Close)

	cfg := newConfig(t, ps.URL())
	if mutate != nil {
		mutate(cfg)
	}

	a := newApp(t, cfg)
	ts := httptest.NewServer(a.Handler())
	t.Cleanup(ts.Close)

	return &harness{petstore: ps, app: a, server: ts, cfg: cfg}
}

func newApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	reg := prometheus.NewRegistry()
	a, err := app.New(context.Background(), app.Config{
		AppConfig:  cfg,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer: reg,
		Gatherer:   reg,
		Monitor:    true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

// get issues an authenticated GET against the monitor server.
func get(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer closeBody(resp)

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func latest(t *testing.T, baseURL string) (*report.Summary, int) {
	t.Helper()
	resp := get(t, baseURL+"/runs/latest")
	if resp.StatusCode != http.StatusOK {
		closeBody(resp)
		return nil, resp.StatusCode
	}
	s := decodeJSON[report.Summary](t, resp)
	return &s, http.StatusOK
}

// closeBody is a helper to close response body in defer statements.
func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

// findAvailablePort finds an available TCP port on localhost.
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// httptestServer serves the monitor handler of a and returns its base URL.
func httptestServer(t *testing.T, a *app.App) string {
	t.Helper()
	ts := httptest.NewServer(a.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// latestRunID fetches the latest run ID without testing.T, for use inside
// assert.Eventually conditions.
func latestRunID(baseURL string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/runs/latest", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var s report.Summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return "", err
	}
	return s.RunID, nil
}
