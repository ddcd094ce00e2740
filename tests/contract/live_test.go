//go:build contract

package contract

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petcontract/config"
	"petcontract/internal/app"
)

// TestLive_BuiltInSuites runs every built-in suite against PETSTORE_LIVE_URL.
// Public deployments are shared, so the latency budget is relaxed.
func TestLive_BuiltInSuites(t *testing.T) {
	baseURL := os.Getenv("PETSTORE_LIVE_URL")
	if baseURL == "" {
		t.Skip("PETSTORE_LIVE_URL not set")
	}

	cfg := config.Defaults()
	cfg.BaseURL = baseURL
	cfg.Runner.LatencyBudget = 5 * time.Second
	cfg.HTTP.Timeout = 30 * time.Second
	cfg.Cache.Path = ""
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	reg := prometheus.NewRegistry()
	a, err := app.New(context.Background(), app.Config{
		AppConfig:  cfg,
		Output:     &out,
		Registerer: reg,
		Gatherer:   reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	summary, err := a.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Passed(), out.String())
}
