// Package app wires the harness together: API client, scenarios, observers, run history,
// latest-run cache and the monitor HTTP server, with centralized lifecycle control.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"petcontract/config"
	"petcontract/internal/apiclient"
	"petcontract/internal/cache"
	"petcontract/internal/httpclient"
	"petcontract/internal/metrics"
	"petcontract/internal/petstore"
	"petcontract/internal/report"
	"petcontract/internal/runlog"
	"petcontract/internal/scenario"
	"petcontract/internal/server"
)

// App represents the harness with all its dependencies.
type App struct {
	config   *config.Config
	logger   *slog.Logger
	client   *apiclient.Client
	metrics  *metrics.Collector
	history  *runlog.Result
	cache    cache.Cache
	server   *server.Server
	printer  *report.Printer
	suiteOpt petstore.Options
	files    []*scenario.Scenario

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the options for creating an App.
type Config struct {
	// AppConfig is the loaded configuration. Required.
	AppConfig *config.Config
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Output receives the console report; nil disables it.
	Output   io.Writer
	Colorize bool
	// Registerer and Gatherer back the metrics; nil means the default Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// Monitor enables the latest-run cache and the HTTP server.
	Monitor bool
	// Fixtures overrides fixture generation for built-in suites.
	Fixtures func() petstore.Fixtures
}

// New creates an App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	a := &App{
		config:  appCfg,
		logger:  logger,
		metrics: metrics.New(reg),
	}

	httpCfg := httpclient.FromConfig(appCfg.HTTP, appCfg.Runner.Parallelism)
	a.client = apiclient.New(appCfg.BaseURL,
		apiclient.WithHTTPClient(httpclient.NewHTTPClient(&httpCfg)),
		apiclient.WithLogger(logger),
	)

	if cfg.Output != nil {
		a.printer = report.NewPrinter(cfg.Output, cfg.Colorize)
	}

	opts, err := suiteOptions(appCfg.Runner, cfg.Fixtures)
	if err != nil {
		return nil, err
	}
	a.suiteOpt = opts

	// Built-in suites are rebuilt per run for fresh fixtures; this validates the selection.
	if !appCfg.Runner.SkipBuiltin {
		if _, err := petstore.Build(appCfg.Runner.Suites, opts); err != nil {
			return nil, err
		}
	}
	if a.files, err = loadSuiteFiles(appCfg.Runner); err != nil {
		return nil, err
	}

	history, err := runlog.New(ctx, appCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run history: %w", err)
	}
	a.history = history

	if cfg.Monitor {
		c, err := cache.New(ctx, appCfg.Cache)
		if err != nil {
			closeErr := a.history.Close()
			if closeErr != nil {
				return nil, fmt.Errorf("failed to initialize cache: %w (also: history close error: %v)", err, closeErr)
			}
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		a.cache = c

		serverCfg := &server.Config{
			APIKey:          appCfg.Monitor.APIKey,
			MetricsEnabled:  true,
			MetricsEndpoint: appCfg.Monitor.MetricsEndpoint,
			Gatherer:        cfg.Gatherer,
			Cache:           c,
			Reader:          history.Reader,
		}
		if history.Storage != nil {
			serverCfg.Storage = history.Storage
		}
		a.server = server.New(serverCfg)
	}

	a.logStartupInfo()
	return a, nil
}

func suiteOptions(cfg config.RunnerConfig, fixtures func() petstore.Fixtures) (petstore.Options, error) {
	opts := petstore.Options{
		LatencyBudget: cfg.LatencyBudget,
		NewFixtures:   fixtures,
	}
	if cfg.UploadFile != "" {
		content, err := os.ReadFile(cfg.UploadFile)
		if err != nil {
			return opts, fmt.Errorf("failed to read upload file: %w", err)
		}
		opts.UploadName = filepath.Base(cfg.UploadFile)
		opts.UploadContent = content
	}
	return opts, nil
}

func loadSuiteFiles(cfg config.RunnerConfig) ([]*scenario.Scenario, error) {
	if len(cfg.SuiteFiles) == 0 {
		return nil, nil
	}
	registry := petstore.Schemas()
	if cfg.SchemaDir != "" {
		if err := registry.LoadDir(cfg.SchemaDir); err != nil {
			return nil, err
		}
	}
	loader := &scenario.Loader{Schemas: registry}

	var out []*scenario.Scenario
	for _, path := range cfg.SuiteFiles {
		scenarios, err := loader.LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, scenarios...)
	}
	return out, nil
}

// Scenarios returns the scenarios of the next run. Built-in suites get fresh fixtures on
// every call.
func (a *App) Scenarios() ([]*scenario.Scenario, error) {
	var out []*scenario.Scenario
	if !a.config.Runner.SkipBuiltin {
		builtin, err := petstore.Build(a.config.Runner.Suites, a.suiteOpt)
		if err != nil {
			return nil, err
		}
		out = append(out, builtin...)
	}
	return append(out, a.files...), nil
}

// RunOnce executes every selected scenario, records the outcome and prints the report.
func (a *App) RunOnce(ctx context.Context) (*report.Summary, error) {
	scenarios, err := a.Scenarios()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	runner := scenario.NewRunner(a.client,
		scenario.WithLogger(a.logger.With("run_id", runID)),
		scenario.WithParallelism(a.config.Runner.Parallelism),
		scenario.WithObserver(a.metrics, a.history.Logger.Observer(runID)),
	)

	started := time.Now()
	a.logger.Info("run started", "run_id", runID, "scenarios", len(scenarios), "base_url", a.client.BaseURL())
	results := runner.RunAll(ctx, scenarios)
	summary := report.Summarize(runID, a.client.BaseURL(), started, results)

	a.logger.Info("run finished",
		"run_id", runID,
		"passed", summary.PassedScenarios,
		"failed", summary.FailedScenarios,
		"duration_ms", summary.DurationMs,
	)

	if a.cache != nil {
		if err := a.cache.Set(ctx, summary); err != nil {
			a.logger.Warn("failed to cache run summary", "error", err)
		}
	}
	if a.printer != nil {
		a.printer.Print(summary)
	}
	return summary, nil
}

// Monitor serves the HTTP endpoints and reruns the suites every monitor.interval until ctx
// is canceled. It returns nil on cancellation.
func (a *App) Monitor(ctx context.Context) error {
	if a.server == nil {
		return fmt.Errorf("monitor mode is not enabled")
	}
	interval := a.config.Monitor.Interval
	if interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Start(a.config.Monitor.Listen)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.RunOnce(ctx); err != nil {
			a.logger.Error("run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-serverErr:
			return err
		case <-ticker.C:
		}
	}
}

// Handler returns the monitor HTTP handler, or nil when monitor mode is off.
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return nil
	}
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	a.logger.Info("starting monitor server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			a.logger.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown tears down components in dependency order: HTTP server, cache, then run
// history (which flushes pending records). It is idempotent and joins every failure.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("history close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

func (a *App) logStartupInfo() {
	cfg := a.config

	a.logger.Info("target configured", "base_url", cfg.BaseURL, "timeout", cfg.HTTP.Timeout)

	suites := cfg.Runner.Suites
	if len(suites) == 0 && !cfg.Runner.SkipBuiltin {
		suites = petstore.SuiteNames()
	}
	a.logger.Info("suites selected",
		"builtin", suites,
		"files", cfg.Runner.SuiteFiles,
		"parallelism", cfg.Runner.Parallelism,
		"latency_budget", cfg.Runner.LatencyBudget,
	)

	if cfg.Storage.Enabled {
		a.logger.Info("run history enabled",
			"storage_type", cfg.Storage.Type,
			"retention_days", cfg.Storage.RetentionDays,
		)
	} else {
		a.logger.Info("run history disabled")
	}

	if a.server != nil && cfg.Monitor.APIKey == "" {
		a.logger.Warn("MONITOR_API_KEY not set - /runs endpoints are unauthenticated")
	}
}
