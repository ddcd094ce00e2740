// Package main is the entry point for the pet store contract-test harness.
//
// By default it runs the selected suites once and exits 0 when every scenario passed,
// 1 otherwise. With a monitor interval it keeps rerunning them and serves health,
// metrics and run history over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"petcontract/config"
	"petcontract/internal/app"
	"petcontract/internal/logging"
	"petcontract/internal/petstore"
	"petcontract/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file (default: config.yaml when present)")
	baseURL := flag.String("base-url", "", "Pet store base URL, overrides config")
	suites := flag.String("suite", "", "Comma-separated built-in suites to run ("+strings.Join(petstore.SuiteNames(), ", ")+")")
	interval := flag.Duration("interval", 0, "Rerun the suites at this interval and serve the monitor endpoints")
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *suites != "" {
		cfg.Runner.Suites = strings.Split(*suites, ",")
	}
	if *interval > 0 {
		cfg.Monitor.Interval = *interval
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 2
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		return 2
	}
	slog.SetDefault(logger)
	slog.Info("starting petcontract", "version", version.Version, "commit", version.Commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor := cfg.Monitor.Interval > 0
	application, err := app.New(ctx, app.Config{
		AppConfig: cfg,
		Logger:    logger,
		Output:    os.Stdout,
		Colorize:  logging.IsTerminal(os.Stdout),
		Monitor:   monitor,
	})
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		return 2
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if monitor {
		if err := application.Monitor(ctx); err != nil {
			slog.Error("monitor stopped", "error", err)
			return 1
		}
		return 0
	}

	summary, err := application.RunOnce(ctx)
	if err != nil {
		slog.Error("run failed", "error", err)
		return 2
	}
	return summary.ExitCode()
}
