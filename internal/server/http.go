package server

import (
	"context"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"petcontract/internal/cache"
	"petcontract/internal/runlog"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	APIKey          string // Optional: bearer key required on /runs endpoints
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	// Gatherer serves metrics; nil means the default Prometheus registry.
	Gatherer prometheus.Gatherer

	Cache   cache.Cache
	Reader  runlog.Reader
	Storage Pinger
}

// New creates a new HTTP server
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := NewHandler(cfg.Cache, cfg.Reader, cfg.Storage)

	publicPaths := []string{"/health"}

	metricsPath := "/metrics"
	if cfg.MetricsEnabled {
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean("/" + cfg.MetricsEndpoint)
		}
		publicPaths = append(publicPaths, metricsPath)
	}

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(AuthMiddleware(cfg.APIKey, publicPaths))

	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		metrics := promhttp.Handler()
		if cfg.Gatherer != nil {
			metrics = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
		}
		e.GET(metricsPath, echo.WrapHandler(metrics))
	}

	runs := e.Group("/runs")
	runs.GET("/latest", handler.LatestRun)
	runs.GET("/records", handler.Records)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
