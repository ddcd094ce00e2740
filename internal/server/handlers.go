// Package server exposes monitor mode over HTTP: health, Prometheus metrics, the latest
// run summary and recent run history.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"petcontract/internal/cache"
	"petcontract/internal/runlog"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers
type Handler struct {
	cache   cache.Cache
	reader  runlog.Reader
	storage Pinger
}

// NewHandler creates a handler. reader and storage may be nil when history is disabled.
func NewHandler(c cache.Cache, reader runlog.Reader, storage Pinger) *Handler {
	return &Handler{
		cache:   c,
		reader:  reader,
		storage: storage,
	}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	if h.storage != nil {
		if err := h.storage.Ping(c.Request().Context()); err != nil {
			slog.Warn("health check: storage unreachable", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "degraded",
				"storage": err.Error(),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// LatestRun handles GET /runs/latest
func (h *Handler) LatestRun(c echo.Context) error {
	if h.cache == nil {
		return errorJSON(c, http.StatusNotFound, "not_found", "no run recorded yet")
	}
	summary, err := h.cache.Get(c.Request().Context())
	if err != nil {
		slog.Error("failed to read latest run", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "internal_error", "failed to read latest run")
	}
	if summary == nil {
		return errorJSON(c, http.StatusNotFound, "not_found", "no run recorded yet")
	}
	return c.JSON(http.StatusOK, summary)
}

// Records handles GET /runs/records?run_id=&scenario=&outcome=&limit=&offset=
func (h *Handler) Records(c echo.Context) error {
	if h.reader == nil {
		return errorJSON(c, http.StatusNotFound, "not_found", "run history is disabled")
	}

	params := runlog.QueryParams{
		RunID:    c.QueryParam("run_id"),
		Scenario: c.QueryParam("scenario"),
		Outcome:  c.QueryParam("outcome"),
	}
	var err error
	if params.Limit, err = intParam(c, "limit"); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request_error", err.Error())
	}
	if params.Offset, err = intParam(c, "offset"); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request_error", err.Error())
	}

	page, err := h.reader.Records(c.Request().Context(), params)
	if err != nil {
		slog.Error("failed to query run history", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "internal_error", "failed to query run history")
	}
	return c.JSON(http.StatusOK, page)
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %q", name, raw)
	}
	return n, nil
}

func errorJSON(c echo.Context, status int, errType, message string) error {
	return c.JSON(status, map[string]any{
		"error": map[string]any{
			"type":    errType,
			"message": message,
		},
	})
}
