// Package cache keeps the summary of the most recent run so monitor mode can serve it.
// Supports a local (in-memory/file) backend and Redis for several monitors sharing one view.
package cache

import (
	"context"
	"fmt"

	"petcontract/config"
	"petcontract/internal/report"
)

// Cache stores the latest run summary.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the latest summary.
	// Returns nil, nil if no run has been stored yet.
	Get(ctx context.Context) (*report.Summary, error)

	// Set replaces the latest summary.
	Set(ctx context.Context, summary *report.Summary) error

	// Close releases any resources held by the cache.
	Close() error
}

// New creates the cache selected by cfg.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalCache(cfg.Path), nil
	case "redis":
		return NewRedisCache(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache type: %s (valid: local, redis)", cfg.Type)
	}
}
