package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"petcontract/internal/report"
)

// LocalCache implements Cache in memory, mirrored to a file when filePath is set so the
// last result survives a restart.
type LocalCache struct {
	mu       sync.RWMutex
	filePath string
	latest   *report.Summary
	loaded   bool
}

// NewLocalCache creates a new local cache. An empty filePath keeps data in memory only.
func NewLocalCache(filePath string) *LocalCache {
	return &LocalCache{
		filePath: filePath,
	}
}

// Get returns the latest summary, reading the cache file on first use.
func (c *LocalCache) Get(_ context.Context) (*report.Summary, error) {
	c.mu.RLock()
	if c.loaded || c.filePath == "" {
		defer c.mu.RUnlock()
		return c.latest, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.latest, nil
	}

	data, err := os.ReadFile(c.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			c.loaded = true
			return nil, nil // No cache file yet, not an error
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var summary report.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	c.latest = &summary
	c.loaded = true
	return c.latest, nil
}

// Set stores the summary in memory and, when configured, in the cache file.
func (c *LocalCache) Set(_ context.Context, summary *report.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest = summary
	c.loaded = true

	if c.filePath == "" {
		return nil
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	// Write atomically using temp file + rename
	tmpFile := c.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpFile, c.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return nil
}

// Close is a no-op for local cache.
func (c *LocalCache) Close() error {
	return nil
}
