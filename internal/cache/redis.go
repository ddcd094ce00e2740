package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"petcontract/config"
	"petcontract/internal/report"
)

const (
	defaultRedisKey = "petcontract:runs:latest"
	defaultRedisTTL = 24 * time.Hour
	redisDialBudget = 5 * time.Second
)

// RedisCache shares the latest summary between monitors through one Redis key. The key
// expires after ttl, so a monitor that stops reporting eventually reads as "no run yet".
type RedisCache struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisCache dials the server named by cfg.URL and pings it once.
func NewRedisCache(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = "petcontract"
	}

	c := &RedisCache{rdb: redis.NewClient(opts), key: cfg.Key, ttl: cfg.TTL}
	if c.key == "" {
		c.key = defaultRedisKey
	}
	if c.ttl <= 0 {
		c.ttl = defaultRedisTTL
	}

	dialCtx, cancel := context.WithTimeout(ctx, redisDialBudget)
	defer cancel()
	if err := c.rdb.Ping(dialCtx).Err(); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("redis at %s unreachable: %w", opts.Addr, err)
	}

	slog.Info("latest-run cache on redis", "addr", opts.Addr, "key", c.key, "ttl", c.ttl)
	return c, nil
}

// Get returns nil, nil while the key is absent or expired.
func (c *RedisCache) Get(ctx context.Context) (*report.Summary, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis GET %s: %w", c.key, err)
	}

	summary := new(report.Summary)
	if err := json.Unmarshal(raw, summary); err != nil {
		return nil, fmt.Errorf("decode summary at %s: %w", c.key, err)
	}
	return summary, nil
}

// Set overwrites the key and restarts its expiry.
func (c *RedisCache) Set(ctx context.Context, summary *report.Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", c.key, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
