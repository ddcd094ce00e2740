// Package config provides configuration management for the harness.
//
// Values are resolved in this order: built-in defaults, then config.yaml (with ${VAR} and
// ${VAR:-default} expansion), then environment variables. A .env file in the working
// directory is loaded first and never overrides variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds the harness configuration
type Config struct {
	BaseURL string        `yaml:"base_url"`
	HTTP    HTTPConfig    `yaml:"http"`
	Runner  RunnerConfig  `yaml:"runner"`
	Logging LogConfig     `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// HTTPConfig bounds every request sent to the API under test
type HTTPConfig struct {
	Timeout               time.Duration `yaml:"timeout"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
}

// RunnerConfig controls which scenarios run and how
type RunnerConfig struct {
	// Parallelism is the number of scenarios run at once
	Parallelism int `yaml:"parallelism"`
	// LatencyBudget is the upper bound asserted on read-path responses
	LatencyBudget time.Duration `yaml:"latency_budget"`
	// Suites selects built-in suites by name; empty means all of them
	Suites []string `yaml:"suites"`
	// SkipBuiltin runs only SuiteFiles
	SkipBuiltin bool `yaml:"skip_builtin"`
	// SuiteFiles lists YAML suite files run in addition to the built-in suites
	SuiteFiles []string `yaml:"suite_files"`
	// SchemaDir holds extra JSON/YAML schema documents referenced by suite files
	SchemaDir string `yaml:"schema_dir"`
	// UploadFile replaces the embedded image used by the upload scenario
	UploadFile string `yaml:"upload_file"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is "pretty", "json", or empty to pick pretty on a terminal
	Format string `yaml:"format"`
}

// StorageConfig holds run history configuration
type StorageConfig struct {
	Enabled bool `yaml:"enabled"`
	// Type is "sqlite", "postgresql", or "mongodb"
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
	// RetentionDays is how long records are kept; 0 keeps them forever
	RetentionDays int `yaml:"retention_days"`
	// BufferSize is the number of records buffered before writes block
	BufferSize int `yaml:"buffer_size"`
	// FlushInterval is how often buffered records are written
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// CacheConfig holds the latest-summary cache configuration
type CacheConfig struct {
	// Type is "local" or "redis"
	Type string `yaml:"type"`
	// Path is the file backing the local cache; empty keeps it in memory only
	Path  string      `yaml:"path"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	URL string        `yaml:"url"`
	Key string        `yaml:"key"`
	TTL time.Duration `yaml:"ttl"`
}

// MonitorConfig holds monitor mode configuration
type MonitorConfig struct {
	// Interval between runs; 0 runs once and exits
	Interval        time.Duration `yaml:"interval"`
	Listen          string        `yaml:"listen"`
	MetricsEndpoint string        `yaml:"metrics_endpoint"`
	// APIKey protects the /runs endpoints when set
	APIKey string `yaml:"api_key"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		BaseURL: "https://petstore.swagger.io/v2",
		HTTP: HTTPConfig{
			Timeout:               5 * time.Second,
			ResponseHeaderTimeout: 5 * time.Second,
		},
		Runner: RunnerConfig{
			Parallelism:   4,
			LatencyBudget: 500 * time.Millisecond,
		},
		Logging: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Type:          "sqlite",
			SQLite:        SQLiteConfig{Path: ".cache/petcontract.db"},
			PostgreSQL:    PostgreSQLConfig{MaxConns: 10},
			MongoDB:       MongoDBConfig{Database: "petcontract"},
			RetentionDays: 30,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
		},
		Cache: CacheConfig{
			Type: "local",
			Path: ".cache/latest-run.json",
			Redis: RedisConfig{
				Key: "petcontract:runs:latest",
				TTL: 24 * time.Hour,
			},
		},
		Monitor: MonitorConfig{
			Listen:          ":9090",
			MetricsEndpoint: "/metrics",
		},
	}
}

// Load reads configuration from path, falling back to defaults when the file does not
// exist. An empty path means DefaultPath. The result is not validated; callers apply
// their own overrides first and then call Validate.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	expanded := expandString(string(data))
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. A variable that is unset (or empty)
// and has no default is left as written.
func expandString(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := envPattern.FindStringSubmatch(m)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		if parts[2] != "" {
			return parts[3]
		}
		return m
	})
}

// applyEnvOverrides applies environment variables on top of file values.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %q", key, v))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %q", key, v))
				return
			}
			*dst = d
		}
	}

	str("PETSTORE_BASE_URL", &cfg.BaseURL)
	dur("HTTP_TIMEOUT", &cfg.HTTP.Timeout)
	dur("HTTP_RESPONSE_HEADER_TIMEOUT", &cfg.HTTP.ResponseHeaderTimeout)
	num("RUNNER_PARALLELISM", &cfg.Runner.Parallelism)
	dur("LATENCY_BUDGET", &cfg.Runner.LatencyBudget)
	if v := os.Getenv("SUITES"); v != "" {
		cfg.Runner.Suites = splitList(v)
	}
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	if v := os.Getenv("STORAGE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid STORAGE_ENABLED: %q", v))
		}
		cfg.Storage.Enabled = enabled
	}
	str("STORAGE_TYPE", &cfg.Storage.Type)
	str("SQLITE_PATH", &cfg.Storage.SQLite.Path)
	str("POSTGRES_URL", &cfg.Storage.PostgreSQL.URL)
	num("POSTGRES_MAX_CONNS", &cfg.Storage.PostgreSQL.MaxConns)
	str("MONGODB_URL", &cfg.Storage.MongoDB.URL)
	str("MONGODB_DATABASE", &cfg.Storage.MongoDB.Database)
	num("HISTORY_RETENTION_DAYS", &cfg.Storage.RetentionDays)
	str("CACHE_TYPE", &cfg.Cache.Type)
	str("CACHE_PATH", &cfg.Cache.Path)
	str("REDIS_URL", &cfg.Cache.Redis.URL)
	dur("MONITOR_INTERVAL", &cfg.Monitor.Interval)
	str("MONITOR_LISTEN", &cfg.Monitor.Listen)
	str("MONITOR_API_KEY", &cfg.Monitor.APIKey)

	return errors.Join(errs...)
}

// parseDuration accepts plain integers as seconds as well as Go duration strings.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url must be an absolute URL, got %q", c.BaseURL))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if c.HTTP.ResponseHeaderTimeout <= 0 {
		errs = append(errs, errors.New("http.response_header_timeout must be positive"))
	}
	if c.Runner.Parallelism < 1 {
		errs = append(errs, errors.New("runner.parallelism must be at least 1"))
	}
	if c.Runner.LatencyBudget <= 0 {
		errs = append(errs, errors.New("runner.latency_budget must be positive"))
	}
	if c.Runner.SkipBuiltin && len(c.Runner.SuiteFiles) == 0 {
		errs = append(errs, errors.New("runner.skip_builtin needs at least one runner.suite_files entry"))
	}
	switch c.Storage.Type {
	case "sqlite", "postgresql", "mongodb":
	default:
		errs = append(errs, fmt.Errorf("unknown storage type: %s (valid: sqlite, postgresql, mongodb)", c.Storage.Type))
	}
	if c.Storage.Enabled {
		if c.Storage.Type == "postgresql" && c.Storage.PostgreSQL.URL == "" {
			errs = append(errs, errors.New("storage.postgresql.url is required"))
		}
		if c.Storage.Type == "mongodb" && c.Storage.MongoDB.URL == "" {
			errs = append(errs, errors.New("storage.mongodb.url is required"))
		}
	}
	if c.Monitor.Interval < 0 {
		errs = append(errs, errors.New("monitor.interval must not be negative"))
	}
	// the cache only backs the monitor endpoints
	if c.Monitor.Interval > 0 {
		switch c.Cache.Type {
		case "local":
		case "redis":
			if c.Cache.Redis.URL == "" {
				errs = append(errs, errors.New("cache.redis.url is required"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown cache type: %s (valid: local, redis)", c.Cache.Type))
		}
	}
	return errors.Join(errs...)
}
