package runlog

import (
	"context"
	"errors"
	"fmt"

	"petcontract/config"
	"petcontract/internal/storage"
)

// Result holds the initialized history logger and its dependencies.
// The caller is responsible for calling Close() to release resources.
type Result struct {
	Logger LoggerInterface
	// Reader is nil when history is disabled.
	Reader  Reader
	Storage storage.Storage
}

// Close releases all resources held by the history logger.
// Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Logger != nil {
		if err := r.Logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("logger close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New opens the configured storage and creates a history logger and reader on it.
// If history is disabled, returns a NoopLogger with nil reader and storage.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	if !cfg.Storage.Enabled {
		return &Result{Logger: &NoopLogger{}}, nil
	}

	store, err := storage.New(ctx, buildStorageConfig(cfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	res, err := NewWithSharedStorage(ctx, cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	res.Storage = store
	return res, nil
}

// NewWithSharedStorage creates a history logger on an already open storage connection.
// The caller keeps ownership of store.
func NewWithSharedStorage(ctx context.Context, cfg *config.Config, store storage.Storage) (*Result, error) {
	if !cfg.Storage.Enabled {
		return &Result{Logger: &NoopLogger{}}, nil
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required when run history is enabled")
	}

	histStore, reader, err := createStoreAndReader(ctx, store, cfg.Storage.RetentionDays)
	if err != nil {
		return nil, err
	}

	return &Result{
		Logger: NewLogger(histStore, buildLoggerConfig(cfg.Storage)),
		Reader: reader,
	}, nil
}

func buildStorageConfig(cfg config.StorageConfig) storage.Config {
	return storage.Config{
		Type:       cfg.Type,
		SQLite:     storage.SQLiteConfig{Path: cfg.SQLite.Path},
		PostgreSQL: storage.PostgreSQLConfig{URL: cfg.PostgreSQL.URL, MaxConns: cfg.PostgreSQL.MaxConns},
		MongoDB:    storage.MongoDBConfig{URL: cfg.MongoDB.URL, Database: cfg.MongoDB.Database},
	}.WithDefaults()
}

// createStoreAndReader creates the Store and Reader for the given storage backend.
func createStoreAndReader(ctx context.Context, store storage.Storage, retentionDays int) (Store, Reader, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		s, err := NewSQLiteStore(store.SQLiteDB(), retentionDays)
		if err != nil {
			return nil, nil, err
		}
		r, err := NewSQLiteReader(store.SQLiteDB())
		return s, r, err

	case storage.TypePostgreSQL:
		s, err := NewPostgreSQLStore(ctx, store.PostgreSQLPool(), retentionDays)
		if err != nil {
			return nil, nil, err
		}
		r, err := NewPostgreSQLReader(store.PostgreSQLPool())
		return s, r, err

	case storage.TypeMongoDB:
		s, err := NewMongoDBStore(ctx, store.MongoDatabase(), retentionDays)
		if err != nil {
			return nil, nil, err
		}
		r, err := NewMongoDBReader(store.MongoDatabase())
		return s, r, err

	default:
		return nil, nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}

func buildLoggerConfig(cfg config.StorageConfig) Config {
	out := Config{
		Enabled:       cfg.Enabled,
		BufferSize:    cfg.BufferSize,
		FlushInterval: cfg.FlushInterval,
		RetentionDays: cfg.RetentionDays,
	}
	defaults := DefaultConfig()
	if out.BufferSize <= 0 {
		out.BufferSize = defaults.BufferSize
	}
	if out.FlushInterval <= 0 {
		out.FlushInterval = defaults.FlushInterval
	}
	return out
}
