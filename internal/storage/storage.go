// Package storage opens the database that run history is written to. One connection
// is shared by the history writer and the readers serving /runs/records.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Backend names accepted in Config.Type.
const (
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
	TypeMongoDB    = "mongodb"
)

const (
	DefaultSQLitePath = ".cache/petcontract.db"
	DefaultMaxConns   = 10
	DefaultDatabase   = "petcontract"

	// ApplicationName tags our sessions in pg_stat_activity and the MongoDB server log.
	ApplicationName = "petcontract"

	// ConnectTimeout caps the startup ping against an unreachable server.
	ConnectTimeout = 10 * time.Second

	// MemoryPath selects a process-private SQLite database.
	MemoryPath = ":memory:"
)

// Config selects one backend. Only the section matching Type is read.
type Config struct {
	Type       string
	SQLite     SQLiteConfig
	PostgreSQL PostgreSQLConfig
	MongoDB    MongoDBConfig
}

// SQLiteConfig points at a database file, or MemoryPath.
type SQLiteConfig struct {
	Path string
}

// PostgreSQLConfig carries a libpq-style URL and the pool ceiling.
type PostgreSQLConfig struct {
	URL      string
	MaxConns int
}

// MongoDBConfig carries a mongodb:// URL and the database holding step_runs.
type MongoDBConfig struct {
	URL      string
	Database string
}

// WithDefaults fills the zero fields: SQLite at DefaultSQLitePath, DefaultMaxConns and
// DefaultDatabase.
func (c Config) WithDefaults() Config {
	if c.Type == "" {
		c.Type = TypeSQLite
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = DefaultSQLitePath
	}
	if c.PostgreSQL.MaxConns <= 0 {
		c.PostgreSQL.MaxConns = DefaultMaxConns
	}
	if c.MongoDB.Database == "" {
		c.MongoDB.Database = DefaultDatabase
	}
	return c
}

// Storage is one open connection. Exactly one of the accessors returns non-nil, the
// one matching Type. Safe for concurrent use.
type Storage interface {
	Type() string
	SQLiteDB() *sql.DB
	PostgreSQLPool() *pgxpool.Pool
	MongoDatabase() *mongo.Database
	Ping(ctx context.Context) error
	Close() error
}

// New opens the backend named by cfg.Type and checks that it answers.
func New(ctx context.Context, cfg Config) (Storage, error) {
	cfg = cfg.WithDefaults()
	switch cfg.Type {
	case TypeSQLite:
		return NewSQLite(cfg.SQLite)
	case TypePostgreSQL:
		return NewPostgreSQL(ctx, cfg.PostgreSQL)
	case TypeMongoDB:
		return NewMongoDB(ctx, cfg.MongoDB)
	}
	return nil, fmt.Errorf("unknown storage type: %s (valid: sqlite, postgresql, mongodb)", cfg.Type)
}
