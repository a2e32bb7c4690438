// Package storage opens the database connection shared by the blob store
// and the history index.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Type constants for storage backends
const (
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
	TypeMongoDB    = "mongodb"
)

// DefaultSQLitePath is used when no SQLite path is configured.
const DefaultSQLitePath = ".cache/genstudio.db"

// Config holds storage configuration
type Config struct {
	// Type selects the backend: "sqlite", "postgresql", or "mongodb"
	Type string

	SQLite     SQLiteConfig
	PostgreSQL PostgreSQLConfig
	MongoDB    MongoDBConfig
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	// Path is the database file path; ":memory:" opens a private in-memory database
	Path string
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL      string
	MaxConns int
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL      string
	Database string
}

// Storage is an open database connection. Exactly one of the accessors
// returns a non-nil value, matching Type.
type Storage interface {
	Type() string
	SQLiteDB() *sql.DB
	PostgreSQLPool() *pgxpool.Pool
	MongoDatabase() *mongo.Database
	Close() error
}

// New opens the backend selected by cfg.Type.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeSQLite, "":
		return NewSQLite(cfg.SQLite)
	case TypePostgreSQL:
		return NewPostgreSQL(ctx, cfg.PostgreSQL)
	case TypeMongoDB:
		return NewMongoDB(ctx, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown storage type: %s (valid: sqlite, postgresql, mongodb)", cfg.Type)
	}
}
