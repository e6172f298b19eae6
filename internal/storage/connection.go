// Package storage provides the PostgreSQL and in-memory implementations of
// the tracking store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const healthCheckTimeout = 5 * time.Second

var (
	// ErrNoDatabaseConnection is returned when a store is constructed
	// without a connection.
	ErrNoDatabaseConnection = errors.New("database connection is required")

	// ErrNilConfig is returned when a connection is constructed without
	// configuration.
	ErrNilConfig = errors.New("configuration cannot be nil")
)

// Connection wraps a database/sql pool with the configured limits. It is
// shared by every store built on it; the creator owns Close.
type Connection struct {
	db     *sql.DB
	config *Config
}

// NewConnection opens a PostgreSQL connection pool, applies the pool settings
// from config, and verifies connectivity with a ping.
func NewConnection(config *Config) (*Connection, error) {
	if config == nil {
		return nil, ErrNilConfig
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}

	db, err := sql.Open("postgres", config.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{db: db, config: config}, nil
}

// NewConnectionFromDB wraps an existing database handle. Used by tests that
// manage their own container-backed connection.
func NewConnectionFromDB(db *sql.DB) (*Connection, error) {
	if db == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &Connection{db: db}, nil
}

// DB exposes the underlying pool for the migration runner and tests.
func (c *Connection) DB() *sql.DB {
	return c.db
}

// HealthCheck verifies the pool can still reach the database.
func (c *Connection) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close closes the pool. Safe to call once; stores built on this connection
// must not be used afterwards.
func (c *Connection) Close() error {
	if c.db == nil {
		return nil
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}
