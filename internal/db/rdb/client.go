// Package rdb is the relational record store client. It selects the
// database/sql driver, applies pool settings, owns the schema and provides
// explicit transaction boundaries.
package rdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds connection parameters for the record store.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// QueryTimeout bounds every statement and transaction. Zero leaves only the caller's deadline.
	QueryTimeout time.Duration
}

// Client wraps a *sql.DB with driver-aware helpers.
type Client struct {
	db      *sql.DB
	driver  string
	timeout time.Duration
}

// Open opens a connection pool. It does not wait for the server; use WaitForReady.
func Open(cfg Config) (*Client, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	conn, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite has a single writer, and every :memory: connection is a separate database.
		conn.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return New(conn, cfg.Driver, cfg.QueryTimeout), nil
}

// New wraps an existing pool. Tests use it with go-sqlmock.
func New(conn *sql.DB, driver string, queryTimeout time.Duration) *Client {
	return &Client{db: conn, driver: driver, timeout: queryTimeout}
}

// DB returns the underlying pool.
func (c *Client) DB() *sql.DB { return c.db }

// Driver returns the driver name.
func (c *Client) Driver() string { return c.driver }

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.WithTimeout(ctx)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", c.driver, err)
	}
	return nil
}

// Close closes the pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := c.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// WithTimeout derives a context bounded by the query timeout.
func (c *Client) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// InTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back otherwise. The whole transaction runs under the query timeout.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := c.WithTimeout(ctx)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
