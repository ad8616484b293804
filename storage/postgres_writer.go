package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"olx-scraper/config"
	"olx-scraper/utils"
)

const (
	defaultPingAttempts = 10
	defaultPingDelay    = 500 * time.Millisecond
)

type openOptions struct {
	pingAttempts int
}

// Option tunes how a store connects.
type Option func(*openOptions)

// WithPingAttempts sets how many times the PostgreSQL backend is pinged
// before giving up. One means fail on the first refused connection.
func WithPingAttempts(n int) Option {
	return func(o *openOptions) {
		o.pingAttempts = n
	}
}

// NewPostgresWriter opens a connection to PostgreSQL, waits for it to accept
// connections, creates the table if needed and returns a ready-to-use store.
func NewPostgresWriter(ctx context.Context, dsn, table string, logger *utils.Logger, opts ...Option) (*SQLStore, error) {
	o := openOptions{pingAttempts: defaultPingAttempts}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: o.pingAttempts, BaseDelay: defaultPingDelay, Logger: logger}
	if err := retry.Do(ctx, "postgres-ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s, err := newSQLStore(ctx, db, postgresDialect, table, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Open connects to the configured database backend.
func Open(ctx context.Context, cfg *config.Config, logger *utils.Logger, opts ...Option) (*SQLStore, error) {
	switch cfg.DBDriver {
	case "postgres", "":
		return NewPostgresWriter(ctx, cfg.DSN(), cfg.TableName, logger, opts...)
	case "sqlite":
		return NewSQLiteWriter(ctx, cfg.SQLitePath, cfg.TableName, logger)
	default:
		return nil, fmt.Errorf("storage: unknown db driver %q", cfg.DBDriver)
	}
}
