package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"olx-scraper/utils"
)

// NewSQLiteWriter opens or creates the SQLite file at path and returns a
// store for table.
func NewSQLiteWriter(ctx context.Context, path, table string, logger *utils.Logger) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("sqlite: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL mode: %w", err)
	}

	s, err := newSQLStore(ctx, db, sqliteDialect, table, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("[sqlite] Using database %s", path)
	return s, nil
}
