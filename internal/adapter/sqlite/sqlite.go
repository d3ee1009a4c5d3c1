// Package sqlite persists enriched deliveries and cached weather in a local
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS deliveries (
		delivery_id                  TEXT PRIMARY KEY,
		pickup_datetime              TEXT NOT NULL,
		delivery_timestamp           TEXT NOT NULL,
		package_type                 TEXT NOT NULL,
		distance                     REAL NOT NULL,
		delivery_zone                TEXT NOT NULL,
		hour                         INTEGER NOT NULL,
		weekday                      TEXT NOT NULL,
		day_type                     TEXT NOT NULL,
		weather_condition            TEXT,
		actual_delivery_time_minutes REAL NOT NULL,
		actual_delivery_time_display TEXT NOT NULL,
		theoretical_time_minutes     REAL NOT NULL,
		status                       TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);`,
	`CREATE TABLE IF NOT EXISTS weather_cache (
		cache_key  TEXT PRIMARY KEY,
		conditions TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	);`,
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("open sqlite: create dir %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	// One connection keeps concurrent cache writers from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("open sqlite: %s: %w", pragma, err)
		}
	}

	if err := InitSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema creates the deliveries and weather_cache tables.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit: %w", err)
	}
	return nil
}
