// Package db manages the database connection
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

// sqlTimeFormat is how timestamps are stored, so SQLite's date functions can
// read them.
const sqlTimeFormat = "2006-01-02 15:04:05"

// DB wraps the SQL database connection with application-specific methods.
type DB struct {
	*sql.DB
	path string
}

// New creates a new database connection and initializes the schema.
func New(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:   sqlDB,
		path: path,
	}

	if err := db.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := db.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// configure sets up database pragmas for optimal performance.
func (db *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-16000", // 16MB cache
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func (db *DB) createSchema() error {
	if err := db.createUsageSnapshotsTable(); err != nil {
		return err
	}
	return db.createAlertEventsTable()
}

func (db *DB) createUsageSnapshotsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS usage_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subscription TEXT NOT NULL,
		bucket_time DATETIME NOT NULL,
		message_count INTEGER DEFAULT 0,
		token_count INTEGER DEFAULT 0,
		active_sessions INTEGER DEFAULT 0,
		combined_pct REAL DEFAULT 0,
		sample_count INTEGER DEFAULT 1,
		UNIQUE(subscription, bucket_time)
	);
	CREATE INDEX IF NOT EXISTS idx_usage_snapshots_time ON usage_snapshots(bucket_time);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

func (db *DB) createAlertEventsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS alert_events (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		subscription TEXT,
		combined_pct REAL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alert_events_created ON alert_events(created_at);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	// Checkpoint WAL before closing
	_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.DB.Close()
}

// Vacuum performs database maintenance to reclaim space.
func (db *DB) Vacuum() error {
	_, err := db.ExecContext(context.Background(), "VACUUM")
	return err
}

// Prune deletes snapshots and alerts older than cutoff and returns the number
// of rows removed.
func (db *DB) Prune(cutoff time.Time) (int64, error) {
	ts := formatTime(cutoff)
	var total int64
	for _, query := range []string{
		"DELETE FROM usage_snapshots WHERE bucket_time < ?",
		"DELETE FROM alert_events WHERE created_at < ?",
	} {
		res, err := db.ExecContext(context.Background(), query, ts)
		if err != nil {
			return total, fmt.Errorf("failed to prune: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

var timeFormats = []string{
	sqlTimeFormat,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqlTimeFormat)
}

func parseTimeString(s string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
