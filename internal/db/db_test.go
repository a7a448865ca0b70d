package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if db.Path() != dbPath {
		t.Errorf("Expected path %s, got %s", dbPath, db.Path())
	}

	// Verify file exists
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database with nested path: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("Nested directories were not created")
	}
}

func TestSchema_TablesExist(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	tables := []string{
		"usage_snapshots",
		"alert_events",
	}

	for _, table := range tables {
		var name string
		err := db.QueryRowContext(context.Background(), "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s does not exist: %v", table, err)
		}
	}
}

func TestVacuum(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum failed: %v", err)
	}
}

func TestClose(t *testing.T) {
	db := newTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Verify database is closed by trying to query
	_, err := db.QueryContext(context.Background(), "SELECT 1")
	if err == nil {
		t.Error("Expected error querying closed database")
	}
}

func TestNew_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertUsageSnapshot(models.UsageSnapshot{
		BucketTime:   time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Subscription: "max",
		MessageCount: 3,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	snaps, err := db.GetUsageSnapshots("max", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Errorf("expected 1 snapshot after reopen, got %d", len(snaps))
	}
}

func TestPrune(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		if err := db.UpsertUsageSnapshot(models.UsageSnapshot{
			BucketTime:   base.Add(-time.Duration(i) * 24 * time.Hour),
			Subscription: "pro",
			MessageCount: i,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.InsertAlert(&models.AlertRecord{
		CreatedAt: base.Add(-72 * time.Hour),
		Category:  models.AlertWarning,
		Severity:  models.SeverityWarning,
		Message:   "old",
	}); err != nil {
		t.Fatal(err)
	}

	removed, err := db.Prune(base.Add(-36 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 rows removed, got %d", removed)
	}

	snaps, err := db.GetUsageSnapshots("pro", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Errorf("expected 2 snapshots left, got %d", len(snaps))
	}
}

func TestParseTimeString(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []string{
		"2024-01-02 03:04:05",
		"2024-01-02T03:04:05Z",
		"2024-01-02T03:04:05.000Z",
		"2024-01-02T03:04:05",
	} {
		got, ok := parseTimeString(s)
		if !ok || !got.Equal(want) {
			t.Errorf("parseTimeString(%q) = %v, %v", s, got, ok)
		}
	}
	if _, ok := parseTimeString("yesterday"); ok {
		t.Error("expected garbage to fail")
	}
}

// Helper to create a test database
func newTestDB(t *testing.T) *DB {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return db
}
