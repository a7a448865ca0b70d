package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// InsertAlert journals a fired alert. An empty ID is replaced with a new UUID.
func (db *DB) InsertAlert(a *models.AlertRecord) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query := `
		INSERT INTO alert_events (id, category, severity, message, subscription, combined_pct, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(context.Background(), query,
		a.ID,
		string(a.Category),
		string(a.Severity),
		a.Message,
		nullString(a.Subscription),
		a.CombinedPct,
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetRecentAlerts returns up to limit alerts, newest first.
func (db *DB) GetRecentAlerts(limit int) ([]models.AlertRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, category, severity, message, subscription, combined_pct, created_at
		FROM alert_events
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(context.Background(), query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []models.AlertRecord
	for rows.Next() {
		var a models.AlertRecord
		var category, severity, createdAt string
		var subscription sql.NullString
		if err := rows.Scan(
			&a.ID,
			&category,
			&severity,
			&a.Message,
			&subscription,
			&a.CombinedPct,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Category = models.AlertCategory(category)
		a.Severity = models.Severity(severity)
		a.Subscription = subscription.String
		if t, ok := parseTimeString(createdAt); ok {
			a.CreatedAt = t
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// CountAlertsSince returns how many alerts of each category fired since the
// given time.
func (db *DB) CountAlertsSince(since time.Time) (map[models.AlertCategory]int, error) {
	rows, err := db.QueryContext(context.Background(),
		"SELECT category, COUNT(*) FROM alert_events WHERE created_at >= ? GROUP BY category",
		formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.AlertCategory]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan alert count: %w", err)
		}
		counts[models.AlertCategory(category)] = n
	}
	return counts, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
