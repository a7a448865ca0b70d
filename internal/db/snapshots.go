package db

import (
	"context"
	"fmt"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// SnapshotBucket is the width of one usage_snapshots row.
const SnapshotBucket = 5 * time.Minute

// UpsertUsageSnapshot records a sample of the current period into its
// five-minute bucket. Counters keep the latest value; sessions and combined
// percentage keep the bucket maximum.
func (db *DB) UpsertUsageSnapshot(s models.UsageSnapshot) error {
	bucket := s.BucketTime.UTC().Truncate(SnapshotBucket)

	query := `
		INSERT INTO usage_snapshots (
			subscription, bucket_time, message_count, token_count,
			active_sessions, combined_pct, sample_count
		) VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(subscription, bucket_time) DO UPDATE SET
			message_count = excluded.message_count,
			token_count = excluded.token_count,
			active_sessions = MAX(usage_snapshots.active_sessions, excluded.active_sessions),
			combined_pct = MAX(usage_snapshots.combined_pct, excluded.combined_pct),
			sample_count = usage_snapshots.sample_count + 1
	`

	_, err := db.ExecContext(context.Background(), query,
		s.Subscription,
		formatTime(bucket),
		s.MessageCount,
		s.TokenCount,
		s.ActiveSessions,
		s.CombinedPct,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert usage snapshot: %w", err)
	}
	return nil
}

// GetUsageSnapshots returns the snapshots of a subscription since the given
// time, oldest first. The zero time returns every snapshot.
func (db *DB) GetUsageSnapshots(subscription string, since time.Time) ([]models.UsageSnapshot, error) {
	query := `
		SELECT id, subscription, bucket_time, message_count, token_count,
			active_sessions, combined_pct, sample_count
		FROM usage_snapshots
		WHERE subscription = ? AND bucket_time >= ?
		ORDER BY bucket_time ASC
	`

	rows, err := db.QueryContext(context.Background(), query, subscription, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []models.UsageSnapshot
	for rows.Next() {
		var s models.UsageSnapshot
		var bucket string
		if err := rows.Scan(
			&s.ID,
			&s.Subscription,
			&bucket,
			&s.MessageCount,
			&s.TokenCount,
			&s.ActiveSessions,
			&s.CombinedPct,
			&s.SampleCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage snapshot: %w", err)
		}
		if t, ok := parseTimeString(bucket); ok {
			s.BucketTime = t
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// GetDailyUsage returns per-day peaks of a subscription since the given time,
// oldest first.
func (db *DB) GetDailyUsage(subscription string, since time.Time) ([]models.DailyUsage, error) {
	query := `
		SELECT
			date(bucket_time) AS day,
			MAX(message_count),
			MAX(token_count),
			MAX(active_sessions),
			MAX(combined_pct),
			SUM(sample_count)
		FROM usage_snapshots
		WHERE subscription = ? AND bucket_time >= ?
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := db.QueryContext(context.Background(), query, subscription, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var days []models.DailyUsage
	for rows.Next() {
		var d models.DailyUsage
		var day string
		if err := rows.Scan(
			&day,
			&d.MessageCount,
			&d.TokenCount,
			&d.ActiveSessions,
			&d.CombinedPct,
			&d.Samples,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		if t, err := time.Parse("2006-01-02", day); err == nil {
			d.Day = t
		}
		days = append(days, d)
	}

	return days, rows.Err()
}
