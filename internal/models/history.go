package models

import "time"

// TimeRange represents the selected history time range.
type TimeRange int

const (
	// TimeRange24Hours shows data from the last 24 hours.
	TimeRange24Hours TimeRange = iota
	// TimeRange7Days shows data from the last 7 days.
	TimeRange7Days
	// TimeRange30Days shows data from the last 30 days.
	TimeRange30Days
	// TimeRangeAllTime shows all available historical data.
	TimeRangeAllTime
)

// String returns the display name for a time range.
func (t TimeRange) String() string {
	switch t {
	case TimeRange24Hours:
		return "24 Hours"
	case TimeRange7Days:
		return "7 Days"
	case TimeRange30Days:
		return "30 Days"
	case TimeRangeAllTime:
		return "All Time"
	default:
		return "Unknown"
	}
}

// Days returns the number of days for the time range (0 = unlimited).
func (t TimeRange) Days() int {
	switch t {
	case TimeRange24Hours:
		return 1
	case TimeRange7Days:
		return 7
	case TimeRange30Days:
		return 30
	case TimeRangeAllTime:
		return 0
	default:
		return 30
	}
}

// Since returns the start of the range at now. The zero time means unbounded.
func (t TimeRange) Since(now time.Time) time.Time {
	days := t.Days()
	if days == 0 {
		return time.Time{}
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// Next cycles to the next time range.
func (t TimeRange) Next() TimeRange {
	return (t + 1) % 4
}

// HistoryEntry is a closed period scored against the current tier.
type HistoryEntry struct {
	Period   ClosedPeriod
	Percent  float64
	Severity Severity
}

// UsageSnapshot is one bucketed sample of the current period, stored in sqlite.
type UsageSnapshot struct {
	BucketTime     time.Time
	Subscription   string
	ID             int64
	TokenCount     int64
	MessageCount   int
	ActiveSessions int
	SampleCount    int
	CombinedPct    float64
}

// AlertRecord is a journaled alert.
type AlertRecord struct {
	CreatedAt    time.Time
	ID           string
	Category     AlertCategory
	Severity     Severity
	Message      string
	Subscription string
	CombinedPct  float64
}

// DailyUsage holds the highest values sampled on one UTC day.
type DailyUsage struct {
	Day            time.Time
	MessageCount   int
	TokenCount     int64
	ActiveSessions int
	CombinedPct    float64
	Samples        int
}
