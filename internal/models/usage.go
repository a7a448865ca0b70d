// Package models defines data structures and domain types.
package models

import "time"

// UsagePeriod is the accounting window that usage is tracked against.
type UsagePeriod struct {
	StartDate              time.Time `json:"startDate"`
	LastUpdated            time.Time `json:"lastUpdated"`
	TokenCount             int64     `json:"tokenCount"`
	MessageCount           int       `json:"messageCount"`
	SessionCount           int       `json:"sessionCount"`
	PeakConcurrentSessions int       `json:"peakConcurrentSessions"`
}

// NewUsagePeriod returns an empty period starting at now.
func NewUsagePeriod(now time.Time) UsagePeriod {
	ts := Timestamp(now)
	return UsagePeriod{StartDate: ts, LastUpdated: ts}
}

// Close archives the period with the given end time.
func (p UsagePeriod) Close(end time.Time) ClosedPeriod {
	return ClosedPeriod{UsagePeriod: p, EndDate: Timestamp(end)}
}

// Age returns how long the period has been open at now.
func (p UsagePeriod) Age(now time.Time) time.Duration {
	return now.Sub(p.StartDate)
}

// ClosedPeriod is a finished UsagePeriod kept in the history.
type ClosedPeriod struct {
	EndDate time.Time `json:"endDate"`
	UsagePeriod
}

// UsageDocument is the persisted usage-tracking.json document.
type UsageDocument struct {
	Subscription  string         `json:"subscription"`
	CurrentPeriod UsagePeriod    `json:"currentPeriod"`
	History       []ClosedPeriod `json:"history"`
}

// Clone returns a copy that shares no slices with d.
func (d UsageDocument) Clone() UsageDocument {
	clone := d
	clone.History = make([]ClosedPeriod, len(d.History))
	copy(clone.History, d.History)
	return clone
}

// Timestamp normalizes t to the persisted precision: UTC, milliseconds.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// LoadStatus reports how a persisted document was obtained.
type LoadStatus int

const (
	// LoadLoaded means the document was read and fully valid.
	LoadLoaded LoadStatus = iota
	// LoadDefaulted means the document was absent or some fields were defaulted.
	LoadDefaulted
	// LoadRejected means the document was unreadable and replaced by a fresh one.
	LoadRejected
)

// String returns the display name for a load status.
func (s LoadStatus) String() string {
	switch s {
	case LoadLoaded:
		return "loaded"
	case LoadDefaulted:
		return "defaulted"
	case LoadRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
