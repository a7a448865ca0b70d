// Package period tracks the current usage period and its history.
package period

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/store"
)

// DefaultSubscription is used when the document names no subscription.
const DefaultSubscription = "max"

// DefaultHistoryDays is the window used when History is asked for no days.
const DefaultHistoryDays = 7

// ErrInvalidCount is returned when a message count below one is recorded.
var ErrInvalidCount = errors.New("message count must be at least 1")

// SessionSummary is the result of aggregating session records into the period.
type SessionSummary struct {
	Active   int
	InPeriod int
	Tokens   int64
	Peak     int
	Changed  bool
}

// Store owns the usage-tracking document.
type Store struct {
	mu          sync.Mutex
	path        string
	resetWindow time.Duration
	doc         models.UsageDocument
	status      models.LoadStatus
}

// New creates a store for the document at path. Call Load before use.
func New(path string, resetWindow time.Duration) *Store {
	if resetWindow <= 0 {
		resetWindow = 24 * time.Hour
	}
	return &Store{
		path:        path,
		resetWindow: resetWindow,
		doc:         freshDocument(DefaultSubscription, time.Now()),
		status:      models.LoadDefaulted,
	}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// ResetWindow returns the period length.
func (s *Store) ResetWindow() time.Duration {
	return s.resetWindow
}

// Load reads the document from disk. It never fails: unreadable documents are
// replaced by a fresh period and reported through the returned status.
func (s *Store) Load(now time.Time) models.LoadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc models.UsageDocument
	err := store.ReadJSON(s.path, &doc)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.doc = freshDocument(DefaultSubscription, now)
		s.status = models.LoadDefaulted
	case err != nil:
		logger.Warn("usage data unreadable, starting a fresh period", "path", s.path, "error", err)
		s.doc = freshDocument(DefaultSubscription, now)
		s.status = models.LoadRejected
	case doc.CurrentPeriod.StartDate.IsZero():
		logger.Warn("usage data has no current period start, starting a fresh period", "path", s.path)
		s.doc = freshDocument(DefaultSubscription, now)
		s.status = models.LoadRejected
	default:
		s.doc, s.status = normalize(doc)
	}
	return s.status
}

// Status returns the result of the last Load.
func (s *Store) Status() models.LoadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a copy of the document.
func (s *Store) Snapshot() models.UsageDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Current returns the current period.
func (s *Store) Current() models.UsagePeriod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.CurrentPeriod
}

// Subscription returns the tracked subscription name.
func (s *Store) Subscription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Subscription
}

// CheckAndReset closes the current period once it is at least one reset
// window old. It reports whether a reset happened; without one there is no I/O.
func (s *Store) CheckAndReset(now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.resetLocked(now) {
		return false, nil
	}
	return true, s.saveLocked()
}

// RecordMessages adds n messages to the current period, resetting it first
// if it has expired.
func (s *Store) RecordMessages(n int, now time.Time) error {
	if n < 1 {
		return ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked(now)

	p := &s.doc.CurrentPeriod
	p.MessageCount += n
	p.LastUpdated = models.Timestamp(now)
	if p.LastUpdated.Before(p.StartDate) {
		p.LastUpdated = p.StartDate
	}
	return s.saveLocked()
}

// AggregateFromSessions recomputes the session-derived counters of the
// current period from the given records. Applying the same records twice
// gives the same period. The document is only written when a counter changed.
func (s *Store) AggregateFromSessions(records []models.SessionRecord) (SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &s.doc.CurrentPeriod
	var sum SessionSummary
	for _, r := range records {
		if r.Active {
			sum.Active++
		}
		if !r.StartTime.Before(p.StartDate) {
			sum.InPeriod++
			sum.Tokens += r.EstimatedTokens
		}
	}

	sum.Peak = max(p.PeakConcurrentSessions, sum.Active)
	sum.Changed = p.TokenCount != sum.Tokens ||
		p.SessionCount != sum.InPeriod ||
		p.PeakConcurrentSessions != sum.Peak
	if !sum.Changed {
		return sum, nil
	}

	p.TokenCount = sum.Tokens
	p.SessionCount = sum.InPeriod
	p.PeakConcurrentSessions = sum.Peak
	return sum, s.saveLocked()
}

// SetSubscription changes the tracked subscription. Validation of the name is
// the caller's job.
func (s *Store) SetSubscription(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Subscription = name
	return s.saveLocked()
}

// Clear discards all counters and history, keeping the subscription.
func (s *Store) Clear(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = freshDocument(s.doc.Subscription, now)
	return s.saveLocked()
}

// History returns closed periods that started within the last days, newest first.
func (s *Store) History(days int, now time.Time) []models.ClosedPeriod {
	if days < 1 {
		days = DefaultHistoryDays
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ClosedPeriod, 0, len(s.doc.History))
	for _, p := range s.doc.History {
		if !p.StartDate.Before(cutoff) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out
}

// resetLocked archives the current period if it has expired (must hold lock).
func (s *Store) resetLocked(now time.Time) bool {
	if s.doc.CurrentPeriod.Age(now) < s.resetWindow {
		return false
	}
	s.doc.History = append(s.doc.History, s.doc.CurrentPeriod.Close(now))
	s.doc.CurrentPeriod = models.NewUsagePeriod(now)
	logger.Info("usage period reset", "start", s.doc.CurrentPeriod.StartDate)
	return true
}

// saveLocked writes the document (must hold lock). The in-memory state is
// kept when the write fails.
func (s *Store) saveLocked() error {
	if err := store.WriteJSON(s.path, s.doc); err != nil {
		logger.Error("failed to save usage data", "path", s.path, "error", err)
		return fmt.Errorf("saving usage data: %w", err)
	}
	return nil
}

func freshDocument(subscription string, now time.Time) models.UsageDocument {
	return models.UsageDocument{
		Subscription:  subscription,
		CurrentPeriod: models.NewUsagePeriod(now),
		History:       []models.ClosedPeriod{},
	}
}

// normalize fills defaults into a parsed document and reports whether any
// field had to be defaulted.
func normalize(doc models.UsageDocument) (models.UsageDocument, models.LoadStatus) {
	status := models.LoadLoaded
	if doc.Subscription == "" {
		doc.Subscription = DefaultSubscription
		status = models.LoadDefaulted
	}

	p := &doc.CurrentPeriod
	p.StartDate = p.StartDate.UTC()
	p.LastUpdated = p.LastUpdated.UTC()
	if p.LastUpdated.Before(p.StartDate) {
		p.LastUpdated = p.StartDate
		status = models.LoadDefaulted
	}
	if p.MessageCount < 0 || p.TokenCount < 0 || p.SessionCount < 0 || p.PeakConcurrentSessions < 0 {
		p.MessageCount = max(p.MessageCount, 0)
		p.TokenCount = max(p.TokenCount, 0)
		p.SessionCount = max(p.SessionCount, 0)
		p.PeakConcurrentSessions = max(p.PeakConcurrentSessions, 0)
		status = models.LoadDefaulted
	}

	if doc.History == nil {
		doc.History = []models.ClosedPeriod{}
	}
	return doc, status
}
