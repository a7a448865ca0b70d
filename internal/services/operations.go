package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/metrics"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services/learner"
	"github.com/j-veylop/claude-usage-monitor/internal/services/period"
	"github.com/j-veylop/claude-usage-monitor/internal/services/quota"
	"github.com/j-veylop/claude-usage-monitor/internal/services/sessions"
)

// ErrJournalDisabled is returned by journal queries when sqlite is unavailable.
var ErrJournalDisabled = errors.New("usage journal is disabled")

// ErrNoTextfile is returned when metrics are exported without a destination.
var ErrNoTextfile = errors.New("no metrics textfile configured")

// Snapshot is the full usage picture at one instant.
type Snapshot struct {
	TakenAt      time.Time
	Subscription string
	Limits       models.Limits
	Period       models.UsagePeriod
	Metrics      models.Metrics
	Sessions     sessions.Stats
	LearningMode models.LearningMode
	EventCount   int
	PeriodReset  bool
	Alerts       []models.Alert
}

// Export is the document printed by export-current.
type Export struct {
	Subscription    string             `json:"subscription"`
	CurrentPeriod   models.UsagePeriod `json:"currentPeriod"`
	HoursIntoPeriod float64            `json:"hoursIntoPeriod"`
	Metrics         models.Metrics     `json:"metrics"`
}

// Analysis is the outcome of analyze-thresholds.
type Analysis struct {
	Analyzed int
	Result   learner.Result
	Adaptive bool
}

// ThresholdReport describes the learner state.
type ThresholdReport struct {
	Subscription           string
	Mode                   models.LearningMode
	LastUpdated            time.Time
	EventCount             int
	AdaptedLimits          map[string]models.AdaptedLimits
	Confidence             models.Confidence
	SubscriptionConfidence map[string]models.Confidence
}

// Status checks for a period rollover, folds the session records into the
// period and computes the current metrics. A returned error means a write
// failed; the snapshot is still valid.
func (m *Manager) Status() (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() (Snapshot, error) {
	now := m.now()
	var errs []error

	reset, err := m.periods.CheckAndReset(now)
	if err != nil {
		errs = append(errs, err)
	}

	records := m.scanSessions()
	if _, err := m.periods.AggregateFromSessions(records); err != nil {
		errs = append(errs, err)
	}

	snap := m.snapshotAt(now, records)
	snap.PeriodReset = reset
	m.journal(snap)
	return snap, errors.Join(errs...)
}

// Peek computes the current metrics without touching any document.
func (m *Manager) Peek() Snapshot {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.snapshotAt(m.now(), m.scanSessions())
}

func (m *Manager) scanSessions() []models.SessionRecord {
	records, err := sessions.Scan(m.cfg.SessionsDir)
	if err != nil {
		logger.Warn("failed to read sessions", "dir", m.cfg.SessionsDir, "error", err)
		return nil
	}
	return records
}

func (m *Manager) snapshotAt(now time.Time, records []models.SessionRecord) Snapshot {
	stats := sessions.Summarize(records, now)
	sub := m.periods.Subscription()
	limits := m.Limits()
	p := m.periods.Current()

	return Snapshot{
		TakenAt:      now,
		Subscription: sub,
		Limits:       limits,
		Period:       p,
		Sessions:     stats,
		LearningMode: m.learner.Mode(),
		EventCount:   len(m.learner.Document().ThrottleEvents),
		Metrics: quota.Analyze(quota.Input{
			Now:            now,
			Period:         p,
			Limits:         limits,
			ActiveSessions: stats.ActiveCount(),
		}, m.analyzer),
	}
}

// Limits returns the limits in force for the tracked subscription.
func (m *Manager) Limits() models.Limits {
	sub := m.periods.Subscription()
	return m.learner.EffectiveLimits(m.catalog.Resolve(sub), sub)
}

// journal stores a snapshot sample. Failures only cost history, so they are
// logged and dropped.
func (m *Manager) journal(snap Snapshot) {
	if m.database == nil {
		return
	}
	err := m.database.UpsertUsageSnapshot(models.UsageSnapshot{
		BucketTime:     snap.TakenAt,
		Subscription:   snap.Subscription,
		TokenCount:     snap.Period.TokenCount,
		MessageCount:   snap.Period.MessageCount,
		ActiveSessions: snap.Metrics.ActiveSessions,
		CombinedPct:    snap.Metrics.CombinedPct,
	})
	if err != nil {
		logger.Warn("failed to journal usage snapshot", "error", err)
	}
}

// Record adds n messages to the current period, rolling it over first if due.
func (m *Manager) Record(n int) (models.UsagePeriod, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	err := m.periods.RecordMessages(n, m.now())
	return m.periods.Current(), err
}

// SetSubscription switches the tracked tier. Unknown names are rejected with
// quota.ErrUnknownTier.
func (m *Manager) SetSubscription(name string) (models.Tier, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	name = strings.ToLower(strings.TrimSpace(name))
	if err := m.catalog.Validate(name); err != nil {
		return models.Tier{}, err
	}
	tier := m.catalog.Resolve(name)
	return tier, m.periods.SetSubscription(name)
}

// Clear starts a fresh period, wipes the history and forgets alert state.
func (m *Manager) Clear() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.gate.Reset()
	return m.periods.Clear(m.now())
}

// ProcessSessions folds the session records into the current period.
func (m *Manager) ProcessSessions() (period.SessionSummary, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.periods.AggregateFromSessions(m.scanSessions())
}

// History returns the closed periods started within the last days, newest
// first, scored against the limits in force.
func (m *Manager) History(days int) []models.HistoryEntry {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if days <= 0 {
		days = period.DefaultHistoryDays
	}
	limits := m.Limits()
	closed := m.periods.History(days, m.now())

	entries := make([]models.HistoryEntry, 0, len(closed))
	for _, p := range closed {
		pct := 0.0
		if limits.DailyMessages > 0 {
			pct = float64(p.MessageCount) * 100 / float64(limits.DailyMessages)
		}
		entries = append(entries, models.HistoryEntry{
			Period:   p,
			Percent:  pct,
			Severity: quota.Classify(pct, limits.Tier),
		})
	}
	return entries
}

// ExportCurrent returns the current period and metrics without writing. An
// expired period that has not been rolled over yet counts as a full window.
func (m *Manager) ExportCurrent() Export {
	snap := m.Peek()
	elapsed := min(m.analyzer.ResetWindow, max(0, snap.Period.Age(snap.TakenAt)))
	return Export{
		Subscription:    snap.Subscription,
		CurrentPeriod:   snap.Period,
		HoursIntoPeriod: elapsed.Hours(),
		Metrics:         snap.Metrics,
	}
}

// AnalyzeThresholds runs the learner over the throttle event log.
func (m *Manager) AnalyzeThresholds() (Analysis, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	events, err := learner.LoadEvents(m.cfg.ThrottleDir)
	if err != nil {
		return Analysis{}, err
	}

	res, err := m.learner.Learn(events, m.periods.Subscription(), m.now())
	return Analysis{
		Analyzed: len(events),
		Result:   res,
		Adaptive: res.Mode == models.ModeAdaptive,
	}, err
}

// ThresholdReport returns the learner state.
func (m *Manager) ThresholdReport() ThresholdReport {
	doc := m.learner.Document()
	return ThresholdReport{
		Subscription:           m.periods.Subscription(),
		Mode:                   doc.LearningMode,
		LastUpdated:            doc.LastUpdated,
		EventCount:             len(doc.ThrottleEvents),
		AdaptedLimits:          doc.AdaptedLimits,
		Confidence:             doc.Confidence,
		SubscriptionConfidence: doc.SubscriptionConfidence,
	}
}

// UsageSnapshots returns the journaled samples of the tracked subscription.
func (m *Manager) UsageSnapshots(r models.TimeRange) ([]models.UsageSnapshot, error) {
	if m.database == nil {
		return nil, ErrJournalDisabled
	}
	return m.database.GetUsageSnapshots(m.periods.Subscription(), r.Since(m.now()))
}

// DailyUsage returns per-day peaks of the tracked subscription.
func (m *Manager) DailyUsage(r models.TimeRange) ([]models.DailyUsage, error) {
	if m.database == nil {
		return nil, ErrJournalDisabled
	}
	return m.database.GetDailyUsage(m.periods.Subscription(), r.Since(m.now()))
}

// RecentAlerts returns up to limit journaled alerts, newest first.
func (m *Manager) RecentAlerts(limit int) ([]models.AlertRecord, error) {
	if m.database == nil {
		return nil, ErrJournalDisabled
	}
	return m.database.GetRecentAlerts(limit)
}

// AlertCounts returns the number of journaled alerts per category within r.
func (m *Manager) AlertCounts(r models.TimeRange) (map[models.AlertCategory]int, error) {
	if m.database == nil {
		return nil, ErrJournalDisabled
	}
	return m.database.CountAlertsSince(r.Since(m.now()))
}

// ExportMetrics writes the current metrics as a Prometheus textfile. An empty
// path uses the configured one.
func (m *Manager) ExportMetrics(path string) (string, error) {
	if path == "" {
		path = m.cfg.MetricsTextfile
	}
	if path == "" {
		return "", ErrNoTextfile
	}

	m.observe(m.Peek())
	if err := m.collector.WriteTextfile(path); err != nil {
		return path, fmt.Errorf("exporting metrics: %w", err)
	}
	return path, nil
}

func (m *Manager) observe(snap Snapshot) {
	m.collector.Observe(metrics.Sample{
		Subscription: snap.Subscription,
		Period:       snap.Period,
		Limits:       snap.Limits,
		Metrics:      snap.Metrics,
	})
}
