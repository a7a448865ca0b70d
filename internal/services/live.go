package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services/sessions"
)

const pruneSchedule = "@hourly"

// Start launches the background work of the live monitor: the storage
// watcher, the scheduled learning pass and journal pruning. Start must be
// called at most once.
func (m *Manager) Start() error {
	scheduler := cron.New()
	if m.cfg.LearnSchedule != "" {
		if _, err := scheduler.AddFunc(m.cfg.LearnSchedule, m.scheduledLearn); err != nil {
			return fmt.Errorf("invalid learn schedule %q: %w", m.cfg.LearnSchedule, err)
		}
	}
	if m.database != nil && m.cfg.SnapshotRetention > 0 {
		if _, err := scheduler.AddFunc(pruneSchedule, m.pruneJournal); err != nil {
			return fmt.Errorf("failed to schedule pruning: %w", err)
		}
	}

	w, err := sessions.NewWatcher(m.cfg.SessionsDir, m.cfg.UsageFile)
	if err != nil {
		// The tick loop still refreshes; changes are just picked up later.
		logger.Warn("file watching disabled", "error", err)
	} else {
		m.watcher = w
	}

	m.scheduler = scheduler
	scheduler.Start()

	go m.routeEvents()
	return nil
}

// routeEvents turns storage changes into refreshes.
func (m *Manager) routeEvents() {
	var events <-chan sessions.Event
	if m.watcher != nil {
		events = m.watcher.Events()
	}

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			m.handleWatcherEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleWatcherEvent(event sessions.Event) {
	switch event.Type {
	case sessions.EventUsageChanged:
		m.opMu.Lock()
		status := m.periods.Load(m.now())
		m.opMu.Unlock()
		if status == models.LoadRejected {
			m.broadcast(ErrorEvent{
				Service: "period",
				Error:   fmt.Errorf("usage document at %s was rejected", m.cfg.UsageFile),
			})
		}
		_, _ = m.Refresh()

	case sessions.EventSessionsChanged:
		_, _ = m.Refresh()

	case sessions.EventError:
		m.broadcast(ErrorEvent{
			Service: "watcher",
			Error:   event.Error,
		})
	}
}

// Refresh runs a status pass and feeds the result through the alert gate.
// Alerts that fire are journaled, counted and optionally sent to the desktop.
func (m *Manager) Refresh() (Snapshot, error) {
	m.opMu.Lock()
	snap, err := m.statusLocked()
	snap.Alerts = m.gate.Evaluate(snap.Metrics, snap.Limits, snap.TakenAt)
	m.opMu.Unlock()

	for _, alert := range snap.Alerts {
		m.fire(snap, alert)
	}

	m.observe(snap)
	if m.cfg.MetricsTextfile != "" {
		if werr := m.collector.WriteTextfile(m.cfg.MetricsTextfile); werr != nil {
			logger.Warn("failed to write metrics textfile", "error", werr)
		}
	}

	if err != nil {
		m.broadcast(ErrorEvent{Service: "period", Error: err})
	}
	m.broadcast(SnapshotEvent{Snapshot: snap})
	return snap, err
}

func (m *Manager) fire(snap Snapshot, alert models.Alert) {
	logger.Info("alert fired", "category", alert.Category, "message", alert.Message)
	m.collector.AlertFired(alert.Category)

	if m.database != nil {
		rec := &models.AlertRecord{
			CreatedAt:    alert.FiredAt,
			Category:     alert.Category,
			Severity:     alert.Severity,
			Message:      alert.Message,
			Subscription: snap.Subscription,
			CombinedPct:  snap.Metrics.CombinedPct,
		}
		if err := m.database.InsertAlert(rec); err != nil {
			logger.Warn("failed to journal alert", "error", err)
		}
	}

	if m.cfg.DesktopNotify && m.notify != nil {
		if err := m.notify("Claude Usage Monitor", alert.Message); err != nil {
			logger.Debug("desktop notification failed", "error", err)
		}
	}

	m.broadcast(AlertEvent{Alert: alert})
}

func (m *Manager) scheduledLearn() {
	res, err := m.AnalyzeThresholds()
	if err != nil {
		m.broadcast(ErrorEvent{Service: "learner", Error: err})
		return
	}
	if res.Analyzed == 0 {
		return
	}
	m.broadcast(ThresholdsLearnedEvent{Report: m.ThresholdReport()})
}

func (m *Manager) pruneJournal() {
	cutoff := m.now().Add(-m.cfg.SnapshotRetention)
	removed, err := m.database.Prune(cutoff)
	if err != nil {
		logger.Warn("failed to prune usage journal", "error", err)
		return
	}
	if removed == 0 {
		return
	}
	logger.Info("pruned usage journal", "rows", removed, "cutoff", cutoff.Format(time.RFC3339))
	if err := m.database.Vacuum(); err != nil {
		logger.Warn("failed to vacuum usage journal", "error", err)
	}
}
