// Package services provides service orchestration for the CLI and the TUI.
package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/robfig/cron/v3"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/db"
	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/metrics"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services/alerts"
	"github.com/j-veylop/claude-usage-monitor/internal/services/learner"
	"github.com/j-veylop/claude-usage-monitor/internal/services/period"
	"github.com/j-veylop/claude-usage-monitor/internal/services/quota"
	"github.com/j-veylop/claude-usage-monitor/internal/services/sessions"
)

type (
	// SnapshotEvent is emitted after every refresh.
	SnapshotEvent struct {
		Snapshot Snapshot
	}

	// AlertEvent is emitted when an alert passes the gate.
	AlertEvent struct {
		Alert models.Alert
	}

	// ThresholdsLearnedEvent is emitted after a scheduled learning pass.
	ThresholdsLearnedEvent struct {
		Report ThresholdReport
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (SnapshotEvent) isServiceEvent()          {}
func (AlertEvent) isServiceEvent()             {}
func (ThresholdsLearnedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()             {}

// Manager orchestrates the usage services and event routing.
type Manager struct {
	mu          sync.RWMutex
	opMu        sync.Mutex
	cfg         *config.Config
	catalog     *quota.Catalog
	periods     *period.Store
	learner     *learner.Learner
	gate        *alerts.Gate
	analyzer    quota.Options
	database    *db.DB
	collector   *metrics.Collector
	watcher     *sessions.Watcher
	scheduler   *cron.Cron
	stopChan    chan struct{}
	subscribers []chan ServiceEvent
	closeOnce   sync.Once

	now    func() time.Time
	notify func(title, body string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithNotifier replaces the desktop notifier.
func WithNotifier(notify func(title, body string) error) Option {
	return func(m *Manager) { m.notify = notify }
}

// WithDisplayResetWindow changes the period length used for the countdown
// and the safe rate only. Periods on disk still roll over on the configured
// window. Non-positive values are ignored.
func WithDisplayResetWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.analyzer.ResetWindow = d
		}
	}
}

// WithoutJournal skips opening the sqlite journal.
func WithoutJournal() Option {
	return func(m *Manager) { m.cfg.DatabasePath = "" }
}

// NewManager creates a service manager and loads the persisted documents.
// Load problems are logged and fall back to defaults; a journal that cannot
// be opened disables snapshots and the alert log.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Heuristics.Validate(); err != nil {
		return nil, fmt.Errorf("invalid heuristics: %w", err)
	}

	local := *cfg
	m := &Manager{
		cfg:       &local,
		catalog:   quota.NewCatalog(cfg.Tiers),
		gate:      alerts.NewGate(cfg.Heuristics.Cooldowns),
		collector: metrics.NewCollector(),
		stopChan:  make(chan struct{}),
		now:       time.Now,
		notify: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
		analyzer: quota.Options{
			ResetWindow:    cfg.Heuristics.ResetWindow,
			RatePerSession: cfg.Heuristics.RatePerSession,
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	now := m.now()
	m.periods = period.New(m.cfg.UsageFile, m.cfg.Heuristics.ResetWindow)
	if status := m.periods.Load(now); status != models.LoadLoaded {
		logger.Debug("usage document", "status", status, "path", m.cfg.UsageFile)
	}

	m.learner = learner.New(m.cfg.ThresholdFile, learner.OptionsFrom(m.cfg.Heuristics))
	if status := m.learner.Load(now); status != models.LoadLoaded {
		logger.Debug("threshold document", "status", status, "path", m.cfg.ThresholdFile)
	}

	if m.cfg.DatabasePath != "" {
		database, err := db.New(m.cfg.DatabasePath)
		if err != nil {
			logger.Warn("usage journal disabled", "path", m.cfg.DatabasePath, "error", err)
		} else {
			m.database = database
		}
	}

	return m, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Catalog returns the tier catalog.
func (m *Manager) Catalog() *quota.Catalog {
	return m.catalog
}

// Database returns the journal, or nil when it is disabled.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Metrics returns the Prometheus collector.
func (m *Manager) Metrics() *metrics.Collector {
	return m.collector
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events. Slow
// subscribers miss events rather than block the manager.
func (m *Manager) Subscribe() chan ServiceEvent {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Close stops background work and closes the journal.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		close(m.stopChan)

		if m.scheduler != nil {
			<-m.scheduler.Stop().Done()
		}

		if m.watcher != nil {
			if err := m.watcher.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if m.database != nil {
			if err := m.database.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})

	return errors.Join(errs...)
}
