// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"sync"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"

	// maxAlertLog is how many fired alerts the state keeps.
	maxAlertLog = 50
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// State is the data shared between the root model and the tabs.
type State struct {
	mu sync.RWMutex

	snapshot    *services.Snapshot
	thresholds  *services.ThresholdReport
	alerts      []models.Alert
	lastUpdated time.Time
	loading     bool

	notifications   []Notification
	notificationSeq int
}

// NewState creates an empty state that is waiting for its first snapshot.
func NewState() *State {
	return &State{
		loading:       true,
		notifications: make([]Notification, 0),
	}
}

// SetSnapshot stores the latest usage snapshot.
func (s *State) SetSnapshot(snap services.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = &snap
	s.lastUpdated = time.Now()
	s.loading = false
}

// Snapshot returns the latest usage snapshot, or nil before the first one.
func (s *State) Snapshot() *services.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil
	}
	snap := *s.snapshot
	return &snap
}

// IsLoading reports whether no snapshot has arrived yet.
func (s *State) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetThresholds stores the learner report.
func (s *State) SetThresholds(r services.ThresholdReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds = &r
}

// Thresholds returns the learner report, or nil if none was loaded.
func (s *State) Thresholds() *services.ThresholdReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// AddAlert records a fired alert. Only the most recent alerts are kept.
func (s *State) AddAlert(a models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, a)
	if len(s.alerts) > maxAlertLog {
		s.alerts = s.alerts[len(s.alerts)-maxAlertLog:]
	}
}

// Alerts returns the fired alerts, newest first.
func (s *State) Alerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Alert, len(s.alerts))
	for i, a := range s.alerts {
		out[len(s.alerts)-1-i] = a
	}
	return out
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := time.Now().Format("20060102150405") + "-" + string(rune('A'+s.notificationSeq%26))

	notification := Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	}

	s.notifications = append(s.notifications, notification)

	// Keep only the last 10 notifications
	if len(s.notifications) > 10 {
		s.notifications = s.notifications[len(s.notifications)-10:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	s.notifications = active
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}

	return active
}

// ClearAllNotifications removes all notifications.
func (s *State) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]Notification, 0)
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// GetLastUpdated returns the last time a snapshot arrived.
func (s *State) GetLastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// TimeSinceUpdate returns the duration since the last snapshot.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.lastUpdated)
}
