package app

import (
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

// TickMsg is sent periodically to trigger a usage refresh.
type TickMsg struct {
	Time time.Time
}

// SnapshotLoadedMsg carries the result of a refresh. Err is set when a
// write failed; the snapshot is still usable.
type SnapshotLoadedMsg struct {
	Snapshot services.Snapshot
	Err      error
}

// ThresholdsLoadedMsg carries the learner report.
type ThresholdsLoadedMsg struct {
	Report services.ThresholdReport
}

// AnalysisResultMsg carries the result of an on-demand learning pass.
type AnalysisResultMsg struct {
	Analysis services.Analysis
	Err      error
}

// RefreshMsg requests an immediate refresh.
type RefreshMsg struct{}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// QuitMsg requests the application to quit.
type QuitMsg struct{}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}
