package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

const (
	// DefaultTickInterval is used when no refresh interval is configured.
	DefaultTickInterval = 5 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second
)

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// refreshCmd runs a status pass through the alert gate.
func refreshCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		snap, err := mgr.Refresh()
		return SnapshotLoadedMsg{Snapshot: snap, Err: err}
	}
}

// loadThresholdsCmd reads the learner report.
func loadThresholdsCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return ThresholdsLoadedMsg{Report: mgr.ThresholdReport()}
	}
}

// analyzeCmd runs the learner over the throttle log.
func analyzeCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		res, err := mgr.AnalyzeThresholds()
		return AnalysisResultMsg{Analysis: res, Err: err}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, LongNotificationDuration)
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}

// Commands provides a public interface to the command functions.
type Commands struct {
	manager  *services.Manager
	interval time.Duration
}

// NewCommands creates a new Commands instance.
func NewCommands(mgr *services.Manager, interval time.Duration) *Commands {
	return &Commands{manager: mgr, interval: interval}
}

// Tick returns a tick command at the refresh interval.
func (c *Commands) Tick() tea.Cmd {
	return tickCmd(c.interval)
}

// Refresh returns a command that refreshes the usage snapshot.
func (c *Commands) Refresh() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return refreshCmd(c.manager)
}

// LoadThresholds returns a command that reads the learner report.
func (c *Commands) LoadThresholds() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return loadThresholdsCmd(c.manager)
}

// Analyze returns a command that runs the threshold learner.
func (c *Commands) Analyze() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return analyzeCmd(c.manager)
}

// NotifySuccess returns a command that adds a success notification.
func (c *Commands) NotifySuccess(message string) tea.Cmd {
	return notifySuccessCmd(message)
}

// NotifyError returns a command that adds an error notification.
func (c *Commands) NotifyError(message string) tea.Cmd {
	return notifyErrorCmd(message)
}

// NotifyWarning returns a command that adds a warning notification.
func (c *Commands) NotifyWarning(message string) tea.Cmd {
	return notifyWarningCmd(message)
}

// NotifyInfo returns a command that adds an info notification.
func (c *Commands) NotifyInfo(message string) tea.Cmd {
	return notifyInfoCmd(message)
}

// ClearNotification returns a command that removes a notification after a delay.
func (c *Commands) ClearNotification(id string, delay time.Duration) tea.Cmd {
	return clearNotificationCmd(id, delay)
}

// Quit returns a command that quits the application.
func (c *Commands) Quit() tea.Cmd {
	return tea.Quit
}
