// Package history provides the history tab for closed periods and the usage
// journal.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/app"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

const (
	// allTimeDays bounds the closed period lookup for the all time range.
	allTimeDays = 3650
	alertLimit  = 10
)

// keyMap defines the key bindings specific to the history tab.
type keyMap struct {
	ToggleRange key.Binding
	Refresh     key.Binding
	Up          key.Binding
	Down        key.Binding
}

// defaultKeyMap returns the default key bindings for the history tab.
func defaultKeyMap() keyMap {
	return keyMap{
		ToggleRange: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle time range"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// historyData is everything the tab shows for one time range.
type historyData struct {
	periods []models.HistoryEntry
	daily   []models.DailyUsage
	samples []models.UsageSnapshot
	alerts  []models.AlertRecord
	counts  map[models.AlertCategory]int
	journal bool
}

func (d *historyData) hasData() bool {
	return len(d.periods) > 0 || len(d.samples) > 0 || len(d.alerts) > 0
}

// historyLoadedMsg is sent when history data is loaded.
type historyLoadedMsg struct {
	data *historyData
}

// historyErrorMsg is sent when there's an error loading history.
type historyErrorMsg struct {
	err string
}

// Model represents the history tab state.
type Model struct {
	state    *app.State
	services *services.Manager
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model

	timeRange   models.TimeRange
	historyData *historyData
	loading     bool
	lastRefresh time.Time
	errorMsg    string
}

// New creates a new history model.
func New(state *app.State, svc *services.Manager) *Model {
	return &Model{
		state:     state,
		services:  svc,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
		timeRange: models.TimeRange7Days,
		loading:   true,
	}
}

// Init initializes the history tab.
func (m *Model) Init() tea.Cmd {
	return m.loadHistoryCmd()
}

// loadHistoryCmd creates a command to load history data for the current
// time range. A disabled journal only hides the journal sections.
func (m *Model) loadHistoryCmd() tea.Cmd {
	mgr := m.services
	r := m.timeRange

	return func() tea.Msg {
		if mgr == nil {
			return historyErrorMsg{err: "Services not initialized"}
		}

		days := r.Days()
		if days == 0 {
			days = allTimeDays
		}
		data := &historyData{
			periods: mgr.History(days),
			journal: true,
		}

		daily, err := mgr.DailyUsage(r)
		if errors.Is(err, services.ErrJournalDisabled) {
			data.journal = false
			return historyLoadedMsg{data: data}
		}
		if err != nil {
			return historyErrorMsg{err: err.Error()}
		}
		data.daily = daily

		if data.samples, err = mgr.UsageSnapshots(r); err != nil {
			return historyErrorMsg{err: err.Error()}
		}
		if data.alerts, err = mgr.RecentAlerts(alertLimit); err != nil {
			return historyErrorMsg{err: err.Error()}
		}
		if data.counts, err = mgr.AlertCounts(r); err != nil {
			return historyErrorMsg{err: err.Error()}
		}
		return historyLoadedMsg{data: data}
	}
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case historyLoadedMsg:
		m.historyData = msg.data
		m.loading = false
		m.lastRefresh = time.Now()
		m.errorMsg = ""

	case historyErrorMsg:
		m.loading = false
		m.errorMsg = msg.err
		cmds = append(cmds, func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  fmt.Sprintf("History error: %s", msg.err),
				Duration: app.LongNotificationDuration,
			}
		})

	case app.TabSwitchMsg:
		if msg.Tab == app.TabHistory {
			cmds = append(cmds, m.reload())
		}

	case app.ServiceEventMsg:
		// New alerts land in the journal; closed periods only change on reset.
		if _, ok := msg.Event.(services.AlertEvent); ok {
			cmds = append(cmds, m.reload())
		}

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, tea.Batch(cmds...)
}

// reload starts a load unless one is already running.
func (m *Model) reload() tea.Cmd {
	if m.loading {
		return nil
	}
	m.loading = true
	return m.loadHistoryCmd()
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd
	switch {
	case key.Matches(msg, m.keys.ToggleRange):
		m.timeRange = m.timeRange.Next()
		m.loading = true
		cmds = append(cmds, m.loadHistoryCmd())

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		cmds = append(cmds, m.loadHistoryCmd())

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ToggleRange,
		m.keys.Refresh,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleRange, m.keys.Refresh},
		{m.keys.Up, m.keys.Down},
	}
}
