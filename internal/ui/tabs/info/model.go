// Package info provides the info tab: configuration, tier limits and the
// threshold learner state.
package info

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/app"
	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
	"github.com/j-veylop/claude-usage-monitor/internal/services/quota"
)

// keyMap defines the key bindings specific to the info tab.
type keyMap struct {
	Reload key.Binding
	Up     key.Binding
	Down   key.Binding
}

// defaultKeyMap returns the default key bindings for the info tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Reload: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "reload learner"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
	}
}

// Model represents the info tab state.
type Model struct {
	state    *app.State
	services *services.Manager
	config   *config.Config
	catalog  *quota.Catalog
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model
}

// New creates a new info model. A nil manager shows the built-in tiers and no
// configuration.
func New(state *app.State, svc *services.Manager) *Model {
	m := &Model{
		state:    state,
		services: svc,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
		catalog:  quota.NewCatalog(nil),
	}
	if svc != nil {
		m.config = svc.Config()
		m.catalog = svc.Catalog()
	}
	return m
}

// Init initializes the info tab.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the info tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case app.TabSwitchMsg:
		if msg.Tab == app.TabInfo {
			cmds = append(cmds, m.reloadCmd())
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Reload):
			cmds = append(cmds, m.reloadCmd())
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// reloadCmd reads the learner state again.
func (m *Model) reloadCmd() tea.Cmd {
	if m.services == nil {
		return nil
	}
	mgr := m.services
	return func() tea.Msg {
		return app.ThresholdsLoadedMsg{Report: mgr.ThresholdReport()}
	}
}

// SetSize sets the available size for the info tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.Reload,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Reload},
		{m.keys.Up, m.keys.Down},
	}
}
