// Package dashboard provides the live usage tab.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/app"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/components"
)

// Animated bars.
const (
	barMessages = "messages"
	barTokens   = "tokens"
	barSessions = "sessions"
	barCombined = "combined"
)

const animationDuration = 1.5 // seconds

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// keyMap defines the key bindings specific to the dashboard tab.
type keyMap struct {
	ScrollDown key.Binding
	ScrollUp   key.Binding
	Top        key.Binding
	Bottom     key.Binding
}

// defaultKeyMap returns the default key bindings for the dashboard tab.
func defaultKeyMap() keyMap {
	return keyMap{
		ScrollDown: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
	}
}

// AnimationState tracks the state of an animation.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Model represents the dashboard tab state.
type Model struct {
	state          *app.State
	animations     map[string]*AnimationState
	spinner        components.LoadingSpinner
	keys           keyMap
	viewport       viewport.Model
	width          int
	height         int
	animationFrame int
}

// New creates a new dashboard model.
func New(state *app.State) *Model {
	return &Model{
		state:      state,
		spinner:    components.NewSpinner("Reading usage..."),
		keys:       defaultKeyMap(),
		viewport:   viewport.New(0, 0),
		animations: make(map[string]*AnimationState),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(msg))

	case app.SnapshotLoadedMsg, app.ServiceEventMsg:
		if m.syncAnimationTargets(time.Now()) {
			cmds = append(cmds, animationTickCmd())
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(msg animationTickMsg) tea.Cmd {
	m.animationFrame++
	now := time.Time(msg)

	animating := m.syncAnimationTargets(now)
	m.stepAnimations(now)

	if animating || m.state.IsLoading() {
		return animationTickCmd()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.ScrollDown(1)
	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// syncAnimationTargets points every bar at the latest snapshot and reports
// whether any bar still has to move.
func (m *Model) syncAnimationTargets(now time.Time) bool {
	snap := m.state.Snapshot()
	if snap == nil {
		return false
	}

	targets := map[string]float64{
		barMessages: snap.Metrics.MessagePct,
		barTokens:   snap.Metrics.TokenPct,
		barSessions: snap.Metrics.SessionPct,
		barCombined: snap.Metrics.CombinedPct,
	}

	animating := false
	for name, target := range targets {
		if m.updateAnimationState(name, min(100, max(0, target)), now) {
			animating = true
		}
	}
	return animating
}

func (m *Model) updateAnimationState(animKey string, target float64, now time.Time) bool {
	state, exists := m.animations[animKey]
	if !exists {
		state = &AnimationState{StartTime: now}
		m.animations[animKey] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

func (m *Model) stepAnimations(now time.Time) {
	for _, state := range m.animations {
		if state.CurrentPercent == state.TargetPercent {
			continue
		}
		elapsed := now.Sub(state.StartTime).Seconds()
		if elapsed >= animationDuration {
			state.CurrentPercent = state.TargetPercent
			continue
		}
		progress := elapsed / animationDuration
		ease := 1.0 - (1.0-progress)*(1.0-progress)
		state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
	}
}

// displayPercent returns the animated value of a bar, or actual when the bar
// has not been animated yet.
func (m *Model) displayPercent(animKey string, actual float64) float64 {
	if anim, ok := m.animations[animKey]; ok {
		return anim.CurrentPercent
	}
	return actual
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ScrollDown,
		m.keys.ScrollUp,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ScrollDown, m.keys.ScrollUp},
		{m.keys.Top, m.keys.Bottom},
	}
}
