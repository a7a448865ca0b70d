package info

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/app"
	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

func newTestManager(t *testing.T) *services.Manager {
	t.Helper()
	mgr, err := services.NewManager(config.Defaults(t.TempDir()),
		services.WithoutJournal(),
		services.WithNotifier(func(string, string) error { return nil }))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestNew(t *testing.T) {
	m := New(app.NewState(), nil)
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Init() != nil {
		t.Error("Init should return nil")
	}
}

func TestModel_ViewWithoutServices(t *testing.T) {
	m := New(app.NewState(), nil)
	m.SetSize(100, 80)

	view := m.View()
	for _, want := range []string{"Free", "Professional", "Max", "Configuration not loaded", "Learner state not loaded"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

func TestModel_View(t *testing.T) {
	mgr := newTestManager(t)
	state := app.NewState()
	state.SetThresholds(services.ThresholdReport{
		Subscription: "max",
		Mode:         models.ModeAdaptive,
		EventCount:   4,
		Confidence:   models.Confidence{Messages: 4, Tokens: 3, Sessions: 2},
		AdaptedLimits: map[string]models.AdaptedLimits{
			"max": {DailyMessages: 1200, DailyTokens: 8_000_000},
		},
	})

	m := New(state, mgr)
	m.SetSize(100, 120)
	view := m.View()

	for _, want := range []string{
		"▸ Max",
		"1,500",
		"10,000,000",
		"ADAPTIVE",
		"4 messages · 3 tokens · 2 sessions",
		"1,200 messages · 8,000,000 tokens",
		"(disabled)",
		mgr.Config().StorageDir,
		"About Claude Usage Monitor",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

func TestModel_Reload(t *testing.T) {
	mgr := newTestManager(t)
	m := New(app.NewState(), mgr)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}})
	if cmd == nil {
		t.Fatal("reload key should return a command")
	}
	msg, ok := cmd().(app.ThresholdsLoadedMsg)
	if !ok {
		t.Fatal("reload should produce ThresholdsLoadedMsg")
	}
	if msg.Report.Mode != models.ModeEstimates {
		t.Errorf("Mode = %q, want estimates", msg.Report.Mode)
	}

	if _, cmd := m.Update(app.TabSwitchMsg{Tab: app.TabInfo}); cmd == nil {
		t.Error("switching to the tab should reload the learner state")
	}
	if _, cmd := m.Update(app.TabSwitchMsg{Tab: app.TabDashboard}); cmd != nil {
		t.Error("switching elsewhere should not reload")
	}
}

func TestModel_ReloadWithoutServices(t *testing.T) {
	m := New(app.NewState(), nil)
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}}); cmd != nil {
		t.Error("reload without services should be a no-op")
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), nil)
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
	if len(m.FullHelp()) == 0 {
		t.Error("FullHelp empty")
	}
}
