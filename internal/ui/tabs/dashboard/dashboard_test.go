package dashboard

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/app"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
	"github.com/j-veylop/claude-usage-monitor/internal/services/sessions"
)

func testSnapshot() services.Snapshot {
	now := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	return services.Snapshot{
		TakenAt:      now,
		Subscription: "pro",
		Limits: models.Limits{Tier: models.Tier{
			ID:                 "pro",
			Name:               "Professional",
			DailyMessages:      400,
			DailyTokens:        2_000_000,
			ConcurrentSessions: 4,
			WarningThreshold:   0.8,
			CriticalThreshold:  0.9,
		}},
		Period: models.UsagePeriod{
			StartDate:    now.Add(-6 * time.Hour),
			MessageCount: 380,
			TokenCount:   500_000,
		},
		Metrics: models.Metrics{
			MessagePct:      95,
			TokenPct:        25,
			SessionPct:      125,
			CombinedPct:     95,
			HoursUntilReset: 18,
			SafeRate:        1.1,
			CurrentRate:     63.3,
			RateRatio:       57.5,
			RateBand:        models.RateExceeding,
			Severity:        models.SeverityCritical,
			ActiveSessions:  5,
			SessionOverflow: true,
		},
		Sessions: sessions.Stats{
			Active: []models.SessionRecord{
				{PID: 4242, StartTime: now.Add(-90 * time.Minute), MessageCount: 12, EstimatedTokens: 3000, Active: true},
			},
			Total: 3,
		},
		LearningMode: models.ModeEstimates,
		EventCount:   1,
	}
}

func TestNew(t *testing.T) {
	m := New(app.NewState())
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Init() == nil {
		t.Error("Init returned nil")
	}
}

func TestModel_ViewLoading(t *testing.T) {
	m := New(app.NewState())
	m.SetSize(80, 24)

	if !strings.Contains(m.View(), "Reading usage") {
		t.Error("View should show the loading spinner before the first snapshot")
	}
}

func TestModel_View(t *testing.T) {
	state := app.NewState()
	state.SetSnapshot(testSnapshot())
	state.AddAlert(models.Alert{
		FiredAt:  time.Now(),
		Severity: models.SeverityCritical,
		Message:  "Claude usage critical",
	})

	m := New(state)
	m.SetSize(120, 80)
	view := m.View()

	for _, want := range []string{
		"Professional",
		"[ESTIMATED]",
		"learning from 1 throttle events",
		"Messages",
		"380 / 400",
		"500,000 / 2,000,000",
		"5 / 4 active",
		"18h 00m",
		"· at ",
		"updated ",
		"CRITICAL",
		"TOO MANY CONCURRENT SESSIONS",
		"EXCEEDING",
		"pid 4242",
		"Claude usage critical",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

func TestModel_ViewHealthy(t *testing.T) {
	snap := testSnapshot()
	snap.Limits.IsAdapted = true
	snap.LearningMode = models.ModeAdaptive
	snap.Metrics = models.Metrics{CombinedPct: 10, Severity: models.SeverityOK, RateBand: models.RateSafe}
	snap.Sessions = sessions.Stats{}

	state := app.NewState()
	state.SetSnapshot(snap)
	m := New(state)
	m.SetSize(120, 80)
	view := m.View()

	for _, want := range []string{"[ADAPTED]", "within safe limits", "No active sessions", "No alerts"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
	if strings.Contains(view, "learning from") {
		t.Error("adaptive mode should not show the learning line")
	}
}

func TestModel_Animation(t *testing.T) {
	state := app.NewState()
	m := New(state)

	if m.syncAnimationTargets(time.Now()) {
		t.Error("nothing should animate without a snapshot")
	}

	state.SetSnapshot(testSnapshot())
	start := time.Now()
	if _, cmd := m.Update(app.SnapshotLoadedMsg{}); cmd == nil {
		t.Error("a new snapshot should start the animation")
	}

	m.Update(animationTickMsg(start.Add(750 * time.Millisecond)))
	mid := m.animations[barMessages].CurrentPercent
	if mid <= 0 || mid >= 95 {
		t.Errorf("mid-animation percent = %v, want between 0 and 95", mid)
	}

	m.Update(animationTickMsg(start.Add(2 * time.Second)))
	if got := m.animations[barMessages].CurrentPercent; got != 95 {
		t.Errorf("final percent = %v, want 95", got)
	}
	if got := m.animations[barSessions].CurrentPercent; got != 100 {
		t.Errorf("session bar should be clamped to 100, got %v", got)
	}
	if cmd := m.handleAnimationTick(animationTickMsg(start.Add(3 * time.Second))); cmd != nil {
		t.Error("animation should stop once every bar reached its target")
	}
}

func TestModel_KeyBindings(t *testing.T) {
	state := app.NewState()
	state.SetSnapshot(testSnapshot())
	m := New(state)
	m.SetSize(80, 10)
	_ = m.View()

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	if m.viewport.AtTop() {
		t.Error("G should scroll to the bottom")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}})
	if !m.viewport.AtTop() {
		t.Error("g should scroll to the top")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState())
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
	if len(m.FullHelp()) == 0 {
		t.Error("FullHelp empty")
	}
}
