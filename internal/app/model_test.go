package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
)

func newTestManager(t *testing.T) *services.Manager {
	t.Helper()
	cfg := config.Defaults(t.TempDir())
	mgr, err := services.NewManager(cfg,
		services.WithoutJournal(),
		services.WithNotifier(func(string, string) error { return nil }),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func readyModel(mgr *services.Manager) *Model {
	model := NewModel(mgr, time.Second)
	model.ready = true
	model.width = 80
	model.height = 24
	return model
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil, time.Second)
	if model == nil {
		t.Fatal("NewModel returned nil")
	}
	if model.state == nil {
		t.Error("State should be initialized")
	}
	if model.activeTab != TabDashboard {
		t.Error("Default tab should be Dashboard")
	}
	if len(model.tabs) != 3 {
		t.Errorf("Should have 3 tabs placeholder, got %d", len(model.tabs))
	}
}

func TestModel_Init(t *testing.T) {
	model := NewModel(nil, time.Second)
	if model.Init() == nil {
		t.Error("Init returned nil command")
	}
	if len(model.state.GetNotifications()) != 1 {
		t.Error("Init should show the loading notification")
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	model := NewModel(nil, time.Second)
	newModel, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 50})

	m, ok := newModel.(*Model)
	if !ok {
		t.Fatal("Update returned wrong model type")
	}
	if m.width != 100 || m.height != 50 {
		t.Errorf("size = %dx%d, want 100x50", m.width, m.height)
	}
	if !m.IsReady() {
		t.Error("Model should be ready after WindowSizeMsg")
	}
}

func TestModel_TabSwitching(t *testing.T) {
	model := readyModel(nil)

	model.Update(TabSwitchMsg{Tab: TabHistory})
	if model.GetActiveTab() != TabHistory {
		t.Errorf("ActiveTab = %v, want History", model.activeTab)
	}

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'3'}})
	if model.activeTab != TabInfo {
		t.Errorf("ActiveTab = %v, want Info", model.activeTab)
	}

	model.Update(tea.KeyMsg{Type: tea.KeyTab})
	if model.activeTab != TabDashboard {
		t.Errorf("next tab should wrap to Dashboard, got %v", model.activeTab)
	}

	model.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if model.activeTab != TabInfo {
		t.Errorf("prev tab should wrap to Info, got %v", model.activeTab)
	}
}

func TestModel_Update_Tick(t *testing.T) {
	model := NewModel(nil, time.Second)
	if _, cmd := model.Update(TickMsg{Time: time.Now()}); cmd == nil {
		t.Error("TickMsg should return a command (next tick)")
	}
}

func TestModel_Refresh(t *testing.T) {
	mgr := newTestManager(t)
	model := readyModel(mgr)

	cmd := model.startRefresh()
	if cmd == nil {
		t.Fatal("startRefresh should return a command")
	}
	if model.startRefresh() != nil {
		t.Error("a second refresh should not start while one is in flight")
	}

	msg, ok := cmd().(SnapshotLoadedMsg)
	if !ok {
		t.Fatalf("refresh produced %T", msg)
	}
	if msg.Err != nil {
		t.Fatalf("refresh error: %v", msg.Err)
	}

	model.Update(msg)
	if model.refreshing {
		t.Error("refreshing should clear once the snapshot arrives")
	}
	snap := model.state.Snapshot()
	if snap == nil || snap.Subscription != "max" {
		t.Fatalf("Snapshot = %+v", snap)
	}
	if model.state.IsLoading() {
		t.Error("state should stop loading")
	}
}

func TestModel_SnapshotWithError(t *testing.T) {
	model := NewModel(nil, time.Second)
	model.refreshing = true

	cmds := model.handleSnapshotLoaded(SnapshotLoadedMsg{
		Snapshot: services.Snapshot{PeriodReset: true},
		Err:      errors.New("disk full"),
	})
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want error and reset notifications", len(cmds))
	}
	if msg := cmds[0]().(AddNotificationMsg); msg.Type != NotificationError || !strings.Contains(msg.Message, "disk full") {
		t.Errorf("first notification = %+v", msg)
	}
	if msg := cmds[1]().(AddNotificationMsg); msg.Type != NotificationInfo {
		t.Errorf("second notification = %+v", msg)
	}
}

func TestModel_AnalysisResult(t *testing.T) {
	mgr := newTestManager(t)
	model := readyModel(mgr)

	msg, ok := model.commands.Analyze()().(AnalysisResultMsg)
	if !ok {
		t.Fatal("Analyze did not produce AnalysisResultMsg")
	}
	if msg.Err != nil {
		t.Fatalf("Analyze: %v", msg.Err)
	}

	cmds := model.handleAnalysisResult(msg)
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want report reload and notification", len(cmds))
	}
	note := cmds[1]().(AddNotificationMsg)
	if !strings.Contains(note.Message, "No throttle events") {
		t.Errorf("notification = %q", note.Message)
	}

	cmds = model.handleAnalysisResult(AnalysisResultMsg{Err: errors.New("boom")})
	if note := cmds[0]().(AddNotificationMsg); note.Type != NotificationError {
		t.Errorf("failed analysis should notify an error, got %+v", note)
	}
}

func TestModel_View(t *testing.T) {
	model := NewModel(nil, time.Second)

	if view := model.View(); !strings.Contains(view, "Loading...") {
		t.Error("View should show Loading when not ready")
	}

	model.ready = true
	model.width = 80
	model.height = 24

	view := model.View()
	if !strings.Contains(view, "Dashboard") {
		t.Error("View should show Dashboard tab")
	}
	if !strings.Contains(view, "not yet implemented") {
		t.Error("View should show placeholder text")
	}
}

func TestModel_Help(t *testing.T) {
	model := readyModel(nil)

	model.Update(ToggleHelpMsg{})
	if !model.showHelp {
		t.Error("showHelp should be true")
	}
	if view := model.View(); !strings.Contains(view, "Keyboard Shortcuts") {
		t.Error("View should show help modal")
	}

	model.handleKeyMsg(tea.KeyMsg{Type: tea.KeyEsc})
	if model.showHelp {
		t.Error("Esc should close help")
	}
}

func TestModel_Notifications(t *testing.T) {
	model := readyModel(nil)

	model.Update(AddNotificationMsg{Message: "Test Note", Type: NotificationInfo})
	if got := len(model.state.GetNotifications()); got != 1 {
		t.Errorf("Expected 1 notification, got %d", got)
	}
	if view := model.View(); !strings.Contains(view, "Test Note") {
		t.Error("View should show notification")
	}

	model.Update(RemoveNotificationMsg{ID: "nonexistent"})
	model.Update(ClearExpiredNotificationsMsg{})
	if got := len(model.state.GetNotifications()); got != 1 {
		t.Errorf("sticky notification should survive, got %d", got)
	}

	model.handleKeyMsg(tea.KeyMsg{Type: tea.KeyEsc})
	if got := len(model.state.GetNotifications()); got != 0 {
		t.Errorf("Esc should dismiss notifications, got %d", got)
	}
}

func TestModel_HandleServiceEvent(t *testing.T) {
	model := NewModel(nil, time.Second)

	model.handleServiceEvent(services.SnapshotEvent{Snapshot: services.Snapshot{Subscription: "pro"}})
	if snap := model.state.Snapshot(); snap == nil || snap.Subscription != "pro" {
		t.Error("SnapshotEvent should update the state")
	}

	cmd := model.handleServiceEvent(services.AlertEvent{Alert: models.Alert{
		Category: models.AlertCritical,
		Severity: models.SeverityCritical,
		Message:  "CRITICAL",
	}})
	if len(model.state.Alerts()) != 1 {
		t.Error("AlertEvent should be logged")
	}
	if msg := cmd().(AddNotificationMsg); msg.Type != NotificationError {
		t.Errorf("critical alert should be an error toast, got %v", msg.Type)
	}

	cmd = model.handleServiceEvent(services.AlertEvent{Alert: models.Alert{Severity: models.SeverityWarning}})
	if msg := cmd().(AddNotificationMsg); msg.Type != NotificationWarning {
		t.Errorf("warning alert should be a warning toast, got %v", msg.Type)
	}

	cmd = model.handleServiceEvent(services.ThresholdsLearnedEvent{Report: services.ThresholdReport{EventCount: 4}})
	if model.state.Thresholds() == nil {
		t.Error("ThresholdsLearnedEvent should store the report")
	}
	if cmd == nil {
		t.Error("ThresholdsLearnedEvent should notify")
	}

	if model.handleServiceEvent(services.ErrorEvent{Service: "test", Error: errors.New("x")}) == nil {
		t.Error("Error event should trigger notification command")
	}
}

func TestModel_ServiceSubscription(t *testing.T) {
	mgr := newTestManager(t)
	model := readyModel(mgr)

	msg, ok := subscribeToServicesCmd(mgr)().(SubscriptionEventMsg)
	if !ok {
		t.Fatal("subscribe did not produce SubscriptionEventMsg")
	}
	model.Update(msg)
	if model.eventChannel == nil {
		t.Fatal("event channel should be stored")
	}

	if _, err := mgr.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	event, ok := waitForServiceEventCmd(model.eventChannel)().(ServiceEventMsg)
	if !ok {
		t.Fatal("expected a ServiceEventMsg")
	}
	if _, ok := event.Event.(services.SnapshotEvent); !ok {
		t.Errorf("event = %T, want SnapshotEvent", event.Event)
	}
}

func TestModel_HandleSpinnerTick(t *testing.T) {
	model := NewModel(nil, time.Second)
	if _, cmd := model.Update(spinner.TickMsg{}); cmd == nil {
		t.Error("Spinner tick should return command")
	}
}

func TestModel_QuitKey(t *testing.T) {
	model := NewModel(nil, time.Second)
	cmd := model.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce QuitMsg")
	}
}

func TestTabID_String(t *testing.T) {
	tests := []struct {
		id   TabID
		want string
	}{
		{TabDashboard, "Dashboard"},
		{TabHistory, "History"},
		{TabInfo, "Info"},
		{TabID(999), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()
	if len(km.ShortHelp()) == 0 {
		t.Error("ShortHelp empty")
	}
	if len(km.FullHelp()) == 0 {
		t.Error("FullHelp empty")
	}
}

func TestModel_TabKeyAnnouncesSwitch(t *testing.T) {
	model := readyModel(nil)

	cmd := model.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})
	if cmd == nil {
		t.Fatal("switching tabs should return a command")
	}
	msg, ok := cmd().(TabSwitchMsg)
	if !ok || msg.Tab != TabHistory {
		t.Errorf("cmd() = %#v, want TabSwitchMsg{History}", msg)
	}
}
