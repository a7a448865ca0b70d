package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services/period"
	"github.com/j-veylop/claude-usage-monitor/internal/services/quota"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type notifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *notifier) Notify(_, body string) error {
	n.mu.Lock()
	n.calls = append(n.calls, body)
	n.mu.Unlock()
	return nil
}

func (n *notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *testClock, *config.Config) {
	t.Helper()
	cfg := config.Defaults(t.TempDir())
	clock := &testClock{now: t0}
	opts = append([]Option{WithClock(clock.Now), WithNotifier(func(string, string) error { return nil })}, opts...)

	mgr, err := NewManager(cfg, opts...)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr, clock, cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestNewManager(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	if mgr.Database() == nil {
		t.Error("Database should be initialized")
	}
	if mgr.Catalog() == nil {
		t.Error("Catalog should be initialized")
	}
	if mgr.Metrics() == nil {
		t.Error("Metrics collector should be initialized")
	}
	if got := mgr.Limits().ID; got != quota.TierMax {
		t.Errorf("default tier = %q, want %q", got, quota.TierMax)
	}
}

func TestNewManager_RejectsInvalidHeuristics(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	cfg.Heuristics.MessageFactor = 0

	if _, err := NewManager(cfg); err == nil {
		t.Error("expected invalid heuristics to be rejected")
	}
}

func TestManager_Record(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	p, err := mgr.Record(3)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if p.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", p.MessageCount)
	}

	if _, err := mgr.Record(0); !errors.Is(err, period.ErrInvalidCount) {
		t.Errorf("Record(0) error = %v, want ErrInvalidCount", err)
	}
}

func TestManager_SetSubscription(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	tier, err := mgr.SetSubscription("PRO")
	if err != nil {
		t.Fatalf("SetSubscription failed: %v", err)
	}
	if tier.Name != "Professional" {
		t.Errorf("tier name = %q", tier.Name)
	}
	if got := mgr.Limits().DailyMessages; got != 400 {
		t.Errorf("DailyMessages = %d, want 400", got)
	}

	if _, err := mgr.SetSubscription("ultra"); !errors.Is(err, quota.ErrUnknownTier) {
		t.Errorf("SetSubscription(ultra) error = %v, want ErrUnknownTier", err)
	}
	if got := mgr.Limits().ID; got != quota.TierPro {
		t.Errorf("failed switch changed the tier to %q", got)
	}
}

func TestManager_StatusAggregatesSessions(t *testing.T) {
	mgr, _, cfg := newTestManager(t)

	start := t0.Add(time.Minute).Format("2006-01-02T15:04:05.000Z")
	writeFile(t, filepath.Join(cfg.SessionsDir, "session-1.json"),
		fmt.Sprintf(`{"pid":1,"startTime":%q,"active":true,"estimatedTokens":5000}`, start))
	writeFile(t, filepath.Join(cfg.SessionsDir, "session-2.json"),
		fmt.Sprintf(`{"pid":2,"startTime":%q,"active":false,"estimatedTokens":1000}`, start))
	writeFile(t, filepath.Join(cfg.SessionsDir, "session-3.json"),
		`{"pid":3,"startTime":"2020-01-01T00:00:00.000Z","active":false,"estimatedTokens":999999}`)

	snap, err := mgr.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if snap.Period.TokenCount != 6000 {
		t.Errorf("TokenCount = %d, want 6000", snap.Period.TokenCount)
	}
	if snap.Period.SessionCount != 2 {
		t.Errorf("SessionCount = %d, want 2", snap.Period.SessionCount)
	}
	if snap.Metrics.ActiveSessions != 1 || snap.Sessions.ActiveCount() != 1 {
		t.Errorf("active sessions = %d/%d, want 1", snap.Metrics.ActiveSessions, snap.Sessions.ActiveCount())
	}
	if snap.Period.PeakConcurrentSessions != 1 {
		t.Errorf("Peak = %d, want 1", snap.Period.PeakConcurrentSessions)
	}

	snaps, err := mgr.UsageSnapshots(models.TimeRangeAllTime)
	if err != nil {
		t.Fatalf("UsageSnapshots failed: %v", err)
	}
	if len(snaps) != 1 || snaps[0].TokenCount != 6000 {
		t.Errorf("journaled snapshots = %+v", snaps)
	}
}

func TestManager_StatusRollsOverPeriod(t *testing.T) {
	mgr, clock, _ := newTestManager(t)

	if _, err := mgr.Record(5); err != nil {
		t.Fatal(err)
	}

	clock.Advance(25 * time.Hour)
	snap, err := mgr.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !snap.PeriodReset {
		t.Error("expected the period to roll over")
	}
	if snap.Period.MessageCount != 0 {
		t.Errorf("MessageCount after reset = %d", snap.Period.MessageCount)
	}

	snap, _ = mgr.Status()
	if snap.PeriodReset {
		t.Error("second status must not roll over again")
	}

	history := mgr.History(7)
	if len(history) != 1 {
		t.Fatalf("History = %d entries, want 1", len(history))
	}
	entry := history[0]
	if entry.Period.MessageCount != 5 {
		t.Errorf("archived MessageCount = %d", entry.Period.MessageCount)
	}
	// max tier: 5 / 1500 messages
	if want := 5.0 * 100 / 1500; entry.Percent != want {
		t.Errorf("Percent = %v, want %v", entry.Percent, want)
	}
	if entry.Severity != models.SeverityOK {
		t.Errorf("Severity = %s", entry.Severity)
	}
}

func TestManager_Clear(t *testing.T) {
	mgr, clock, _ := newTestManager(t)
	if _, err := mgr.SetSubscription("free"); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Record(4); err != nil {
		t.Fatal(err)
	}
	clock.Advance(25 * time.Hour)
	if _, err := mgr.Status(); err != nil {
		t.Fatal(err)
	}

	if err := mgr.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if len(mgr.History(30)) != 0 {
		t.Error("history should be wiped")
	}
	if got := mgr.Peek().Subscription; got != "free" {
		t.Errorf("subscription after clear = %q, want free", got)
	}
}

func TestManager_ProcessSessions(t *testing.T) {
	mgr, _, cfg := newTestManager(t)
	start := t0.Add(time.Minute).Format(time.RFC3339)
	writeFile(t, filepath.Join(cfg.SessionsDir, "session-9.json"),
		fmt.Sprintf(`{"pid":9,"startTime":%q,"active":true,"estimatedTokens":42}`, start))

	sum, err := mgr.ProcessSessions()
	if err != nil {
		t.Fatal(err)
	}
	if sum.Tokens != 42 || sum.Active != 1 || !sum.Changed {
		t.Errorf("summary = %+v", sum)
	}

	again, err := mgr.ProcessSessions()
	if err != nil {
		t.Fatal(err)
	}
	if again.Changed {
		t.Error("second aggregation should not change anything")
	}
}

func TestManager_ExportCurrent(t *testing.T) {
	mgr, clock, _ := newTestManager(t)
	if _, err := mgr.Record(2); err != nil {
		t.Fatal(err)
	}
	clock.Advance(90 * time.Minute)

	exp := mgr.ExportCurrent()
	if exp.Subscription != period.DefaultSubscription {
		t.Errorf("Subscription = %q", exp.Subscription)
	}
	if exp.HoursIntoPeriod != 1.5 {
		t.Errorf("HoursIntoPeriod = %v, want 1.5", exp.HoursIntoPeriod)
	}
	if exp.CurrentPeriod.MessageCount != 2 {
		t.Errorf("MessageCount = %d", exp.CurrentPeriod.MessageCount)
	}
	if exp.Metrics.HoursUntilReset != 22.5 {
		t.Errorf("HoursUntilReset = %v, want 22.5", exp.Metrics.HoursUntilReset)
	}
}

func TestManager_AnalyzeThresholds(t *testing.T) {
	mgr, _, cfg := newTestManager(t)
	if _, err := mgr.SetSubscription("pro"); err != nil {
		t.Fatal(err)
	}

	analysis, err := mgr.AnalyzeThresholds()
	if err != nil {
		t.Fatalf("AnalyzeThresholds on empty log failed: %v", err)
	}
	if analysis.Analyzed != 0 || analysis.Adaptive {
		t.Errorf("empty analysis = %+v", analysis)
	}

	for i, msgs := range []int{420, 380, 450} {
		ts := t0.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		writeFile(t, filepath.Join(cfg.ThrottleDir, fmt.Sprintf("throttle-%d.json", i)),
			fmt.Sprintf(`{"subscription":"pro","messageCount":%d,"tokenCount":0,"activeSessions":3,"timestamp":%q}`, msgs, ts))
	}

	analysis, err = mgr.AnalyzeThresholds()
	if err != nil {
		t.Fatalf("AnalyzeThresholds failed: %v", err)
	}
	if analysis.Analyzed != 3 || !analysis.Adaptive {
		t.Errorf("analysis = %+v", analysis)
	}

	limits := mgr.Limits()
	if !limits.IsAdapted {
		t.Error("limits should be adapted")
	}
	if limits.DailyMessages != 342 {
		t.Errorf("DailyMessages = %d, want 342", limits.DailyMessages)
	}
	if limits.ConcurrentSessions != 2 {
		t.Errorf("ConcurrentSessions = %d, want 2", limits.ConcurrentSessions)
	}
	if limits.DailyTokens != 2000000 {
		t.Errorf("DailyTokens = %d, want tier default", limits.DailyTokens)
	}

	report := mgr.ThresholdReport()
	if report.Mode != models.ModeAdaptive || report.EventCount != 3 {
		t.Errorf("report = %+v", report)
	}
	if report.Confidence.Messages != 60 || report.Confidence.Sessions != 75 {
		t.Errorf("confidence = %+v", report.Confidence)
	}
}

func TestManager_RefreshFiresAlertsOnce(t *testing.T) {
	n := &notifier{}
	mgr, clock, _ := newTestManager(t, WithNotifier(n.Notify))
	if _, err := mgr.SetSubscription("free"); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Record(36); err != nil {
		t.Fatal(err)
	}

	snap, err := mgr.Refresh()
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if snap.Metrics.Severity != models.SeverityCritical {
		t.Fatalf("Severity = %s, want critical", snap.Metrics.Severity)
	}
	if len(snap.Alerts) != 1 || snap.Alerts[0].Category != models.AlertCritical {
		t.Fatalf("alerts = %+v", snap.Alerts)
	}
	if n.Count() != 1 {
		t.Errorf("notifications = %d, want 1", n.Count())
	}

	clock.Advance(time.Minute)
	snap, _ = mgr.Refresh()
	if len(snap.Alerts) != 0 {
		t.Errorf("alerts within cooldown = %+v", snap.Alerts)
	}

	clock.Advance(5 * time.Minute)
	snap, _ = mgr.Refresh()
	if len(snap.Alerts) != 1 {
		t.Errorf("alerts after cooldown = %+v", snap.Alerts)
	}

	recent, err := mgr.RecentAlerts(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Errorf("journaled alerts = %d, want 2", len(recent))
	}
	if recent[0].Subscription != "free" {
		t.Errorf("journaled subscription = %q", recent[0].Subscription)
	}

	counts, err := mgr.AlertCounts(models.TimeRangeAllTime)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.AlertCritical] != 2 {
		t.Errorf("critical count = %d, want 2", counts[models.AlertCritical])
	}
}

func TestManager_RefreshWithoutDesktopNotify(t *testing.T) {
	n := &notifier{}
	cfg := config.Defaults(t.TempDir())
	cfg.DesktopNotify = false
	mgr, err := NewManager(cfg, WithClock(func() time.Time { return t0 }), WithNotifier(n.Notify), WithoutJournal())
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	if _, err := mgr.SetSubscription("free"); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Record(40); err != nil {
		t.Fatal(err)
	}
	snap, _ := mgr.Refresh()
	if len(snap.Alerts) == 0 {
		t.Fatal("expected an alert")
	}
	if n.Count() != 0 {
		t.Errorf("notifications = %d, want 0", n.Count())
	}
}

func TestManager_WithoutJournal(t *testing.T) {
	mgr, _, _ := newTestManager(t, WithoutJournal())

	if mgr.Database() != nil {
		t.Error("journal should be disabled")
	}
	if _, err := mgr.UsageSnapshots(models.TimeRange7Days); !errors.Is(err, ErrJournalDisabled) {
		t.Errorf("UsageSnapshots error = %v", err)
	}
	if _, err := mgr.RecentAlerts(5); !errors.Is(err, ErrJournalDisabled) {
		t.Errorf("RecentAlerts error = %v", err)
	}
	if _, err := mgr.AlertCounts(models.TimeRange24Hours); !errors.Is(err, ErrJournalDisabled) {
		t.Errorf("AlertCounts error = %v", err)
	}
	if _, err := mgr.Status(); err != nil {
		t.Errorf("Status without journal failed: %v", err)
	}
}

func TestManager_ExportMetrics(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	if _, err := mgr.Record(7); err != nil {
		t.Fatal(err)
	}

	if _, err := mgr.ExportMetrics(""); !errors.Is(err, ErrNoTextfile) {
		t.Errorf("ExportMetrics without path error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "usage.prom")
	got, err := mgr.ExportMetrics(path)
	if err != nil {
		t.Fatalf("ExportMetrics failed: %v", err)
	}
	if got != path {
		t.Errorf("path = %q", got)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `claude_usage_period_messages{subscription="max"} 7`) {
		t.Errorf("textfile missing message gauge:\n%s", data)
	}
}

func TestManager_Subscription(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	ch := mgr.Subscribe()

	if _, err := mgr.Refresh(); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		if _, ok := ev.(SnapshotEvent); !ok {
			t.Errorf("expected SnapshotEvent, got %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	mgr.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestManager_StartAndClose(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	if err := mgr.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestManager_StartRejectsBadSchedule(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	cfg.LearnSchedule = "every tuesday"
	mgr, err := NewManager(cfg, WithoutJournal())
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()

	if err := mgr.Start(); err == nil {
		t.Error("expected an invalid schedule to be rejected")
	}
}

func TestManager_PruneJournal(t *testing.T) {
	mgr, clock, _ := newTestManager(t)

	if _, err := mgr.Refresh(); err != nil {
		t.Fatal(err)
	}
	samples, err := mgr.UsageSnapshots(models.TimeRangeAllTime)
	if err != nil || len(samples) != 1 {
		t.Fatalf("samples = %d, err = %v", len(samples), err)
	}

	clock.Advance(mgr.Config().SnapshotRetention + 24*time.Hour)
	mgr.pruneJournal()

	samples, err = mgr.UsageSnapshots(models.TimeRangeAllTime)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 0 {
		t.Errorf("samples after prune = %d, want 0", len(samples))
	}
}

func TestManager_DisplayResetWindowKeepsStoredPeriod(t *testing.T) {
	mgr, clock, cfg := newTestManager(t, WithDisplayResetWindow(6*time.Hour))

	if _, err := mgr.Record(5); err != nil {
		t.Fatal(err)
	}
	clock.Advance(7 * time.Hour)

	snap, err := mgr.Refresh()
	if err != nil {
		t.Fatal(err)
	}
	if snap.PeriodReset {
		t.Error("a 6h display window must not roll the stored period over")
	}
	if snap.Period.MessageCount != 5 {
		t.Errorf("MessageCount = %d, want 5", snap.Period.MessageCount)
	}
	if snap.Metrics.HoursUntilReset != 0 {
		t.Errorf("HoursUntilReset = %v, want 0 past the display window", snap.Metrics.HoursUntilReset)
	}
	if h := mgr.History(7); len(h) != 0 {
		t.Errorf("History = %d entries, want 0", len(h))
	}

	reloaded, err := NewManager(cfg, WithClock(clock.Now), WithoutJournal())
	if err != nil {
		t.Fatal(err)
	}
	defer reloaded.Close()
	if got := reloaded.ExportCurrent().CurrentPeriod.MessageCount; got != 5 {
		t.Errorf("persisted MessageCount = %d, want 5", got)
	}
	if h := reloaded.History(7); len(h) != 0 {
		t.Errorf("persisted history = %d entries, want 0", len(h))
	}
}

func TestManager_ExportCurrentCapsElapsedHours(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		want    float64
	}{
		{"FreshPeriod", 0, 0},
		{"MidPeriod", 6 * time.Hour, 6},
		{"ExpiredNotRolled", 30 * time.Hour, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, clock, _ := newTestManager(t, WithoutJournal())
			if _, err := mgr.Record(1); err != nil {
				t.Fatal(err)
			}
			clock.Advance(tt.advance)

			if got := mgr.ExportCurrent().HoursIntoPeriod; got != tt.want {
				t.Errorf("HoursIntoPeriod = %v, want %v", got, tt.want)
			}
		})
	}
}
