package info

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
	"github.com/j-veylop/claude-usage-monitor/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderTiersCard(),
		m.renderLearningCard(),
		m.renderConfigCard(),
		m.renderAboutCard(),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Tier limits, threshold learning and configuration")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 90)
}

// current returns the tracked subscription and whether a snapshot exists.
func (m *Model) current() (string, bool) {
	if snap := m.state.Snapshot(); snap != nil {
		return snap.Subscription, true
	}
	if r := m.state.Thresholds(); r != nil {
		return r.Subscription, true
	}
	return "", false
}

func (m *Model) renderTiersCard() string {
	rows := []string{styles.CardTitleStyle.Render("Subscription Tiers"), ""}

	header := fmt.Sprintf("  %-14s %10s %12s %9s %7s %9s", "Tier", "Messages", "Tokens", "Sessions", "Warn", "Critical")
	rows = append(rows, styles.TableHeaderStyle.Render(header))

	sub, _ := m.current()
	for _, t := range m.catalog.Tiers() {
		marker := "  "
		if t.ID == sub {
			marker = "▸ "
		}
		line := fmt.Sprintf("%s%-14s %10s %12s %9d %6.0f%% %8.0f%%",
			marker, t.Name,
			humanize.Comma(int64(t.DailyMessages)),
			humanize.Comma(t.DailyTokens),
			t.ConcurrentSessions,
			t.WarningThreshold*100,
			t.CriticalThreshold*100,
		)
		rows = append(rows, styles.TierStyle(t.ID).Render(line))
	}

	if snap := m.state.Snapshot(); snap != nil && snap.Limits.IsAdapted {
		lim := snap.Limits
		rows = append(rows, "", styles.AdaptedBadgeStyle.Render(fmt.Sprintf(
			"  In force: %s messages · %s tokens · %d sessions (adapted)",
			humanize.Comma(int64(lim.DailyMessages)), humanize.Comma(lim.DailyTokens), lim.ConcurrentSessions)))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderLearningCard() string {
	rows := []string{styles.CardTitleStyle.Render("Threshold Learning"), ""}

	report := m.state.Thresholds()
	if report == nil {
		rows = append(rows, styles.HelpStyle.Render("Learner state not loaded yet"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	mode := styles.EstimatedBadgeStyle.Render(strings.ToUpper(string(report.Mode)))
	if report.Mode == models.ModeAdaptive {
		mode = styles.AdaptedBadgeStyle.Render(strings.ToUpper(string(report.Mode)))
	}
	rows = append(rows,
		m.renderConfigRow("Mode", mode),
		m.renderConfigRow("Throttle Events", fmt.Sprintf("%d", report.EventCount)),
	)
	if !report.LastUpdated.IsZero() {
		rows = append(rows, m.renderConfigRow("Last Analysis", humanize.Time(report.LastUpdated)))
	}
	c := report.Confidence
	rows = append(rows, m.renderConfigRow("Confidence",
		fmt.Sprintf("%d messages · %d tokens · %d sessions", c.Messages, c.Tokens, c.Sessions)))

	if len(report.AdaptedLimits) > 0 {
		rows = append(rows, "", styles.HelpStyle.Render("Adapted limits"))
		names := make([]string, 0, len(report.AdaptedLimits))
		for name := range report.AdaptedLimits {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			a := report.AdaptedLimits[name]
			rows = append(rows, fmt.Sprintf("  %-12s %s", name, formatAdapted(a)))
		}
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatAdapted(a models.AdaptedLimits) string {
	var parts []string
	if a.DailyMessages > 0 {
		parts = append(parts, humanize.Comma(int64(a.DailyMessages))+" messages")
	}
	if a.DailyTokens > 0 {
		parts = append(parts, humanize.Comma(a.DailyTokens)+" tokens")
	}
	if a.ConcurrentSessions > 0 {
		parts = append(parts, fmt.Sprintf("%d sessions", a.ConcurrentSessions))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " · ")
}

func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration"), ""}

	cfg := m.config
	if cfg == nil {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	rows = append(rows,
		m.renderConfigRow("Storage", cfg.StorageDir),
		m.renderConfigRow("Usage File", cfg.UsageFile),
		m.renderConfigRow("Threshold File", cfg.ThresholdFile),
		m.renderConfigRow("Sessions", cfg.SessionsDir),
		m.renderConfigRow("Throttle Events", cfg.ThrottleDir),
		m.renderConfigRow("Journal", m.journalStatus()),
		m.renderConfigRow("Log File", orDisabled(cfg.LogFile)),
		m.renderConfigRow("Refresh", cfg.RefreshInterval.String()),
		m.renderConfigRow("Learn Schedule", orDisabled(cfg.LearnSchedule)),
		m.renderConfigRow("Metrics File", orDisabled(cfg.MetricsTextfile)),
		m.renderConfigRow("Notifications", onOff(cfg.DesktopNotify)),
	)

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func orDisabled(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// journalStatus flags a configured journal that could not be opened.
func (m *Model) journalStatus() string {
	path := m.config.DatabasePath
	if path != "" && m.services != nil && m.services.Database() == nil {
		return path + " (unavailable)"
	}
	return orDisabled(path)
}

// renderConfigRow renders a configuration key-value row.
func (m *Model) renderConfigRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func (m *Model) renderAboutCard() string {
	rows := []string{styles.CardTitleStyle.Render("About Claude Usage Monitor"), ""}

	rows = append(rows,
		m.renderConfigRow("Version", version.GetVersion()),
		m.renderConfigRow("Build Date", version.GetDate()),
		m.renderConfigRow("Git Commit", version.GetCommit()),
		m.renderConfigRow("Go Version", runtime.Version()),
		m.renderConfigRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	)

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
