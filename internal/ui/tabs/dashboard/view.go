package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
	"github.com/j-veylop/claude-usage-monitor/internal/services/quota"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/components"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
)

const (
	indentSpace    = "    "
	percentWidth   = 6
	valueWidth     = 24
	maxSessionRows = 5
	maxAlertRows   = 5
)

// View renders the dashboard component.
func (m *Model) View() string {
	snap := m.state.Snapshot()
	if snap == nil {
		return m.renderLoading()
	}

	cardWidth := max(m.width-6, 40)
	sections := []string{
		m.renderTitle(snap),
		m.renderUsageCard(snap, cardWidth),
		m.renderRateCard(snap, cardWidth),
		m.renderSessionsCard(snap, cardWidth),
		m.renderAlertsCard(cardWidth),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderLoading renders the loading state.
func (m *Model) renderLoading() string {
	bar := components.LoadingBar(max(m.width/2, 20), m.animationFrame)
	content := lipgloss.JoinVertical(lipgloss.Center, m.spinner.ViewWithLabel(), "", bar)
	return styles.CenterBoth(content, m.width, m.height)
}

func (m *Model) renderTitle(snap *services.Snapshot) string {
	title := styles.TitleStyle.Render("Claude Usage Monitor")

	tier := styles.TierStyle(snap.Limits.ID).Render("◆ " + snap.Limits.Name)
	badge := styles.EstimatedBadgeStyle.Render("[ESTIMATED]")
	if snap.Limits.IsAdapted {
		badge = styles.AdaptedBadgeStyle.Render("[ADAPTED]")
	}
	subtitle := fmt.Sprintf("%s %s", tier, badge)

	if snap.LearningMode == models.ModeEstimates {
		subtitle += styles.HelpStyle.Render(
			fmt.Sprintf("  learning from %d throttle events", snap.EventCount))
	}

	if updated := m.state.GetLastUpdated(); !updated.IsZero() {
		subtitle += styles.HelpStyle.Render("  · updated " + humanize.Time(updated))
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) renderUsageCard(snap *services.Snapshot, cardWidth int) string {
	width := cardWidth - 4
	barWidth := max(width-len(indentSpace)-percentWidth-valueWidth-4, 10)
	met := snap.Metrics
	lim := snap.Limits

	rows := []string{cardTitle("◈", "Current Period")}
	rows = append(rows, "")

	rows = append(rows, m.usageRow("Messages", barMessages, met.MessagePct, barWidth,
		fmt.Sprintf("%s / %s", humanize.Comma(int64(snap.Period.MessageCount)), humanize.Comma(int64(lim.DailyMessages))), lim.Tier)...)
	rows = append(rows, m.usageRow("Tokens", barTokens, met.TokenPct, barWidth,
		fmt.Sprintf("%s / %s", humanize.Comma(snap.Period.TokenCount), humanize.Comma(lim.DailyTokens)), lim.Tier)...)
	rows = append(rows, m.usageRow("Sessions", barSessions, met.SessionPct, barWidth,
		fmt.Sprintf("%d / %d active", met.ActiveSessions, lim.ConcurrentSessions), lim.Tier)...)
	rows = append(rows, m.usageRow("Combined", barCombined, met.CombinedPct, barWidth, "", lim.Tier)...)

	untilReset := time.Duration(met.HoursUntilReset * float64(time.Hour))
	window := snap.Period.Age(snap.TakenAt) + untilReset
	resetLabel := lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("Reset in")
	resetAt := quota.ResetAt(snap.Period, window).Local().Format("Jan 2 15:04")
	rows = append(rows, fmt.Sprintf("  %s %s", resetLabel, styles.HelpStyle.Render("· at "+resetAt)))
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
		indentSpace,
		components.RenderResetBar(untilReset, window, barWidth),
		" ",
		lipgloss.NewStyle().Foreground(styles.TextSecondary).Width(percentWidth+2).Align(lipgloss.Right).
			Render(components.FormatCountdown(untilReset)),
	))

	rows = append(rows, "", m.renderStatusLine(snap))

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) usageRow(label, animKey string, pct float64, barWidth int, value string, tier models.Tier) []string {
	sev := quota.Classify(pct, tier)
	display := m.displayPercent(animKey, min(100, max(0, pct)))

	labelStr := lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(label)
	percentStr := styles.SeverityStyle(sev).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", pct))
	valueStr := styles.HelpStyle.Width(valueWidth).Align(lipgloss.Right).Render(value)

	return []string{
		fmt.Sprintf("  %s", labelStr),
		lipgloss.JoinHorizontal(lipgloss.Left,
			indentSpace,
			components.RenderGradientBar(display, barWidth),
			" ",
			percentStr,
			" ",
			valueStr,
		),
	}
}

func (m *Model) renderStatusLine(snap *services.Snapshot) string {
	met := snap.Metrics
	var lines []string

	switch met.Severity {
	case models.SeverityCritical:
		lines = append(lines, styles.CriticalStyle.Render(
			fmt.Sprintf("  ▲ CRITICAL: %.0f%% of your limits used", met.CombinedPct)))
	case models.SeverityWarning:
		lines = append(lines, styles.WarningTextStyle.Render(
			fmt.Sprintf("  ▲ WARNING: %.0f%% of your limits used", met.CombinedPct)))
	default:
		lines = append(lines, styles.SuccessTextStyle.Render("  ✓ Usage is within safe limits"))
	}

	if met.SessionOverflow {
		lines = append(lines, styles.CriticalStyle.Render(
			fmt.Sprintf("  ▲ TOO MANY CONCURRENT SESSIONS (%d/%d)", met.ActiveSessions, snap.Limits.ConcurrentSessions)))
	}

	return strings.Join(lines, "\n")
}

func (m *Model) renderRateCard(snap *services.Snapshot, cardWidth int) string {
	met := snap.Metrics
	rows := []string{cardTitle("◎", "Pace"), ""}

	band := styles.BandStyle(met.RateBand).Render(met.RateBand.Label())
	rows = append(rows,
		fmt.Sprintf("  Current rate    %s msg/h  %s",
			lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%.1f", met.CurrentRate)), band),
		fmt.Sprintf("  Safe rate       %.1f msg/h", met.SafeRate),
		fmt.Sprintf("  Remaining       %s messages", humanize.Comma(int64(met.RemainingMessages))),
	)

	if met.SafeRate > 0 {
		barWidth := max(cardWidth-len(indentSpace)-percentWidth-12, 10)
		ratioPct := met.RateRatio * 100
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			indentSpace,
			components.RenderGradientBar(ratioPct, barWidth),
			" ",
			styles.BandStyle(met.RateBand).Width(percentWidth).Align(lipgloss.Right).
				Render(fmt.Sprintf("%.0f%%", ratioPct)),
		))
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderSessionsCard(snap *services.Snapshot, cardWidth int) string {
	stats := snap.Sessions
	rows := []string{cardTitle("⬡", "Sessions"), ""}

	rows = append(rows, styles.HelpStyle.Render(fmt.Sprintf(
		"  %d active · %d started today · %d recorded · peak %d this period",
		stats.ActiveCount(), stats.StartedToday, stats.Total, snap.Period.PeakConcurrentSessions)))

	if stats.ActiveCount() == 0 {
		rows = append(rows, "", styles.HelpStyle.Render("  ○ No active sessions"))
	} else {
		rows = append(rows, "")
		for i, s := range stats.Active {
			if i == maxSessionRows {
				rows = append(rows, styles.HelpStyle.Render(
					fmt.Sprintf("  … and %d more", stats.ActiveCount()-maxSessionRows)))
				break
			}
			rows = append(rows, fmt.Sprintf("  %s pid %-7d %-10s %4d msgs  %s tokens",
				styles.SuccessTextStyle.Render("●"),
				s.PID,
				components.FormatCountdown(s.Duration(snap.TakenAt)),
				s.MessageCount,
				humanize.Comma(s.EstimatedTokens),
			))
		}
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderAlertsCard(cardWidth int) string {
	alerts := m.state.Alerts()
	rows := []string{cardTitle("▲", "Recent Alerts"), ""}

	if len(alerts) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No alerts this session"))
	}
	for i, a := range alerts {
		if i == maxAlertRows {
			break
		}
		when := styles.HelpStyle.Render(fmt.Sprintf("%-16s", humanize.Time(a.FiredAt)))
		rows = append(rows, fmt.Sprintf("  %s %s", when, styles.SeverityStyle(a.Severity).Render(a.Message)))
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func cardTitle(icon, title string) string {
	iconStr := lipgloss.NewStyle().Foreground(styles.Claude).Render(icon)
	return fmt.Sprintf("%s %s", iconStr, styles.CardTitleStyle.Render(title))
}
