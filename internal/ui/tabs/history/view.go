package history

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/components"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
)

const maxPeriodBars = 14

// View renders the history tab.
func (m *Model) View() string {
	if m.loading && m.historyData == nil {
		return m.renderLoading()
	}
	if m.errorMsg != "" {
		return m.renderError()
	}
	if m.historyData == nil || !m.historyData.hasData() {
		return m.renderEmpty()
	}

	sections := []string{
		m.renderHeader(),
		m.renderPeriodsCard(),
	}
	if m.historyData.journal {
		sections = append(sections,
			m.renderUsageChart(),
			m.renderDailyCard(),
			m.renderAlertsCard(),
		)
	} else {
		sections = append(sections, styles.HelpStyle.Render("  Usage journal disabled; only closed periods are shown."))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderLoading() string {
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(styles.HelpStyle.Render("Loading history data..."))
}

func (m *Model) renderError() string {
	content := fmt.Sprintf("%s %s",
		styles.ErrorTextStyle.Render("Error:"),
		m.errorMsg,
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderEmpty() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		styles.HelpStyle.Render("No historical data available yet."),
		styles.HelpStyle.Render("Closed periods appear after the first reset; samples are recorded on every refresh."),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderHeader() string {
	title := styles.TitleStyle.Render("Usage History")

	rangeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	rangeIndicator := rangeStyle.Render(fmt.Sprintf("[t] %s", m.timeRange.String()))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", rangeIndicator)

	var subtitle string
	if d := m.historyData; d != nil {
		subtitle = styles.HelpStyle.Render(fmt.Sprintf("%d closed periods · %d samples · %d days journaled",
			len(d.periods), len(d.samples), len(d.daily)))
		if m.loading {
			subtitle += styles.HelpStyle.Render("  refreshing...")
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func (m *Model) cardWidth() int {
	return max(m.width-6, 40)
}

// tier returns the limits in force, when a snapshot has been taken.
func (m *Model) tier() (models.Tier, bool) {
	snap := m.state.Snapshot()
	if snap == nil {
		return models.Tier{}, false
	}
	return snap.Limits.Tier, true
}

func (m *Model) renderPeriodsCard() string {
	cardWidth := m.cardWidth()
	rows := []string{cardTitle("◷", "Closed Periods"), ""}

	periods := m.historyData.periods
	if len(periods) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No closed periods in this range"))
	} else {
		// Oldest at the top reads like a timeline.
		n := min(len(periods), maxPeriodBars)
		values := make([]float64, 0, n)
		labels := make([]string, 0, n)
		for i := n - 1; i >= 0; i-- {
			p := periods[i]
			values = append(values, p.Percent)
			labels = append(labels, p.Period.StartDate.Local().Format("Jan 02 15:04"))
		}
		for line := range strings.SplitSeq(components.RenderBarChart(values, labels, cardWidth-8), "\n") {
			rows = append(rows, "  "+line)
		}

		peak := periods[0]
		for _, p := range periods[1:] {
			if p.Percent > peak.Percent {
				peak = p
			}
		}
		rows = append(rows, "",
			fmt.Sprintf("  Peak: %s on %s (%s messages, %s tokens)",
				styles.SeverityStyle(peak.Severity).Render(fmt.Sprintf("%.1f%%", peak.Percent)),
				peak.Period.StartDate.Local().Format("Jan 2"),
				humanize.Comma(int64(peak.Period.MessageCount)),
				humanize.Comma(peak.Period.TokenCount),
			))
	}

	rows = append(rows, "")
	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderUsageChart() string {
	cardWidth := m.cardWidth()
	rows := []string{cardTitle("📈", "Combined Usage"), ""}

	samples := m.historyData.samples
	if len(samples) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No samples recorded in this range"))
	} else {
		data := make([]float64, len(samples))
		for i, s := range samples {
			data[i] = s.CombinedPct
		}

		chartWidth := max(cardWidth-12, 30)
		chart := components.RenderLineChart(data, chartWidth, 8,
			fmt.Sprintf("Combined usage (%%) over %s", strings.ToLower(m.timeRange.String())))
		for line := range strings.SplitSeq(chart, "\n") {
			rows = append(rows, "  "+line)
		}

		if tier, ok := m.tier(); ok {
			rows = append(rows, "", "  "+components.RenderUsageSparkline(data, chartWidth, tier))
		}
	}

	rows = append(rows, "")
	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderDailyCard() string {
	cardWidth := m.cardWidth()
	rows := []string{cardTitle("📅", "Daily Peaks"), ""}

	daily := m.historyData.daily
	tier, ok := m.tier()
	switch {
	case len(daily) == 0:
		rows = append(rows, styles.HelpStyle.Render("  No daily data available"))

	case !ok || tier.DailyMessages == 0 || tier.DailyTokens == 0:
		for _, d := range daily {
			rows = append(rows, fmt.Sprintf("  %s  %5.1f%%", d.Day.Format("Jan 02"), d.CombinedPct))
		}

	default:
		msgs := make([]float64, len(daily))
		tokens := make([]float64, len(daily))
		for i, d := range daily {
			msgs[i] = float64(d.MessageCount) * 100 / float64(tier.DailyMessages)
			tokens[i] = float64(d.TokenCount) * 100 / float64(tier.DailyTokens)
		}
		chart := components.RenderDualLineChart(msgs, tokens, max(cardWidth-12, 30), 8,
			fmt.Sprintf("Last %d days - messages vs tokens (%% of limit)", len(daily)))
		for line := range strings.SplitSeq(chart, "\n") {
			rows = append(rows, "  "+line)
		}
		rows = append(rows, "", "  "+components.RenderLegend([]components.LegendItem{
			{Label: "Messages", Color: components.ChartMessagesColor},
			{Label: "Tokens", Color: components.ChartTokensColor},
		}))
	}

	rows = append(rows, "")
	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderAlertsCard() string {
	cardWidth := m.cardWidth()
	rows := []string{cardTitle("▲", "Alert Log"), ""}

	if summary := formatAlertCounts(m.historyData.counts); summary != "" {
		rows = append(rows, "  "+summary, "")
	}

	alerts := m.historyData.alerts
	if len(alerts) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No alerts recorded"))
	}
	for _, a := range alerts {
		rows = append(rows, fmt.Sprintf("  %s %s",
			styles.HelpStyle.Render(a.CreatedAt.Local().Format("Jan 02 15:04")),
			styles.SeverityStyle(a.Severity).Render(a.Message),
		))
	}

	rows = append(rows, "")
	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func cardTitle(icon, title string) string {
	iconStr := lipgloss.NewStyle().Foreground(styles.Primary).Render(icon)
	return fmt.Sprintf("%s %s", iconStr, styles.CardTitleStyle.Render(title))
}

// formatAlertCounts lists the per-category totals in a fixed category order.
func formatAlertCounts(counts map[models.AlertCategory]int) string {
	var parts []string
	for _, c := range models.AlertCategories {
		if n := counts[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", c, n))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return styles.HelpStyle.Render("In range: ") + strings.Join(parts, " · ")
}
