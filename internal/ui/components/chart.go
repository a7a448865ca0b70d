package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services/quota"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
)

// Chart series colors.
var (
	ChartMessagesColor = lipgloss.Color("#cc785c")
	ChartTokensColor   = lipgloss.Color("#4285f4")
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	return asciigraph.Plot(data,
		asciigraph.Height(max(3, height)),
		asciigraph.Width(max(20, width)),
		asciigraph.Caption(caption),
	)
}

// RenderDualLineChart plots message and token usage percentages together.
// The shorter series is padded with zeros.
func RenderDualLineChart(messages, tokens []float64, width, height int, caption string) string {
	if len(messages) == 0 && len(tokens) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	n := max(len(messages), len(tokens))
	msgData := make([]float64, n)
	tokData := make([]float64, n)
	copy(msgData, messages)
	copy(tokData, tokens)

	return asciigraph.PlotMany([][]float64{msgData, tokData},
		asciigraph.Height(max(3, height)),
		asciigraph.Width(max(20, width)),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Blue),
	)
}

// RenderBarChart creates a simple horizontal bar chart.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		maxLabelLen = max(maxLabelLen, len(l))
	}

	barWidth := max(10, width-maxLabelLen-10)

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		barLen := max(0, int((v/maxVal)*float64(barWidth)))
		lines = append(lines, fmt.Sprintf("%*s │%s %.1f", maxLabelLen, label, strings.Repeat("█", barLen), v))
	}

	return strings.Join(lines, "\n")
}

// RenderUsageSparkline renders usage percentages as a sparkline with each
// cell colored by the tier's thresholds.
func RenderUsageSparkline(percents []float64, width int, tier models.Tier) string {
	var b strings.Builder
	forEachSpark(percents, width, func(v float64, c rune) {
		b.WriteString(styles.SeverityStyle(quota.Classify(v, tier)).Render(string(c)))
	})
	return b.String()
}

func forEachSpark(values []float64, width int, emit func(v float64, c rune)) {
	if len(values) == 0 || width < 1 {
		return
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	step := max(1, float64(len(values))/float64(width))
	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		v := values[int(float64(i)*step)]
		idx := int((v / maxVal) * float64(len(sparkChars)-1))
		idx = min(len(sparkChars)-1, max(0, idx))
		emit(v, sparkChars[idx])
	}
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "  ")
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}
