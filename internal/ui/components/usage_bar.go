// Package components provides reusable UI components.
package components

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
)

// Usage fills up, so the gradient runs from calm to alarming.
const (
	gradientLow  = "#51cf66"
	gradientHigh = "#ff6b6b"
)

// TextBarWidth is the width of the plain combined-usage bar.
const TextBarWidth = 30

// TextBar renders the plain combined-usage bar: filled cells for the used
// share of width, rounded to the nearest cell, empty cells for the rest.
func TextBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}
	filled := int(math.Round(clampPercent(percent) / 100 * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// RenderGradientBar renders just the bar characters with gradient colors.
func RenderGradientBar(percent float64, width int) string {
	return renderGradient(clampPercent(percent)/100, width, gradientLow, gradientHigh)
}

// RenderResetBar renders how much of the reset window has elapsed.
func RenderResetBar(untilReset, window time.Duration, width int) string {
	elapsed := 1.0
	if window > 0 {
		elapsed = 1 - untilReset.Seconds()/window.Seconds()
	}
	return renderGradient(min(1, max(0, elapsed)), width, "#ffd93d", "#6c5ce7")
}

// FormatCountdown renders a duration as "Xh YYm".
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int64(d / time.Hour)
	minutes := int64(d%time.Hour) / int64(time.Minute)
	return fmt.Sprintf("%dh %02dm", hours, minutes)
}

// LoadingBar renders a shimmering placeholder bar for the given frame.
func LoadingBar(width, frame int) string {
	const cycle = 120
	barWidth := max(10, width)

	t := float64(frame%cycle) / float64(cycle)
	p := t * 2
	if t >= 0.5 {
		p = (1 - t) * 2
	}
	eased := p * p * (3 - 2*p)
	shimmerPos := int(eased * float64(barWidth))

	var b strings.Builder
	for i := range barWidth {
		dist := shimmerPos - i
		if dist < 0 {
			dist = -dist
		}
		switch {
		case dist < 3:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Claude).Render("▓"))
		case dist < 5:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("▒"))
		default:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.BgLight).Render("░"))
		}
	}
	return b.String()
}

func renderGradient(fraction float64, width int, from, to string) string {
	if width < 1 {
		return ""
	}
	filled := min(width, max(0, int(float64(width)*fraction)))

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor(from, to, t)
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

func clampPercent(p float64) float64 {
	return min(100, max(0, p))
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
