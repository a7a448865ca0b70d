// Package report renders the one-shot command output.
package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/services"
	"github.com/j-veylop/claude-usage-monitor/internal/services/period"
	"github.com/j-veylop/claude-usage-monitor/internal/services/quota"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/components"
	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
)

var (
	headingStyle = lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	tierStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#74c0fc"))
	okStyle      = lipgloss.NewStyle().Foreground(styles.Success)
	warnStyle    = lipgloss.NewStyle().Foreground(styles.Warning)
	critStyle    = lipgloss.NewStyle().Foreground(styles.Error)
)

func heading(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("=== "+title+" ==="))
}

// FormatTokens abbreviates a token count the way the status line shows it.
func FormatTokens(n int64) string {
	switch {
	case n > 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n > 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// formatLimit abbreviates a token limit; limits are always shown with a unit.
func formatLimit(n int64) string {
	if n > 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	return fmt.Sprintf("%.1fK", float64(n)/1_000)
}

// Status writes the status display for one snapshot.
func Status(w io.Writer, snap services.Snapshot) {
	lim := snap.Limits
	met := snap.Metrics

	heading(w, "Claude Usage Monitor")

	badge := warnStyle.Render("[ESTIMATED]")
	if lim.IsAdapted {
		badge = okStyle.Render("[ADAPTED]")
	}
	fmt.Fprintf(w, "Subscription: %s %s\n", tierStyle.Render(lim.Name), badge)

	if lim.IsAdapted {
		fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("Limits based on %d throttle %s",
			snap.EventCount, plural(snap.EventCount, "event", "events"))))
	} else {
		fmt.Fprintln(w, warnStyle.Render("Using initial estimates - will adapt based on actual throttle events"))
	}

	fmt.Fprintf(w, "Messages: %s / %d (%.1f%%)\n",
		valueStyle.Render(fmt.Sprintf("%d", snap.Period.MessageCount)), lim.DailyMessages, met.MessagePct)
	fmt.Fprintf(w, "Tokens: %s / %s (%.1f%%)\n",
		valueStyle.Render(FormatTokens(snap.Period.TokenCount)), formatLimit(lim.DailyTokens), met.TokenPct)

	if met.ActiveSessions > 0 {
		fmt.Fprintf(w, "Active Sessions: %s / %d concurrent\n",
			styles.SeverityStyle(met.SessionSeverity).Render(fmt.Sprintf("%d", met.ActiveSessions)), lim.ConcurrentSessions)
	}

	bar := components.TextBar(met.CombinedPct, components.TextBarWidth)
	fmt.Fprintf(w, "Combined Usage: %s %.1f%%\n", styles.SeverityStyle(met.Severity).Render(bar), met.CombinedPct)

	resetIn := quota.FormatHours(met.HoursUntilReset)
	fmt.Fprintf(w, "Reset in: %s\n", tierStyle.Render(resetIn))

	fmt.Fprintln(w)
	switch met.Severity {
	case models.SeverityCritical:
		fmt.Fprintln(w, critStyle.Bold(true).Render("⚠️  CRITICAL: You are very close to the usage limit!"))
		fmt.Fprintln(w, critStyle.Render("You may be downgraded to a lower model soon."))
	case models.SeverityWarning:
		fmt.Fprintln(w, warnStyle.Bold(true).Render("⚠️  WARNING: Approaching usage limit"))
		fmt.Fprintln(w, warnStyle.Render("Consider spacing out usage over the next "+resetIn))
	default:
		fmt.Fprintln(w, okStyle.Render("✓ Usage is within safe limits"))
	}

	if met.SessionOverflow {
		fmt.Fprintln(w)
		fmt.Fprintln(w, critStyle.Bold(true).Render("⚠️  TOO MANY CONCURRENT SESSIONS!"))
		fmt.Fprintln(w, critStyle.Render(fmt.Sprintf("Running %d sessions but safe limit is %d",
			met.ActiveSessions, lim.ConcurrentSessions)))
		fmt.Fprintln(w, critStyle.Render("Multiple concurrent sessions significantly increase downgrade risk!"))
	}

	if met.RemainingMessages > 0 {
		fmt.Fprintf(w, "\nRemaining messages: %s\n", valueStyle.Render(fmt.Sprintf("%d", met.RemainingMessages)))
		fmt.Fprintf(w, "Safe usage rate: %s messages/hour\n", valueStyle.Render(fmt.Sprintf("%.1f", met.SafeRate)))
	}
}

// Sessions writes the active session list shown under the status display.
func Sessions(w io.Writer, snap services.Snapshot) {
	active := snap.Sessions.Active
	if len(active) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sessions today: %d started, %d active\n", snap.Sessions.StartedToday, len(active))
	for _, s := range active {
		fmt.Fprintf(w, "  pid %-7d %-8s %4d messages  %s tokens\n",
			s.PID, quota.FormatDuration(s.Duration(snap.TakenAt)), s.MessageCount, humanize.Comma(s.EstimatedTokens))
	}
}

// History writes the closed periods of the last days, newest first.
func History(w io.Writer, days int, entries []models.HistoryEntry) {
	heading(w, fmt.Sprintf("Usage History (Last %d days)", days))

	if len(entries) == 0 {
		fmt.Fprintln(w, "No historical data available")
		return
	}

	for _, e := range entries {
		date := e.Period.StartDate.Local().Format("2006-01-02")
		msgs := styles.SeverityStyle(e.Severity).Render(fmt.Sprintf("%d messages", e.Period.MessageCount))
		fmt.Fprintf(w, "%s: %s (%.1f%%)\n", date, msgs, e.Percent)
	}
}

// Analysis writes the outcome of a learning pass.
func Analysis(w io.Writer, a services.Analysis) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("✓ Analyzed %d throttle events", a.Analyzed)))
	if a.Adaptive {
		fmt.Fprintln(w, okStyle.Render("Thresholds have been adapted based on actual usage patterns"))
	}
}

// ThresholdReport writes the learner state.
func ThresholdReport(w io.Writer, r services.ThresholdReport) {
	heading(w, "Threshold Learning Report")

	mode := warnStyle.Render("ESTIMATES")
	if r.Mode == models.ModeAdaptive {
		mode = okStyle.Render("ADAPTIVE")
	}
	fmt.Fprintf(w, "Mode: %s\n", mode)

	updated := "never"
	if !r.LastUpdated.IsZero() {
		updated = fmt.Sprintf("%s (%s)", r.LastUpdated.Local().Format("2006-01-02 15:04:05"), humanize.Time(r.LastUpdated))
	}
	fmt.Fprintf(w, "Last Updated: %s\n", updated)
	fmt.Fprintf(w, "Throttle Events: %d\n", r.EventCount)

	if r.Mode != models.ModeAdaptive {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warnStyle.Render("Not enough throttle events to adapt thresholds yet."))
		fmt.Fprintln(w, warnStyle.Render("Continue using the tool - limits will adapt automatically."))
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, okStyle.Render("Adapted Limits:"))
	names := make([]string, 0, len(r.AdaptedLimits))
	for name := range r.AdaptedLimits {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		lim := r.AdaptedLimits[name]
		fmt.Fprintf(w, "\n%s:\n", tierStyle.Render(name))
		if lim.DailyMessages > 0 {
			fmt.Fprintf(w, "  Messages: %d/day\n", lim.DailyMessages)
		}
		if lim.DailyTokens > 0 {
			fmt.Fprintf(w, "  Tokens: %.1fM/day\n", float64(lim.DailyTokens)/1_000_000)
		}
		if lim.ConcurrentSessions > 0 {
			fmt.Fprintf(w, "  Concurrent Sessions: %d\n", lim.ConcurrentSessions)
		}
		if c, ok := r.SubscriptionConfidence[name]; ok {
			fmt.Fprintf(w, "  Confidence: %s\n", formatConfidence(c))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, okStyle.Render("Confidence Levels:"))
	fmt.Fprintf(w, "  Messages: %d%%\n", r.Confidence.Messages)
	fmt.Fprintf(w, "  Tokens: %d%%\n", r.Confidence.Tokens)
	fmt.Fprintf(w, "  Sessions: %d%%\n", r.Confidence.Sessions)
}

func formatConfidence(c models.Confidence) string {
	return fmt.Sprintf("messages %d%%, tokens %d%%, sessions %d%%", c.Messages, c.Tokens, c.Sessions)
}

// SubscriptionSet confirms a tier change.
func SubscriptionSet(w io.Writer, tier models.Tier) {
	fmt.Fprintln(w, okStyle.Render("✓ Subscription set to: "+tier.Name))
}

// Recorded confirms recorded messages.
func Recorded(w io.Writer, n int, p models.UsagePeriod) {
	fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("✓ Recorded %d %s (%d this period)",
		n, plural(n, "message", "messages"), p.MessageCount)))
}

// Cleared confirms a data wipe.
func Cleared(w io.Writer) {
	fmt.Fprintln(w, okStyle.Render("✓ Usage data cleared"))
}

// SessionsProcessed summarizes a session aggregation pass.
func SessionsProcessed(w io.Writer, s period.SessionSummary) {
	fmt.Fprintf(w, "Sessions: %d active, %d in period, %s tokens, peak %d\n",
		s.Active, s.InPeriod, humanize.Comma(s.Tokens), s.Peak)
	if !s.Changed {
		fmt.Fprintln(w, "No changes")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Tiers lists the valid subscription names.
func Tiers(w io.Writer, tiers []models.Tier) {
	names := make([]string, 0, len(tiers))
	for _, t := range tiers {
		names = append(names, fmt.Sprintf("%s (%s)", t.ID, t.Name))
	}
	fmt.Fprintln(w, "Available tiers: "+strings.Join(names, ", "))
}
