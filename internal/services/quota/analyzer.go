package quota

import (
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// Rate band boundaries on the current/safe rate ratio.
const (
	safeRatioLimit    = 0.8
	cautionRatioLimit = 1.0
)

// pctEpsilon absorbs float noise when a percentage sits exactly on a threshold.
const pctEpsilon = 1e-9

// Options are the heuristic constants of the analyzer.
type Options struct {
	ResetWindow    time.Duration
	RatePerSession float64
}

// DefaultOptions returns the built-in analyzer constants.
func DefaultOptions() Options {
	return Options{ResetWindow: 24 * time.Hour, RatePerSession: 10}
}

// Input is everything the analyzer looks at.
type Input struct {
	Now            time.Time
	Period         models.UsagePeriod
	Limits         models.Limits
	ActiveSessions int
}

// Analyze derives percentages, rates and severities from a period and the
// limits in force. It has no side effects.
func Analyze(in Input, opts Options) models.Metrics {
	if opts.ResetWindow <= 0 {
		opts.ResetWindow = DefaultOptions().ResetWindow
	}
	lim := in.Limits
	p := in.Period

	m := models.Metrics{
		MessagePct:     percent(float64(p.MessageCount), float64(lim.DailyMessages)),
		TokenPct:       percent(float64(p.TokenCount), float64(lim.DailyTokens)),
		SessionPct:     percent(float64(in.ActiveSessions), float64(lim.ConcurrentSessions)),
		ActiveSessions: in.ActiveSessions,
	}
	m.CombinedPct = max(m.MessagePct, m.TokenPct, m.SessionPct)

	reset := p.StartDate.Add(opts.ResetWindow)
	m.HoursUntilReset = max(0, reset.Sub(in.Now).Hours())

	remaining := lim.DailyMessages - p.MessageCount
	m.RemainingMessages = max(0, remaining)
	if m.HoursUntilReset > 0 {
		m.SafeRate = max(0, float64(remaining)/m.HoursUntilReset)
	}

	m.CurrentRate = float64(in.ActiveSessions) * opts.RatePerSession
	if m.SafeRate > 0 {
		m.RateRatio = m.CurrentRate / m.SafeRate
	}
	m.RateBand = Band(m.RateRatio)

	m.Severity = Classify(m.CombinedPct, lim.Tier)
	m.SessionSeverity = Classify(m.SessionPct, lim.Tier)
	m.SessionOverflow = in.ActiveSessions > lim.ConcurrentSessions
	return m
}

// Classify maps a percentage onto [warning, critical) bands of the tier.
func Classify(pct float64, t models.Tier) models.Severity {
	switch {
	case t.CriticalThreshold <= 0:
		return models.SeverityOK
	case pct+pctEpsilon >= t.CriticalThreshold*100:
		return models.SeverityCritical
	case pct+pctEpsilon >= t.WarningThreshold*100:
		return models.SeverityWarning
	default:
		return models.SeverityOK
	}
}

// Band classifies a current/safe rate ratio.
func Band(ratio float64) models.RateBand {
	switch {
	case ratio <= safeRatioLimit:
		return models.RateSafe
	case ratio <= cautionRatioLimit:
		return models.RateCaution
	default:
		return models.RateExceeding
	}
}

// ResetAt returns when the period ends.
func ResetAt(p models.UsagePeriod, window time.Duration) time.Time {
	return p.StartDate.Add(window)
}

func percent(used, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return used * 100 / limit
}
