// Package alerts rate-limits alerts per category.
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// Gate lets a condition through at most once per category cooldown. Its
// state lives only as long as the process.
type Gate struct {
	mu        sync.Mutex
	cooldowns map[models.AlertCategory]time.Duration
	lastFired map[models.AlertCategory]time.Time
}

// NewGate creates a gate with the given cooldowns.
func NewGate(c config.Cooldowns) *Gate {
	return &Gate{
		cooldowns: map[models.AlertCategory]time.Duration{
			models.AlertCritical:        c.Critical,
			models.AlertWarning:         c.Warning,
			models.AlertSessionOverflow: c.SessionOverflow,
			models.AlertRateExceeding:   c.RateExceeding,
		},
		lastFired: make(map[models.AlertCategory]time.Time),
	}
}

// NewDefaultGate creates a gate with the built-in cooldowns.
func NewDefaultGate() *Gate {
	return NewGate(config.DefaultHeuristics().Cooldowns)
}

// Cooldown returns the cooldown of a category.
func (g *Gate) Cooldown(category models.AlertCategory) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cooldowns[category]
}

// ShouldFire reports whether an alert of category may fire now. It fires when
// the condition holds and the category never fired or its cooldown elapsed;
// firing records now as the last fire time.
func (g *Gate) ShouldFire(category models.AlertCategory, condition bool, now time.Time) bool {
	if !condition {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastFired[category]; ok && now.Sub(last) < g.cooldowns[category] {
		return false
	}
	g.lastFired[category] = now
	return true
}

// LastFired returns when category last fired.
func (g *Gate) LastFired(category models.AlertCategory) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.lastFired[category]
	return t, ok
}

// Reset forgets every fire time.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastFired = make(map[models.AlertCategory]time.Time)
}

// Evaluate maps metrics onto the alert categories and returns the alerts the
// gate lets through, in category order.
func (g *Gate) Evaluate(m models.Metrics, limits models.Limits, now time.Time) []models.Alert {
	var out []models.Alert
	for _, c := range Conditions(m, limits) {
		if g.ShouldFire(c.Category, c.Active, now) {
			out = append(out, models.Alert{
				Category: c.Category,
				Severity: c.Severity,
				Message:  c.Message,
				FiredAt:  now,
			})
		}
	}
	return out
}

// Condition is the state of one alert category for a metrics record.
type Condition struct {
	Category models.AlertCategory
	Severity models.Severity
	Message  string
	Active   bool
}

// Conditions evaluates every alert category against m.
func Conditions(m models.Metrics, limits models.Limits) []Condition {
	return []Condition{
		{
			Category: models.AlertCritical,
			Severity: models.SeverityCritical,
			Active:   m.Severity == models.SeverityCritical,
			Message:  fmt.Sprintf("CRITICAL: usage at %.1f%%, risk of immediate downgrade", m.CombinedPct),
		},
		{
			Category: models.AlertWarning,
			Severity: models.SeverityWarning,
			Active:   m.Severity == models.SeverityWarning,
			Message:  fmt.Sprintf("WARNING: usage at %.1f%%, slow down to avoid a downgrade", m.CombinedPct),
		},
		{
			Category: models.AlertSessionOverflow,
			Severity: models.SeverityCritical,
			Active:   m.SessionOverflow,
			Message:  fmt.Sprintf("Too many sessions: %d/%d", m.ActiveSessions, limits.ConcurrentSessions),
		},
		{
			Category: models.AlertRateExceeding,
			Severity: models.SeverityWarning,
			Active:   m.RateBand == models.RateExceeding,
			Message:  fmt.Sprintf("Current rate %.1f msg/hr exceeds safe rate %.1f msg/hr", m.CurrentRate, m.SafeRate),
		},
	}
}
