// Package quota holds the subscription tier catalog and the usage analyzer.
package quota

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// ErrUnknownTier is returned when a subscription name is not in the catalog.
var ErrUnknownTier = errors.New("unknown subscription tier")

// Subscription tier identifiers.
const (
	TierFree = "free"
	TierPro  = "pro"
	TierMax  = "max"
)

// DefaultTier is used for any name the catalog does not know.
const DefaultTier = TierMax

// tierOrder is the display order, smallest plan first.
var tierOrder = []string{TierFree, TierPro, TierMax}

// DefaultTiers returns the compiled-in tier table.
func DefaultTiers() map[string]models.Tier {
	return map[string]models.Tier{
		TierFree: {
			ID:                 TierFree,
			Name:               "Free",
			DailyMessages:      40,
			DailyTokens:        150_000,
			ConcurrentSessions: 1,
			WarningThreshold:   0.8,
			CriticalThreshold:  0.9,
		},
		TierPro: {
			ID:                 TierPro,
			Name:               "Professional",
			DailyMessages:      400,
			DailyTokens:        2_000_000,
			ConcurrentSessions: 4,
			WarningThreshold:   0.8,
			CriticalThreshold:  0.9,
		},
		TierMax: {
			ID:                 TierMax,
			Name:               "Max",
			DailyMessages:      1500,
			DailyTokens:        10_000_000,
			ConcurrentSessions: 7,
			WarningThreshold:   0.7,
			CriticalThreshold:  0.85,
		},
	}
}

// Catalog resolves subscription names to tiers.
type Catalog struct {
	tiers map[string]models.Tier
}

// NewCatalog builds the catalog from the defaults with overrides applied.
// Overrides for unknown tiers, or whose thresholds would not satisfy
// 0 < warning < critical <= 1, are ignored with a warning.
func NewCatalog(overrides map[string]config.TierOverride) *Catalog {
	tiers := DefaultTiers()
	for name, o := range overrides {
		key := strings.ToLower(strings.TrimSpace(name))
		tier, ok := tiers[key]
		if !ok {
			logger.Warn("ignoring override for unknown tier", "tier", name)
			continue
		}
		updated := applyOverride(tier, o)
		if !validThresholds(updated) {
			logger.Warn("ignoring tier override with invalid thresholds", "tier", key,
				"warning", updated.WarningThreshold, "critical", updated.CriticalThreshold)
			continue
		}
		tiers[key] = updated
	}
	return &Catalog{tiers: tiers}
}

// Resolve returns the named tier, falling back to DefaultTier.
func (c *Catalog) Resolve(name string) models.Tier {
	if t, ok := c.Lookup(name); ok {
		return t
	}
	return c.tiers[DefaultTier]
}

// Lookup returns the named tier and whether it exists. Names are case-insensitive.
func (c *Catalog) Lookup(name string) (models.Tier, bool) {
	t, ok := c.tiers[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Validate returns ErrUnknownTier, naming the valid choices, when name is not
// a known tier.
func (c *Catalog) Validate(name string) error {
	if _, ok := c.Lookup(name); ok {
		return nil
	}
	return fmt.Errorf("%w %q (choose one of %s)", ErrUnknownTier, name, strings.Join(c.Names(), ", "))
}

// Names returns the tier identifiers, smallest plan first.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(tierOrder))
	for _, name := range tierOrder {
		if _, ok := c.tiers[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Tiers returns every tier in display order.
func (c *Catalog) Tiers() []models.Tier {
	names := c.Names()
	out := make([]models.Tier, 0, len(names))
	for _, name := range names {
		out = append(out, c.tiers[name])
	}
	return out
}

func applyOverride(t models.Tier, o config.TierOverride) models.Tier {
	if o.Name != "" {
		t.Name = o.Name
	}
	if o.DailyMessages > 0 {
		t.DailyMessages = o.DailyMessages
	}
	if o.DailyTokens > 0 {
		t.DailyTokens = o.DailyTokens
	}
	if o.ConcurrentSessions > 0 {
		t.ConcurrentSessions = o.ConcurrentSessions
	}
	if o.WarningThreshold > 0 {
		t.WarningThreshold = o.WarningThreshold
	}
	if o.CriticalThreshold > 0 {
		t.CriticalThreshold = o.CriticalThreshold
	}
	return t
}

func validThresholds(t models.Tier) bool {
	return t.WarningThreshold > 0 && t.WarningThreshold < t.CriticalThreshold && t.CriticalThreshold <= 1
}

// FormatDuration formats a time span for display.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "Now"
	}

	if d < time.Minute {
		return "< 1m"
	}

	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}

	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// FormatHours formats a fractional hour count as "Xh Ym", rounding to the
// nearest minute.
func FormatHours(hours float64) string {
	if hours <= 0 {
		return "0m"
	}
	total := int(hours*60 + 0.5)
	h, m := total/60, total%60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
