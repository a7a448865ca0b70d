package models

// Tier describes the limits of one subscription plan.
type Tier struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	DailyTokens        int64   `json:"dailyTokens"`
	DailyMessages      int     `json:"dailyMessages"`
	ConcurrentSessions int     `json:"concurrentSessions"`
	WarningThreshold   float64 `json:"warningThreshold"`
	CriticalThreshold  float64 `json:"criticalThreshold"`
}

// AdaptedLimits are learned replacements for a tier's limits. Zero fields
// have not been learned.
type AdaptedLimits struct {
	DailyTokens        int64 `json:"dailyTokens,omitempty"`
	DailyMessages      int   `json:"dailyMessages,omitempty"`
	ConcurrentSessions int   `json:"concurrentSessions,omitempty"`
}

// IsZero reports whether no dimension has been learned.
func (a AdaptedLimits) IsZero() bool {
	return a.DailyMessages <= 0 && a.DailyTokens <= 0 && a.ConcurrentSessions <= 0
}

// Limits are the limits in force for the tracked subscription.
type Limits struct {
	Tier
	IsAdapted bool `json:"isAdapted"`
}

// Overlay returns the tier with every positive learned field applied.
func (a AdaptedLimits) Overlay(t Tier) Limits {
	out := Limits{Tier: t}
	if a.DailyMessages > 0 {
		out.DailyMessages = a.DailyMessages
		out.IsAdapted = true
	}
	if a.DailyTokens > 0 {
		out.DailyTokens = a.DailyTokens
		out.IsAdapted = true
	}
	if a.ConcurrentSessions > 0 {
		out.ConcurrentSessions = a.ConcurrentSessions
		out.IsAdapted = true
	}
	return out
}
