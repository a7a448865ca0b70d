package models

import "time"

// Severity classifies a usage percentage against a tier's thresholds.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// RateBand classifies the current message rate against the safe rate.
type RateBand string

const (
	RateSafe      RateBand = "safe"
	RateCaution   RateBand = "caution"
	RateExceeding RateBand = "exceeding"
)

// Label returns the upper-case display label of the band.
func (b RateBand) Label() string {
	switch b {
	case RateCaution:
		return "CAUTION"
	case RateExceeding:
		return "EXCEEDING"
	default:
		return "SAFE"
	}
}

// Metrics are the values derived from a period and the limits in force.
type Metrics struct {
	MessagePct        float64  `json:"messagePercentage"`
	TokenPct          float64  `json:"tokenPercentage"`
	SessionPct        float64  `json:"sessionPercentage"`
	CombinedPct       float64  `json:"combinedPercentage"`
	HoursUntilReset   float64  `json:"hoursUntilReset"`
	SafeRate          float64  `json:"safeRate"`
	CurrentRate       float64  `json:"currentRate"`
	RateRatio         float64  `json:"rateRatio"`
	RateBand          RateBand `json:"rateBand"`
	Severity          Severity `json:"severity"`
	SessionSeverity   Severity `json:"sessionSeverity"`
	RemainingMessages int      `json:"remainingMessages"`
	ActiveSessions    int      `json:"activeSessions"`
	SessionOverflow   bool     `json:"sessionOverflow"`
}

// AlertCategory names one kind of alert. Each category has its own cooldown.
type AlertCategory string

const (
	AlertCritical        AlertCategory = "critical"
	AlertWarning         AlertCategory = "warning"
	AlertSessionOverflow AlertCategory = "session-overflow"
	AlertRateExceeding   AlertCategory = "rate-exceeding"
)

// AlertCategories lists every category in evaluation order.
var AlertCategories = []AlertCategory{
	AlertCritical,
	AlertWarning,
	AlertSessionOverflow,
	AlertRateExceeding,
}

// Alert is a message that passed the alert gate.
type Alert struct {
	FiredAt  time.Time     `json:"firedAt"`
	Category AlertCategory `json:"category"`
	Severity Severity      `json:"severity"`
	Message  string        `json:"message"`
}
