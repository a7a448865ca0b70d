package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingTimestamp is returned for throttle events without a usable timestamp.
var ErrMissingTimestamp = errors.New("throttle event has no timestamp")

// UnknownSubscription groups throttle events that carry no subscription.
const UnknownSubscription = "unknown"

// LearningMode is the state of the threshold learner.
type LearningMode string

const (
	// ModeEstimates means the compiled-in tier limits are used.
	ModeEstimates LearningMode = "estimates"
	// ModeAdaptive means learned limits override the tier limits.
	ModeAdaptive LearningMode = "adaptive"
)

// Valid reports whether m is a known mode.
func (m LearningMode) Valid() bool {
	return m == ModeEstimates || m == ModeAdaptive
}

// ThrottleEvent is the usage observed at the moment the product throttled.
type ThrottleEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	Subscription   string    `json:"subscription"`
	TokenCount     int64     `json:"tokenCount"`
	MessageCount   int       `json:"messageCount"`
	ActiveSessions int       `json:"activeSessions"`
}

// SubscriptionKey returns the normalized grouping key of the event.
func (e ThrottleEvent) SubscriptionKey() string {
	return NormalizeSubscription(e.Subscription)
}

// Key identifies the event for deduplication. Two events are the same
// throttle when all five fields match.
func (e ThrottleEvent) Key() string {
	return fmt.Sprintf("%s|%d|%d|%d|%d",
		e.SubscriptionKey(), e.MessageCount, e.TokenCount, e.ActiveSessions, e.Timestamp.UnixMilli())
}

// NormalizeSubscription lowercases a subscription name and maps the empty
// name to UnknownSubscription.
func NormalizeSubscription(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return UnknownSubscription
	}
	return name
}

// Confidence is a 0-100 score per learned dimension.
type Confidence struct {
	Messages int `json:"messages"`
	Tokens   int `json:"tokens"`
	Sessions int `json:"sessions"`
}

// ThresholdDocument is the persisted threshold-learning.json document.
type ThresholdDocument struct {
	LastUpdated            time.Time                `json:"lastUpdated"`
	AdaptedLimits          map[string]AdaptedLimits `json:"adaptedLimits"`
	SubscriptionConfidence map[string]Confidence    `json:"subscriptionConfidence,omitempty"`
	LearningMode           LearningMode             `json:"learningMode"`
	ThrottleEvents         []ThrottleEvent          `json:"throttleEvents"`
	Confidence             Confidence               `json:"confidence"`
}

// NewThresholdDocument returns the initial learner document.
func NewThresholdDocument(now time.Time) ThresholdDocument {
	return ThresholdDocument{
		LearningMode:           ModeEstimates,
		LastUpdated:            Timestamp(now),
		ThrottleEvents:         []ThrottleEvent{},
		AdaptedLimits:          map[string]AdaptedLimits{},
		SubscriptionConfidence: map[string]Confidence{},
	}
}

// Clone returns a deep copy of the document.
func (d ThresholdDocument) Clone() ThresholdDocument {
	clone := d
	clone.ThrottleEvents = append([]ThrottleEvent(nil), d.ThrottleEvents...)
	clone.AdaptedLimits = make(map[string]AdaptedLimits, len(d.AdaptedLimits))
	for k, v := range d.AdaptedLimits {
		clone.AdaptedLimits[k] = v
	}
	clone.SubscriptionConfidence = make(map[string]Confidence, len(d.SubscriptionConfidence))
	for k, v := range d.SubscriptionConfidence {
		clone.SubscriptionConfidence[k] = v
	}
	return clone
}

// RawThrottleEvent is the on-disk shape of a throttle-*.json file.
type RawThrottleEvent struct {
	Timestamp      json.RawMessage `json:"timestamp"`
	Subscription   string          `json:"subscription"`
	TokenCount     float64         `json:"tokenCount"`
	MessageCount   int             `json:"messageCount"`
	ActiveSessions int             `json:"activeSessions"`
}

// ToThrottleEvent converts the raw event. A missing or unparsable timestamp
// is an error.
func (r *RawThrottleEvent) ToThrottleEvent() (ThrottleEvent, error) {
	ts := parseTimeField(r.Timestamp)
	if ts.IsZero() {
		return ThrottleEvent{}, ErrMissingTimestamp
	}
	return ThrottleEvent{
		Timestamp:      Timestamp(ts),
		Subscription:   r.Subscription,
		TokenCount:     int64(r.TokenCount),
		MessageCount:   r.MessageCount,
		ActiveSessions: r.ActiveSessions,
	}, nil
}
