package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrMissingStartTime is returned for session files without a usable start time.
var ErrMissingStartTime = errors.New("session record has no start time")

// SessionRecord is a snapshot of one client session written by the session wrapper.
type SessionRecord struct {
	StartTime       time.Time `json:"startTime"`
	Path            string    `json:"-"`
	EstimatedTokens int64     `json:"estimatedTokens"`
	PID             int       `json:"pid"`
	MessageCount    int       `json:"messageCount"`
	Active          bool      `json:"active"`
}

// Duration returns how long the session has been running at now.
func (s SessionRecord) Duration(now time.Time) time.Duration {
	d := now.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// RawSessionRecord is the on-disk shape of a session file. The wrapper has
// written start times both as ISO strings and as epoch milliseconds.
type RawSessionRecord struct {
	StartTime       json.RawMessage `json:"startTime"`
	EstimatedTokens float64         `json:"estimatedTokens"`
	PID             int             `json:"pid"`
	MessageCount    int             `json:"messageCount"`
	Active          bool            `json:"active"`
}

// ToSessionRecord converts the raw record, rejecting it when the start time
// cannot be parsed.
func (r *RawSessionRecord) ToSessionRecord() (SessionRecord, error) {
	start := parseTimeField(r.StartTime)
	if start.IsZero() {
		return SessionRecord{}, ErrMissingStartTime
	}
	tokens := int64(r.EstimatedTokens)
	if tokens < 0 {
		tokens = 0
	}
	msgs := r.MessageCount
	if msgs < 0 {
		msgs = 0
	}
	return SessionRecord{
		PID:             r.PID,
		StartTime:       start.UTC(),
		Active:          r.Active,
		EstimatedTokens: tokens,
		MessageCount:    msgs,
	}, nil
}

// parseTimeField attempts to parse a JSON time value as either ISO string or Unix timestamp.
func parseTimeField(data json.RawMessage) time.Time {
	if len(data) == 0 {
		return time.Time{}
	}

	var strVal string
	if err := json.Unmarshal(data, &strVal); err == nil {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z"} {
			if t, err := time.Parse(layout, strVal); err == nil {
				return t
			}
		}
		return time.Time{}
	}

	var numVal float64
	if err := json.Unmarshal(data, &numVal); err == nil && numVal > 0 {
		if numVal > 1e12 {
			return time.UnixMilli(int64(numVal))
		}
		return time.Unix(int64(numVal), 0)
	}

	return time.Time{}
}
