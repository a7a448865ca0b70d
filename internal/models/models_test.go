package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestUsagePeriod_CloseKeepsCounts(t *testing.T) {
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	p := NewUsagePeriod(start)
	p.MessageCount = 12
	p.TokenCount = 3400

	closed := p.Close(start.Add(25 * time.Hour))
	if closed.MessageCount != 12 || closed.TokenCount != 3400 {
		t.Errorf("Close() lost counts: %+v", closed)
	}
	if !closed.EndDate.Equal(start.Add(25 * time.Hour)) {
		t.Errorf("EndDate = %v", closed.EndDate)
	}
}

func TestClosedPeriod_JSONIsFlat(t *testing.T) {
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	closed := NewUsagePeriod(start).Close(start.Add(time.Hour))

	data, err := json.Marshal(closed)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"startDate"`, `"endDate"`, `"messageCount"`, `"peakConcurrentSessions"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("marshaled period missing %s: %s", key, data)
		}
	}
}

func TestUsageDocument_Clone(t *testing.T) {
	doc := UsageDocument{History: []ClosedPeriod{{EndDate: time.Now()}}}
	clone := doc.Clone()
	clone.History[0].MessageCount = 99

	if doc.History[0].MessageCount == 99 {
		t.Error("Clone shares history with the original")
	}
}

func TestTimestamp(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	in := time.Date(2024, 1, 1, 10, 0, 0, 123456789, loc)
	got := Timestamp(in)

	if got.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", got.Location())
	}
	if got.Nanosecond() != 123000000 {
		t.Errorf("Timestamp nanos = %d, want 123000000", got.Nanosecond())
	}
}

func TestLoadStatus_String(t *testing.T) {
	tests := map[LoadStatus]string{
		LoadLoaded:     "loaded",
		LoadDefaulted:  "defaulted",
		LoadRejected:   "rejected",
		LoadStatus(42): "unknown",
	}
	for status, want := range tests {
		if got := status.String(); got != want {
			t.Errorf("LoadStatus(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestRawSessionRecord_ToSessionRecord(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "ISO",
			input: `{"pid":1,"startTime":"2024-01-01T10:00:00.000Z","active":true}`,
			want:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "EpochMillis",
			input: `{"pid":2,"startTime":1704103200000}`,
			want:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:    "Missing",
			input:   `{"pid":3}`,
			wantErr: true,
		},
		{
			name:    "Garbage",
			input:   `{"pid":4,"startTime":"yesterday"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw RawSessionRecord
			if err := json.Unmarshal([]byte(tt.input), &raw); err != nil {
				t.Fatal(err)
			}
			rec, err := raw.ToSessionRecord()
			if tt.wantErr {
				if !errors.Is(err, ErrMissingStartTime) {
					t.Errorf("err = %v, want ErrMissingStartTime", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !rec.StartTime.Equal(tt.want) {
				t.Errorf("StartTime = %v, want %v", rec.StartTime, tt.want)
			}
		})
	}
}

func TestSessionRecord_Duration(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := SessionRecord{StartTime: now.Add(-90 * time.Minute)}
	if got := s.Duration(now); got != 90*time.Minute {
		t.Errorf("Duration = %v, want 90m", got)
	}
	future := SessionRecord{StartTime: now.Add(time.Hour)}
	if got := future.Duration(now); got != 0 {
		t.Errorf("Duration of future session = %v, want 0", got)
	}
}

func TestAdaptedLimits_Overlay(t *testing.T) {
	tier := Tier{ID: "pro", DailyMessages: 400, DailyTokens: 2_000_000, ConcurrentSessions: 4}

	tests := []struct {
		name        string
		adapted     AdaptedLimits
		wantMsgs    int
		wantTokens  int64
		wantSess    int
		wantAdapted bool
	}{
		{"Empty", AdaptedLimits{}, 400, 2_000_000, 4, false},
		{"MessagesOnly", AdaptedLimits{DailyMessages: 315}, 315, 2_000_000, 4, true},
		{"All", AdaptedLimits{DailyMessages: 300, DailyTokens: 900, ConcurrentSessions: 2}, 300, 900, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.adapted.Overlay(tier)
			if got.DailyMessages != tt.wantMsgs || got.DailyTokens != tt.wantTokens ||
				got.ConcurrentSessions != tt.wantSess || got.IsAdapted != tt.wantAdapted {
				t.Errorf("Overlay() = %+v", got)
			}
			if tt.adapted.IsZero() == tt.wantAdapted {
				t.Errorf("IsZero() disagrees with IsAdapted for %+v", tt.adapted)
			}
		})
	}
}

func TestThrottleEvent_Key(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := ThrottleEvent{Subscription: "Max", MessageCount: 10, Timestamp: ts}
	b := ThrottleEvent{Subscription: "max", MessageCount: 10, Timestamp: ts}
	c := ThrottleEvent{Subscription: "max", MessageCount: 11, Timestamp: ts}

	if a.Key() != b.Key() {
		t.Error("subscription case should not distinguish events")
	}
	if a.Key() == c.Key() {
		t.Error("different message counts must give different keys")
	}
	if got := (ThrottleEvent{}).SubscriptionKey(); got != UnknownSubscription {
		t.Errorf("empty subscription key = %q, want %q", got, UnknownSubscription)
	}
}

func TestRawThrottleEvent_ToThrottleEvent(t *testing.T) {
	var raw RawThrottleEvent
	input := `{"subscription":"pro","messageCount":360,"tokenCount":1.5e6,"activeSessions":3,"timestamp":"2024-02-01T09:30:00Z"}`
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		t.Fatal(err)
	}
	ev, err := raw.ToThrottleEvent()
	if err != nil {
		t.Fatalf("ToThrottleEvent() error = %v", err)
	}
	if ev.TokenCount != 1_500_000 || ev.MessageCount != 360 || ev.ActiveSessions != 3 {
		t.Errorf("event = %+v", ev)
	}

	var missing RawThrottleEvent
	if _, err := missing.ToThrottleEvent(); !errors.Is(err, ErrMissingTimestamp) {
		t.Errorf("err = %v, want ErrMissingTimestamp", err)
	}
}

func TestThresholdDocument_Clone(t *testing.T) {
	doc := NewThresholdDocument(time.Now())
	doc.AdaptedLimits["max"] = AdaptedLimits{DailyMessages: 100}
	doc.ThrottleEvents = append(doc.ThrottleEvents, ThrottleEvent{MessageCount: 1})

	clone := doc.Clone()
	clone.AdaptedLimits["max"] = AdaptedLimits{DailyMessages: 1}
	clone.ThrottleEvents[0].MessageCount = 2

	if doc.AdaptedLimits["max"].DailyMessages != 100 {
		t.Error("Clone shares adapted limits")
	}
	if doc.ThrottleEvents[0].MessageCount != 1 {
		t.Error("Clone shares throttle events")
	}
	if doc.LearningMode != ModeEstimates || !doc.LearningMode.Valid() {
		t.Errorf("initial mode = %q", doc.LearningMode)
	}
}

func TestRateBand_Label(t *testing.T) {
	tests := map[RateBand]string{
		RateSafe:      "SAFE",
		RateCaution:   "CAUTION",
		RateExceeding: "EXCEEDING",
	}
	for band, want := range tests {
		if got := band.Label(); got != want {
			t.Errorf("%q.Label() = %q, want %q", band, got, want)
		}
	}
}
