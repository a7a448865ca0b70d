// Package learner derives tier limits from logged throttle events.
package learner

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/config"
	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/store"
)

const maxConfidence = 100

// Options are the heuristic constants of the learner.
type Options struct {
	MessageFactor float64
	TokenFactor   float64
	SessionMargin int
	AdaptiveAfter int

	MessageStep int
	TokenStep   int
	SessionStep int
}

// DefaultOptions returns the built-in learner constants.
func DefaultOptions() Options {
	return OptionsFrom(config.DefaultHeuristics())
}

// OptionsFrom extracts the learner constants from the configured heuristics.
func OptionsFrom(h config.Heuristics) Options {
	return Options{
		MessageFactor: h.MessageFactor,
		TokenFactor:   h.TokenFactor,
		SessionMargin: h.SessionMargin,
		AdaptiveAfter: h.AdaptiveAfter,
		MessageStep:   h.MessageConfidenceStep,
		TokenStep:     h.TokenConfidenceStep,
		SessionStep:   h.SessionConfidenceStep,
	}
}

// Result is the outcome of one analysis pass.
type Result struct {
	Limits     map[string]models.AdaptedLimits
	Confidence map[string]models.Confidence
	Events     []models.ThrottleEvent
	Mode       models.LearningMode
}

// Distinct returns the number of distinct events analyzed.
func (r Result) Distinct() int {
	return len(r.Events)
}

// Dedupe drops repeated events and sorts the rest by time, then key, so the
// outcome does not depend on input order.
func Dedupe(events []models.ThrottleEvent) []models.ThrottleEvent {
	seen := make(map[string]struct{}, len(events))
	out := make([]models.ThrottleEvent, 0, len(events))
	for _, e := range events {
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// observations collects the strictly positive values seen for one subscription.
type observations struct {
	messages []int
	tokens   []int64
	sessions []int
}

// Analyze recomputes adapted limits from the full event log. Dimensions with
// no positive observation keep their prior value. It has no side effects.
func Analyze(events []models.ThrottleEvent, prior map[string]models.AdaptedLimits, opts Options) Result {
	distinct := Dedupe(events)

	groups := make(map[string]*observations)
	for _, e := range distinct {
		key := e.SubscriptionKey()
		g, ok := groups[key]
		if !ok {
			g = &observations{}
			groups[key] = g
		}
		if e.MessageCount > 0 {
			g.messages = append(g.messages, e.MessageCount)
		}
		if e.TokenCount > 0 {
			g.tokens = append(g.tokens, e.TokenCount)
		}
		if e.ActiveSessions > 0 {
			g.sessions = append(g.sessions, e.ActiveSessions)
		}
	}

	limits := make(map[string]models.AdaptedLimits, len(prior)+len(groups))
	for k, v := range prior {
		limits[k] = v
	}
	confidence := make(map[string]models.Confidence, len(groups))

	for sub, g := range groups {
		adapted := limits[sub]
		if len(g.messages) > 0 {
			adapted.DailyMessages = int(scale(int64(minOf(g.messages)), opts.MessageFactor))
		}
		if len(g.tokens) > 0 {
			adapted.DailyTokens = scale(minOf(g.tokens), opts.TokenFactor)
		}
		if len(g.sessions) > 0 {
			adapted.ConcurrentSessions = max(1, minOf(g.sessions)-opts.SessionMargin)
		}
		if !adapted.IsZero() {
			limits[sub] = adapted
		}

		confidence[sub] = models.Confidence{
			Messages: score(len(g.messages), opts.MessageStep),
			Tokens:   score(len(g.tokens), opts.TokenStep),
			Sessions: score(len(g.sessions), opts.SessionStep),
		}
	}

	mode := models.ModeEstimates
	if len(distinct) >= opts.AdaptiveAfter {
		mode = models.ModeAdaptive
	}

	return Result{Limits: limits, Confidence: confidence, Events: distinct, Mode: mode}
}

func minOf[T int | int64](values []T) T {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// scale returns floor(v * factor), tolerating float error just below an integer.
func scale(v int64, factor float64) int64 {
	return int64(math.Floor(float64(v)*factor + 1e-9))
}

func score(n, step int) int {
	return min(maxConfidence, max(0, n*step))
}

// Learner owns the threshold-learning document.
type Learner struct {
	mu     sync.Mutex
	path   string
	opts   Options
	doc    models.ThresholdDocument
	status models.LoadStatus
}

// New creates a learner for the document at path. Call Load before use.
func New(path string, opts Options) *Learner {
	return &Learner{
		path:   path,
		opts:   opts,
		doc:    models.NewThresholdDocument(time.Now()),
		status: models.LoadDefaulted,
	}
}

// Path returns the document location.
func (l *Learner) Path() string {
	return l.path
}

// Load reads the document from disk with the same policy as the usage store:
// absent or partly defaulted documents are usable, unreadable ones are replaced.
func (l *Learner) Load(now time.Time) models.LoadStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	var doc models.ThresholdDocument
	err := store.ReadJSON(l.path, &doc)
	switch {
	case errors.Is(err, os.ErrNotExist):
		l.doc = models.NewThresholdDocument(now)
		l.status = models.LoadDefaulted
	case err != nil:
		logger.Warn("threshold data unreadable, starting over", "path", l.path, "error", err)
		l.doc = models.NewThresholdDocument(now)
		l.status = models.LoadRejected
	default:
		l.doc, l.status = normalize(doc, now)
	}
	return l.status
}

// Status returns the result of the last Load.
func (l *Learner) Status() models.LoadStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Document returns a copy of the learner state.
func (l *Learner) Document() models.ThresholdDocument {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc.Clone()
}

// Mode returns the current learning mode.
func (l *Learner) Mode() models.LearningMode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc.LearningMode
}

// Learn analyzes the full event log and persists the result. The tracked
// subscription's confidence becomes the document-level confidence. Once
// adaptive, the learner never returns to estimates. An empty log leaves the
// document untouched.
func (l *Learner) Learn(events []models.ThrottleEvent, subscription string, now time.Time) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(events) == 0 {
		doc := l.doc.Clone()
		return Result{
			Limits:     doc.AdaptedLimits,
			Confidence: doc.SubscriptionConfidence,
			Events:     doc.ThrottleEvents,
			Mode:       doc.LearningMode,
		}, nil
	}

	res := Analyze(events, l.doc.AdaptedLimits, l.opts)
	if l.doc.LearningMode == models.ModeAdaptive {
		res.Mode = models.ModeAdaptive
	}

	l.doc.LearningMode = res.Mode
	l.doc.LastUpdated = models.Timestamp(now)
	l.doc.ThrottleEvents = res.Events
	l.doc.AdaptedLimits = res.Limits
	l.doc.SubscriptionConfidence = res.Confidence
	l.doc.Confidence = res.Confidence[models.NormalizeSubscription(subscription)]

	logger.Info("threshold learning pass",
		"events", res.Distinct(), "mode", res.Mode, "subscriptions", len(res.Confidence))

	if err := store.WriteJSON(l.path, l.doc); err != nil {
		logger.Error("failed to save threshold data", "path", l.path, "error", err)
		return res, fmt.Errorf("saving threshold data: %w", err)
	}
	return res, nil
}

// EffectiveLimits returns the tier with learned limits applied. Learned
// limits only count once the learner is adaptive.
func (l *Learner) EffectiveLimits(tier models.Tier, subscription string) models.Limits {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.doc.LearningMode != models.ModeAdaptive {
		return models.Limits{Tier: tier}
	}
	adapted, ok := l.doc.AdaptedLimits[models.NormalizeSubscription(subscription)]
	if !ok {
		return models.Limits{Tier: tier}
	}
	return adapted.Overlay(tier)
}

func normalize(doc models.ThresholdDocument, now time.Time) (models.ThresholdDocument, models.LoadStatus) {
	status := models.LoadLoaded
	if !doc.LearningMode.Valid() {
		doc.LearningMode = models.ModeEstimates
		status = models.LoadDefaulted
	}
	if doc.LastUpdated.IsZero() {
		doc.LastUpdated = models.Timestamp(now)
		status = models.LoadDefaulted
	}
	if doc.ThrottleEvents == nil {
		doc.ThrottleEvents = []models.ThrottleEvent{}
	}
	if doc.AdaptedLimits == nil {
		doc.AdaptedLimits = map[string]models.AdaptedLimits{}
	}
	if doc.SubscriptionConfidence == nil {
		doc.SubscriptionConfidence = map[string]models.Confidence{}
	}
	return doc, status
}
