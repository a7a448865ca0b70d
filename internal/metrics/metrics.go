// Package metrics exposes usage state as Prometheus gauges so it can be
// scraped through the node exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

const namespace = "claude_usage"

// Sample is the state observed at one refresh.
type Sample struct {
	Subscription string
	Period       models.UsagePeriod
	Limits       models.Limits
	Metrics      models.Metrics
}

// Collector holds the Prometheus collectors for the monitor.
type Collector struct {
	registry *prometheus.Registry

	messages        *prometheus.GaugeVec
	tokens          *prometheus.GaugeVec
	sessions        *prometheus.GaugeVec
	messageLimit    *prometheus.GaugeVec
	tokenLimit      *prometheus.GaugeVec
	sessionLimit    *prometheus.GaugeVec
	combinedPct     *prometheus.GaugeVec
	hoursUntilReset *prometheus.GaugeVec
	safeRate        *prometheus.GaugeVec
	currentRate     *prometheus.GaugeVec
	limitsAdapted   *prometheus.GaugeVec
	alertsFired     *prometheus.CounterVec
}

func gauge(subsystem, name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		[]string{"subscription"},
	)
}

// NewCollector creates a collector registered on its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		messages:        gauge("period", "messages", "Messages counted in the current period"),
		tokens:          gauge("period", "tokens", "Estimated tokens counted in the current period"),
		sessions:        gauge("period", "active_sessions", "Sessions currently running"),
		messageLimit:    gauge("limits", "daily_messages", "Daily message limit in force"),
		tokenLimit:      gauge("limits", "daily_tokens", "Daily token limit in force"),
		sessionLimit:    gauge("limits", "concurrent_sessions", "Concurrent session limit in force"),
		combinedPct:     gauge("period", "combined_percentage", "Larger of message and token usage percentage"),
		hoursUntilReset: gauge("period", "hours_until_reset", "Hours left until the period resets"),
		safeRate:        gauge("rate", "safe_messages_per_hour", "Message rate that exactly exhausts the remaining budget"),
		currentRate:     gauge("rate", "current_messages_per_hour", "Average message rate since the period started"),
		limitsAdapted:   gauge("limits", "adapted", "1 when learned limits replace the tier defaults"),
		alertsFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "fired_total",
				Help:      "Alerts that passed the cooldown gate",
			},
			[]string{"category"},
		),
	}

	c.registry.MustRegister(
		c.messages,
		c.tokens,
		c.sessions,
		c.messageLimit,
		c.tokenLimit,
		c.sessionLimit,
		c.combinedPct,
		c.hoursUntilReset,
		c.safeRate,
		c.currentRate,
		c.limitsAdapted,
		c.alertsFired,
	)
	return c
}

// Registry returns the registry the collectors are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe updates every gauge from a sample. Gauges for other subscriptions
// are cleared so a subscription switch does not leave stale series behind.
func (c *Collector) Observe(s Sample) {
	for _, g := range c.gauges() {
		g.Reset()
	}

	sub := s.Subscription
	c.messages.WithLabelValues(sub).Set(float64(s.Period.MessageCount))
	c.tokens.WithLabelValues(sub).Set(float64(s.Period.TokenCount))
	c.sessions.WithLabelValues(sub).Set(float64(s.Metrics.ActiveSessions))
	c.messageLimit.WithLabelValues(sub).Set(float64(s.Limits.DailyMessages))
	c.tokenLimit.WithLabelValues(sub).Set(float64(s.Limits.DailyTokens))
	c.sessionLimit.WithLabelValues(sub).Set(float64(s.Limits.ConcurrentSessions))
	c.combinedPct.WithLabelValues(sub).Set(s.Metrics.CombinedPct)
	c.hoursUntilReset.WithLabelValues(sub).Set(s.Metrics.HoursUntilReset)
	c.safeRate.WithLabelValues(sub).Set(s.Metrics.SafeRate)
	c.currentRate.WithLabelValues(sub).Set(s.Metrics.CurrentRate)

	adapted := 0.0
	if s.Limits.IsAdapted {
		adapted = 1
	}
	c.limitsAdapted.WithLabelValues(sub).Set(adapted)
}

// AlertFired counts an alert of the given category.
func (c *Collector) AlertFired(category models.AlertCategory) {
	c.alertsFired.WithLabelValues(string(category)).Inc()
}

// WriteTextfile writes the registry in the text exposition format. The file
// is written atomically, as the textfile collector requires.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func (c *Collector) gauges() []*prometheus.GaugeVec {
	return []*prometheus.GaugeVec{
		c.messages,
		c.tokens,
		c.sessions,
		c.messageLimit,
		c.tokenLimit,
		c.sessionLimit,
		c.combinedPct,
		c.hoursUntilReset,
		c.safeRate,
		c.currentRate,
		c.limitsAdapted,
	}
}
