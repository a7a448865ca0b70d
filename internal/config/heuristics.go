package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Heuristics holds the tunable constants used by the analyzer, the learner
// and the alert gate.
type Heuristics struct {
	ResetWindow    time.Duration `yaml:"resetWindow"`
	RatePerSession float64       `yaml:"ratePerSession"`

	MessageFactor float64 `yaml:"messageFactor"`
	TokenFactor   float64 `yaml:"tokenFactor"`
	SessionMargin int     `yaml:"sessionMargin"`
	AdaptiveAfter int     `yaml:"adaptiveAfter"`

	MessageConfidenceStep int `yaml:"messageConfidenceStep"`
	TokenConfidenceStep   int `yaml:"tokenConfidenceStep"`
	SessionConfidenceStep int `yaml:"sessionConfidenceStep"`

	Cooldowns Cooldowns `yaml:"cooldowns"`
}

// Cooldowns are the minimum gaps between two alerts of the same category.
type Cooldowns struct {
	Critical        time.Duration `yaml:"critical"`
	Warning         time.Duration `yaml:"warning"`
	SessionOverflow time.Duration `yaml:"sessionOverflow"`
	RateExceeding   time.Duration `yaml:"rateExceeding"`
}

// TierOverride replaces individual fields of a compiled-in tier. Zero fields
// are left alone.
type TierOverride struct {
	Name               string  `yaml:"name"`
	DailyMessages      int     `yaml:"dailyMessages"`
	DailyTokens        int64   `yaml:"dailyTokens"`
	ConcurrentSessions int     `yaml:"concurrentSessions"`
	WarningThreshold   float64 `yaml:"warningThreshold"`
	CriticalThreshold  float64 `yaml:"criticalThreshold"`
}

// DefaultHeuristics returns the built-in heuristic constants.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		ResetWindow:           24 * time.Hour,
		RatePerSession:        10,
		MessageFactor:         0.9,
		TokenFactor:           0.9,
		SessionMargin:         1,
		AdaptiveAfter:         3,
		MessageConfidenceStep: 20,
		TokenConfidenceStep:   20,
		SessionConfidenceStep: 25,
		Cooldowns: Cooldowns{
			Critical:        5 * time.Minute,
			Warning:         10 * time.Minute,
			SessionOverflow: time.Minute,
			RateExceeding:   5 * time.Minute,
		},
	}
}

// settingsFile mirrors monitor.yaml. Fields are decoded on top of the current
// values, so keys missing from the file keep their defaults.
type settingsFile struct {
	RefreshInterval   time.Duration           `yaml:"refreshInterval"`
	LearnSchedule     string                  `yaml:"learnSchedule"`
	DesktopNotify     bool                    `yaml:"desktopNotify"`
	SnapshotRetention time.Duration           `yaml:"snapshotRetention"`
	Heuristics        Heuristics              `yaml:"heuristics"`
	Tiers             map[string]TierOverride `yaml:"tiers"`
}

// applyFile overlays the settings file at path onto cfg. A missing file is
// not an error.
func (c *Config) applyFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading settings file: %w", err)
	}

	sf := settingsFile{
		RefreshInterval:   c.RefreshInterval,
		LearnSchedule:     c.LearnSchedule,
		DesktopNotify:     c.DesktopNotify,
		SnapshotRetention: c.SnapshotRetention,
		Heuristics:        c.Heuristics,
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parsing settings file %s: %w", path, err)
	}

	if err := sf.Heuristics.Validate(); err != nil {
		return fmt.Errorf("settings file %s: %w", path, err)
	}

	c.RefreshInterval = sf.RefreshInterval
	c.LearnSchedule = sf.LearnSchedule
	c.DesktopNotify = sf.DesktopNotify
	c.SnapshotRetention = sf.SnapshotRetention
	c.Heuristics = sf.Heuristics
	for name, override := range sf.Tiers {
		c.Tiers[strings.ToLower(strings.TrimSpace(name))] = override
	}
	return nil
}

// Validate reports heuristic values that would make the analyzer or the
// learner misbehave.
func (h Heuristics) Validate() error {
	switch {
	case h.ResetWindow <= 0:
		return errors.New("resetWindow must be positive")
	case h.RatePerSession < 0:
		return errors.New("ratePerSession must not be negative")
	case h.MessageFactor <= 0 || h.MessageFactor > 1:
		return errors.New("messageFactor must be in (0, 1]")
	case h.TokenFactor <= 0 || h.TokenFactor > 1:
		return errors.New("tokenFactor must be in (0, 1]")
	case h.SessionMargin < 0:
		return errors.New("sessionMargin must not be negative")
	case h.AdaptiveAfter < 1:
		return errors.New("adaptiveAfter must be at least 1")
	case h.MessageConfidenceStep < 0 || h.TokenConfidenceStep < 0 || h.SessionConfidenceStep < 0:
		return errors.New("confidence steps must not be negative")
	}
	return h.Cooldowns.Validate()
}

// Validate rejects negative cooldowns. Zero disables the cooldown.
func (c Cooldowns) Validate() error {
	for name, d := range map[string]time.Duration{
		"critical":        c.Critical,
		"warning":         c.Warning,
		"sessionOverflow": c.SessionOverflow,
		"rateExceeding":   c.RateExceeding,
	} {
		if d < 0 {
			return fmt.Errorf("cooldowns.%s must not be negative", name)
		}
	}
	return nil
}
