// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	StorageDir    string
	UsageFile     string
	ThresholdFile string
	SessionsDir   string
	ThrottleDir   string
	DatabasePath  string
	SettingsFile  string

	LogFile  string
	LogLevel string

	RefreshInterval   time.Duration
	LearnSchedule     string
	DesktopNotify     bool
	MetricsTextfile   string
	SnapshotRetention time.Duration

	Heuristics Heuristics
	Tiers      map[string]TierOverride

	// SettingsErr records why the settings file was ignored, if it was.
	SettingsErr error
}

// Default values
const (
	defaultStorageDirName    = ".claude-centralized"
	defaultRefreshInterval   = 5 * time.Second
	defaultLearnSchedule     = "*/15 * * * *"
	defaultSnapshotRetention = 30 * 24 * time.Hour
	defaultLogLevel          = "warn"

	usageFileName     = "usage-tracking.json"
	thresholdFileName = "threshold-learning.json"
	settingsFileName  = "monitor.yaml"
	databaseFileName  = "usage-monitor.db"
)

// Load reads configuration from .env files, environment variables and the
// optional monitor.yaml in the storage root.
func Load() (*Config, error) {
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	storage := getEnvString("CLAUDE_CENTRAL_STORAGE", getDefaultStorageDir())
	cfg := Defaults(storage)

	cfg.UsageFile = getEnvString("USAGE_FILE", cfg.UsageFile)
	// The learner document and throttle log live next to the usage file.
	usageDir := filepath.Dir(cfg.UsageFile)
	cfg.ThresholdFile = filepath.Join(usageDir, thresholdFileName)
	cfg.ThrottleDir = filepath.Join(usageDir, "throttle-events")

	cfg.DatabasePath = getEnvString("DATABASE_PATH", cfg.DatabasePath)
	cfg.SettingsFile = getEnvString("MONITOR_CONFIG", cfg.SettingsFile)
	cfg.LogFile = getEnvString("LOG_FILE", cfg.LogFile)
	cfg.LogLevel = getEnvString("LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsTextfile = getEnvString("METRICS_TEXTFILE", cfg.MetricsTextfile)

	// A broken settings file leaves the defaults in force.
	cfg.SettingsErr = cfg.applyFile(cfg.SettingsFile)

	// Environment wins over the settings file for scalar settings.
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", cfg.RefreshInterval)
	cfg.LearnSchedule = getEnvString("LEARN_SCHEDULE", cfg.LearnSchedule)
	cfg.DesktopNotify = getEnvBool("DESKTOP_NOTIFY", cfg.DesktopNotify)
	cfg.SnapshotRetention = getEnvDuration("SNAPSHOT_RETENTION", cfg.SnapshotRetention)

	if err := ensureDir(cfg.StorageDir); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	if err := ensureDir(filepath.Dir(cfg.UsageFile)); err != nil {
		return nil, fmt.Errorf("creating usage directory: %w", err)
	}

	return cfg, nil
}

// Defaults returns a configuration rooted at storageDir with every other
// setting at its default value.
func Defaults(storageDir string) *Config {
	return &Config{
		StorageDir:        storageDir,
		UsageFile:         filepath.Join(storageDir, usageFileName),
		ThresholdFile:     filepath.Join(storageDir, thresholdFileName),
		SessionsDir:       filepath.Join(storageDir, "sessions"),
		ThrottleDir:       filepath.Join(storageDir, "throttle-events"),
		DatabasePath:      filepath.Join(storageDir, databaseFileName),
		SettingsFile:      filepath.Join(storageDir, settingsFileName),
		LogFile:           filepath.Join(storageDir, "logs", "usage-monitor.log"),
		LogLevel:          defaultLogLevel,
		RefreshInterval:   defaultRefreshInterval,
		LearnSchedule:     defaultLearnSchedule,
		DesktopNotify:     true,
		SnapshotRetention: defaultSnapshotRetention,
		Heuristics:        DefaultHeuristics(),
		Tiers:             map[string]TierOverride{},
	}
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "usage-monitor", ".env"),
			filepath.Join(home, defaultStorageDirName, ".env"),
		)
	}

	return paths
}

// getDefaultStorageDir returns the shared storage root used by the session
// wrapper and the monitor.
func getDefaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultStorageDirName
	}
	return filepath.Join(home, defaultStorageDirName)
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
