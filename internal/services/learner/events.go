package learner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/store"
)

// EventFilePattern matches the throttle event files written by the wrapper.
const EventFilePattern = "throttle-*.json"

// LoadEvents reads every throttle event in dir. A missing directory is an
// empty log; unreadable or malformed files are skipped with a warning.
func LoadEvents(dir string) ([]models.ThrottleEvent, error) {
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading throttle directory: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, EventFilePattern))
	if err != nil {
		return nil, fmt.Errorf("listing throttle events: %w", err)
	}
	sort.Strings(paths)

	events := make([]models.ThrottleEvent, 0, len(paths))
	for _, path := range paths {
		var raw models.RawThrottleEvent
		if err := store.ReadJSON(path, &raw); err != nil {
			logger.Warn("skipping unreadable throttle event", "path", path, "error", err)
			continue
		}
		ev, err := raw.ToThrottleEvent()
		if err != nil {
			logger.Warn("skipping throttle event", "path", path, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
