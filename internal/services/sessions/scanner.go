// Package sessions reads the session records written by the session wrapper
// and watches the shared storage for changes.
package sessions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
	"github.com/j-veylop/claude-usage-monitor/internal/models"
	"github.com/j-veylop/claude-usage-monitor/internal/store"
)

// FilePattern matches the session files in the sessions directory.
const FilePattern = "session-*.json"

// Scan reads every session record in dir. A missing directory holds no
// sessions; files that cannot be read or parsed are skipped, since the wrapper
// may be halfway through writing them.
func Scan(dir string) ([]models.SessionRecord, error) {
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading sessions directory: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, FilePattern))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	sort.Strings(paths)

	records := make([]models.SessionRecord, 0, len(paths))
	for _, path := range paths {
		var raw models.RawSessionRecord
		if err := store.ReadJSON(path, &raw); err != nil {
			logger.Warn("skipping unreadable session file", "path", path, "error", err)
			continue
		}
		rec, err := raw.ToSessionRecord()
		if err != nil {
			logger.Warn("skipping session file", "path", path, "error", err)
			continue
		}
		rec.Path = path
		records = append(records, rec)
	}
	return records, nil
}

// Stats summarizes session records at a point in time.
type Stats struct {
	// Active holds the running sessions, longest running first.
	Active       []models.SessionRecord
	Total        int
	StartedToday int
}

// ActiveCount returns the number of running sessions.
func (s Stats) ActiveCount() int {
	return len(s.Active)
}

// Summarize computes session statistics. "Today" is the local calendar day of now.
func Summarize(records []models.SessionRecord, now time.Time) Stats {
	stats := Stats{Total: len(records)}

	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	for _, r := range records {
		if r.Active {
			stats.Active = append(stats.Active, r)
		}
		if !r.StartTime.Before(midnight) {
			stats.StartedToday++
		}
	}

	sort.SliceStable(stats.Active, func(i, j int) bool {
		return stats.Active[i].StartTime.Before(stats.Active[j].StartTime)
	})
	return stats
}
