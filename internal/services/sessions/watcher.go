package sessions

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
)

// EventType defines the type of watcher event.
type EventType int

const (
	// EventSessionsChanged means a session file was written or removed.
	EventSessionsChanged EventType = iota
	// EventUsageChanged means another process rewrote the usage document.
	EventUsageChanged
	// EventError carries a watcher error.
	EventError
)

// Event represents a change in the shared storage.
type Event struct {
	Type  EventType
	Error error
}

const debounceInterval = 100 * time.Millisecond

// Watcher reports changes to the sessions directory and to the usage document.
type Watcher struct {
	mu          sync.Mutex
	sessionsDir string
	usageFile   string
	watcher     *fsnotify.Watcher
	eventChan   chan Event
	stopChan    chan struct{}
	timers      map[EventType]*time.Timer
	closeOnce   sync.Once
}

// NewWatcher starts watching sessionsDir and the directory holding usageFile.
// The sessions directory is created if needed so it can be watched before
// the first session starts.
func NewWatcher(sessionsDir, usageFile string) (*Watcher, error) {
	if err := os.MkdirAll(sessionsDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	dirs := []string{sessionsDir}
	if usageFile != "" {
		if usageDir := filepath.Dir(usageFile); usageDir != filepath.Clean(sessionsDir) {
			dirs = append(dirs, usageDir)
		}
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			if closeErr := fw.Close(); closeErr != nil {
				logger.Error("failed to close watcher", "error", closeErr)
			}
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w := &Watcher{
		sessionsDir: filepath.Clean(sessionsDir),
		usageFile:   usageFile,
		watcher:     fw,
		eventChan:   make(chan Event, 16),
		stopChan:    make(chan struct{}),
		timers:      make(map[EventType]*time.Timer),
	}
	go w.watchLoop()
	return w, nil
}

// Events returns the event channel.
func (w *Watcher) Events() <-chan Event {
	return w.eventChan
}

// watchLoop handles file system events with debouncing.
func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if typ, ok := w.classify(event); ok {
				w.debounce(typ)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendEvent(Event{Type: EventError, Error: err})

		case <-w.stopChan:
			return
		}
	}
}

// classify maps a file system event onto a watcher event type.
func (w *Watcher) classify(event fsnotify.Event) (EventType, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return 0, false
	}

	name := filepath.Base(event.Name)
	if filepath.Dir(event.Name) == w.sessionsDir {
		if ok, _ := filepath.Match(FilePattern, name); ok {
			return EventSessionsChanged, true
		}
		return 0, false
	}

	// The usage document is replaced by rename, so Create covers our own
	// writes as well as other processes'.
	if w.usageFile != "" && name == filepath.Base(w.usageFile) {
		return EventUsageChanged, true
	}
	return 0, false
}

// debounce collapses bursts of events of one type into a single event.
func (w *Watcher) debounce(typ EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[typ]; ok {
		t.Stop()
	}
	w.timers[typ] = time.AfterFunc(debounceInterval, func() {
		w.sendEvent(Event{Type: typ})
	})
}

// sendEvent sends an event to the event channel non-blocking.
func (w *Watcher) sendEvent(event Event) {
	select {
	case <-w.stopChan:
		return
	default:
	}

	select {
	case w.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-w.eventChan:
		default:
		}
		select {
		case w.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher and cleans up resources.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopChan)

		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.mu.Unlock()

		err = w.watcher.Close()
	})
	return err
}
