// Package logger provides a simple wrapper around slog for structured logging.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Options selects where log records go and which of them are kept.
type Options struct {
	Level string
	// File routes records to a rotated log file instead of stderr. Used
	// while the live monitor owns the terminal.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init replaces the global logger according to opts. The returned closer
// releases the log file, if any.
func Init(opts Options) io.Closer {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	if opts.File == "" {
		Logger = slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
		return nopCloser{}
	}

	_ = os.MkdirAll(filepath.Dir(opts.File), 0o750)
	sink := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    orDefault(opts.MaxSizeMB, 10),
		MaxBackups: orDefault(opts.MaxBackups, 3),
		MaxAge:     orDefault(opts.MaxAgeDays, 28),
		Compress:   true,
	}
	Logger = slog.New(slog.NewTextHandler(sink, handlerOpts))
	return sink
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}
