package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type logRecord struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer

	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	originalLogger := Logger
	Logger = slog.New(handler)
	defer func() { Logger = originalLogger }()

	tests := []struct {
		name  string
		fn    func(msg string, args ...any)
		level string
		msg   string
	}{
		{name: "Info", fn: Info, level: "INFO", msg: "info message"},
		{name: "Error", fn: Error, level: "ERROR", msg: "error message"},
		{name: "Warn", fn: Warn, level: "WARN", msg: "warn message"},
		{name: "Debug", fn: Debug, level: "DEBUG", msg: "debug message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.fn(tt.msg)

			var rec logRecord
			if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
				t.Fatalf("failed to unmarshal log output: %v", err)
			}

			if rec.Msg != tt.msg {
				t.Errorf("expected msg %q, got %q", tt.msg, rec.Msg)
			}
			if rec.Level != tt.level {
				t.Errorf("expected level %q, got %q", tt.level, rec.Level)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit_File(t *testing.T) {
	originalLogger := Logger
	defer func() { Logger = originalLogger }()

	path := filepath.Join(t.TempDir(), "logs", "monitor.log")
	closer := Init(Options{Level: "info", File: path})

	Debug("hidden")
	Info("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing info record: %q", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug record should be filtered at info level")
	}
}

func TestInit_Stderr(t *testing.T) {
	originalLogger := Logger
	defer func() { Logger = originalLogger }()

	closer := Init(Options{Level: "error"})
	if closer == nil {
		t.Fatal("Init returned nil closer")
	}
	if Logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled at error level")
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
