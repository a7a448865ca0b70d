// Package store reads and writes the JSON documents shared with the session
// wrapper.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/j-veylop/claude-usage-monitor/internal/logger"
)

// WriteJSON replaces the document at path with v. The data is written to a
// temp file in the same directory first and renamed over the target, so a
// reader never sees a partial document.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpFile := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		removeTemp(tmpFile)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		removeTemp(tmpFile)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		removeTemp(tmpFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ReadJSON decodes the document at path into v. Errors from os.ReadFile are
// returned unwrapped enough for errors.Is(err, os.ErrNotExist).
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Error("failed to remove temp file", "error", err)
	}
}
