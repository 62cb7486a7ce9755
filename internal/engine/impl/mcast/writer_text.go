package mcast

import (
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"McastSpectra/internal/model"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// TextWriter handles writing stream tables to a text file.
type TextWriter struct {
	rootPath string
	interval time.Duration
}

// NewTextWriter creates a new text writer for stream tables.
func NewTextWriter(rootPath string, interval time.Duration) model.Writer {
	return &TextWriter{rootPath: rootPath, interval: interval}
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *TextWriter) GetInterval() time.Duration {
	return w.interval
}

// Write renders the snapshot into <root>/<timestamp>/<task>/streams.txt.
func (w *TextWriter) Write(payload interface{}, timestamp, name string) error {
	snapshot, ok := payload.(statistic.Snapshot)
	if !ok {
		return fmt.Errorf("invalid payload type for TextWriter: expected statistic.Snapshot, got %T", payload)
	}

	taskDir := filepath.Join(w.rootPath, timestamp, name)
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filePath := filepath.Join(taskDir, "streams.txt")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	if err := WriteTable(file, snapshot); err != nil {
		return fmt.Errorf("failed to write stream table: %w", err)
	}

	log.Printf("Successfully wrote %d streams to %s\n", len(snapshot.Streams), taskDir)
	return nil
}
