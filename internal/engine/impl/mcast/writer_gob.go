package mcast

import (
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"McastSpectra/internal/model"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// SummaryData holds the metadata for a snapshot, internal to the writer.
type SummaryData struct {
	RunID        string `json:"run_id"`
	TaskName     string `json:"task_name"`
	TotalStreams int    `json:"total_streams"`
	TotalBytes   uint64 `json:"total_bytes"`
	TotalPackets uint64 `json:"total_packets"`
	BurstAlarms  int    `json:"burst_alarms"`
	BufferAlarms int    `json:"buffer_alarms"`
	Timestamp    string `json:"timestamp"`
}

// GobWriter handles writing task snapshots to disk in gob format.
// It implements the model.Writer interface.
type GobWriter struct {
	rootPath string
	interval time.Duration
	runID    string
}

// NewGobWriter creates a new writer for multicast task snapshots.
func NewGobWriter(rootPath string, interval time.Duration) model.Writer {
	return &GobWriter{rootPath: rootPath, interval: interval, runID: uuid.NewString()}
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *GobWriter) GetInterval() time.Duration {
	return w.interval
}

// Write serializes a snapshot to <root>/<timestamp>/<task>/streams.dat and
// writes a summary.json next to it. Empty snapshots are skipped.
func (w *GobWriter) Write(payload interface{}, timestamp, name string) error {
	snapshot, ok := payload.(statistic.Snapshot)
	if !ok {
		return fmt.Errorf("invalid payload type for GobWriter: expected statistic.Snapshot, got %T", payload)
	}
	if len(snapshot.Streams) == 0 {
		return nil
	}

	// 1. Create timestamped directory
	taskDir := filepath.Join(w.rootPath, timestamp, name)
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// 2. Write the snapshot itself
	filePath := filepath.Join(taskDir, "streams.dat")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode streams to gob for file '%s': %w", filePath, err)
	}

	// 3. Write summary file
	summary := SummaryData{
		RunID:        w.runID,
		TaskName:     name,
		TotalStreams: len(snapshot.Streams),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	summary.TotalPackets, summary.TotalBytes = snapshot.Totals()
	for _, st := range snapshot.Streams {
		summary.BurstAlarms += st.Burst.Alarms
		summary.BufferAlarms += st.Buffer.Alarms
	}

	summaryFilePath := filepath.Join(taskDir, "summary.json")
	summaryFile, err := os.Create(summaryFilePath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	return nil
}

// ReadGobSnapshot decodes a streams.dat file written by GobWriter.
func ReadGobSnapshot(filePath string) (statistic.Snapshot, error) {
	var snapshot statistic.Snapshot
	file, err := os.Open(filePath)
	if err != nil {
		return snapshot, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		return snapshot, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}
