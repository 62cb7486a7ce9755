package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	err := DefaultConfig().Validate()
	require.NoError(t, err, "Failed to verify the default configuration")

	d := DefaultMulticastConfig()
	require.Equal(t, 50, d.BurstTriggerThreshold)
	require.Equal(t, 100*time.Millisecond, d.Window())
	require.Equal(t, int64(10000), d.BufferAlarmThresholdBytes)
	require.Equal(t, 5_000_000.0, d.StreamDrainRate)
	require.Equal(t, 100_000_000.0, d.AggregateDrainRate)
}

func TestLoadConfigFillsTaskDefaults(t *testing.T) {
	path := writeConfig(t, `
aggregator:
  types: ["multicast"]
  multicast:
    tasks:
      - name: "video"
        window_interval_ms: 250
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Aggregator.Multicast.Tasks, 1)

	task := cfg.Aggregator.Multicast.Tasks[0]
	require.Equal(t, "video", task.Name)
	require.Equal(t, 250, task.WindowIntervalMs)
	require.Equal(t, 50, task.BurstTriggerThreshold)
	require.Equal(t, 200_000, task.MaxPacketsPerSecond)

	// Untouched sections keep their defaults.
	require.Equal(t, "mcast.packets.raw", cfg.Probe.Subject)
	require.Equal(t, 10000, cfg.Aggregator.SizeOfPacketChannel)
}

func TestLoadConfigRepositorySample(t *testing.T) {
	cfg, err := LoadConfig("../../configs/config.yaml")
	require.NoError(t, err)
	require.Equal(t, []string{"multicast"}, cfg.Aggregator.Types)
	require.Len(t, cfg.Alerter.Rules, 2)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "aggregator: [not, a, map"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `
aggregator:
  period: "soon"
`))
	require.ErrorContains(t, err, "period")

	_, err = LoadConfig(writeConfig(t, `
aggregator:
  multicast:
    tasks:
      - name: "a"
      - name: "a"
`))
	require.ErrorContains(t, err, "duplicate")

	_, err = LoadConfig(writeConfig(t, `
aggregator:
  multicast:
    writers:
      - type: "text"
        enabled: true
        snapshot_interval: "never"
`))
	require.ErrorContains(t, err, "snapshot_interval")
}

func TestParseOptionalDuration(t *testing.T) {
	d, err := ParseOptionalDuration("")
	require.NoError(t, err)
	require.Zero(t, d)

	d, err = ParseOptionalDuration("0")
	require.NoError(t, err)
	require.Zero(t, d)

	d, err = ParseOptionalDuration("1m")
	require.NoError(t, err)
	require.Equal(t, time.Minute, d)

	_, err = ParseOptionalDuration("-1s")
	require.Error(t, err)
}
