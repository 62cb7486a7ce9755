package mcast

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"McastSpectra/internal/factory"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskCountersAndReset(t *testing.T) {
	task := New("video", config.MulticastConfig{})
	require.Equal(t, "video", task.Name())

	require.Equal(t, Consumed, task.Process(packet(1, 0, "10.0.0.1", 5000, "239.1.1.1", 5004, 1316)))
	task.ProcessPacket(packet(2, time.Millisecond, "10.0.0.1", 5000, "10.0.0.2", 5004, 1316))

	consumed, ignored := task.Counters()
	require.Equal(t, uint64(1), consumed)
	require.Equal(t, uint64(1), ignored)

	snap, ok := task.Snapshot().(statistic.Snapshot)
	require.True(t, ok)
	require.Equal(t, "video", snap.TaskName)
	require.Len(t, snap.Streams, 1)

	task.Reset()
	consumed, ignored = task.Counters()
	require.Zero(t, consumed+ignored)
	require.Empty(t, task.StreamSnapshot().Streams)
}

func TestTaskConcurrentSnapshots(t *testing.T) {
	task := New("video", config.MulticastConfig{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			task.Process(packet(uint32(i+1), time.Duration(i)*time.Millisecond, "10.0.0.1", 5000, "239.1.1.1", 5004, 1316))
		}
	}()

	var last uint64
	for i := 0; i < 100; i++ {
		snap := task.StreamSnapshot()
		if len(snap.Streams) == 1 {
			require.GreaterOrEqual(t, snap.Streams[0].Packets, last, "totals never decrease between resets")
			last = snap.Streams[0].Packets
		}
	}
	wg.Wait()
	require.Equal(t, uint64(2000), task.StreamSnapshot().Streams[0].Packets)
}

func TestTaskAlerterMsg(t *testing.T) {
	task := New("video", config.MulticastConfig{BurstTriggerThreshold: 3})
	for i := 0; i < 5; i++ {
		task.Process(packet(uint32(i+1), time.Duration(i)*time.Millisecond, "10.0.0.1", 5000, "239.1.1.1", 5004, 1316))
	}
	task.Process(packet(6, 10*time.Millisecond, "10.0.0.2", 5000, "239.1.1.2", 5004, 100))

	rules := []config.AlerterRule{
		{Name: "bursts", TaskName: "video", Scope: "stream", Metric: "burst_alarms", Operator: ">", Threshold: 0},
		{Name: "agg packets", TaskName: "video", Scope: "aggregate", Metric: "packets", Operator: ">=", Threshold: 6},
		{Name: "other task", TaskName: "audio", Metric: "packets", Operator: ">", Threshold: 0},
		{Name: "quiet", TaskName: "video", Metric: "bytes", Operator: ">", Threshold: 1e9},
	}
	msg := task.AlerterMsg(rules)

	require.Contains(t, msg, "Alert: bursts")
	require.Contains(t, msg, "10.0.0.1:5000 -> 239.1.1.1:5004")
	require.NotContains(t, msg, "239.1.1.2")
	require.Contains(t, msg, "Alert: agg packets")
	require.Contains(t, msg, "all streams")
	require.NotContains(t, msg, "other task")
	require.NotContains(t, msg, "quiet")

	require.Empty(t, task.AlerterMsg([]config.AlerterRule{{TaskName: "video", Metric: "nonsense", Operator: ">"}}))
}

func TestCheck(t *testing.T) {
	require.True(t, check(2, 1, ">"))
	require.True(t, check(1, 2, "<"))
	require.True(t, check(1, 1, "="))
	require.True(t, check(1, 1, ">="))
	require.True(t, check(1, 1, "<="))
	require.False(t, check(1, 1, "!="))
}

func TestFactoryBuildsMulticastGroup(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Aggregator.Multicast.Writers = []config.WriterDef{
		{Type: "text", Enabled: true, SnapshotInterval: "1s", Text: config.TextConfig{RootPath: t.TempDir()}},
		{Type: "gob", Enabled: true, SnapshotInterval: "bogus"},
		{Type: "carrier-pigeon", Enabled: true, SnapshotInterval: "1s"},
		{Type: "gob", Enabled: false, SnapshotInterval: "1s"},
	}

	groups, err := factory.Create(cfg)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Tasks, 1)
	require.Len(t, groups[0].Writers, 1)
	require.Equal(t, "multicast_streams", groups[0].Tasks[0].Name())
	require.Equal(t, time.Second, groups[0].Writers[0].GetInterval())
}
