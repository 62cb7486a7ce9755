package metrics

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/engine/impl/mcast"
	"McastSpectra/internal/model"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type taskSource struct {
	tasks []*mcast.Task
}

func (s taskSource) Snapshots() map[string]interface{} {
	out := make(map[string]interface{})
	for _, t := range s.tasks {
		out[t.Name()] = t.Snapshot()
	}
	out["foreign"] = "not a stream snapshot"
	return out
}

func TestCollector(t *testing.T) {
	task := mcast.New("video", config.MulticastConfig{})
	for i := 0; i < 3; i++ {
		task.Process(&model.PacketInfo{
			FrameNumber: uint32(i + 1),
			TimeRel:     time.Duration(i) * time.Millisecond,
			FiveTuple: model.FiveTuple{
				SrcIP:   netip.MustParseAddr("10.0.0.1"),
				DstIP:   netip.MustParseAddr("239.1.1.1"),
				SrcPort: 5000,
				DstPort: 5004,
			},
			Length: 1000,
		})
	}

	collector := NewCollector(taskSource{tasks: []*mcast.Task{task}})
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(collector))

	expected := `
# HELP mcast_streams Number of multicast streams seen since the last reset
# TYPE mcast_streams gauge
mcast_streams{task="video"} 1
# HELP mcast_packets_total Packets accounted since the last reset
# TYPE mcast_packets_total counter
mcast_packets_total{scope="aggregate",stream="",task="video"} 3
mcast_packets_total{scope="stream",stream="10.0.0.1:5000 -> 239.1.1.1:5004",task="video"} 3
# HELP mcast_bytes_total Wire bytes accounted since the last reset
# TYPE mcast_bytes_total counter
mcast_bytes_total{scope="aggregate",stream="",task="video"} 3000
mcast_bytes_total{scope="stream",stream="10.0.0.1:5000 -> 239.1.1.1:5004",task="video"} 3000
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"mcast_streams", "mcast_packets_total", "mcast_bytes_total"))

	// 12 scope metrics for the stream and the aggregate, plus the stream count.
	require.Equal(t, 25, testutil.CollectAndCount(collector))
}
