package metrics

import (
	"McastSpectra/internal/engine/impl/mcast/statistic"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mcast"

// SnapshotSource returns the current snapshot of every task keyed by task name.
type SnapshotSource interface {
	Snapshots() map[string]interface{}
}

type scopeMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(s statistic.ScopeStats) float64
}

// Collector exposes stream and aggregate statistics read from task snapshots at scrape time.
type Collector struct {
	source  SnapshotSource
	streams *prometheus.Desc
	metrics []scopeMetric
}

// NewCollector creates a collector over source.
func NewCollector(source SnapshotSource) *Collector {
	labels := []string{"task", "scope", "stream"}
	newDesc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &Collector{
		source: source,
		streams: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "streams"),
			"Number of multicast streams seen since the last reset", []string{"task"}, nil),
		metrics: []scopeMetric{
			{newDesc("packets_total", "Packets accounted since the last reset"), prometheus.CounterValue,
				func(s statistic.ScopeStats) float64 { return float64(s.Packets) }},
			{newDesc("bytes_total", "Wire bytes accounted since the last reset"), prometheus.CounterValue,
				func(s statistic.ScopeStats) float64 { return float64(s.Bytes) }},
			{newDesc("avg_bitrate_bits_per_second", "Average bitrate since the first packet"), prometheus.GaugeValue,
				func(s statistic.ScopeStats) float64 { return s.AvgBitrate }},
			{newDesc("avg_packet_rate", "Average packets per second since the first packet"), prometheus.GaugeValue,
				func(s statistic.ScopeStats) float64 { return s.AvgPacketRate }},
			{newDesc("burst_packets", "Packets inside the current burst window"), prometheus.GaugeValue,
				func(s statistic.ScopeStats) float64 { return float64(s.Burst.Current) }},
			{newDesc("burst_peak_packets", "Largest burst window observed"), prometheus.GaugeValue,
				func(s statistic.ScopeStats) float64 { return float64(s.Burst.Peak) }},
			{newDesc("burst_peak_bandwidth_bits_per_second", "Bandwidth estimate at the peak burst"), prometheus.GaugeValue,
				func(s statistic.ScopeStats) float64 { return s.Burst.PeakBandwidth }},
			{newDesc("burst_alarms_total", "Burst alarm transitions"), prometheus.CounterValue,
				func(s statistic.ScopeStats) float64 { return float64(s.Burst.Alarms) }},
			{newDesc("burst_saturations_total", "Samples evicted because the burst window was full"), prometheus.CounterValue,
				func(s statistic.ScopeStats) float64 { return float64(s.Burst.Saturations) }},
			{newDesc("buffer_bytes", "Simulated playout buffer occupancy"), prometheus.GaugeValue,
				func(s statistic.ScopeStats) float64 { return float64(s.Buffer.Occupancy) }},
			{newDesc("buffer_peak_bytes", "Largest simulated playout buffer occupancy"), prometheus.GaugeValue,
				func(s statistic.ScopeStats) float64 { return float64(s.Buffer.Peak) }},
			{newDesc("buffer_alarms_total", "Buffer alarm transitions"), prometheus.CounterValue,
				func(s statistic.ScopeStats) float64 { return float64(s.Buffer.Alarms) }},
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.streams
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, payload := range c.source.Snapshots() {
		snap, ok := payload.(statistic.Snapshot)
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.streams, prometheus.GaugeValue, float64(len(snap.Streams)), name)
		for _, st := range snap.Streams {
			c.collectScope(ch, name, "stream", st.Key.String(), st.ScopeStats)
		}
		if snap.Aggregate != nil {
			c.collectScope(ch, name, "aggregate", "", *snap.Aggregate)
		}
	}
}

func (c *Collector) collectScope(ch chan<- prometheus.Metric, task, scope, stream string, s statistic.ScopeStats) {
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value(s), task, scope, stream)
	}
}
