package mcast

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"McastSpectra/internal/factory"
	"McastSpectra/internal/model"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// --- Factory Registration ---

func init() {
	factory.RegisterAggregator("multicast", func(cfg *config.Config) (*factory.TaskGroup, error) {
		mcastCfg := cfg.Aggregator.Multicast

		// Create all enabled writers for this aggregator group
		writers := make([]model.Writer, 0, len(mcastCfg.Writers))
		for _, writerDef := range mcastCfg.Writers {
			if !writerDef.Enabled {
				continue
			}

			interval, err := time.ParseDuration(writerDef.SnapshotInterval)
			if err != nil {
				log.Printf("Warning: invalid snapshot_interval for writer type '%s': %v, skipping.", writerDef.Type, err)
				continue
			}

			var writer model.Writer
			switch writerDef.Type {
			case "gob":
				writer = NewGobWriter(writerDef.Gob.RootPath, interval)
			case "text":
				writer = NewTextWriter(writerDef.Text.RootPath, interval)
			case "clickhouse":
				writer, err = NewClickHouseWriter(writerDef.ClickHouse, interval)
				if err != nil {
					log.Printf("Warning: failed to create writer type '%s': %v, skipping.", writerDef.Type, err)
					continue
				}
			default:
				log.Printf("Warning: unknown writer type '%s' in multicast aggregator config, skipping.", writerDef.Type)
				continue
			}
			writers = append(writers, writer)
		}

		// Create all tasks for this aggregator group
		tasks := make([]model.Task, len(mcastCfg.Tasks))
		for i, taskCfg := range mcastCfg.Tasks {
			tasks[i] = New(taskCfg.Name, taskCfg.MulticastConfig)
		}

		return &factory.TaskGroup{Tasks: tasks, Writers: writers}, nil
	})
}

// --- Task Implementation ---

// Task serializes access to one Processor and its Registry so that packet
// processing and snapshot readers can run on different goroutines.
// It implements the model.Task interface.
type Task struct {
	name      string
	mu        sync.Mutex
	registry  *Registry
	processor *Processor

	consumed uint64
	ignored  uint64
}

// New creates a new multicast statistics task.
func New(name string, cfg config.MulticastConfig) *Task {
	cfg = cfg.WithDefaults()
	log.Printf("Creating MulticastTask '%s': window %dms, burst trigger %d, buffer alarm %d bytes, drain %.0f/%.0f bit/s (stream/all)",
		name, cfg.WindowIntervalMs, cfg.BurstTriggerThreshold, cfg.BufferAlarmThresholdBytes, cfg.StreamDrainRate, cfg.AggregateDrainRate)
	registry := NewRegistry(name, cfg)
	return &Task{
		name:      name,
		registry:  registry,
		processor: NewProcessor(registry, cfg.DebugOrdering),
	}
}

// Name returns the name of the task.
func (t *Task) Name() string {
	return t.name
}

// ProcessPacket feeds one packet to the processor.
func (t *Task) ProcessPacket(packetInfo *model.PacketInfo) {
	t.Process(packetInfo)
}

// Process feeds one packet to the processor and reports whether it was accounted.
func (t *Task) Process(packetInfo *model.PacketInfo) ProcessResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := t.processor.Process(packetInfo)
	if res == Consumed {
		t.consumed++
	} else {
		t.ignored++
	}
	return res
}

// Counters returns how many packets were consumed and ignored since the last reset.
func (t *Task) Counters() (consumed, ignored uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumed, t.ignored
}

// Snapshot returns a statistic.Snapshot deep copy taken between two packets.
func (t *Task) Snapshot() interface{} {
	return t.StreamSnapshot()
}

// StreamSnapshot is the typed form of Snapshot.
func (t *Task) StreamSnapshot() statistic.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.Snapshot()
}

// Reset drops every stream and the aggregate, preparing for a re-tap.
func (t *Task) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registry.Reset()
	t.consumed, t.ignored = 0, 0
}

// AlerterMsg evaluates rules against the task's current snapshot and returns an HTML fragment if triggered.
func (t *Task) AlerterMsg(rules []config.AlerterRule) string {
	snapshot := t.StreamSnapshot()

	var triggeredMessages []string

	for _, rule := range rules {
		if rule.TaskName != t.name {
			continue
		}

		var rows []string
		switch rule.Scope {
		case "aggregate":
			if snapshot.Aggregate == nil {
				continue
			}
			if value, unit, ok := metricValue(*snapshot.Aggregate, rule.Metric); ok && check(value, rule.Threshold, rule.Operator) {
				rows = append(rows, fmt.Sprintf("<tr><td><code>all streams</code></td><td>%.0f %s</td></tr>", value, unit))
			}
		default:
			for _, stream := range snapshot.Streams {
				if value, unit, ok := metricValue(stream.ScopeStats, rule.Metric); ok && check(value, rule.Threshold, rule.Operator) {
					rows = append(rows, fmt.Sprintf("<tr><td><code>%s</code></td><td>%.0f %s</td></tr>", stream.Key, value, unit))
				}
			}
		}

		if len(rows) > 0 {
			itemsTable := fmt.Sprintf("<table border=\"1\" cellpadding=\"5\" cellspacing=\"0\">"+
				"<tr><th>Stream</th><th>Value</th></tr>%s</table>", strings.Join(rows, ""))

			msg := fmt.Sprintf("<h3>Alert: %s</h3>"+
				"<ul>"+
				"<li><b>Task:</b> <code>%s</code></li>"+
				"<li><b>Metric:</b> <code>%s</code></li>"+
				"<li><b>Condition:</b> <code>%s %.2f</code></li>"+
				"</ul>"+
				"<p><b>Triggering Streams:</b></p>%s",
				rule.Name, rule.TaskName, rule.Metric, rule.Operator, rule.Threshold, itemsTable)
			triggeredMessages = append(triggeredMessages, msg)
		}
	}

	return strings.Join(triggeredMessages, "<br><hr><br>")
}

// metricValue extracts a named metric from a scope view.
func metricValue(s statistic.ScopeStats, metric string) (float64, string, bool) {
	switch metric {
	case "burst_alarms":
		return float64(s.Burst.Alarms), "alarms", true
	case "peak_burst":
		return float64(s.Burst.Peak), "packets", true
	case "buffer_alarms":
		return float64(s.Buffer.Alarms), "alarms", true
	case "buffer_occupancy":
		return float64(s.Buffer.Occupancy), "bytes", true
	case "peak_buffer":
		return float64(s.Buffer.Peak), "bytes", true
	case "avg_bitrate":
		return s.AvgBitrate, "bit/s", true
	case "avg_packet_rate":
		return s.AvgPacketRate, "packets/s", true
	case "packets":
		return float64(s.Packets), "packets", true
	case "bytes":
		return float64(s.Bytes), "bytes", true
	default:
		log.Printf("Warning: unknown metric '%s' in alerter rule", metric)
		return 0, "", false
	}
}

// check compares a value against a threshold based on an operator.
func check(value, threshold float64, operator string) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case "=":
		return value == threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		log.Printf("Warning: unknown operator '%s' in alerter rule", operator)
		return false
	}
}
