package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MulticastConfig holds the tunables of the multicast stream statistics engine.
// Zero values are replaced by the defaults in WithDefaults.
type MulticastConfig struct {
	// BurstTriggerThreshold is the number of packets inside the window that raises a burst alarm.
	BurstTriggerThreshold int `yaml:"burst_trigger_threshold"`
	// WindowIntervalMs is the width of the sliding burst window in milliseconds.
	WindowIntervalMs int `yaml:"window_interval_ms"`
	// BufferAlarmThresholdBytes is the simulated playout buffer occupancy that raises a buffer alarm.
	BufferAlarmThresholdBytes int64 `yaml:"buffer_alarm_threshold_bytes"`
	// StreamDrainRate is the nominal emptying rate of a single stream's playout buffer.
	StreamDrainRate float64 `yaml:"stream_drain_rate_bits_per_sec"`
	// AggregateDrainRate is the nominal emptying rate of the all-streams playout buffer.
	AggregateDrainRate float64 `yaml:"aggregate_drain_rate_bits_per_sec"`
	// MaxPacketsPerSecond bounds the burst ring capacity.
	MaxPacketsPerSecond int `yaml:"max_packets_per_second"`
	// DebugOrdering logs packets whose relative time goes backwards inside a stream.
	DebugOrdering bool `yaml:"debug_ordering"`
}

// DefaultMulticastConfig returns the engine defaults.
func DefaultMulticastConfig() MulticastConfig {
	return MulticastConfig{
		BurstTriggerThreshold:     50,
		WindowIntervalMs:          100,
		BufferAlarmThresholdBytes: 10000,
		StreamDrainRate:           5_000_000,
		AggregateDrainRate:        100_000_000,
		MaxPacketsPerSecond:       200_000,
	}
}

// WithDefaults returns a copy of c where every unset field carries its default.
func (c MulticastConfig) WithDefaults() MulticastConfig {
	d := DefaultMulticastConfig()
	if c.BurstTriggerThreshold <= 0 {
		c.BurstTriggerThreshold = d.BurstTriggerThreshold
	}
	if c.WindowIntervalMs <= 0 {
		c.WindowIntervalMs = d.WindowIntervalMs
	}
	if c.BufferAlarmThresholdBytes <= 0 {
		c.BufferAlarmThresholdBytes = d.BufferAlarmThresholdBytes
	}
	if c.StreamDrainRate <= 0 {
		c.StreamDrainRate = d.StreamDrainRate
	}
	if c.AggregateDrainRate <= 0 {
		c.AggregateDrainRate = d.AggregateDrainRate
	}
	if c.MaxPacketsPerSecond <= 0 {
		c.MaxPacketsPerSecond = d.MaxPacketsPerSecond
	}
	return c
}

// Window returns the burst window as a duration.
func (c MulticastConfig) Window() time.Duration {
	return time.Duration(c.WindowIntervalMs) * time.Millisecond
}

// MulticastTaskDef defines a single multicast statistics task from the config file.
type MulticastTaskDef struct {
	Name            string `yaml:"name"`
	MulticastConfig `yaml:",inline"`
}

// GobConfig holds the configuration for the gob snapshot writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// TextConfig holds the configuration for the text table writer.
type TextConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines one snapshot writer.
type WriterDef struct {
	Type             string           `yaml:"type"`
	Enabled          bool             `yaml:"enabled"`
	SnapshotInterval string           `yaml:"snapshot_interval"`
	Gob              GobConfig        `yaml:"gob"`
	Text             TextConfig       `yaml:"text"`
	ClickHouse       ClickHouseConfig `yaml:"clickhouse"`
}

// MulticastAggregatorConfig groups the multicast tasks and their writers.
type MulticastAggregatorConfig struct {
	Tasks   []MulticastTaskDef `yaml:"tasks"`
	Writers []WriterDef        `yaml:"writers"`
}

// AggregatorConfig holds the configuration for the manager and its task groups.
type AggregatorConfig struct {
	Types []string `yaml:"types"`
	// Period is the interval of the periodic resetter. Empty or "0" disables it.
	Period              string                    `yaml:"period"`
	SizeOfPacketChannel int                       `yaml:"size_of_packet_channel"`
	Multicast           MulticastAggregatorConfig `yaml:"multicast"`
}

// PersistenceConfig controls recording of captured packets by the probe.
type PersistenceConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Path              string `yaml:"path"`
	Encoding          string `yaml:"encoding"` // "pcap" or "text"
	ChannelBufferSize int    `yaml:"channel_buffer_size"`
	SnapLen           int    `yaml:"snap_len"`
}

// ProbeConfig holds the NATS transport settings shared by the probe and the engine.
type ProbeConfig struct {
	NATSURL     string            `yaml:"nats_url"`
	Subject     string            `yaml:"subject"`
	Persistence PersistenceConfig `yaml:"persistence"`
}

// APIConfig holds the settings of the read APIs.
type APIConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	GRPCListenAddr string `yaml:"grpc_listen_addr"`
	WSPushInterval string `yaml:"ws_push_interval"`
	MetricsPath    string `yaml:"metrics_path"`
}

// AlerterRule is a single threshold rule evaluated against a task snapshot.
type AlerterRule struct {
	Name     string `yaml:"name"`
	TaskName string `yaml:"task_name"`
	// Scope is "stream" (every stream is checked) or "aggregate".
	Scope     string  `yaml:"scope"`
	Metric    string  `yaml:"metric"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig holds the alerter settings.
type AlerterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval string        `yaml:"check_interval"`
	Rules         []AlerterRule `yaml:"rules"`
}

// SMTPConfig holds the settings of the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Probe      ProbeConfig      `yaml:"probe"`
	API        APIConfig        `yaml:"api"`
	Alerter    AlerterConfig    `yaml:"alerter"`
	SMTP       SMTPConfig       `yaml:"smtp"`
}

// DefaultConfig returns a configuration with a single multicast task and no writers.
func DefaultConfig() *Config {
	return &Config{
		Aggregator: AggregatorConfig{
			Types:               []string{"multicast"},
			SizeOfPacketChannel: 10000,
			Multicast: MulticastAggregatorConfig{
				Tasks: []MulticastTaskDef{
					{Name: "multicast_streams", MulticastConfig: DefaultMulticastConfig()},
				},
			},
		},
		Probe: ProbeConfig{
			NATSURL: "nats://127.0.0.1:4222",
			Subject: "mcast.packets.raw",
			Persistence: PersistenceConfig{
				Path:              "./data/capture",
				Encoding:          "pcap",
				ChannelBufferSize: 10000,
				SnapLen:           65536,
			},
		},
		API: APIConfig{
			ListenAddr:     ":8080",
			GRPCListenAddr: ":9090",
			WSPushInterval: "1s",
			MetricsPath:    "/metrics",
		},
		Alerter: AlerterConfig{
			CheckInterval: "30s",
		},
	}
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// Values missing from the file keep their defaults.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	for i := range cfg.Aggregator.Multicast.Tasks {
		task := &cfg.Aggregator.Multicast.Tasks[i]
		task.MulticastConfig = task.MulticastConfig.WithDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Aggregator.Types) == 0 {
		return fmt.Errorf("aggregator.types must not be empty")
	}
	if _, err := ParseOptionalDuration(c.Aggregator.Period); err != nil {
		return fmt.Errorf("invalid aggregator period: %w", err)
	}
	if c.Aggregator.SizeOfPacketChannel < 0 {
		return fmt.Errorf("aggregator.size_of_packet_channel must not be negative")
	}

	names := make(map[string]struct{}, len(c.Aggregator.Multicast.Tasks))
	for _, task := range c.Aggregator.Multicast.Tasks {
		if task.Name == "" {
			return fmt.Errorf("multicast task without a name")
		}
		if _, dup := names[task.Name]; dup {
			return fmt.Errorf("duplicate multicast task name '%s'", task.Name)
		}
		names[task.Name] = struct{}{}
	}

	for _, w := range c.Aggregator.Multicast.Writers {
		if !w.Enabled {
			continue
		}
		if _, err := time.ParseDuration(w.SnapshotInterval); err != nil {
			return fmt.Errorf("invalid snapshot_interval for writer type '%s': %w", w.Type, err)
		}
	}

	if p := c.Probe.Persistence; p.Enabled && p.Encoding != "pcap" && p.Encoding != "text" {
		return fmt.Errorf("unknown probe.persistence.encoding '%s'", p.Encoding)
	}

	if c.API.WSPushInterval != "" {
		if _, err := time.ParseDuration(c.API.WSPushInterval); err != nil {
			return fmt.Errorf("invalid api.ws_push_interval: %w", err)
		}
	}

	if c.Alerter.Enabled {
		if _, err := time.ParseDuration(c.Alerter.CheckInterval); err != nil {
			return fmt.Errorf("invalid alerter check_interval: %w", err)
		}
		for _, rule := range c.Alerter.Rules {
			switch rule.Scope {
			case "", "stream", "aggregate":
			default:
				return fmt.Errorf("alerter rule '%s': unknown scope '%s'", rule.Name, rule.Scope)
			}
		}
	}

	return nil
}

// ParseOptionalDuration parses s, treating "" and "0" as a zero duration.
func ParseOptionalDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s must not be negative", s)
	}
	return d, nil
}
