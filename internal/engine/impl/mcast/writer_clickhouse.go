package mcast

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"McastSpectra/internal/model"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS mcast_stream_metrics (
    Timestamp       DateTime,
    RunID           UUID,
    TaskName        String,
    Scope           LowCardinality(String),
    SrcIP           Nullable(String),
    SrcPort         Nullable(UInt16),
    DstIP           Nullable(String),
    DstPort         Nullable(UInt16),
    FirstFrame      UInt32,
    StartTime       DateTime64(9),
    Packets         UInt64,
    Bytes           UInt64,
    AvgPacketRate   Float64,
    AvgBitrate      Float64,
    BurstPeak       UInt32,
    BurstAlarms     UInt32,
    PeakBandwidth   Float64,
    BufferPeak      Int64,
    BufferAlarms    UInt32
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (TaskName, Timestamp);
`

const timestampLayout = "2006-01-02_15-04-05"

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn     driver.Conn
	interval time.Duration
	runID    uuid.UUID
}

// NewClickHouseWriter creates a new ClickHouse writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig, interval time.Duration) (model.Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn, interval: interval, runID: uuid.New()}, nil
}

// GetInterval returns the configured snapshot interval for this writer.
func (w *ClickHouseWriter) GetInterval() time.Duration {
	return w.interval
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Write inserts one row per stream plus one aggregate row into mcast_stream_metrics.
func (w *ClickHouseWriter) Write(payload interface{}, timestamp, name string) error {
	snapshot, ok := payload.(statistic.Snapshot)
	if !ok {
		return fmt.Errorf("invalid payload type for ClickHouse Writer: expected statistic.Snapshot, got %T", payload)
	}

	snapshotTime, err := time.ParseInLocation(timestampLayout, timestamp, time.Local)
	if err != nil {
		snapshotTime = time.Now()
	}

	rows := metricRows(snapshot, snapshotTime, w.runID, name)
	if len(rows) == 0 {
		return nil // Nothing to write
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO mcast_stream_metrics")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("failed to append stream to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Wrote %d rows to ClickHouse for task '%s'", len(rows), name)
	return nil
}

// metricRows flattens a snapshot into column values in table order.
func metricRows(snapshot statistic.Snapshot, at time.Time, runID uuid.UUID, name string) [][]interface{} {
	rows := make([][]interface{}, 0, len(snapshot.Streams)+1)
	for _, st := range snapshot.Streams {
		srcIP, dstIP := st.Key.SrcAddr.String(), st.Key.DstAddr.String()
		srcPort, dstPort := st.Key.SrcPort, st.Key.DstPort
		rows = append(rows, metricRow(at, runID, name, "stream", &srcIP, &srcPort, &dstIP, &dstPort, st.ScopeStats))
	}
	if snapshot.Aggregate != nil {
		rows = append(rows, metricRow(at, runID, name, "aggregate", nil, nil, nil, nil, *snapshot.Aggregate))
	}
	return rows
}

func metricRow(at time.Time, runID uuid.UUID, name, scope string, srcIP *string, srcPort *uint16, dstIP *string, dstPort *uint16, s statistic.ScopeStats) []interface{} {
	return []interface{}{
		at,
		runID,
		name,
		scope,
		srcIP,
		srcPort,
		dstIP,
		dstPort,
		s.FirstFrame,
		s.StartTime,
		s.Packets,
		s.Bytes,
		s.AvgPacketRate,
		s.AvgBitrate,
		uint32(s.Burst.Peak),
		uint32(s.Burst.Alarms),
		s.Burst.PeakBandwidth,
		s.Buffer.Peak,
		uint32(s.Buffer.Alarms),
	}
}
