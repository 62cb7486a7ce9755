package query

import (
	"McastSpectra/internal/config"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// SummaryRequest selects the runs whose latest aggregate rows are summarized.
type SummaryRequest struct {
	TaskName string    `json:"task_name"`
	EndTime  time.Time `json:"end_time"`
}

// RunSummary holds the latest aggregate totals of one run of one task and
// the number of distinct streams it stored.
type RunSummary struct {
	TaskName     string    `json:"task_name"`
	RunID        string    `json:"run_id"`
	LastSeen     time.Time `json:"last_seen"`
	Streams      uint64    `json:"streams"`
	Packets      uint64    `json:"packets"`
	Bytes        uint64    `json:"bytes"`
	BurstAlarms  uint32    `json:"burst_alarms"`
	BufferAlarms uint32    `json:"buffer_alarms"`
}

// HistoryRequest selects the snapshots of one stream, or of the aggregate when
// DstIP is empty.
type HistoryRequest struct {
	TaskName  string    `json:"task_name"`
	SrcIP     string    `json:"src_ip"`
	SrcPort   uint16    `json:"src_port"`
	DstIP     string    `json:"dst_ip"`
	DstPort   uint16    `json:"dst_port"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Limit     int       `json:"limit"`
}

// HistoryPoint is one snapshot row.
type HistoryPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Packets       uint64    `json:"packets"`
	Bytes         uint64    `json:"bytes"`
	AvgBitrate    float64   `json:"avg_bitrate_bps"`
	BurstPeak     uint32    `json:"burst_peak"`
	BurstAlarms   uint32    `json:"burst_alarms"`
	PeakBandwidth float64   `json:"peak_bandwidth_bps"`
	BufferPeak    int64     `json:"buffer_peak"`
	BufferAlarms  uint32    `json:"buffer_alarms"`
}

// Querier defines the interface for querying stored stream metrics.
type Querier interface {
	Summaries(ctx context.Context, req SummaryRequest) ([]RunSummary, error)
	History(ctx context.Context, req HistoryRequest) ([]HistoryPoint, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn clickhouse.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
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

// buildSummaryQuery returns the SQL and arguments of a summary query.
func buildSummaryQuery(req SummaryRequest) (string, []interface{}) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			TaskName,
			toString(RunID),
			max(Timestamp) AS LastSeen,
			uniqExactIf((SrcIP, SrcPort, DstIP, DstPort), Scope = 'stream'),
			argMaxIf(Packets, Timestamp, Scope = 'aggregate'),
			argMaxIf(Bytes, Timestamp, Scope = 'aggregate'),
			argMaxIf(BurstAlarms, Timestamp, Scope = 'aggregate'),
			argMaxIf(BufferAlarms, Timestamp, Scope = 'aggregate')
		FROM mcast_stream_metrics
	`)

	var whereClauses []string
	args := []interface{}{}

	if !req.EndTime.IsZero() {
		whereClauses = append(whereClauses, "Timestamp <= ?")
		args = append(args, req.EndTime)
	}
	if req.TaskName != "" {
		whereClauses = append(whereClauses, "TaskName = ?")
		args = append(args, req.TaskName)
	}

	if len(whereClauses) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}

	queryBuilder.WriteString(`
		GROUP BY TaskName, RunID
		ORDER BY LastSeen DESC
	`)
	return queryBuilder.String(), args
}

// buildHistoryQuery returns the SQL and arguments of a history query.
func buildHistoryQuery(req HistoryRequest) (string, []interface{}, error) {
	if req.TaskName == "" {
		return "", nil, fmt.Errorf("task_name is required")
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			Timestamp, Packets, Bytes, AvgBitrate,
			BurstPeak, BurstAlarms, PeakBandwidth, BufferPeak, BufferAlarms
		FROM mcast_stream_metrics
	`)

	whereClauses := []string{"TaskName = ?"}
	args := []interface{}{req.TaskName}

	if req.DstIP == "" {
		whereClauses = append(whereClauses, "Scope = 'aggregate'")
	} else {
		whereClauses = append(whereClauses, "Scope = 'stream'", "DstIP = ?", "DstPort = ?")
		args = append(args, req.DstIP, req.DstPort)
		if req.SrcIP != "" {
			whereClauses = append(whereClauses, "SrcIP = ?", "SrcPort = ?")
			args = append(args, req.SrcIP, req.SrcPort)
		}
	}
	if !req.StartTime.IsZero() {
		whereClauses = append(whereClauses, "Timestamp >= ?")
		args = append(args, req.StartTime)
	}
	if !req.EndTime.IsZero() {
		whereClauses = append(whereClauses, "Timestamp <= ?")
		args = append(args, req.EndTime)
	}

	queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	queryBuilder.WriteString(" ORDER BY Timestamp")

	if req.Limit > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", req.Limit))
	}
	return queryBuilder.String(), args, nil
}

// Summaries returns the latest totals of every stored run.
func (q *clickhouseQuerier) Summaries(ctx context.Context, req SummaryRequest) ([]RunSummary, error) {
	sql, args := buildSummaryQuery(req)
	rows, err := q.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.TaskName, &s.RunID, &s.LastSeen, &s.Streams, &s.Packets, &s.Bytes, &s.BurstAlarms, &s.BufferAlarms); err != nil {
			return nil, fmt.Errorf("failed to scan summary result: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// History returns the stored snapshots of one stream or of the aggregate.
func (q *clickhouseQuerier) History(ctx context.Context, req HistoryRequest) ([]HistoryPoint, error) {
	sql, args, err := buildHistoryQuery(req)
	if err != nil {
		return nil, err
	}
	rows, err := q.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var points []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		if err := rows.Scan(&p.Timestamp, &p.Packets, &p.Bytes, &p.AvgBitrate,
			&p.BurstPeak, &p.BurstAlarms, &p.PeakBandwidth, &p.BufferPeak, &p.BufferAlarms); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
