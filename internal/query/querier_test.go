package query

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildSummaryQuery(t *testing.T) {
	sql, args := buildSummaryQuery(SummaryRequest{})
	require.Empty(t, args)
	require.NotContains(t, sql, "TaskName = ?")
	require.Contains(t, sql, "GROUP BY TaskName, RunID")

	end := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sql, args = buildSummaryQuery(SummaryRequest{TaskName: "video", EndTime: end})
	require.Contains(t, sql, "WHERE Timestamp <= ? AND TaskName = ?")
	require.Equal(t, []interface{}{end, "video"}, args)
}

func TestBuildHistoryQuery(t *testing.T) {
	_, _, err := buildHistoryQuery(HistoryRequest{})
	require.Error(t, err)

	sql, args, err := buildHistoryQuery(HistoryRequest{TaskName: "video"})
	require.NoError(t, err)
	require.Contains(t, sql, "WHERE TaskName = ? AND Scope = 'aggregate' ORDER BY Timestamp")
	require.Equal(t, []interface{}{"video"}, args)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sql, args, err = buildHistoryQuery(HistoryRequest{
		TaskName:  "video",
		SrcIP:     "10.0.0.1",
		SrcPort:   5000,
		DstIP:     "239.1.1.1",
		DstPort:   5004,
		StartTime: start,
		Limit:     50,
	})
	require.NoError(t, err)
	require.Contains(t, sql, "Scope = 'stream' AND DstIP = ? AND DstPort = ? AND SrcIP = ? AND SrcPort = ? AND Timestamp >= ?")
	require.True(t, strings.HasSuffix(sql, "ORDER BY Timestamp LIMIT 50"))
	require.Equal(t, []interface{}{"video", "239.1.1.1", uint16(5004), "10.0.0.1", uint16(5000), start}, args)
}
