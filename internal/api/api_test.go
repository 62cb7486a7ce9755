package api

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/engine/impl/mcast"
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"McastSpectra/internal/model"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type taskSource struct {
	tasks []model.Task
}

func (s *taskSource) Tasks() []model.Task { return s.tasks }

func (s *taskSource) Snapshots() map[string]interface{} {
	out := make(map[string]interface{})
	for _, t := range s.tasks {
		out[t.Name()] = t.Snapshot()
	}
	return out
}

func (s *taskSource) Reset() {
	for _, t := range s.tasks {
		t.Reset()
	}
}

func newSource(t *testing.T) *taskSource {
	t.Helper()
	task := mcast.New("video", config.MulticastConfig{})
	for i := 0; i < 4; i++ {
		dst := "239.1.1.1"
		if i == 3 {
			dst = "239.1.1.2"
		}
		task.Process(&model.PacketInfo{
			FrameNumber: uint32(i + 1),
			TimeRel:     time.Duration(i) * time.Millisecond,
			FiveTuple: model.FiveTuple{
				SrcIP:   netip.MustParseAddr("10.0.0.1"),
				DstIP:   netip.MustParseAddr(dst),
				SrcPort: 5000,
				DstPort: 5004,
			},
			Length: 500,
		})
	}
	return &taskSource{tasks: []model.Task{task}}
}

func TestHTTPRoutes(t *testing.T) {
	source := newSource(t)
	srv := httptest.NewServer(NewRouter(source, time.Second, "/metrics", prometheus.NewRegistry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/tasks")
	require.NoError(t, err)
	var tasks []TaskSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tasks))
	resp.Body.Close()
	require.Equal(t, []TaskSummary{{Name: "video", Streams: 2, Packets: 4, Bytes: 2000}}, tasks)

	resp, err = http.Get(srv.URL + "/api/v1/tasks/video/streams")
	require.NoError(t, err)
	var streams []statistic.StreamStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&streams))
	resp.Body.Close()
	require.Len(t, streams, 2)
	require.Equal(t, netip.MustParseAddr("239.1.1.1"), streams[0].Key.DstAddr)
	require.Equal(t, uint64(3), streams[0].Packets)

	resp, err = http.Get(srv.URL + "/api/v1/tasks/video/aggregate")
	require.NoError(t, err)
	var agg statistic.ScopeStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agg))
	resp.Body.Close()
	require.Equal(t, uint64(4), agg.Packets)

	resp, err = http.Get(srv.URL + "/api/v1/tasks/audio/streams")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/tasks/video/aggregate")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestWebSocketPush(t *testing.T) {
	source := newSource(t)
	srv := httptest.NewServer(NewRouter(source, 10*time.Millisecond, "", nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		var msg map[string]statistic.Snapshot
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		require.Contains(t, msg, "video")
		require.Len(t, msg["video"].Streams, 2)
	}
}

func TestGRPCStatsService(t *testing.T) {
	source := newSource(t)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterStatsServiceServer(server, NewStatsService(source))
	go server.Serve(lis)
	defer server.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewStatsServiceClient(conn)
	snap, err := client.GetSnapshot(ctx)
	require.NoError(t, err)
	video := snap.GetFields()["video"].GetStructValue()
	require.NotNil(t, video)
	require.Len(t, video.GetFields()["streams"].GetListValue().GetValues(), 2)
	require.Equal(t, float64(4), video.GetFields()["aggregate"].GetStructValue().GetFields()["packets"].GetNumberValue())

	require.NoError(t, client.Reset(ctx))
	snap, err = client.GetSnapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.GetFields()["video"].GetStructValue().GetFields()["streams"].GetListValue().GetValues())
}
