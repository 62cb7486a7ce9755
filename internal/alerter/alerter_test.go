package alerter

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/model"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTask struct {
	name string
	msg  string
	seen [][]config.AlerterRule
	mu   sync.Mutex
}

func (f *fakeTask) ProcessPacket(*model.PacketInfo) {}
func (f *fakeTask) Snapshot() interface{}           { return nil }
func (f *fakeTask) Reset()                          {}
func (f *fakeTask) Name() string                    { return f.name }
func (f *fakeTask) AlerterMsg(rules []config.AlerterRule) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, rules)
	return f.msg
}

type fakeNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (n *fakeNotifier) Send(subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

func TestEvaluate(t *testing.T) {
	video := &fakeTask{name: "video", msg: "<h3>Alert: bursts</h3>"}
	audio := &fakeTask{name: "audio"}
	idle := &fakeTask{name: "idle", msg: "never asked"}
	notifier := &fakeNotifier{}

	cfg := &config.AlerterConfig{
		CheckInterval: "1h",
		Rules: []config.AlerterRule{
			{Name: "bursts", TaskName: "video", Metric: "burst_alarms", Operator: ">"},
			{Name: "buffer", TaskName: "video", Metric: "buffer_alarms", Operator: ">"},
			{Name: "quiet", TaskName: "audio", Metric: "packets", Operator: ">"},
		},
	}
	a, err := NewAlerter(cfg, []model.Task{video, audio, idle}, notifier)
	require.NoError(t, err)

	require.Equal(t, 1, a.Evaluate())
	require.Len(t, video.seen, 1)
	require.Len(t, video.seen[0], 2)
	require.Len(t, audio.seen, 1)
	require.Empty(t, idle.seen)

	require.Equal(t, []string{"McastSpectra Alert Summary (1 Triggered)"}, notifier.subjects)
	require.Contains(t, notifier.bodies[0], "<h3>Alert: bursts</h3>")

	video.msg = ""
	require.Zero(t, a.Evaluate())
	require.Len(t, notifier.subjects, 1)
}

func TestStartStopRunsFinalEvaluation(t *testing.T) {
	task := &fakeTask{name: "video", msg: "fired"}
	notifier := &fakeNotifier{}
	a, err := NewAlerter(&config.AlerterConfig{
		CheckInterval: "10ms",
		Rules:         []config.AlerterRule{{TaskName: "video"}},
	}, []model.Task{task}, notifier)
	require.NoError(t, err)

	a.Start()
	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.subjects) > 0
	}, time.Second, 5*time.Millisecond)

	a.Stop()
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.GreaterOrEqual(t, len(notifier.subjects), 2)
}

func TestNewAlerterRejectsBadInterval(t *testing.T) {
	_, err := NewAlerter(&config.AlerterConfig{CheckInterval: "soon"}, nil, nil)
	require.Error(t, err)
	_, err = NewAlerter(&config.AlerterConfig{CheckInterval: "0s"}, nil, nil)
	require.Error(t, err)
}
