package manager

import (
	"McastSpectra/internal/alerter"
	"McastSpectra/internal/config"
	_ "McastSpectra/internal/engine/impl/mcast" // Registers multicast task aggregator
	"McastSpectra/internal/factory"
	"McastSpectra/internal/model"
	"McastSpectra/internal/notification"
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02_15-04-05"

// PacketSource produces packets in capture order. Implementations do not close out.
type PacketSource interface {
	ReadPackets(ctx context.Context, out chan<- *model.PacketInfo) error
}

// Manager orchestrates a set of statistics tasks and their writers.
type Manager struct {
	taskGroups []factory.TaskGroup
	alerter    *alerter.Alerter

	// A single worker keeps packets in capture order.
	packetChannel chan *model.PacketInfo
	workerWg      sync.WaitGroup

	// Snapshotting and Resetting resources
	period        time.Duration // Global measurement period, 0 disables the resetter
	done          chan struct{}
	snapshotterWg sync.WaitGroup
	resetterWg    sync.WaitGroup
}

// NewManager creates a new Manager.
func NewManager(cfg *config.Config) (*Manager, error) {
	taskGroups, err := factory.Create(cfg)
	if err != nil {
		return nil, err
	}

	period, err := config.ParseOptionalDuration(cfg.Aggregator.Period)
	if err != nil {
		return nil, fmt.Errorf("invalid aggregator period: %w", err)
	}

	var alertr *alerter.Alerter
	if cfg.Alerter.Enabled {
		var allTasks []model.Task
		for _, group := range taskGroups {
			allTasks = append(allTasks, group.Tasks...)
		}

		var notifier model.Notifier
		if cfg.SMTP.Host != "" {
			notifier = notification.NewEmailNotifier(cfg.SMTP)
		}

		if notifier != nil {
			alertr, err = alerter.NewAlerter(&cfg.Alerter, allTasks, notifier)
			if err != nil {
				return nil, fmt.Errorf("failed to create alerter: %w", err)
			}
			log.Println("Alerter enabled and initialized.")
		} else {
			log.Println("Alerter is enabled in config, but no notifiers are configured. Alerter will not run.")
		}
	}

	return &Manager{
		taskGroups:    taskGroups,
		alerter:       alertr,
		period:        period,
		done:          make(chan struct{}),
		packetChannel: make(chan *model.PacketInfo, cfg.Aggregator.SizeOfPacketChannel),
	}, nil
}

// Start begins the packet worker, the snapshotters and the resetter.
func (m *Manager) Start() {
	// For each group, start a dedicated snapshotter for each of its writers.
	for _, group := range m.taskGroups {
		for _, writer := range group.Writers {
			m.snapshotterWg.Add(1)
			go m.runSnapshotter(writer, group.Tasks)
			log.Printf("Started snapshotter for a writer with interval %s, handling %d tasks.", writer.GetInterval(), len(group.Tasks))
		}
	}

	if m.period > 0 {
		m.resetterWg.Add(1)
		go m.runResetter()
		log.Printf("Started global resetter with period %s", m.period)
	}

	if m.alerter != nil {
		m.alerter.Start()
	}

	m.workerWg.Add(1)
	go m.worker()
	log.Println("Manager started.")
}

// runSnapshotter runs a dedicated snapshot loop for a single writer and its associated tasks.
func (m *Manager) runSnapshotter(writer model.Writer, tasks []model.Task) {
	defer m.snapshotterWg.Done()
	interval := writer.GetInterval()
	if interval <= 0 {
		log.Printf("Invalid interval %s for writer, snapshotter will not run.", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.takeSnapshotForWriter(writer, tasks)
		case <-m.done:
			m.takeSnapshotForWriter(writer, tasks)
			return
		}
	}
}

// takeSnapshotForWriter orchestrates taking and writing a snapshot for a specific writer.
func (m *Manager) takeSnapshotForWriter(writer model.Writer, tasks []model.Task) {
	timestamp := time.Now().Format(timestampLayout)
	log.Printf("Taking snapshot for writer at %s for %d tasks.", timestamp, len(tasks))

	var wg sync.WaitGroup
	wg.Add(len(tasks))

	for _, task := range tasks {
		go func(t model.Task) {
			defer wg.Done()
			if err := writer.Write(t.Snapshot(), timestamp, t.Name()); err != nil {
				log.Printf("Error writing snapshot for task %s: %v", t.Name(), err)
			}
		}(task)
	}

	wg.Wait()
}

// runResetter runs a dedicated loop to reset all tasks periodically.
func (m *Manager) runResetter() {
	defer m.resetterWg.Done()
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Reset()
		case <-m.done:
			log.Println("Resetter shutting down.")
			return
		}
	}
}

// Reset clears every task across all groups.
func (m *Manager) Reset() {
	var wg sync.WaitGroup
	for _, group := range m.taskGroups {
		wg.Add(len(group.Tasks))
		for _, task := range group.Tasks {
			go func(t model.Task) {
				defer wg.Done()
				t.Reset()
			}(task)
		}
	}
	wg.Wait()
	log.Println("All tasks have been reset at", time.Now().Format(timestampLayout))
}

// Retap resets every task and replays source to completion on the calling
// goroutine. It must not overlap with packets sent through InputChannel.
func (m *Manager) Retap(ctx context.Context, source PacketSource) (int, error) {
	m.Reset()

	ch := make(chan *model.PacketInfo, 1024)
	errCh := make(chan error, 1)
	go func() {
		errCh <- source.ReadPackets(ctx, ch)
		close(ch)
	}()

	count := 0
	for info := range ch {
		m.dispatch(info)
		count++
	}
	if err := <-errCh; err != nil {
		return count, fmt.Errorf("retap stopped after %d packets: %w", count, err)
	}
	log.Printf("Retap finished, %d packets replayed.", count)
	return count, nil
}

// Tasks returns every task across all groups.
func (m *Manager) Tasks() []model.Task {
	var tasks []model.Task
	for _, group := range m.taskGroups {
		tasks = append(tasks, group.Tasks...)
	}
	return tasks
}

// Snapshots returns the current snapshot of every task, keyed by task name.
func (m *Manager) Snapshots() map[string]interface{} {
	snapshots := make(map[string]interface{})
	for _, task := range m.Tasks() {
		snapshots[task.Name()] = task.Snapshot()
	}
	return snapshots
}

// Stop gracefully shuts down the manager.
func (m *Manager) Stop() {
	log.Println("Manager stopping...")
	// 1. Stop accepting new packets.
	close(m.packetChannel)

	// 2. Wait for the worker to finish processing buffered packets.
	m.workerWg.Wait()

	// 3. Signal snapshotters and resetter to take final actions and exit.
	close(m.done)
	m.snapshotterWg.Wait()
	m.resetterWg.Wait()

	// 4. Stop the alerter if it's running.
	if m.alerter != nil {
		m.alerter.Stop()
	}

	log.Println("Manager stopped.")
}

func (m *Manager) worker() {
	defer m.workerWg.Done()
	for info := range m.packetChannel {
		m.dispatch(info)
	}
}

// dispatch fans a packet out to all tasks in all groups.
func (m *Manager) dispatch(info *model.PacketInfo) {
	for _, group := range m.taskGroups {
		for _, task := range group.Tasks {
			task.ProcessPacket(info)
		}
	}
}

// InputChannel returns the channel feeding the worker.
func (m *Manager) InputChannel() chan<- *model.PacketInfo {
	return m.packetChannel
}
