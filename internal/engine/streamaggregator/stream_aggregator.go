package streamaggregator

import (
	"McastSpectra/internal/api"
	"McastSpectra/internal/config"
	"McastSpectra/internal/engine/manager"
	"McastSpectra/internal/metrics"
	"McastSpectra/internal/model"
	"McastSpectra/internal/probe"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
)

// StreamAggregator consumes packets from NATS, feeds them to a Manager and
// serves the read APIs over the Manager's tasks.
type StreamAggregator struct {
	cfg          *config.Config
	sub          *probe.Subscriber
	manager      *manager.Manager
	inputChannel chan<- *model.PacketInfo
	registry     *prometheus.Registry
	handler      http.Handler

	httpServer *http.Server
	grpcServer *grpc.Server

	mu      sync.Mutex
	stopped bool
}

// NewStreamAggregator creates a new real-time stream aggregator.
func NewStreamAggregator(cfg *config.Config) (*StreamAggregator, error) {
	mgr, err := manager.NewManager(cfg)
	if err != nil {
		return nil, err
	}

	pushInterval, err := config.ParseOptionalDuration(cfg.API.WSPushInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid ws_push_interval: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewCollector(mgr),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &StreamAggregator{
		cfg:          cfg,
		manager:      mgr,
		inputChannel: mgr.InputChannel(),
		registry:     registry,
		handler:      api.NewRouter(mgr, pushInterval, cfg.API.MetricsPath, registry),
	}, nil
}

// Manager returns the underlying manager.
func (sa *StreamAggregator) Manager() *manager.Manager {
	return sa.manager
}

// Handler returns the HTTP handler serving the REST, WebSocket and metrics endpoints.
func (sa *StreamAggregator) Handler() http.Handler {
	return sa.handler
}

// Start starts the manager and the API servers, then subscribes to NATS.
func (sa *StreamAggregator) Start() error {
	sa.manager.Start()

	if err := sa.startServers(); err != nil {
		return err
	}

	log.Println("StreamAggregator starting for nats:", sa.cfg.Probe.NATSURL)
	sub, err := probe.NewSubscriber(sa.cfg.Probe)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	sa.sub = sub

	if err := sa.sub.Start(sa.handlePacket); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

func (sa *StreamAggregator) startServers() error {
	if addr := sa.cfg.API.ListenAddr; addr != "" {
		sa.httpServer = &http.Server{Addr: addr, Handler: sa.handler}
		go func() {
			log.Printf("API server starting on %s", addr)
			if err := sa.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("ERROR: API server on %s failed: %v", addr, err)
			}
		}()
	}

	if addr := sa.cfg.API.GRPCListenAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		sa.grpcServer = grpc.NewServer()
		api.RegisterStatsServiceServer(sa.grpcServer, api.NewStatsService(sa.manager))
		go func() {
			log.Printf("gRPC server starting on %s", addr)
			if err := sa.grpcServer.Serve(lis); err != nil {
				log.Printf("ERROR: gRPC server on %s failed: %v", addr, err)
			}
		}()
	}
	return nil
}

// Stop gracefully shuts down the aggregator.
func (sa *StreamAggregator) Stop() {
	log.Println("StreamAggregator stopping...")
	if sa.sub != nil {
		sa.sub.Close()
	}

	sa.mu.Lock()
	sa.stopped = true
	sa.mu.Unlock()

	if sa.grpcServer != nil {
		sa.grpcServer.GracefulStop()
	}
	if sa.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sa.httpServer.Shutdown(ctx); err != nil {
			log.Printf("API server forced to shutdown: %v", err)
		}
	}

	// Stop the underlying manager, which will close the input channel
	// and wait for the worker to finish before taking a final snapshot.
	sa.manager.Stop()
	log.Println("StreamAggregator stopped.")
}

// handlePacket passes a decoded packet to the manager's channel.
func (sa *StreamAggregator) handlePacket(info *model.PacketInfo) {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	if sa.stopped {
		return
	}
	sa.inputChannel <- info
}
