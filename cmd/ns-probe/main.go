package main

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/engine/protocol"
	"McastSpectra/internal/model"
	"McastSpectra/internal/probe"
	"McastSpectra/internal/probe/persistent"
	mcastpcap "McastSpectra/pkg/pcap"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

const (
	promiscuous = true
	timeout     = pcap.BlockForever
)

func main() {
	// --- Command-Line Flag Parsing ---
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	mode := flag.String("mode", "sub", "Operating mode: 'pub' to capture and publish, 'file' to replay a pcap file, 'sub' to subscribe and print.")
	iface := flag.String("iface", "", "Interface to capture packets from (required for pub mode).")
	bpf := flag.String("filter", "ip multicast or ip6 multicast", "BPF filter applied to the live capture.")
	file := flag.String("file", "", "Capture file to replay (required for file mode).")
	pace := flag.Bool("pace", false, "Replay the file at its original speed.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Mode Dispatch ---
	switch *mode {
	case "pub":
		runProbe(ctx, cfg, *iface, *bpf)
	case "file":
		runReplay(ctx, cfg, *file, *pace)
	case "sub":
		runSubscriber(ctx, cfg.Probe)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runProbe captures packets from a live interface and publishes them to NATS.
func runProbe(ctx context.Context, cfg *config.Config, interfaceName, filter string) {
	if interfaceName == "" {
		log.Println("Error: -iface flag is required for probe mode.")
		flag.Usage()
		os.Exit(1)
	}
	log.Printf("Starting ns-probe in PROBE mode on interface: %s", interfaceName)

	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	snapLen := int32(cfg.Probe.Persistence.SnapLen)
	if snapLen <= 0 {
		snapLen = 65536
	}
	handle, err := pcap.OpenLive(interfaceName, snapLen, promiscuous, timeout)
	if err != nil {
		log.Fatalf("Error opening device %s: %v", interfaceName, err)
	}
	defer handle.Close()

	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			log.Fatalf("Invalid capture filter '%s': %v", filter, err)
		}
	}

	var recorder *persistent.Worker
	if cfg.Probe.Persistence.Enabled {
		recorder, err = persistent.NewWorker(cfg.Probe.Persistence, handle.LinkType())
		if err != nil {
			log.Fatalf("Failed to start recorder: %v", err)
		}
		defer recorder.Stop()
	}

	log.Println("Capture started successfully. Publishing packets to NATS...")

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := packetSource.Packets()

	var frame uint32
	var first time.Time
	packetsPublished := 0
	for {
		select {
		case <-ctx.Done():
			log.Println("Shutdown signal received, cleaning up...")
			return
		case packet, ok := <-packets:
			if !ok {
				return
			}
			frame++
			ts := packet.Metadata().Timestamp
			if frame == 1 {
				first = ts
			}

			info, err := protocol.ParsePacket(packet)
			if err != nil {
				continue // Skip non-IP packets
			}
			info.FrameNumber = frame
			info.TimeRel = ts.Sub(first)

			if recorder != nil {
				recorder.Enqueue(&persistent.PacketContainer{RawPacket: packet, PacketInfo: info})
			}
			if err := pub.Publish(info); err != nil {
				log.Printf("Failed to publish packet: %v", err)
			}
			packetsPublished++
			if packetsPublished%1000 == 0 {
				log.Printf("%d packets published...", packetsPublished)
			}
		}
	}
}

// runReplay publishes the packets of a capture file to NATS.
func runReplay(ctx context.Context, cfg *config.Config, path string, pace bool) {
	if path == "" {
		log.Println("Error: -file flag is required for file mode.")
		flag.Usage()
		os.Exit(1)
	}

	reader, err := mcastpcap.NewReader(path)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer reader.Close()

	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	start := time.Now()
	published := 0
	for {
		info, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("ERROR: %v", err)
			break
		}

		if pace {
			select {
			case <-time.After(time.Until(start.Add(info.TimeRel))):
			case <-ctx.Done():
				return
			}
		} else if ctx.Err() != nil {
			return
		}

		if err := pub.Publish(info); err != nil {
			log.Printf("Failed to publish packet: %v", err)
			continue
		}
		published++
	}
	log.Printf("Replayed %d packets from '%s'.", published, path)
}

// runSubscriber subscribes to NATS and prints every received packet.
func runSubscriber(ctx context.Context, cfg config.ProbeConfig) {
	log.Println("Starting ns-probe in SUBSCRIBER mode...")

	sub, err := probe.NewSubscriber(cfg)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	handler := func(info *model.PacketInfo) {
		log.Printf("Received Packet: #%d +%s %s:%d -> %s:%d len %d",
			info.FrameNumber, info.TimeRel,
			info.FiveTuple.SrcIP, info.FiveTuple.SrcPort,
			info.FiveTuple.DstIP, info.FiveTuple.DstPort, info.Length)
	}

	if err := sub.Start(handler); err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	<-ctx.Done()
	log.Println("Shutdown signal received, cleaning up...")
}
