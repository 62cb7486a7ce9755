package main

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/engine/impl/mcast"
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"McastSpectra/internal/engine/manager"
	"McastSpectra/pkg/pcap"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"reflect"
	"syscall"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	retap := flag.Int("retap", 0, "Replay the capture this many extra times and check the results match.")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <path_to_pcap_file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// 1. Get pcap file path from command-line arguments
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	// 2. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 3. Initialize modules
	managerImpl, err := manager.NewManager(cfg)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	pcapReader, err := pcap.NewReader(pcapFilePath)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer pcapReader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start the processing pipeline
	managerImpl.Start()

	// 5. Tap the file, then re-tap it as many times as requested.
	var first map[string]interface{}
	for pass := 0; pass <= *retap; pass++ {
		if pass > 0 {
			if err := pcapReader.Rewind(); err != nil {
				log.Printf("ERROR: failed to rewind '%s': %v", pcapFilePath, err)
				break
			}
		}
		log.Printf("Reading packets from '%s' (pass %d)...", pcapFilePath, pass+1)
		if _, err := managerImpl.Retap(ctx, pcapReader); err != nil {
			log.Printf("ERROR: %v", err)
			break
		}

		snapshots := managerImpl.Snapshots()
		if pass == 0 {
			first = snapshots
		} else if !reflect.DeepEqual(first, snapshots) {
			log.Printf("Warning: pass %d produced different statistics than the first pass", pass+1)
		}
	}
	log.Printf("Finished reading packets, %d frames skipped per pass.", pcapReader.Skipped())

	// 6. Graceful shutdown writes the final snapshots.
	managerImpl.Stop()

	// 7. Print the final tables.
	for _, task := range managerImpl.Tasks() {
		snap, ok := task.Snapshot().(statistic.Snapshot)
		if !ok {
			continue
		}
		fmt.Printf("\n== %s ==\n", task.Name())
		if err := mcast.WriteTable(os.Stdout, snap); err != nil {
			log.Printf("ERROR: failed to print table for task %s: %v", task.Name(), err)
		}
	}
}
