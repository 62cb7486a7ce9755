package persistent

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/model"
	"bufio"
	"fmt"
	"log"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PacketContainer holds both the raw packet and the parsed info.
type PacketContainer struct {
	RawPacket  gopacket.Packet
	PacketInfo *model.PacketInfo
}

// Worker records captured packets to disk on a single goroutine so the file
// keeps capture order.
type Worker struct {
	packetChan chan *PacketContainer
	done       chan struct{}
	file       *os.File
	dropped    uint64
}

// NewWorker creates the output file and starts the recording goroutine.
func NewWorker(cfg config.PersistenceConfig, linkType layers.LinkType) (*Worker, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create persistence directory: %w", err)
	}

	bufferSize := cfg.ChannelBufferSize
	if bufferSize <= 0 {
		bufferSize = 10000
	}

	file, err := createOutputFile(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	w := &Worker{
		packetChan: make(chan *PacketContainer, bufferSize),
		done:       make(chan struct{}),
		file:       file,
	}

	var run func()
	switch cfg.Encoding {
	case "text":
		run = w.runTextWorker
	case "pcap":
		snapLen := cfg.SnapLen
		if snapLen <= 0 {
			snapLen = 65536
		}
		pcapWriter := pcapgo.NewWriter(file)
		if err := pcapWriter.WriteFileHeader(uint32(snapLen), linkType); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write pcap file header: %w", err)
		}
		run = func() { w.runPcapWorker(pcapWriter) }
	default:
		file.Close()
		return nil, fmt.Errorf("unknown encoding '%s'", cfg.Encoding)
	}

	go func() {
		defer close(w.done)
		run()
		if err := file.Close(); err != nil {
			log.Printf("PersistentWorker: Error closing file: %v", err)
		}
	}()

	log.Printf("Persistent worker started, encoding: %s, writing to: %s", cfg.Encoding, file.Name())
	return w, nil
}

func createOutputFile(cfg config.PersistenceConfig) (*os.File, error) {
	ext := ".log"
	if cfg.Encoding == "pcap" {
		ext = ".pcap"
	}
	fileName := fmt.Sprintf("%s%s", time.Now().Format("2006-01-02_15-04-05"), ext)
	return os.OpenFile(filepath.Join(cfg.Path, fileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
}

// FileName returns the path of the recording.
func (w *Worker) FileName() string {
	return w.file.Name()
}

func (w *Worker) runTextWorker() {
	writer := bufio.NewWriter(w.file)
	for container := range w.packetChan {
		packet := container.PacketInfo
		line := fmt.Sprintf("%s - %s -> %s, Proto: %d, Len: %d\n",
			packet.Timestamp.Format("2006-01-02 15:04:05.000000"),
			netip.AddrPortFrom(packet.FiveTuple.SrcIP, packet.FiveTuple.SrcPort),
			netip.AddrPortFrom(packet.FiveTuple.DstIP, packet.FiveTuple.DstPort),
			packet.FiveTuple.Protocol,
			packet.Length,
		)
		if _, err := writer.WriteString(line); err != nil {
			log.Printf("PersistentWorker (text): Error writing packet: %v", err)
		}
	}
	if err := writer.Flush(); err != nil {
		log.Printf("PersistentWorker (text): Error flushing file: %v", err)
	}
}

func (w *Worker) runPcapWorker(pcapWriter *pcapgo.Writer) {
	for container := range w.packetChan {
		if err := pcapWriter.WritePacket(container.RawPacket.Metadata().CaptureInfo, container.RawPacket.Data()); err != nil {
			log.Printf("PersistentWorker (pcap): Error writing packet: %v", err)
		}
	}
}

// Stop flushes the queued packets and closes the file.
func (w *Worker) Stop() {
	close(w.packetChan)
	<-w.done
	log.Printf("Persistent worker stopped and file closed, %d packets dropped.", w.dropped)
}

// Enqueue sends a packet container to the worker channel, dropping it when the channel is full.
func (w *Worker) Enqueue(container *PacketContainer) {
	select {
	case w.packetChan <- container:
	default:
		w.dropped++
		if w.dropped%1000 == 1 {
			log.Println("PersistentWorker: Channel is full, dropping packet.")
		}
	}
}
