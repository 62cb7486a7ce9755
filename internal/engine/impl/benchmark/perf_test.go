package test

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/engine/impl/mcast"
	"McastSpectra/internal/model"
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"
)

// synthesize builds n packets spread round-robin over the given number of
// multicast streams, 1ms apart, plus one unicast packet in every ten.
func synthesize(n, streams int) []*model.PacketInfo {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	src := netip.MustParseAddr("10.0.0.1")
	packets := make([]*model.PacketInfo, n)
	for i := range packets {
		idx := i % streams
		dst := netip.AddrFrom4([4]byte{239, 1, byte(idx >> 8), byte(idx)})
		if i%10 == 9 {
			dst = netip.MustParseAddr("10.0.0.2")
		}
		rel := time.Duration(i) * time.Millisecond
		packets[i] = &model.PacketInfo{
			FrameNumber: uint32(i + 1),
			Timestamp:   start.Add(rel),
			TimeRel:     rel,
			FiveTuple: model.FiveTuple{
				SrcIP:    src,
				DstIP:    dst,
				SrcPort:  5000,
				DstPort:  5004,
				Protocol: 17,
			},
			Length: 1358,
		}
	}
	return packets
}

// advance loads the i-th packet of an endless capture that cycles through
// packets while time keeps moving forward.
func advance(dst *model.PacketInfo, packets []*model.PacketInfo, i int) {
	*dst = *packets[i%len(packets)]
	dst.FrameNumber = uint32(i + 1)
	dst.TimeRel = time.Duration(i) * time.Millisecond
	dst.Timestamp = packets[0].Timestamp.Add(dst.TimeRel)
}

func BenchmarkProcess(b *testing.B) {
	for _, streams := range []int{1, 64, 4096} {
		packets := synthesize(100000, streams)
		b.Run(fmt.Sprintf("Streams_%d", streams), func(b *testing.B) {
			task := mcast.New("bench", config.MulticastConfig{})
			var pkt model.PacketInfo
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				advance(&pkt, packets, i)
				task.ProcessPacket(&pkt)
			}
		})
	}
}

func BenchmarkRetap(b *testing.B) {
	packets := synthesize(100000, 64)
	task := mcast.New("bench", config.MulticastConfig{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		task.Reset()
		for _, p := range packets {
			task.ProcessPacket(p)
		}
	}
	b.ReportMetric(float64(len(packets)*b.N)/b.Elapsed().Seconds(), "packets/s")
}

// BenchmarkProcessWithReaders measures processing while snapshot readers
// compete for the task lock.
func BenchmarkProcessWithReaders(b *testing.B) {
	packets := synthesize(100000, 64)
	task := mcast.New("bench", config.MulticastConfig{})
	for _, p := range packets {
		task.ProcessPacket(p)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					task.StreamSnapshot()
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}

	var pkt model.PacketInfo
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		advance(&pkt, packets, len(packets)+i)
		task.ProcessPacket(&pkt)
	}
	b.StopTimer()
	close(done)
	wg.Wait()
}

func BenchmarkSnapshot(b *testing.B) {
	for _, streams := range []int{64, 4096} {
		task := mcast.New("bench", config.MulticastConfig{})
		for _, p := range synthesize(100000, streams) {
			task.ProcessPacket(p)
		}
		b.Run(fmt.Sprintf("Streams_%d", streams), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				task.StreamSnapshot()
			}
		})
	}
}
