package statistic

import (
	"McastSpectra/internal/model"
	"net/netip"
	"time"
)

// StreamKey identifies a multicast stream. It is comparable and used directly as a map key.
type StreamKey struct {
	SrcAddr netip.Addr `json:"src_addr"`
	SrcPort uint16     `json:"src_port"`
	DstAddr netip.Addr `json:"dst_addr"`
	DstPort uint16     `json:"dst_port"`
}

// KeyOf builds the stream key of a packet.
func KeyOf(ft model.FiveTuple) StreamKey {
	return StreamKey{
		SrcAddr: ft.SrcIP,
		SrcPort: ft.SrcPort,
		DstAddr: ft.DstIP,
		DstPort: ft.DstPort,
	}
}

func (k StreamKey) String() string {
	return netip.AddrPortFrom(k.SrcAddr, k.SrcPort).String() + " -> " + netip.AddrPortFrom(k.DstAddr, k.DstPort).String()
}

// ScopeConfig parameterizes one Scope. Streams and the aggregate differ only in DrainRate.
type ScopeConfig struct {
	Window          time.Duration
	BurstTrigger    int
	BurstCapacity   int
	BufferThreshold int64
	DrainRate       float64
}

// Scope carries the running totals, the burst tracker and the playout buffer
// of either one stream or the all-streams aggregate.
type Scope struct {
	firstFrame uint32
	startAbs   time.Time
	startRel   time.Duration
	lastRel    time.Duration

	packets       uint64
	bytes         uint64
	avgPacketRate float64
	avgBitrate    float64

	burst  *BurstTracker
	buffer *PlayoutBuffer
}

// NewScope creates an empty scope seeded from the first packet it will see.
func NewScope(owner string, cfg ScopeConfig, first *model.PacketInfo) *Scope {
	return &Scope{
		firstFrame: first.FrameNumber,
		startAbs:   first.Timestamp,
		startRel:   first.TimeRel,
		lastRel:    first.TimeRel,
		burst:      NewBurstTracker(owner, cfg.Window, cfg.BurstTrigger, cfg.BurstCapacity),
		buffer:     NewPlayoutBuffer(cfg.DrainRate, cfg.BufferThreshold),
	}
}

// Update accounts one packet: totals, averages, burst window and playout buffer.
func (s *Scope) Update(p *model.PacketInfo) {
	s.lastRel = p.TimeRel
	s.packets++
	s.bytes += uint64(p.Length)

	elapsed := (s.lastRel - s.startRel).Seconds()
	if elapsed > 0 {
		s.avgPacketRate = float64(s.packets) / elapsed
		s.avgBitrate = float64(s.bytes) * 8 / elapsed
	} else {
		s.avgPacketRate = 0
		s.avgBitrate = 0
	}

	s.burst.OnPacket(p.TimeRel, p.Length)
	s.buffer.OnPacket(p.Length, p.TimeRel)
}

// LastRel returns the relative time of the latest packet.
func (s *Scope) LastRel() time.Duration {
	return s.lastRel
}

// Stats returns a copy-out view of the scope.
func (s *Scope) Stats() ScopeStats {
	return ScopeStats{
		FirstFrame:    s.firstFrame,
		StartTime:     s.startAbs,
		StartRel:      s.startRel,
		LastRel:       s.lastRel,
		Packets:       s.packets,
		Bytes:         s.bytes,
		AvgPacketRate: s.avgPacketRate,
		AvgBitrate:    s.avgBitrate,
		Burst:         s.burst.Stats(),
		Buffer:        s.buffer.Stats(),
	}
}

// StreamRecord is the Scope of one multicast stream.
type StreamRecord struct {
	Key StreamKey
	*Scope
}

// ScopeStats is the read-only view of a Scope handed to the presentation layer.
type ScopeStats struct {
	FirstFrame    uint32        `json:"first_frame"`
	StartTime     time.Time     `json:"start_time"`
	StartRel      time.Duration `json:"start_rel_ns"`
	LastRel       time.Duration `json:"last_rel_ns"`
	Packets       uint64        `json:"packets"`
	Bytes         uint64        `json:"bytes"`
	AvgPacketRate float64       `json:"avg_packet_rate"`
	AvgBitrate    float64       `json:"avg_bitrate_bps"`
	Burst         BurstStats    `json:"burst"`
	Buffer        BufferStats   `json:"buffer"`
}

// StreamStats is the read-only view of a StreamRecord.
type StreamStats struct {
	Key StreamKey `json:"key"`
	ScopeStats
}

// Snapshot is a deep copy of a task's state between two packets.
type Snapshot struct {
	TaskName string        `json:"task_name"`
	Streams  []StreamStats `json:"streams"`
	// Aggregate is nil until the first multicast packet after a reset.
	Aggregate *ScopeStats `json:"aggregate,omitempty"`
}

// Totals returns the packet and byte counts over all streams.
func (s Snapshot) Totals() (packets, bytes uint64) {
	for _, st := range s.Streams {
		packets += st.Packets
		bytes += st.Bytes
	}
	return packets, bytes
}
