package mcast

import (
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"McastSpectra/internal/model"
	"log"
	"net/netip"
)

// ProcessResult tells whether a packet was accounted.
type ProcessResult int

const (
	// Ignored packets left every statistic untouched.
	Ignored ProcessResult = iota
	// Consumed packets updated one stream and the aggregate.
	Consumed
)

func (r ProcessResult) String() string {
	if r == Consumed {
		return "consumed"
	}
	return "ignored"
}

// IsMulticast reports whether addr is an IPv4 address in 224.0.0.0/4 or an
// IPv6 address in ff00::/8. IPv4-mapped IPv6 addresses are not accepted.
func IsMulticast(addr netip.Addr) bool {
	switch {
	case addr.Is4():
		return addr.As4()[0]&0xf0 == 0xe0
	case addr.Is6() && !addr.Is4In6():
		return addr.As16()[0] == 0xff
	default:
		return false
	}
}

// Processor is the per-packet entry point of the engine. It must be called
// from a single goroutine, in capture order.
type Processor struct {
	registry      *Registry
	debugOrdering bool
}

// NewProcessor creates a processor updating registry.
func NewProcessor(registry *Registry, debugOrdering bool) *Processor {
	return &Processor{registry: registry, debugOrdering: debugOrdering}
}

// Process accounts one packet. Packets not addressed to a multicast group are ignored.
func (p *Processor) Process(packet *model.PacketInfo) ProcessResult {
	if packet == nil || !IsMulticast(packet.FiveTuple.DstIP) {
		return Ignored
	}

	key := statistic.KeyOf(packet.FiveTuple)
	rec := p.registry.FindOrCreate(key, packet)
	if p.debugOrdering && packet.TimeRel < rec.LastRel() {
		log.Printf("Warning: frame %d of stream %s goes back in time (%s < %s)", packet.FrameNumber, key, packet.TimeRel, rec.LastRel())
	}
	rec.Update(packet)

	p.registry.Aggregate(packet).Update(packet)

	return Consumed
}
