package statistic

import (
	"math"
	"time"
)

// BufferStats is a copy-out view of a PlayoutBuffer.
type BufferStats struct {
	Occupancy int64   `json:"occupancy_bytes"`
	Peak      int64   `json:"peak_occupancy_bytes"`
	Alarms    int     `json:"alarms"`
	Armed     bool    `json:"armed"`
	DrainRate float64 `json:"drain_rate_bps"`
}

// PlayoutBuffer simulates a receiver buffer that fills with every packet and
// drains continuously at a nominal rate. It flags arrival patterns that would
// overrun a receiver of that capacity; it does not model a real receiver.
type PlayoutBuffer struct {
	drainRate float64
	threshold int64

	occupancy int64
	peak      int64
	armed     bool
	alarms    int
	last      time.Duration
	started   bool
}

// NewPlayoutBuffer creates a buffer draining at drainRate bits/s and alarming at threshold bytes.
func NewPlayoutBuffer(drainRate float64, threshold int64) *PlayoutBuffer {
	return &PlayoutBuffer{drainRate: drainRate, threshold: threshold}
}

// OnPacket accounts a packet of the given size arriving at t.
// The drain since the previous packet is applied before the new bytes are added.
func (p *PlayoutBuffer) OnPacket(bytes uint32, t time.Duration) {
	if p.started {
		elapsed := (t - p.last).Seconds()
		p.occupancy -= int64(math.Floor(elapsed * p.drainRate / 8))
		if p.occupancy < 0 {
			p.occupancy = 0
		}
	}
	p.started = true
	p.last = t

	p.occupancy += int64(bytes)
	if p.occupancy > p.peak {
		p.peak = p.occupancy
	}

	if p.occupancy >= p.threshold {
		if !p.armed {
			p.armed = true
			p.alarms++
		}
	} else {
		p.armed = false
	}
}

// Stats returns a copy of the buffer's counters.
func (p *PlayoutBuffer) Stats() BufferStats {
	return BufferStats{
		Occupancy: p.occupancy,
		Peak:      p.peak,
		Alarms:    p.alarms,
		Armed:     p.armed,
		DrainRate: p.drainRate,
	}
}
