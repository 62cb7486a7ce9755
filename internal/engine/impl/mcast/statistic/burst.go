package statistic

import (
	"log"
	"math"
	"time"
)

const minBurstCapacity = 4

// BurstStats is a copy-out view of a BurstTracker.
type BurstStats struct {
	Current int  `json:"current"`
	Peak    int  `json:"peak"`
	Alarms  int  `json:"alarms"`
	Armed   bool `json:"armed"`
	// PeakBandwidth is the bits/s estimate taken when Peak was reached.
	PeakBandwidth float64 `json:"peak_bandwidth_bps"`
	// Saturations counts samples evicted because the ring was full.
	Saturations uint64 `json:"saturations"`
}

// BurstTracker counts the packets seen inside a trailing time window and
// raises a hysteresis alarm whenever that count reaches the trigger.
type BurstTracker struct {
	owner    string
	window   time.Duration
	windowMs float64
	trigger  int
	ring     *TimeRing

	current       int
	peak          int
	armed         bool
	alarms        int
	peakBandwidth float64
	saturations   uint64
}

// BurstCapacity returns the ring size needed to hold every packet that can
// arrive in window at maxPPS, doubled for headroom.
func BurstCapacity(maxPPS int, window time.Duration) int {
	c := int(math.Round(2 * float64(maxPPS) * window.Seconds()))
	if c < minBurstCapacity {
		c = minBurstCapacity
	}
	return c
}

// NewBurstTracker creates a tracker. owner only labels diagnostics.
func NewBurstTracker(owner string, window time.Duration, trigger, capacity int) *BurstTracker {
	return &BurstTracker{
		owner:    owner,
		window:   window,
		windowMs: float64(window) / float64(time.Millisecond),
		trigger:  trigger,
		ring:     NewTimeRing(capacity),
	}
}

// OnPacket records a packet arriving at t with the given wire length.
// Timestamps must be non-decreasing.
func (b *BurstTracker) OnPacket(t time.Duration, wireLength uint32) {
	if b.ring.Full() {
		b.ring.PopFront()
		b.saturations++
		log.Printf("Warning: burst window of %s is full (%d samples), dropping the oldest sample. Raise max_packets_per_second.", b.owner, b.ring.Cap())
	}
	b.ring.Push(t)

	for {
		oldest, ok := b.ring.Front()
		if !ok || t-oldest <= b.window {
			break
		}
		b.ring.PopFront()
	}

	b.current = b.ring.Len()

	if b.current > b.peak {
		b.peak = b.current
		if b.windowMs > 0 {
			b.peakBandwidth = float64(b.peak) * 1000 / b.windowMs * float64(wireLength) * 8
		}
	}

	if b.current >= b.trigger {
		if !b.armed {
			b.armed = true
			b.alarms++
		}
	} else {
		b.armed = false
	}
}

// Stats returns a copy of the tracker's counters.
func (b *BurstTracker) Stats() BurstStats {
	return BurstStats{
		Current:       b.current,
		Peak:          b.peak,
		Alarms:        b.alarms,
		Armed:         b.armed,
		PeakBandwidth: b.peakBandwidth,
		Saturations:   b.saturations,
	}
}
