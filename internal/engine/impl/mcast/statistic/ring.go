package statistic

import "time"

// TimeRing is a fixed-capacity FIFO of relative timestamps.
// All index wraparound lives here; callers only Push and PopFront.
type TimeRing struct {
	buf  []time.Duration
	head int
	size int
}

// NewTimeRing allocates a ring holding at most capacity samples.
func NewTimeRing(capacity int) *TimeRing {
	if capacity < 1 {
		capacity = 1
	}
	return &TimeRing{buf: make([]time.Duration, capacity)}
}

// Len returns the number of samples currently held.
func (r *TimeRing) Len() int { return r.size }

// Cap returns the maximum number of samples.
func (r *TimeRing) Cap() int { return len(r.buf) }

// Full reports whether a Push would overwrite nothing and must be refused.
func (r *TimeRing) Full() bool { return r.size == len(r.buf) }

// Push appends t at the tail. It returns false, leaving the ring untouched, when the ring is full.
func (r *TimeRing) Push(t time.Duration) bool {
	if r.Full() {
		return false
	}
	r.buf[(r.head+r.size)%len(r.buf)] = t
	r.size++
	return true
}

// Front returns the oldest sample.
func (r *TimeRing) Front() (time.Duration, bool) {
	if r.size == 0 {
		return 0, false
	}
	return r.buf[r.head], true
}

// PopFront removes and returns the oldest sample.
func (r *TimeRing) PopFront() (time.Duration, bool) {
	if r.size == 0 {
		return 0, false
	}
	t := r.buf[r.head]
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return t, true
}

// Clear drops every sample without releasing the storage.
func (r *TimeRing) Clear() {
	r.head = 0
	r.size = 0
}
