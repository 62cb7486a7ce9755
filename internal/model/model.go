package model

import (
	"net/netip"
	"time"
)

// FiveTuple represents the 5-tuple of a network packet.
// Addresses that are neither IPv4 nor IPv6 are left as the zero netip.Addr.
type FiveTuple struct {
	SrcIP    netip.Addr
	DstIP    netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// PacketInfo holds the metadata extracted from a single packet.
type PacketInfo struct {
	// FrameNumber is the 1-based position of the packet in its capture. It is a label only.
	FrameNumber uint32
	// Timestamp is the absolute capture time.
	Timestamp time.Time
	// TimeRel is the offset from the first packet of the capture.
	TimeRel   time.Duration
	FiveTuple FiveTuple
	// Length is the number of bytes on the wire.
	Length uint32
}
