package protocol

import (
	"McastSpectra/internal/model"
	"errors"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	// ErrNotIP is returned for frames that carry neither IPv4 nor IPv6.
	ErrNotIP = errors.New("not an IPv4 or IPv6 packet")
	// ErrNoTransport is returned for IP packets without a UDP or TCP header.
	ErrNoTransport = errors.New("not a TCP or UDP packet")
)

// ParsePacket extracts the addressing fields of an already decoded packet.
// Timestamp and wire length come from the capture metadata when present.
// FrameNumber and TimeRel are left for the caller to assign.
func ParsePacket(packet gopacket.Packet) (*model.PacketInfo, error) {
	info := &model.PacketInfo{
		Length: uint32(len(packet.Data())),
	}

	if meta := packet.Metadata(); meta != nil {
		info.Timestamp = meta.Timestamp
		if meta.Length > 0 {
			info.Length = uint32(meta.Length)
		}
	}

	var fiveTuple model.FiveTuple

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		fiveTuple.SrcIP = addrFromSlice(ip.SrcIP)
		fiveTuple.DstIP = addrFromSlice(ip.DstIP)
		fiveTuple.Protocol = uint8(ip.Protocol)
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		fiveTuple.SrcIP = addrFromSlice(ip.SrcIP)
		fiveTuple.DstIP = addrFromSlice(ip.DstIP)
		fiveTuple.Protocol = uint8(ip.NextHeader)
	} else {
		return nil, ErrNotIP
	}

	if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		fiveTuple.SrcPort = uint16(udp.SrcPort)
		fiveTuple.DstPort = uint16(udp.DstPort)
		fiveTuple.Protocol = uint8(layers.IPProtocolUDP)
	} else if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		fiveTuple.SrcPort = uint16(tcp.SrcPort)
		fiveTuple.DstPort = uint16(tcp.DstPort)
		fiveTuple.Protocol = uint8(layers.IPProtocolTCP)
	} else {
		return nil, ErrNoTransport
	}

	info.FiveTuple = fiveTuple
	return info, nil
}

// ParseData decodes an Ethernet frame and extracts its addressing fields.
func ParseData(data []byte, ci gopacket.CaptureInfo) (*model.PacketInfo, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	md := packet.Metadata()
	md.CaptureInfo = ci
	return ParsePacket(packet)
}

// addrFromSlice converts a 4 or 16 byte address. IPv4-mapped IPv6 addresses stay IPv6.
func addrFromSlice(b []byte) netip.Addr {
	addr, ok := netip.AddrFromSlice(b)
	if !ok {
		return netip.Addr{}
	}
	return addr
}
