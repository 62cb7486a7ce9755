package probe

import (
	"McastSpectra/internal/model"
	"fmt"
	"net/netip"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Field numbers of the mcast.v1.PacketInfo message.
const (
	fieldFrameNumber protowire.Number = 1
	fieldTimestamp   protowire.Number = 2
	fieldTimeRel     protowire.Number = 3
	fieldSrcIP       protowire.Number = 4
	fieldDstIP       protowire.Number = 5
	fieldSrcPort     protowire.Number = 6
	fieldDstPort     protowire.Number = 7
	fieldProtocol    protowire.Number = 8
	fieldLength      protowire.Number = 9
)

// Marshal encodes a PacketInfo in protobuf wire format.
func Marshal(info *model.PacketInfo) ([]byte, error) {
	ts, err := proto.Marshal(timestamppb.New(info.Timestamp))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	b := make([]byte, 0, 64)
	b = appendVarint(b, fieldFrameNumber, uint64(info.FrameNumber))
	b = protowire.AppendTag(b, fieldTimestamp, protowire.BytesType)
	b = protowire.AppendBytes(b, ts)
	b = appendVarint(b, fieldTimeRel, uint64(info.TimeRel))
	b = appendAddr(b, fieldSrcIP, info.FiveTuple.SrcIP)
	b = appendAddr(b, fieldDstIP, info.FiveTuple.DstIP)
	b = appendVarint(b, fieldSrcPort, uint64(info.FiveTuple.SrcPort))
	b = appendVarint(b, fieldDstPort, uint64(info.FiveTuple.DstPort))
	b = appendVarint(b, fieldProtocol, uint64(info.FiveTuple.Protocol))
	b = appendVarint(b, fieldLength, uint64(info.Length))
	return b, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendAddr(b []byte, num protowire.Number, addr netip.Addr) []byte {
	if !addr.IsValid() {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, addr.AsSlice())
}

// Unmarshal decodes a PacketInfo written by Marshal. Unknown fields are skipped.
func Unmarshal(b []byte) (*model.PacketInfo, error) {
	info := &model.PacketInfo{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("invalid varint in field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldFrameNumber:
				info.FrameNumber = uint32(v)
			case fieldTimeRel:
				info.TimeRel = time.Duration(v)
			case fieldSrcPort:
				info.FiveTuple.SrcPort = uint16(v)
			case fieldDstPort:
				info.FiveTuple.DstPort = uint16(v)
			case fieldProtocol:
				info.FiveTuple.Protocol = uint8(v)
			case fieldLength:
				info.Length = uint32(v)
			}
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("invalid bytes in field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldTimestamp:
				var ts timestamppb.Timestamp
				if err := proto.Unmarshal(v, &ts); err != nil {
					return nil, fmt.Errorf("invalid timestamp: %w", err)
				}
				info.Timestamp = ts.AsTime()
			case fieldSrcIP:
				info.FiveTuple.SrcIP, _ = netip.AddrFromSlice(v)
			case fieldDstIP:
				info.FiveTuple.DstIP, _ = netip.AddrFromSlice(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return info, nil
}
