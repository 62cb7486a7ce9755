package probe

import (
	"McastSpectra/internal/model"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestCodecPreservesPacket(t *testing.T) {
	in := &model.PacketInfo{
		FrameNumber: 42,
		Timestamp:   time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC),
		TimeRel:     1500 * time.Millisecond,
		FiveTuple: model.FiveTuple{
			SrcIP:    netip.MustParseAddr("fe80::1"),
			DstIP:    netip.MustParseAddr("ff0e::1"),
			SrcPort:  5000,
			DstPort:  5004,
			Protocol: 17,
		},
		Length: 1358,
	}

	data, err := Marshal(in)
	require.NoError(t, err)

	out, err := Unmarshal(data)
	require.NoError(t, err)
	require.True(t, in.Timestamp.Equal(out.Timestamp))
	out.Timestamp = in.Timestamp
	require.Equal(t, in, out)
}

func TestCodecSkipsUnknownFields(t *testing.T) {
	data, err := Marshal(&model.PacketInfo{FrameNumber: 7, FiveTuple: model.FiveTuple{DstIP: netip.MustParseAddr("239.1.1.1")}})
	require.NoError(t, err)
	data = protowire.AppendTag(data, 99, protowire.Fixed32Type)
	data = protowire.AppendFixed32(data, 1)

	out, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, uint32(7), out.FrameNumber)
	require.Equal(t, netip.MustParseAddr("239.1.1.1"), out.FiveTuple.DstIP)
	require.False(t, out.FiveTuple.SrcIP.IsValid())
}

func TestCodecRejectsTruncatedInput(t *testing.T) {
	data, err := Marshal(&model.PacketInfo{FrameNumber: 1, FiveTuple: model.FiveTuple{SrcIP: netip.MustParseAddr("10.0.0.1")}})
	require.NoError(t, err)
	_, err = Unmarshal(data[:len(data)-2])
	require.Error(t, err)
}
