package mcast

import (
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"fmt"
	"io"
	"text/tabwriter"
)

const tableHeader = "STREAM\tPACKETS\tBYTES\tPKT/S\tBIT/S\tBURST\tPEAK BURST\tBURST ALARMS\tMAX BW\tBUFFER\tPEAK BUFFER\tBUFFER ALARMS\n"

// WriteTable renders a snapshot as an aligned text table, one row per stream
// followed by the all-streams row.
func WriteTable(w io.Writer, snap statistic.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := io.WriteString(tw, tableHeader); err != nil {
		return err
	}
	for _, st := range snap.Streams {
		if err := writeRow(tw, st.Key.String(), st.ScopeStats); err != nil {
			return err
		}
	}
	if snap.Aggregate != nil {
		if err := writeRow(tw, "all streams", *snap.Aggregate); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writeRow(w io.Writer, label string, s statistic.ScopeStats) error {
	_, err := fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%.0f\t%d\t%d\t%d\t%.0f\t%d\t%d\t%d\n",
		label, s.Packets, s.Bytes, s.AvgPacketRate, s.AvgBitrate,
		s.Burst.Current, s.Burst.Peak, s.Burst.Alarms, s.Burst.PeakBandwidth,
		s.Buffer.Occupancy, s.Buffer.Peak, s.Buffer.Alarms)
	return err
}
