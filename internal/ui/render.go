package ui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/HerbHall/netcanvas/pkg/models"
)

// Topologies prints the catalog, marking the active topology.
func Topologies(w io.Writer, ts []models.Topology) {
	if len(ts) == 0 {
		fmt.Fprintln(w, "  No topologies saved.")
		return
	}
	rows := make([][]string, 0, len(ts))
	for _, t := range ts {
		active := ""
		if t.IsActive {
			active = "●"
		}
		rows = append(rows, []string{strconv.Itoa(t.ID), t.Name, active, t.Description})
	}
	Table(w, []string{"ID", "NAME", "ACTIVE", "DESCRIPTION"}, rows)
}

// Devices prints devices and the links between them.
func Devices(w io.Writer, devices []models.Device, conns []models.Connection) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "  Canvas is empty.")
		return
	}
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		ip := d.IPAddress
		if ip == "" {
			ip = "-"
		}
		rows = append(rows, []string{
			d.Kind.Glyph() + " " + d.ID,
			string(d.Kind),
			d.DisplayName,
			ip,
			fmt.Sprintf("%.0f,%.0f", d.Position.X, d.Position.Y),
		})
	}
	Table(w, []string{"DEVICE", "KIND", "NAME", "IP", "POSITION"}, rows)
	if len(conns) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, c := range conns {
		fmt.Fprintf(w, "  %s %s %s\n", c.EndpointA, Subtle.Sprint("──"), c.EndpointB)
	}
}

// Interfaces prints router interfaces.
func Interfaces(w io.Writer, ifaces []models.RouterInterface) {
	if len(ifaces) == 0 {
		fmt.Fprintln(w, "  No interfaces configured.")
		return
	}
	rows := make([][]string, 0, len(ifaces))
	for _, i := range ifaces {
		rows = append(rows, []string{i.Name, i.IP, strconv.Itoa(i.SubnetMaskBits)})
	}
	Table(w, []string{"INTERFACE", "IP", "MASK"}, rows)
}

// Validation prints the verdict on a topology.
func Validation(w io.Writer, res *models.ValidationResult) {
	if res.Valid {
		Success(w, "Topology is valid")
	} else {
		Failure(w, "Topology is invalid")
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "    %s %s\n", Bad.Sprint("error"), e)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "    %s %s\n", WarnIcon(), warn)
	}
}

// Trace prints the hops of a finished trace.
func Trace(w io.Writer, res *models.TraceResult) {
	rows := make([][]string, 0, len(res.Hops))
	for i, h := range res.Hops {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			h.Node,
			h.Action,
			strconv.FormatFloat(h.Time, 'f', 2, 64),
			h.Details,
		})
	}
	Table(w, []string{"#", "NODE", "ACTION", "TIME", "DETAILS"}, rows)
	switch {
	case res.Error != "":
		Failure(w, "%s", res.Error)
	case res.Success:
		Success(w, "Packet delivered from %s to %s", res.SourceNode, res.DestinationNode)
	default:
		Failure(w, "Packet was not delivered")
	}
}

// Ping prints per-attempt results and the summary line.
func Ping(w io.Writer, res *models.PingResult) {
	for _, a := range res.Results {
		if a.Success {
			fmt.Fprintf(w, "  %s seq=%d time=%.2f ms\n", StatusIcon(true), a.Seq, a.TimeMs)
		} else {
			fmt.Fprintf(w, "  %s seq=%d %s\n", StatusIcon(false), a.Seq, a.Error)
		}
	}
	fmt.Fprintf(w, "\n  %d packets sent, %d received, %.0f%% loss\n",
		res.PacketsSent, res.PacketsReceived, res.PacketLoss)
}
