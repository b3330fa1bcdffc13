package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/HerbHall/netcanvas/pkg/models"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestTable_Aligns(t *testing.T) {
	var buf bytes.Buffer

	Table(&buf, []string{"ID", "NAME"}, [][]string{{"1", "campus"}, {"12", "lab"}})

	want := "" +
		"  ID  NAME\n" +
		"  ──  ──────\n" +
		"  1   campus\n" +
		"  12  lab\n"
	assert.Equal(t, want, buf.String())
}

func TestTable_EmptyPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, []string{"ID"}, nil)
	assert.Empty(t, buf.String())
}

func TestTopologies(t *testing.T) {
	var buf bytes.Buffer

	Topologies(&buf, []models.Topology{{ID: 1, Name: "campus", IsActive: true}, {ID: 2, Name: "lab"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[2], "campus  ●")
	assert.NotContains(t, lines[3], "●")

	buf.Reset()
	Topologies(&buf, nil)
	assert.Equal(t, "  No topologies saved.\n", buf.String())
}

func TestDevices(t *testing.T) {
	var buf bytes.Buffer
	devices := []models.Device{
		{ID: "h1", Kind: models.DeviceKindHost, DisplayName: "web", IPAddress: "10.0.0.1/24", Position: models.Position{X: 100, Y: 50}},
		{ID: "s1", Kind: models.DeviceKindSwitch, DisplayName: "s1"},
	}

	Devices(&buf, devices, []models.Connection{{ID: "conn-0", EndpointA: "h1", EndpointB: "s1"}})

	out := buf.String()
	assert.Contains(t, out, "▣ h1")
	assert.Contains(t, out, "10.0.0.1/24")
	assert.Contains(t, out, "100,50")
	assert.Contains(t, out, "h1 ── s1")
}

func TestValidation(t *testing.T) {
	var buf bytes.Buffer

	Validation(&buf, &models.ValidationResult{
		Errors:   []string{"host h1 has no IP address"},
		Warnings: []string{"s1 is not connected"},
	})

	assert.Equal(t, ""+
		"  ✗ Topology is invalid\n"+
		"    error host h1 has no IP address\n"+
		"    ⚠ s1 is not connected\n", buf.String())
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer

	Trace(&buf, &models.TraceResult{
		SourceNode:      "h1",
		DestinationNode: "h2",
		Success:         true,
		Hops:            []models.TraceHop{{Node: "h1", Action: "send", Time: 0}, {Node: "h2", Action: "receive", Time: 0.25}},
	})

	out := buf.String()
	assert.Contains(t, out, "0.25")
	assert.Contains(t, out, "✓ Packet delivered from h1 to h2")

	buf.Reset()
	Trace(&buf, &models.TraceResult{Error: "No route from h1 to h3"})
	assert.Equal(t, "  ✗ No route from h1 to h3\n", buf.String())
}

func TestPing(t *testing.T) {
	var buf bytes.Buffer

	Ping(&buf, &models.PingResult{
		PacketsSent:     2,
		PacketsReceived: 1,
		PacketLoss:      50,
		Results: []models.PingAttempt{
			{Seq: 1, Success: true, TimeMs: 1.5},
			{Seq: 2, Error: "Destination host unreachable"},
		},
	})

	assert.Equal(t, ""+
		"  ✓ seq=1 time=1.50 ms\n"+
		"  ✗ seq=2 Destination host unreachable\n"+
		"\n  2 packets sent, 1 received, 50% loss\n", buf.String())
}
