package labserver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/HerbHall/netcanvas/internal/properties"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// hopLatencyMs is the simulated one-way delay of a link.
const hopLatencyMs = 0.25

// MaxPingCount bounds the echo requests of a single ping.
const MaxPingCount = 10

// trace advances one state per poll: pending, running, then terminal.
type trace struct {
	id       string
	src, dst string
	protocol models.Protocol
	route    []string
	polls    int
}

func traceID() string { return "trace-" + uuid.NewString() }

// route returns the shortest node path from src to dst over the links of
// t, or nil when dst is unreachable.
func (t *topology) route(src, dst string) []string {
	adj := make(map[string][]string)
	for _, ln := range t.links {
		adj[ln.a] = append(adj[ln.a], ln.b)
		adj[ln.b] = append(adj[ln.b], ln.a)
	}
	for _, next := range adj {
		sort.Strings(next)
	}
	prev := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == dst {
			var path []string
			for n := dst; n != ""; n = prev[n] {
				path = append([]string{n}, path...)
			}
			return path
		}
		for _, next := range adj[cur] {
			if _, seen := prev[next]; !seen {
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return nil
}

// StartTrace begins a trace on the active topology and returns its handle.
func (l *Lab) StartTrace(src, dst string, proto models.Protocol) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.activeLocked()
	if err != nil {
		return "", err
	}
	if t.node(src) == nil {
		return "", badRequest("Source node %s not found", src)
	}
	if t.node(dst) == nil {
		return "", badRequest("Destination node %s not found", dst)
	}
	if proto == "" {
		proto = models.ProtocolICMP
	}
	tr := &trace{
		id:       l.newID(),
		src:      src,
		dst:      dst,
		protocol: proto,
		route:    t.route(src, dst),
	}
	l.traces[tr.id] = tr
	return tr.id, nil
}

// Trace polls trace id, advancing it by one step.
func (l *Lab) Trace(id string) (*models.TraceResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tr, ok := l.traces[id]
	if !ok {
		return nil, notFound("Trace not found")
	}
	tr.polls++
	return tr.result(), nil
}

func (tr *trace) result() *models.TraceResult {
	res := &models.TraceResult{
		ID:              tr.id,
		SourceNode:      tr.src,
		DestinationNode: tr.dst,
		Route:           tr.route,
		Hops:            []models.TraceHop{},
		CurrentNode:     tr.src,
	}
	switch {
	case tr.polls <= 1:
		res.State = "pending"
	case tr.route == nil:
		res.State = "error"
		res.Completed = true
		res.Error = fmt.Sprintf("No route from %s to %s", tr.src, tr.dst)
	case tr.polls == 2 && len(tr.route) > 2:
		half := len(tr.route) / 2
		res.State = "running"
		res.Hops = tr.hops(half)
		res.CurrentNode = tr.route[half-1]
	default:
		res.State = "completed"
		res.Completed = true
		res.Success = true
		res.Hops = tr.hops(len(tr.route))
		res.CurrentNode = tr.dst
	}
	return res
}

func (tr *trace) hops(n int) []models.TraceHop {
	out := make([]models.TraceHop, 0, n)
	last := len(tr.route) - 1
	for i, name := range tr.route[:n] {
		hop := models.TraceHop{Node: name, Time: float64(i) * hopLatencyMs}
		switch i {
		case 0:
			hop.Action = "send"
			hop.Details = fmt.Sprintf("%s packet to %s", strings.ToUpper(string(tr.protocol)), tr.dst)
		case last:
			hop.Action = "receive"
			hop.Details = "delivered"
		default:
			hop.Action = "forward"
			hop.Details = "towards " + tr.route[i+1]
		}
		out = append(out, hop)
	}
	return out
}

// nodeByAddress finds the node owning host address ip, including router
// interface addresses.
func (t *topology) nodeByAddress(ip string) *node {
	for _, n := range t.nodes {
		if n.ip != "" && properties.HostPart(n.ip) == ip {
			return n
		}
		for _, iface := range n.ifaces {
			if properties.HostPart(iface.IP) == ip {
				return n
			}
		}
	}
	return nil
}

// Ping sends count echo requests from src to the device owning dstIP.
func (l *Lab) Ping(src, dstIP string, count int) (*models.PingResult, error) {
	if count < 1 || count > MaxPingCount {
		return nil, badRequest("Count must be between 1 and %d", MaxPingCount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.activeLocked()
	if err != nil {
		return nil, err
	}
	from := t.node(src)
	if from == nil {
		return nil, badRequest("Source node not found")
	}
	if !properties.ValidAddress(dstIP) {
		return nil, badRequest("Invalid destination IP %s", dstIP)
	}

	var route []string
	if to := t.nodeByAddress(properties.HostPart(dstIP)); to != nil {
		route = t.route(src, to.name)
	}
	res := &models.PingResult{
		Source:        src,
		SourceIP:      properties.HostPart(from.ip),
		DestinationIP: dstIP,
		PacketsSent:   count,
		Results:       make([]models.PingAttempt, 0, count),
	}
	for seq := 1; seq <= count; seq++ {
		a := models.PingAttempt{Seq: seq}
		if route != nil {
			a.Success = true
			a.TimeMs = 2 * float64(len(route)-1) * hopLatencyMs
			res.PacketsReceived++
		} else {
			a.Error = "Destination host unreachable"
		}
		res.Results = append(res.Results, a)
	}
	res.PacketLoss = float64(count-res.PacketsReceived) / float64(count) * 100
	return res, nil
}

// Validate checks the active topology: addressable devices need a valid
// unique address; unconnected devices are reported as warnings.
func (l *Lab) Validate() (*models.ValidationResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.activeLocked()
	if err != nil {
		return nil, err
	}
	res := &models.ValidationResult{Errors: []string{}, Warnings: []string{}}
	owners := make(map[string]string)
	linked := make(map[string]bool)
	for _, ln := range t.links {
		linked[ln.a], linked[ln.b] = true, true
	}
	for _, n := range t.nodes {
		if n.kind.Addressable() {
			switch {
			case n.ip == "":
				res.Errors = append(res.Errors, fmt.Sprintf("%s %s has no IP address", n.kind, n.name))
			case !properties.ValidAddress(n.ip):
				res.Errors = append(res.Errors, fmt.Sprintf("%s %s has an invalid IP address %s", n.kind, n.name, n.ip))
			default:
				host := properties.HostPart(n.ip)
				if other, dup := owners[host]; dup {
					res.Errors = append(res.Errors, fmt.Sprintf("IP address %s is used by %s and %s", host, other, n.name))
				} else {
					owners[host] = n.name
				}
			}
		}
		if !linked[n.name] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s is not connected", n.name))
		}
	}
	res.Valid = len(res.Errors) == 0
	return res, nil
}
