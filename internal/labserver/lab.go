// Package labserver is an in-memory lab service. It stores topologies,
// emulates the active one well enough to answer traces and pings, and
// serves the HTTP API the remote client talks to.
package labserver

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/HerbHall/netcanvas/internal/properties"
	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// Error is a failure the HTTP layer reports with Status and Detail.
// Ack errors are sent as a {"success": false} body with status 200, the
// way the node and link routes report them.
type Error struct {
	Status int
	Detail string
	Ack    bool
}

func (e *Error) Error() string { return e.Detail }

func notFound(format string, args ...any) error {
	return &Error{Status: http.StatusNotFound, Detail: fmt.Sprintf(format, args...)}
}

func badRequest(format string, args ...any) error {
	return &Error{Status: http.StatusBadRequest, Detail: fmt.Sprintf(format, args...)}
}

func refused(format string, args ...any) error {
	return &Error{Status: http.StatusOK, Detail: fmt.Sprintf(format, args...), Ack: true}
}

// ErrNoActiveTopology is returned by operations on the emulated network
// before any topology was activated.
var ErrNoActiveTopology = &Error{Status: http.StatusBadRequest, Detail: "No active topology"}

type node struct {
	kind    models.DeviceKind
	name    string
	display string
	ip      string
	x, y    float64
	ifaces  []models.RouterInterface
}

type link struct{ a, b string }

func (l link) touches(name string) bool { return l.a == name || l.b == name }

func (l link) joins(a, b string) bool {
	return (l.a == a && l.b == b) || (l.a == b && l.b == a)
}

type topology struct {
	id          int
	name        string
	description string
	nodes       []*node
	links       []link
}

func (t *topology) node(name string) *node {
	for _, n := range t.nodes {
		if n.name == name {
			return n
		}
	}
	return nil
}

// Lab holds every topology of a single user. Safe for concurrent use.
type Lab struct {
	mu         sync.Mutex
	nextID     int
	topologies map[int]*topology
	active     int
	traces     map[string]*trace
	newID      func() string
}

// NewLab returns an empty lab.
func NewLab() *Lab {
	return &Lab{
		nextID:     1,
		topologies: make(map[int]*topology),
		traces:     make(map[string]*trace),
		newID:      traceID,
	}
}

// Topologies lists the catalog ordered by id.
func (l *Lab) Topologies() []models.Topology {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Topology, 0, len(l.topologies))
	for id, t := range l.topologies {
		out = append(out, models.Topology{
			ID:          id,
			Name:        t.name,
			Description: t.description,
			IsActive:    id == l.active,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Topology returns the document of topology id.
func (l *Lab) Topology(id int) (*remote.TopologyPayload, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.topologies[id]
	if !ok {
		return nil, notFound("Topology %d not found", id)
	}
	return t.payload(), nil
}

func (t *topology) payload() *remote.TopologyPayload {
	doc := &remote.TopologyPayload{
		Name:        t.name,
		Description: t.description,
		Hosts:       []remote.NodePayload{},
		Switches:    []remote.NodePayload{},
		Routers:     []remote.NodePayload{},
		Links:       []remote.LinkPayload{},
	}
	for _, n := range t.nodes {
		x, y := n.x, n.y
		np := remote.NodePayload{Name: n.name, DisplayName: n.display, X: &x, Y: &y}
		if n.ip != "" {
			ip := n.ip
			np.IP = &ip
		}
		switch n.kind {
		case models.DeviceKindHost:
			doc.Hosts = append(doc.Hosts, np)
		case models.DeviceKindSwitch:
			doc.Switches = append(doc.Switches, np)
		case models.DeviceKindRouter:
			doc.Routers = append(doc.Routers, np)
		}
	}
	for _, ln := range t.links {
		doc.Links = append(doc.Links, remote.LinkPayload{Node1: ln.a, Node2: ln.b})
	}
	return doc
}

// Create stores doc as a new topology and activates it.
func (l *Lab) Create(doc remote.TopologyPayload) (int, error) {
	if doc.Name == "" {
		return 0, badRequest("Topology name is required")
	}
	t := &topology{name: doc.Name, description: doc.Description}
	groups := []struct {
		kind  models.DeviceKind
		nodes []remote.NodePayload
	}{
		{models.DeviceKindHost, doc.Hosts},
		{models.DeviceKindSwitch, doc.Switches},
		{models.DeviceKindRouter, doc.Routers},
	}
	for _, g := range groups {
		for _, np := range g.nodes {
			if np.Name == "" {
				return 0, badRequest("Node name is required")
			}
			if t.node(np.Name) != nil {
				return 0, badRequest("Duplicate node %s", np.Name)
			}
			n := &node{kind: g.kind, name: np.Name, display: np.DisplayName}
			if n.display == "" {
				n.display = np.Name
			}
			if np.IP != nil && g.kind.Addressable() {
				n.ip = *np.IP
			}
			if np.X != nil {
				n.x = *np.X
			}
			if np.Y != nil {
				n.y = *np.Y
			}
			t.nodes = append(t.nodes, n)
		}
	}
	for _, lp := range doc.Links {
		if t.node(lp.Node1) == nil || t.node(lp.Node2) == nil {
			return 0, badRequest("Link %s-%s references an unknown node", lp.Node1, lp.Node2)
		}
		t.links = append(t.links, link{a: lp.Node1, b: lp.Node2})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	t.id = l.nextID
	l.nextID++
	l.topologies[t.id] = t
	l.active = t.id
	return t.id, nil
}

// Activate makes id the emulated topology.
func (l *Lab) Activate(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.topologies[id]; !ok {
		return notFound("Topology %d not found", id)
	}
	l.active = id
	return nil
}

// Delete removes topology id. Deleting the active topology leaves the lab
// without one.
func (l *Lab) Delete(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.topologies[id]; !ok {
		return notFound("Topology %d not found", id)
	}
	delete(l.topologies, id)
	if l.active == id {
		l.active = 0
	}
	return nil
}

func (l *Lab) activeLocked() (*topology, error) {
	t, ok := l.topologies[l.active]
	if !ok {
		return nil, ErrNoActiveTopology
	}
	return t, nil
}

// withActive runs fn on the active topology under the lab lock.
func (l *Lab) withActive(fn func(t *topology) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.activeLocked()
	if err != nil {
		return err
	}
	return fn(t)
}

// AddNode adds a device to the active topology. Hosts and routers without
// an address get the lowest free 10.0.0.0/24 address, which is returned.
func (l *Lab) AddNode(kind models.DeviceKind, np remote.NodePayload) (string, error) {
	if _, err := models.ParseDeviceKind(string(kind)); err != nil {
		return "", badRequest("Unknown node type %q", kind)
	}
	var ip string
	err := l.withActive(func(t *topology) error {
		if np.Name == "" {
			return refused("Node name is required")
		}
		if t.node(np.Name) != nil {
			return refused("Node %s already exists", np.Name)
		}
		n := &node{kind: kind, name: np.Name, display: np.DisplayName}
		if n.display == "" {
			n.display = np.Name
		}
		if np.X != nil {
			n.x = *np.X
		}
		if np.Y != nil {
			n.y = *np.Y
		}
		if kind.Addressable() {
			if np.IP != nil && *np.IP != "" {
				n.ip = *np.IP
			} else {
				n.ip = t.freeAddress()
			}
		}
		t.nodes = append(t.nodes, n)
		ip = n.ip
		return nil
	})
	return ip, err
}

func (t *topology) freeAddress() string {
	used := make(map[string]bool)
	for _, n := range t.nodes {
		if n.ip != "" {
			used[properties.HostPart(n.ip)] = true
		}
	}
	for i := 1; i < 255; i++ {
		host := fmt.Sprintf("10.0.0.%d", i)
		if !used[host] {
			return host + "/24"
		}
	}
	return ""
}

// DeleteNode removes a device of kind and every link touching it.
func (l *Lab) DeleteNode(kind models.DeviceKind, name string) error {
	return l.withActive(func(t *topology) error {
		for i, n := range t.nodes {
			if n.name != name {
				continue
			}
			if n.kind != kind {
				return refused("Node %s is not a %s", name, kind)
			}
			t.nodes = append(t.nodes[:i], t.nodes[i+1:]...)
			kept := t.links[:0]
			for _, ln := range t.links {
				if !ln.touches(name) {
					kept = append(kept, ln)
				}
			}
			t.links = kept
			return nil
		}
		return refused("Node %s not found", name)
	})
}

func (l *Lab) withNode(name string, fn func(n *node) error) error {
	return l.withActive(func(t *topology) error {
		n := t.node(name)
		if n == nil {
			return refused("Node %s not found", name)
		}
		return fn(n)
	})
}

// MoveNode stores the canvas position of a device.
func (l *Lab) MoveNode(name string, x, y float64) error {
	return l.withNode(name, func(n *node) error {
		n.x, n.y = x, y
		return nil
	})
}

// SetDisplayName renames a device for display.
func (l *Lab) SetDisplayName(name, display string) error {
	return l.withNode(name, func(n *node) error {
		n.display = display
		return nil
	})
}

// SetIP changes the address of a host or router.
func (l *Lab) SetIP(kind models.DeviceKind, name, ip string) error {
	if !properties.ValidAddress(ip) {
		return refused("Invalid IP address %s", ip)
	}
	return l.withNode(name, func(n *node) error {
		if n.kind != kind {
			return refused("Node %s is not a %s", name, kind)
		}
		if !kind.Addressable() {
			return refused("Switches have no IP address")
		}
		n.ip = ip
		return nil
	})
}

// ConfigureInterface adds or replaces a router interface.
func (l *Lab) ConfigureInterface(router string, iface models.RouterInterface) error {
	if iface.Name == "" {
		return refused("Interface name is required")
	}
	if !properties.ValidAddress(iface.IP) {
		return refused("Invalid IP address %s", iface.IP)
	}
	return l.withNode(router, func(n *node) error {
		if n.kind != models.DeviceKindRouter {
			return refused("Node %s is not a router", router)
		}
		for i := range n.ifaces {
			if n.ifaces[i].Name == iface.Name {
				n.ifaces[i] = iface
				return nil
			}
		}
		n.ifaces = append(n.ifaces, iface)
		return nil
	})
}

// Interfaces lists the interfaces of a router.
func (l *Lab) Interfaces(router string) ([]models.RouterInterface, error) {
	var out []models.RouterInterface
	err := l.withNode(router, func(n *node) error {
		if n.kind != models.DeviceKindRouter {
			return refused("Node %s is not a router", router)
		}
		out = append([]models.RouterInterface{}, n.ifaces...)
		return nil
	})
	return out, err
}

// AddLink connects two devices of the active topology.
func (l *Lab) AddLink(a, b string) error {
	return l.withActive(func(t *topology) error {
		if a == b {
			return refused("Cannot link %s to itself", a)
		}
		if t.node(a) == nil || t.node(b) == nil {
			return refused("Link %s-%s references an unknown node", a, b)
		}
		for _, ln := range t.links {
			if ln.joins(a, b) {
				return refused("Link %s-%s already exists", a, b)
			}
		}
		t.links = append(t.links, link{a: a, b: b})
		return nil
	})
}

// DeleteLink removes the link between a and b in either order.
func (l *Lab) DeleteLink(a, b string) error {
	return l.withActive(func(t *topology) error {
		for i, ln := range t.links {
			if ln.joins(a, b) {
				t.links = append(t.links[:i], t.links[i+1:]...)
				return nil
			}
		}
		return refused("Link %s-%s not found", a, b)
	})
}

// IsNotFound reports whether err is a 404 lab error.
func IsNotFound(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Status == http.StatusNotFound
}
