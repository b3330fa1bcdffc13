package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/HerbHall/netcanvas/pkg/models"
)

// NodePayload is a device as stored in a topology document. Coordinates
// and address are optional on the wire.
type NodePayload struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	IP          *string  `json:"ip,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
}

// LinkPayload is a link of a topology document.
type LinkPayload struct {
	Node1 string `json:"node1"`
	Node2 string `json:"node2"`
}

// TopologyPayload is the full document of a saved topology.
type TopologyPayload struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Hosts       []NodePayload `json:"hosts"`
	Switches    []NodePayload `json:"switches"`
	Routers     []NodePayload `json:"routers"`
	Links       []LinkPayload `json:"links"`
}

// NewNode describes a device to add to the active topology.
type NewNode struct {
	Kind        models.DeviceKind
	Name        string
	DisplayName string
	Position    models.Position
}

// MarshalJSON sends an explicit null address for addressable kinds and
// omits it for switches.
func (n NewNode) MarshalJSON() ([]byte, error) {
	type base struct {
		Name        string  `json:"name"`
		DisplayName string  `json:"display_name"`
		X           float64 `json:"x"`
		Y           float64 `json:"y"`
	}
	b := base{Name: n.Name, DisplayName: n.DisplayName, X: n.Position.X, Y: n.Position.Y}
	if !n.Kind.Addressable() {
		return json.Marshal(b)
	}
	return json.Marshal(struct {
		base
		IP *string `json:"ip"`
	}{base: b})
}

// CreatedNode is the service's confirmation of an added device.
type CreatedNode struct {
	Name string
	IP   string
}

// ListTopologies returns the caller's saved topologies.
func (c *Client) ListTopologies(ctx context.Context) ([]models.Topology, error) {
	var out []models.Topology
	if err := c.do(ctx, "topology.list", http.MethodGet, "/topology/list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTopology fetches the document of topology id.
func (c *Client) GetTopology(ctx context.Context, id int) (*TopologyPayload, error) {
	var out TopologyPayload
	if err := c.do(ctx, "topology.get", http.MethodGet, fmt.Sprintf("/topology/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTopology saves doc as a new topology, which becomes the active
// one. It returns the new id, or 0 when the service did not report it.
func (c *Client) CreateTopology(ctx context.Context, doc TopologyPayload) (int, error) {
	var out struct {
		TopologyID int `json:"topology_id"`
	}
	if err := c.do(ctx, "topology.create", http.MethodPost, "/topology/create", doc, &out); err != nil {
		return 0, err
	}
	return out.TopologyID, nil
}

// ActivateTopology makes id the topology the emulated network runs.
func (c *Client) ActivateTopology(ctx context.Context, id int) error {
	return c.do(ctx, "topology.activate", http.MethodPost, fmt.Sprintf("/topology/%d/activate", id), nil, nil)
}

// DeleteTopology removes topology id.
func (c *Client) DeleteTopology(ctx context.Context, id int) error {
	return c.do(ctx, "topology.delete", http.MethodDelete, fmt.Sprintf("/topology/%d", id), nil, nil)
}

// ValidateTopology asks the service to check the active topology.
func (c *Client) ValidateTopology(ctx context.Context) (*models.ValidationResult, error) {
	var out models.ValidationResult
	if err := c.do(ctx, "topology.validate", http.MethodGet, "/topology-validate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddNode adds a device to the active topology.
func (c *Client) AddNode(ctx context.Context, n NewNode) (*CreatedNode, error) {
	var out struct {
		ack
		Name string  `json:"name"`
		IP   *string `json:"ip"`
	}
	path := "/node/" + url.PathEscape(string(n.Kind))
	if err := c.do(ctx, "node.add", http.MethodPost, path, n, &out); err != nil {
		return nil, err
	}
	if err := out.err(); err != nil {
		return nil, err
	}
	created := &CreatedNode{Name: n.Name}
	if out.IP != nil {
		created.IP = *out.IP
	}
	return created, nil
}

// DeleteNode removes a device of the given kind.
func (c *Client) DeleteNode(ctx context.Context, kind models.DeviceKind, name string) error {
	var out ack
	path := fmt.Sprintf("/node/%s/%s", url.PathEscape(string(kind)), url.PathEscape(name))
	if err := c.do(ctx, "node.delete", http.MethodDelete, path, nil, &out); err != nil {
		return err
	}
	return out.err()
}

// UpdatePosition persists a device position.
func (c *Client) UpdatePosition(ctx context.Context, name string, pos models.Position) error {
	body := struct {
		Name string  `json:"name"`
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
	}{name, pos.X, pos.Y}
	var out ack
	if err := c.do(ctx, "node.position", http.MethodPut, "/node/position", body, &out); err != nil {
		return err
	}
	return out.err()
}

// UpdateDisplayName renames a device for display.
func (c *Client) UpdateDisplayName(ctx context.Context, name, displayName string) error {
	body := struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
	}{name, displayName}
	var out ack
	if err := c.do(ctx, "node.display_name", http.MethodPut, "/node/display-name", body, &out); err != nil {
		return err
	}
	return out.err()
}

// UpdateIP changes the address of a host or router.
func (c *Client) UpdateIP(ctx context.Context, kind models.DeviceKind, name, ip string) error {
	body := struct {
		Name string `json:"name"`
		IP   string `json:"ip"`
	}{name, ip}
	var out ack
	path := fmt.Sprintf("/node/%s/ip", url.PathEscape(string(kind)))
	if err := c.do(ctx, "node.ip", http.MethodPut, path, body, &out); err != nil {
		return err
	}
	return out.err()
}

// ConfigureRouterInterface adds or reconfigures an interface of a router.
func (c *Client) ConfigureRouterInterface(ctx context.Context, router string, iface models.RouterInterface) error {
	body := struct {
		RouterName    string `json:"router_name"`
		InterfaceName string `json:"interface_name"`
		IPAddress     string `json:"ip_address"`
		SubnetMask    int    `json:"subnet_mask"`
	}{router, iface.Name, iface.IP, iface.SubnetMaskBits}
	var out ack
	if err := c.do(ctx, "router.interface.add", http.MethodPost, "/node/router/interface", body, &out); err != nil {
		return err
	}
	return out.err()
}

// RouterInterfaces lists the interfaces of a router.
func (c *Client) RouterInterfaces(ctx context.Context, router string) ([]models.RouterInterface, error) {
	var out struct {
		ack
		Interfaces []struct {
			Name       string  `json:"name"`
			IP         *string `json:"ip"`
			SubnetMask int     `json:"subnet_mask"`
		} `json:"interfaces"`
	}
	path := fmt.Sprintf("/node/router/%s/interfaces", url.PathEscape(router))
	if err := c.do(ctx, "router.interface.list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if err := out.err(); err != nil {
		return nil, err
	}
	ifaces := make([]models.RouterInterface, 0, len(out.Interfaces))
	for _, i := range out.Interfaces {
		ri := models.RouterInterface{Name: i.Name, SubnetMaskBits: i.SubnetMask}
		if i.IP != nil {
			ri.IP = *i.IP
		}
		ifaces = append(ifaces, ri)
	}
	return ifaces, nil
}

// AddLink connects two devices.
func (c *Client) AddLink(ctx context.Context, a, b string) error {
	var out ack
	if err := c.do(ctx, "link.add", http.MethodPost, "/link", LinkPayload{Node1: a, Node2: b}, &out); err != nil {
		return err
	}
	return out.err()
}

// DeleteLink removes the link between two devices.
func (c *Client) DeleteLink(ctx context.Context, a, b string) error {
	var out ack
	if err := c.do(ctx, "link.delete", http.MethodDelete, "/link", LinkPayload{Node1: a, Node2: b}, &out); err != nil {
		return err
	}
	return out.err()
}

// TraceRequest starts a packet trace between two devices.
type TraceRequest struct {
	Source      string
	Destination string
	Protocol    models.Protocol
}

// MarshalJSON renders the packet_config document the tracer expects. The
// protocol block carries zero ports for every protocol, icmp included.
func (r TraceRequest) MarshalJSON() ([]byte, error) {
	proto := r.Protocol
	if proto == "" {
		proto = models.ProtocolICMP
	}
	cfg := map[string]any{
		"protocol":    string(proto),
		"ip":          map[string]int{"ttl": 64},
		string(proto): map[string]int{"sport": 0, "dport": 0},
	}
	return json.Marshal(map[string]any{
		"source_node":      r.Source,
		"destination_node": r.Destination,
		"packet_config":    cfg,
	})
}

// StartTrace begins a trace and returns its polling handle.
func (c *Client) StartTrace(ctx context.Context, req TraceRequest) (string, error) {
	var out struct {
		TraceID string `json:"trace_id"`
	}
	if err := c.do(ctx, "trace.start", http.MethodPost, "/packet/trace/start", req, &out); err != nil {
		return "", err
	}
	if out.TraceID == "" {
		return "", &RejectedError{StatusCode: http.StatusOK, Message: "server returned no trace id"}
	}
	return out.TraceID, nil
}

// GetTrace polls the state of a running trace.
func (c *Client) GetTrace(ctx context.Context, handle string) (*models.TraceResult, error) {
	var out models.TraceResult
	if err := c.do(ctx, "trace.get", http.MethodGet, "/packet/trace/"+url.PathEscape(handle), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PingRequest sends count echo requests from a device to an address.
type PingRequest struct {
	Source        string `json:"source_node"`
	DestinationIP string `json:"destination_ip"`
	Count         int    `json:"count"`
}

// Ping runs a ping and returns the aggregated result.
func (c *Client) Ping(ctx context.Context, req PingRequest) (*models.PingResult, error) {
	var out models.PingResult
	if err := c.do(ctx, "ping", http.MethodPost, "/packet/ping", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
