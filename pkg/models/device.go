package models

import "fmt"

// DeviceKind categorizes a device placed on the canvas.
type DeviceKind string

const (
	DeviceKindHost   DeviceKind = "host"
	DeviceKindSwitch DeviceKind = "switch"
	DeviceKindRouter DeviceKind = "router"
)

// ParseDeviceKind converts user input into a DeviceKind.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch k := DeviceKind(s); k {
	case DeviceKindHost, DeviceKindSwitch, DeviceKindRouter:
		return k, nil
	}
	return "", fmt.Errorf("unknown device kind %q", s)
}

// Addressable reports whether devices of this kind carry an IP address.
// Switches are layer-2 only.
func (k DeviceKind) Addressable() bool {
	return k == DeviceKindHost || k == DeviceKindRouter
}

// Position is a canvas-local pixel coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Device is a node of the topology. ID is the stable device name and the
// key used by the remote service.
type Device struct {
	ID          string     `json:"id"`
	Kind        DeviceKind `json:"kind"`
	Position    Position   `json:"position"`
	DisplayName string     `json:"display_name"`
	IPAddress   string     `json:"ip_address,omitempty"`
}

// Label returns the display name, falling back to the ID.
func (d Device) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.ID
}

// Connection is an undirected link between two devices. Its ID is local to
// the client; the remote service keys links by their endpoint pair.
type Connection struct {
	ID        string `json:"id"`
	EndpointA string `json:"endpoint_a"`
	EndpointB string `json:"endpoint_b"`
}

// Connects reports whether c joins a and b, in either order.
func (c Connection) Connects(a, b string) bool {
	return (c.EndpointA == a && c.EndpointB == b) || (c.EndpointA == b && c.EndpointB == a)
}

// Touches reports whether id is one of the endpoints.
func (c Connection) Touches(id string) bool {
	return c.EndpointA == id || c.EndpointB == id
}

// Topology is a catalog entry of a saved topology.
type Topology struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}
