package topology

import (
	"fmt"

	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// defaultPositions are used when a stored device has no coordinates.
var defaultPositions = map[models.DeviceKind]models.Position{
	models.DeviceKindHost:   {X: 100, Y: 100},
	models.DeviceKindSwitch: {X: 200, Y: 200},
	models.DeviceKindRouter: {X: 300, Y: 300},
}

// FromPayload maps a stored topology document onto canvas devices and
// connections. Missing or zero coordinates fall back to per-kind defaults,
// connection ids follow link order and links whose endpoints are not in
// the document are dropped.
func FromPayload(p *remote.TopologyPayload) ([]models.Device, []models.Connection) {
	devices := make([]models.Device, 0, len(p.Hosts)+len(p.Switches)+len(p.Routers))
	seen := make(map[string]bool)

	add := func(kind models.DeviceKind, nodes []remote.NodePayload) {
		for _, n := range nodes {
			if n.Name == "" || seen[n.Name] {
				continue
			}
			seen[n.Name] = true
			d := models.Device{
				ID:          n.Name,
				Kind:        kind,
				Position:    defaultPositions[kind],
				DisplayName: n.DisplayName,
			}
			if n.X != nil && *n.X != 0 {
				d.Position.X = *n.X
			}
			if n.Y != nil && *n.Y != 0 {
				d.Position.Y = *n.Y
			}
			if d.DisplayName == "" {
				d.DisplayName = n.Name
			}
			if kind.Addressable() && n.IP != nil {
				d.IPAddress = *n.IP
			}
			devices = append(devices, d)
		}
	}
	add(models.DeviceKindHost, p.Hosts)
	add(models.DeviceKindSwitch, p.Switches)
	add(models.DeviceKindRouter, p.Routers)

	conns := make([]models.Connection, 0, len(p.Links))
	for i, l := range p.Links {
		if !seen[l.Node1] || !seen[l.Node2] || l.Node1 == l.Node2 {
			continue
		}
		conns = append(conns, models.Connection{
			ID:        fmt.Sprintf("conn-%d", i),
			EndpointA: l.Node1,
			EndpointB: l.Node2,
		})
	}
	return devices, conns
}

// ToPayload renders canvas state as a topology document for creation.
func ToPayload(name, description string, devices []models.Device, conns []models.Connection) remote.TopologyPayload {
	p := remote.TopologyPayload{
		Name:        name,
		Description: description,
		Hosts:       []remote.NodePayload{},
		Switches:    []remote.NodePayload{},
		Routers:     []remote.NodePayload{},
		Links:       make([]remote.LinkPayload, 0, len(conns)),
	}
	for _, d := range devices {
		x, y := d.Position.X, d.Position.Y
		n := remote.NodePayload{Name: d.ID, DisplayName: d.Label(), X: &x, Y: &y}
		if d.IPAddress != "" {
			ip := d.IPAddress
			n.IP = &ip
		}
		switch d.Kind {
		case models.DeviceKindSwitch:
			n.IP = nil
			p.Switches = append(p.Switches, n)
		case models.DeviceKindRouter:
			p.Routers = append(p.Routers, n)
		default:
			p.Hosts = append(p.Hosts, n)
		}
	}
	for _, c := range conns {
		p.Links = append(p.Links, remote.LinkPayload{Node1: c.EndpointA, Node2: c.EndpointB})
	}
	return p
}
