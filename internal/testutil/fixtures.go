package testutil

import (
	"github.com/HerbHall/netcanvas/pkg/models"
)

// NewDevice returns a host Device with sensible defaults, suitable for test
// fixtures. Override individual fields with options.
func NewDevice(opts ...func(*models.Device)) models.Device {
	d := models.Device{
		ID:          "h1",
		Kind:        models.DeviceKindHost,
		Position:    models.Position{X: 100, Y: 100},
		DisplayName: "h1",
		IPAddress:   "10.0.0.1/24",
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithID sets the device id and, when unset by another option, its
// display name.
func WithID(id string) func(*models.Device) {
	return func(d *models.Device) {
		if d.DisplayName == "" || d.DisplayName == d.ID {
			d.DisplayName = id
		}
		d.ID = id
	}
}

// WithKind sets the device kind. Switches lose their address.
func WithKind(k models.DeviceKind) func(*models.Device) {
	return func(d *models.Device) {
		d.Kind = k
		if !k.Addressable() {
			d.IPAddress = ""
		}
	}
}

// WithIP sets the device's CIDR address.
func WithIP(ip string) func(*models.Device) {
	return func(d *models.Device) { d.IPAddress = ip }
}

// WithPosition sets the canvas position.
func WithPosition(x, y float64) func(*models.Device) {
	return func(d *models.Device) { d.Position = models.Position{X: x, Y: y} }
}

// WithDisplayName sets the display name.
func WithDisplayName(name string) func(*models.Device) {
	return func(d *models.Device) { d.DisplayName = name }
}
