package topology

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// Document is the YAML file format used to import and export topologies.
//
//	name: campus
//	description: two hosts behind a switch
//	devices:
//	  - {name: h1, kind: host, ip: 10.0.0.1/24, x: 120, y: 80}
//	  - {name: s1, kind: switch}
//	links:
//	  - [h1, s1]
type Document struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Devices     []DocDevice `yaml:"devices"`
	Links       [][]string  `yaml:"links,omitempty"`
}

// DocDevice is one device entry of a Document.
type DocDevice struct {
	Name        string            `yaml:"name"`
	Kind        models.DeviceKind `yaml:"kind"`
	DisplayName string            `yaml:"display_name,omitempty"`
	IP          string            `yaml:"ip,omitempty"`
	X           float64           `yaml:"x,omitempty"`
	Y           float64           `yaml:"y,omitempty"`
}

// ReadDocument decodes and checks a YAML topology document.
func ReadDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode topology document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// WriteDocument encodes doc as YAML.
func WriteDocument(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode topology document: %w", err)
	}
	return enc.Close()
}

// Validate rejects documents the service would not accept.
func (d *Document) Validate() error {
	if d.Name == "" {
		return errors.New("topology document: name is required")
	}
	names := make(map[string]bool, len(d.Devices))
	for i, dev := range d.Devices {
		if dev.Name == "" {
			return fmt.Errorf("topology document: device %d has no name", i)
		}
		if _, err := models.ParseDeviceKind(string(dev.Kind)); err != nil {
			return fmt.Errorf("topology document: device %s: %w", dev.Name, err)
		}
		if names[dev.Name] {
			return fmt.Errorf("topology document: duplicate device %s", dev.Name)
		}
		names[dev.Name] = true
	}
	for i, l := range d.Links {
		if len(l) != 2 {
			return fmt.Errorf("topology document: link %d must name exactly two devices", i)
		}
		if !names[l[0]] || !names[l[1]] {
			return fmt.Errorf("topology document: link %s-%s references an unknown device", l[0], l[1])
		}
		if l[0] == l[1] {
			return fmt.Errorf("topology document: link %s-%s is a loop", l[0], l[1])
		}
	}
	return nil
}

// Payload converts the document into the create request.
func (d *Document) Payload() remote.TopologyPayload {
	devices := make([]models.Device, 0, len(d.Devices))
	for _, dev := range d.Devices {
		devices = append(devices, models.Device{
			ID:          dev.Name,
			Kind:        dev.Kind,
			Position:    models.Position{X: dev.X, Y: dev.Y},
			DisplayName: dev.DisplayName,
			IPAddress:   dev.IP,
		})
	}
	conns := make([]models.Connection, 0, len(d.Links))
	for _, l := range d.Links {
		conns = append(conns, models.Connection{EndpointA: l[0], EndpointB: l[1]})
	}
	return ToPayload(d.Name, d.Description, devices, conns)
}

// NewDocument captures canvas state as a Document.
func NewDocument(name, description string, devices []models.Device, conns []models.Connection) *Document {
	doc := &Document{Name: name, Description: description}
	for _, dev := range devices {
		dd := DocDevice{
			Name: dev.ID,
			Kind: dev.Kind,
			IP:   dev.IPAddress,
			X:    dev.Position.X,
			Y:    dev.Position.Y,
		}
		if dev.DisplayName != dev.ID {
			dd.DisplayName = dev.DisplayName
		}
		doc.Devices = append(doc.Devices, dd)
	}
	for _, c := range conns {
		doc.Links = append(doc.Links, []string{c.EndpointA, c.EndpointB})
	}
	return doc
}
