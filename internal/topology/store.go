// Package topology owns the canvas model: the devices and connections of
// the loaded topology, the catalog of saved topologies and which one is
// current. All mutations go through the Store.
package topology

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/message"

	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/event"
	"github.com/HerbHall/netcanvas/internal/notify"
	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// Event topics published by the store.
const (
	TopicLoaded            = "topology.loaded"
	TopicCatalogUpdated    = "topology.catalog.updated"
	TopicDeviceAdded       = "topology.device.added"
	TopicDeviceRemoved     = "topology.device.removed"
	TopicDeviceMoved       = "topology.device.moved"
	TopicDeviceUpdated     = "topology.device.updated"
	TopicConnectionAdded   = "topology.connection.added"
	TopicConnectionRemoved = "topology.connection.removed"
)

// Store errors.
var (
	ErrDuplicateDevice = errors.New("device already exists")
	ErrUnknownDevice   = errors.New("unknown device")
	ErrSelfLink        = errors.New("a device cannot be linked to itself")
	// ErrStale rejects a commit whose canvas was replaced while the remote
	// call was in flight.
	ErrStale = errors.New("topology changed while the request was in flight")
)

// API is the part of the lab service the store talks to.
type API interface {
	ListTopologies(ctx context.Context) ([]models.Topology, error)
	GetTopology(ctx context.Context, id int) (*remote.TopologyPayload, error)
	ActivateTopology(ctx context.Context, id int) error
	CreateTopology(ctx context.Context, doc remote.TopologyPayload) (int, error)
	DeleteTopology(ctx context.Context, id int) error
}

// Remembered persists the id of the last loaded topology across runs.
type Remembered interface {
	ActiveTopology(ctx context.Context) (int, error)
	SetActiveTopology(ctx context.Context, id int) error
	ClearActiveTopology(ctx context.Context) error
}

// Deps are the collaborators of a Store.
type Deps struct {
	API        API
	Remembered Remembered
	Notifier   notify.Notifier
	Navigator  auth.Navigator
	Bus        event.Publisher
	Printer    *message.Printer
	Logger     *zap.Logger
}

// Store is the single owner of topology state. It is safe for concurrent
// use; remote calls are made without holding the lock.
type Store struct {
	deps   Deps
	report notify.Reporter
	logger *zap.Logger

	mu            sync.RWMutex
	devices       []models.Device
	connections   []models.Connection
	catalog       []models.Topology
	currentID     int
	hasTopologies bool
	loading       int
	generation    uint64
}

// New creates an empty store.
func New(deps Deps) *Store {
	logger := deps.Logger.Named("topology")
	return &Store{
		deps: deps,
		report: notify.Reporter{
			Notifier:  deps.Notifier,
			Navigator: deps.Navigator,
			Printer:   deps.Printer,
			Logger:    logger,
		},
		logger:        logger,
		hasTopologies: true,
	}
}

// Loading reports whether a catalog or topology load is in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

func (s *Store) beginLoad() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

func (s *Store) endLoad() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
}

// Generation identifies the loaded canvas. It changes every time a load or
// reset replaces the devices and connections.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// replaceLocked swaps in a new canvas and starts a new generation.
func (s *Store) replaceLocked(devices []models.Device, conns []models.Connection, id int) {
	s.devices = devices
	s.connections = conns
	s.currentID = id
	s.generation++
}

func (s *Store) checkLocked(gen *uint64) error {
	if gen != nil && *gen != s.generation {
		return ErrStale
	}
	return nil
}

// Devices returns a copy of the devices.
func (s *Store) Devices() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// Device looks up a device by id.
func (s *Store) Device(id string) (models.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.deviceIndexLocked(id)
	if i < 0 {
		return models.Device{}, false
	}
	return s.devices[i], true
}

// Connections returns the connections whose endpoints are both live
// devices.
func (s *Store) Connections() []models.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Connection, 0, len(s.connections))
	for _, c := range s.connections {
		if s.deviceIndexLocked(c.EndpointA) >= 0 && s.deviceIndexLocked(c.EndpointB) >= 0 {
			out = append(out, c)
		}
	}
	return out
}

// Connection looks up a connection by id.
func (s *Store) Connection(id string) (models.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.connections {
		if c.ID == id {
			return c, true
		}
	}
	return models.Connection{}, false
}

// Topologies returns the catalog from the last successful listing.
func (s *Store) Topologies() []models.Topology {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Topology, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// CurrentTopologyID returns the id of the loaded topology, 0 when none.
func (s *Store) CurrentTopologyID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// HasTopologies is false once a listing came back empty.
func (s *Store) HasTopologies() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasTopologies
}

// AddDevice inserts a confirmed device.
func (s *Store) AddDevice(d models.Device) error {
	return s.addDevice(nil, d)
}

// AddDeviceIn inserts a device confirmed for canvas generation gen. It
// fails with ErrStale when another topology has been loaded since.
func (s *Store) AddDeviceIn(gen uint64, d models.Device) error {
	return s.addDevice(&gen, d)
}

func (s *Store) addDevice(gen *uint64, d models.Device) error {
	s.mu.Lock()
	if err := s.checkLocked(gen); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("add %s: %w", d.ID, err)
	}
	if s.deviceIndexLocked(d.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("add %s: %w", d.ID, ErrDuplicateDevice)
	}
	s.devices = append(s.devices, d)
	s.mu.Unlock()

	s.publish(TopicDeviceAdded, d)
	return nil
}

// RemoveDevice deletes a device together with every connection touching it.
func (s *Store) RemoveDevice(id string) (models.Device, bool) {
	d, ok, _ := s.removeDevice(nil, id)
	return d, ok
}

// RemoveDeviceIn is RemoveDevice for a deletion confirmed against canvas
// generation gen.
func (s *Store) RemoveDeviceIn(gen uint64, id string) (models.Device, bool, error) {
	return s.removeDevice(&gen, id)
}

func (s *Store) removeDevice(gen *uint64, id string) (models.Device, bool, error) {
	s.mu.Lock()
	if err := s.checkLocked(gen); err != nil {
		s.mu.Unlock()
		return models.Device{}, false, fmt.Errorf("remove %s: %w", id, err)
	}
	i := s.deviceIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Device{}, false, nil
	}
	d := s.devices[i]
	s.devices = append(s.devices[:i:i], s.devices[i+1:]...)
	kept := s.connections[:0:0]
	for _, c := range s.connections {
		if !c.Touches(id) {
			kept = append(kept, c)
		}
	}
	s.connections = kept
	s.mu.Unlock()

	s.publish(TopicDeviceRemoved, d)
	return d, true, nil
}

// MoveDevice sets a device position.
func (s *Store) MoveDevice(id string, pos models.Position) bool {
	s.mu.Lock()
	i := s.deviceIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.devices[i].Position = pos
	d := s.devices[i]
	s.mu.Unlock()

	s.publish(TopicDeviceMoved, d)
	return true
}

// UpdateDevice applies fn to a device. The id and kind cannot change.
func (s *Store) UpdateDevice(id string, fn func(d *models.Device)) (models.Device, bool) {
	d, ok, _ := s.updateDevice(nil, id, fn)
	return d, ok
}

// UpdateDeviceIn is UpdateDevice for a change confirmed against canvas
// generation gen.
func (s *Store) UpdateDeviceIn(gen uint64, id string, fn func(d *models.Device)) (models.Device, bool, error) {
	return s.updateDevice(&gen, id, fn)
}

func (s *Store) updateDevice(gen *uint64, id string, fn func(d *models.Device)) (models.Device, bool, error) {
	s.mu.Lock()
	if err := s.checkLocked(gen); err != nil {
		s.mu.Unlock()
		return models.Device{}, false, fmt.Errorf("update %s: %w", id, err)
	}
	i := s.deviceIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Device{}, false, nil
	}
	d := s.devices[i]
	fn(&d)
	d.ID, d.Kind = s.devices[i].ID, s.devices[i].Kind
	s.devices[i] = d
	s.mu.Unlock()

	s.publish(TopicDeviceUpdated, d)
	return d, true, nil
}

// AddConnection records a confirmed link between a and b. Adding a pair
// that is already connected returns the existing connection with added
// set to false.
func (s *Store) AddConnection(id, a, b string) (conn models.Connection, added bool, err error) {
	return s.addConnection(nil, id, a, b)
}

// AddConnectionIn is AddConnection for a link confirmed against canvas
// generation gen.
func (s *Store) AddConnectionIn(gen uint64, id, a, b string) (models.Connection, bool, error) {
	return s.addConnection(&gen, id, a, b)
}

func (s *Store) addConnection(gen *uint64, id, a, b string) (conn models.Connection, added bool, err error) {
	if a == b {
		return models.Connection{}, false, ErrSelfLink
	}
	s.mu.Lock()
	if err := s.checkLocked(gen); err != nil {
		s.mu.Unlock()
		return models.Connection{}, false, fmt.Errorf("link %s-%s: %w", a, b, err)
	}
	for _, name := range []string{a, b} {
		if s.deviceIndexLocked(name) < 0 {
			s.mu.Unlock()
			return models.Connection{}, false, fmt.Errorf("link %s-%s: %w %s", a, b, ErrUnknownDevice, name)
		}
	}
	for _, c := range s.connections {
		if c.Connects(a, b) {
			s.mu.Unlock()
			return c, false, nil
		}
	}
	conn = models.Connection{ID: id, EndpointA: a, EndpointB: b}
	s.connections = append(s.connections, conn)
	s.mu.Unlock()

	s.publish(TopicConnectionAdded, conn)
	return conn, true, nil
}

// RemoveConnection deletes a connection by id.
func (s *Store) RemoveConnection(id string) (models.Connection, bool) {
	c, ok, _ := s.removeConnection(nil, id)
	return c, ok
}

// RemoveConnectionIn is RemoveConnection for an unlink confirmed against
// canvas generation gen.
func (s *Store) RemoveConnectionIn(gen uint64, id string) (models.Connection, bool, error) {
	return s.removeConnection(&gen, id)
}

func (s *Store) removeConnection(gen *uint64, id string) (models.Connection, bool, error) {
	s.mu.Lock()
	if err := s.checkLocked(gen); err != nil {
		s.mu.Unlock()
		return models.Connection{}, false, fmt.Errorf("unlink %s: %w", id, err)
	}
	for i, c := range s.connections {
		if c.ID == id {
			s.connections = append(s.connections[:i:i], s.connections[i+1:]...)
			s.mu.Unlock()
			s.publish(TopicConnectionRemoved, c)
			return c, true, nil
		}
	}
	s.mu.Unlock()
	return models.Connection{}, false, nil
}

func (s *Store) deviceIndexLocked(id string) int {
	for i := range s.devices {
		if s.devices[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) publish(topic string, payload any) {
	if s.deps.Bus == nil {
		return
	}
	_ = s.deps.Bus.Publish(context.Background(), event.Event{
		Topic:   topic,
		Source:  "topology",
		Payload: payload,
	})
}

func (s *Store) fail(err error, fallbackKey string) {
	s.report.Fail(err, fallbackKey)
}
