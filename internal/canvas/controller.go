// Package canvas implements the interaction state machine of the topology
// editor: dropping devices, dragging them, the two-click link protocol and
// the context menu. The topology store is the only holder of devices and
// connections; the controller mutates it and mirrors changes to the lab
// service.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/message"

	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/clock"
	"github.com/HerbHall/netcanvas/internal/event"
	"github.com/HerbHall/netcanvas/internal/i18n"
	"github.com/HerbHall/netcanvas/internal/notify"
	"github.com/HerbHall/netcanvas/internal/properties"
	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/internal/topology"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// EdgeMargin keeps dragged devices this far inside the canvas bounds.
const EdgeMargin = 32

var (
	// ErrLoading rejects gestures while a topology is being loaded.
	ErrLoading = errors.New("topology is loading")
	// ErrNoTarget is returned by menu actions when no device is targeted.
	ErrNoTarget = errors.New("no device selected")
)

// API is the part of the lab service the controller calls.
type API interface {
	properties.API
	AddNode(ctx context.Context, n remote.NewNode) (*remote.CreatedNode, error)
	DeleteNode(ctx context.Context, kind models.DeviceKind, name string) error
	UpdatePosition(ctx context.Context, name string, pos models.Position) error
	AddLink(ctx context.Context, a, b string) error
	DeleteLink(ctx context.Context, a, b string) error
	ValidateTopology(ctx context.Context) (*models.ValidationResult, error)
}

// Subscriber is the part of the event bus the controller listens on.
type Subscriber interface {
	Subscribe(topic string, h event.Handler) func()
}

// Point is a pointer position in screen coordinates.
type Point struct {
	X, Y float64
}

// Viewport is where the canvas sits on screen and how large it is.
type Viewport struct {
	Left, Top     float64
	Width, Height float64
}

// ContextMenu is the per-device action menu.
type ContextMenu struct {
	Visible  bool
	X, Y     float64
	TargetID string
}

// State is a snapshot of the interaction state.
type State struct {
	Dragged  string
	Selected string
	Menu     ContextMenu
	Viewport Viewport
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Store     *topology.Store
	API       API
	Notifier  notify.Notifier
	Navigator auth.Navigator
	// Events, when set, resets the interaction state whenever the store
	// loads another topology, whoever triggered the load.
	Events  Subscriber
	Clock   clock.Clock
	Printer *message.Printer
	Logger  *zap.Logger
}

// Controller owns pointer interaction. Remote calls are made without
// holding the lock, so concurrent gestures are independent round trips.
type Controller struct {
	deps   Deps
	ids    *IDGenerator
	report notify.Reporter
	logger *zap.Logger
	unsub  func()

	mu    sync.Mutex
	state State
}

// New creates a controller with an 800x600 viewport at the origin.
func New(deps Deps) *Controller {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Printer == nil {
		deps.Printer = i18n.Printer("en")
	}
	logger := deps.Logger.Named("canvas")
	store := deps.Store
	c := &Controller{
		deps: deps,
		ids: NewIDGenerator(deps.Clock, func(id string) bool {
			_, ok := store.Device(id)
			return ok
		}),
		report: notify.Reporter{
			Notifier:  deps.Notifier,
			Navigator: deps.Navigator,
			Printer:   deps.Printer,
			Logger:    logger,
		},
		logger: logger,
		state:  State{Viewport: Viewport{Width: 800, Height: 600}},
		unsub:  func() {},
	}
	if deps.Events != nil {
		c.unsub = deps.Events.Subscribe(topology.TopicLoaded, func(context.Context, event.Event) {
			c.reset()
		})
	}
	return c
}

// Close stops listening for topology loads.
func (c *Controller) Close() {
	c.unsub()
}

// Store returns the topology store the controller edits.
func (c *Controller) Store() *topology.Store { return c.deps.Store }

// State returns a snapshot of the interaction state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetViewport records the canvas placement used for coordinate mapping
// and clamping.
func (c *Controller) SetViewport(v Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Viewport = v
}

// Startup resolves and loads the initial topology.
func (c *Controller) Startup(ctx context.Context) error {
	c.reset()
	return c.deps.Store.Startup(ctx)
}

// SwitchTopology loads topology id, or resolves one when id is 0.
func (c *Controller) SwitchTopology(ctx context.Context, id int) error {
	c.reset()
	return c.deps.Store.SwitchTopology(ctx, id)
}

func (c *Controller) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Dragged = ""
	c.state.Selected = ""
	c.state.Menu = ContextMenu{}
}

func (c *Controller) ready() error {
	if c.deps.Store.Loading() {
		return ErrLoading
	}
	return nil
}

// discard logs a confirmed change that arrived after the canvas it was
// made on had been replaced.
func (c *Controller) discard(op string, err error) error {
	c.logger.Warn("canvas replaced before confirmation, change not applied",
		zap.String("op", op),
		zap.Error(err),
	)
	return err
}

// Drop creates a device of kind at p. A drop while a device is being
// dragged ends a move and creates nothing. The device is added to the
// store only once the service confirmed it.
func (c *Controller) Drop(ctx context.Context, kind models.DeviceKind, p Point) (models.Device, error) {
	if err := c.ready(); err != nil {
		return models.Device{}, err
	}
	c.mu.Lock()
	if c.state.Dragged != "" {
		c.mu.Unlock()
		return models.Device{}, nil
	}
	vp := c.state.Viewport
	c.mu.Unlock()

	gen := c.deps.Store.Generation()
	id := c.ids.Next(kind)
	pos := models.Position{X: p.X - vp.Left, Y: p.Y - vp.Top}
	created, err := c.deps.API.AddNode(ctx, remote.NewNode{
		Kind:        kind,
		Name:        id,
		DisplayName: id,
		Position:    pos,
	})
	if err != nil {
		c.report.Fail(err, i18n.DeviceCreateFailed)
		return models.Device{}, fmt.Errorf("create %s %s: %w", kind, id, err)
	}

	d := models.Device{ID: id, Kind: kind, Position: pos, DisplayName: id}
	if created != nil && kind.Addressable() {
		d.IPAddress = created.IP
	}
	if err := c.deps.Store.AddDeviceIn(gen, d); err != nil {
		if errors.Is(err, topology.ErrStale) {
			return models.Device{}, c.discard("create", err)
		}
		return models.Device{}, err
	}
	c.logger.Info("device created", zap.String("id", id), zap.String("kind", string(kind)))
	c.report.Success(i18n.DeviceCreated, string(kind))
	return d, nil
}

// BeginDrag starts moving device id.
func (c *Controller) BeginDrag(id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if _, ok := c.deps.Store.Device(id); !ok {
		return fmt.Errorf("drag %s: %w", id, topology.ErrUnknownDevice)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Dragged = id
	return nil
}

// DragMove moves the dragged device under the pointer, clamped to the
// canvas. The position is written to the store immediately and persisted
// by EndDrag.
func (c *Controller) DragMove(p Point) (models.Position, error) {
	if err := c.ready(); err != nil {
		return models.Position{}, err
	}
	c.mu.Lock()
	id, vp := c.state.Dragged, c.state.Viewport
	c.mu.Unlock()
	if id == "" {
		return models.Position{}, nil
	}
	pos := models.Position{
		X: clamp(p.X-vp.Left, EdgeMargin, vp.Width-EdgeMargin),
		Y: clamp(p.Y-vp.Top, EdgeMargin, vp.Height-EdgeMargin),
	}
	c.deps.Store.MoveDevice(id, pos)
	return pos, nil
}

// EndDrag persists the final position of the dragged device. A rejected
// update is reported but the local position stays.
func (c *Controller) EndDrag(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.mu.Lock()
	id := c.state.Dragged
	c.state.Dragged = ""
	c.mu.Unlock()
	if id == "" {
		return nil
	}
	d, ok := c.deps.Store.Device(id)
	if !ok {
		return nil
	}
	if err := c.deps.API.UpdatePosition(ctx, id, d.Position); err != nil {
		c.report.Fail(err, i18n.PositionUpdateFailed)
		return fmt.Errorf("persist position of %s: %w", id, err)
	}
	return nil
}

// Click handles a click on device id: it dismisses an open menu, selects
// the first device of a link or links the selected device to id.
func (c *Controller) Click(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.state.Menu.Visible {
		c.state.Menu.Visible = false
		c.mu.Unlock()
		return nil
	}
	from := c.state.Selected
	if from == "" {
		c.state.Selected = id
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	if from == id {
		return nil
	}

	gen := c.deps.Store.Generation()
	err := c.deps.API.AddLink(ctx, from, id)

	c.mu.Lock()
	if c.state.Selected == from {
		c.state.Selected = ""
	}
	c.mu.Unlock()

	if err != nil {
		c.report.Fail(err, i18n.ConnectionAddFailed)
		return fmt.Errorf("link %s-%s: %w", from, id, err)
	}
	conn, added, err := c.deps.Store.AddConnectionIn(gen, "conn-"+uuid.NewString(), from, id)
	if errors.Is(err, topology.ErrStale) {
		return c.discard("link", err)
	}
	if err != nil {
		return err
	}
	if added {
		c.logger.Info("connection added", zap.String("id", conn.ID),
			zap.String("a", conn.EndpointA), zap.String("b", conn.EndpointB))
	}
	c.report.Success(i18n.ConnectionAdded)
	return nil
}

// CanvasClick clears the selection and closes the menu.
func (c *Controller) CanvasClick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Selected = ""
	c.state.Menu = ContextMenu{}
}

// OpenContextMenu shows the menu for device id at x, y.
func (c *Controller) OpenContextMenu(id string, x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Menu = ContextMenu{Visible: true, X: x, Y: y, TargetID: id}
}

// CloseContextMenu hides the menu.
func (c *Controller) CloseContextMenu() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Menu = ContextMenu{}
}

// DeleteDevice deletes the device targeted by the context menu.
func (c *Controller) DeleteDevice(ctx context.Context) error {
	c.mu.Lock()
	id := c.state.Menu.TargetID
	c.mu.Unlock()
	if id == "" {
		return ErrNoTarget
	}
	return c.DeleteDeviceByID(ctx, id)
}

// DeleteDeviceByID deletes device id remotely, then locally. Connections
// touching it disappear with it.
func (c *Controller) DeleteDeviceByID(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	gen := c.deps.Store.Generation()
	d, ok := c.deps.Store.Device(id)
	if !ok {
		return fmt.Errorf("delete %s: %w", id, topology.ErrUnknownDevice)
	}
	if err := c.deps.API.DeleteNode(ctx, d.Kind, id); err != nil {
		c.report.Fail(err, i18n.DeviceDeleteFailed)
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if _, _, err := c.deps.Store.RemoveDeviceIn(gen, id); err != nil {
		return c.discard("delete", err)
	}

	c.mu.Lock()
	if c.state.Menu.TargetID == id {
		c.state.Menu = ContextMenu{}
	}
	if c.state.Selected == id {
		c.state.Selected = ""
	}
	if c.state.Dragged == id {
		c.state.Dragged = ""
	}
	c.mu.Unlock()

	c.logger.Info("device deleted", zap.String("id", id))
	c.report.Success(i18n.DeviceDeleted)
	return nil
}

// DeleteConnection removes a connection. The service knows links only by
// their endpoint pair.
func (c *Controller) DeleteConnection(ctx context.Context, connID string) error {
	if err := c.ready(); err != nil {
		return err
	}
	gen := c.deps.Store.Generation()
	conn, ok := c.deps.Store.Connection(connID)
	if !ok {
		return fmt.Errorf("delete connection %s: not found", connID)
	}
	if err := c.deps.API.DeleteLink(ctx, conn.EndpointA, conn.EndpointB); err != nil {
		c.report.Fail(err, i18n.ConnectionDelFailed)
		return fmt.Errorf("unlink %s-%s: %w", conn.EndpointA, conn.EndpointB, err)
	}
	if _, _, err := c.deps.Store.RemoveConnectionIn(gen, connID); err != nil {
		return c.discard("unlink", err)
	}
	c.report.Success(i18n.ConnectionDeleted)
	return nil
}

// OpenProperties closes the menu and returns an editor for its target.
func (c *Controller) OpenProperties() (*properties.Editor, error) {
	c.mu.Lock()
	id := c.state.Menu.TargetID
	c.state.Menu = ContextMenu{}
	c.mu.Unlock()
	if id == "" {
		return nil, ErrNoTarget
	}
	return c.Properties(id)
}

// Properties returns an editor for device id.
func (c *Controller) Properties(id string) (*properties.Editor, error) {
	d, ok := c.deps.Store.Device(id)
	if !ok {
		return nil, fmt.Errorf("properties of %s: %w", id, topology.ErrUnknownDevice)
	}
	return properties.New(properties.Deps{
		API:       c.deps.API,
		Store:     c.deps.Store,
		Notifier:  c.deps.Notifier,
		Navigator: c.deps.Navigator,
		Clock:     c.deps.Clock,
		Printer:   c.deps.Printer,
		Logger:    c.deps.Logger,
	}, d), nil
}

// Validate asks the service to check the active topology and summarises
// the verdict as a notification. The store is not touched.
func (c *Controller) Validate(ctx context.Context) (*models.ValidationResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	res, err := c.deps.API.ValidateTopology(ctx)
	if err != nil {
		c.report.Fail(err, i18n.ValidateFailed)
		return nil, fmt.Errorf("validate topology: %w", err)
	}
	if res.Valid {
		c.report.Success(i18n.TopologyValid)
	} else if c.deps.Notifier != nil {
		c.deps.Notifier.Error(c.report.Sprintf(i18n.TopologyInvalid, len(res.Errors), len(res.Warnings)))
	}
	return res, nil
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
