// Package properties edits the display name and address of one device and
// manages the interfaces of routers.
package properties

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/message"

	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/clock"
	"github.com/HerbHall/netcanvas/internal/i18n"
	"github.com/HerbHall/netcanvas/internal/notify"
	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// ConfirmationTTL is how long the interface confirmation stays visible.
const ConfirmationTTL = 3 * time.Second

// Tab is a page of the editor. Only routers have an interfaces tab.
type Tab string

const (
	TabGeneral    Tab = "general"
	TabInterfaces Tab = "interfaces"
)

// API is the part of the lab service the editor calls.
type API interface {
	UpdateDisplayName(ctx context.Context, name, displayName string) error
	UpdateIP(ctx context.Context, kind models.DeviceKind, name, ip string) error
	RouterInterfaces(ctx context.Context, router string) ([]models.RouterInterface, error)
	ConfigureRouterInterface(ctx context.Context, router string, iface models.RouterInterface) error
}

// DeviceStore reads and updates the edited device.
type DeviceStore interface {
	Device(id string) (models.Device, bool)
	UpdateDevice(id string, fn func(d *models.Device)) (models.Device, bool)
}

// Deps are the collaborators of an Editor.
type Deps struct {
	API       API
	Store     DeviceStore
	Notifier  notify.Notifier
	Navigator auth.Navigator
	Clock     clock.Clock
	Printer   *message.Printer
	Logger    *zap.Logger
}

// Editor is the properties dialog of one device.
type Editor struct {
	deps    Deps
	printer *message.Printer
	report  notify.Reporter
	logger  *zap.Logger
	device  models.Device

	mu            sync.Mutex
	tab           Tab
	interfaces    []models.RouterInterface
	ifacesFetched bool
	lastError     string
	confirmation  string
	confirmTimer  clock.Timer
	confirmGen    uint64
	closed        bool
}

// New opens an editor on device.
func New(deps Deps, device models.Device) *Editor {
	p := deps.Printer
	if p == nil {
		p = i18n.Printer("en")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	logger := deps.Logger.Named("properties").With(zap.String("device", device.ID))
	return &Editor{
		deps:    deps,
		printer: p,
		report: notify.Reporter{
			Notifier:  deps.Notifier,
			Navigator: deps.Navigator,
			Printer:   p,
			Logger:    logger,
		},
		logger: logger,
		device: device,
		tab:    TabGeneral,
	}
}

// Device returns the edited device as currently stored.
func (e *Editor) Device() models.Device {
	if d, ok := e.deps.Store.Device(e.device.ID); ok {
		return d
	}
	return e.device
}

// Tabs lists the pages available for the device.
func (e *Editor) Tabs() []Tab {
	if e.device.Kind == models.DeviceKindRouter {
		return []Tab{TabGeneral, TabInterfaces}
	}
	return []Tab{TabGeneral}
}

// Tab returns the active page.
func (e *Editor) Tab() Tab {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tab
}

// LastError is the error message shown inside the editor, if any.
func (e *Editor) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// Confirmation is the interface confirmation currently shown, if any.
func (e *Editor) Confirmation() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.confirmation
}

// Interfaces returns the router interfaces fetched so far.
func (e *Editor) Interfaces() []models.RouterInterface {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.RouterInterface(nil), e.interfaces...)
}

// ActivateTab switches pages. The interface list is fetched the first time
// the interfaces page is opened.
func (e *Editor) ActivateTab(ctx context.Context, tab Tab) error {
	if tab == TabInterfaces && e.device.Kind != models.DeviceKindRouter {
		return fmt.Errorf("%s has no interfaces page", e.device.Kind)
	}
	e.mu.Lock()
	e.tab = tab
	fetch := tab == TabInterfaces && !e.ifacesFetched
	e.ifacesFetched = e.ifacesFetched || fetch
	e.mu.Unlock()

	if !fetch {
		return nil
	}
	return e.refreshInterfaces(ctx)
}

// Save validates and applies a new display name and address. Empty values
// leave the field unchanged. Each field is written to the store as soon as
// the service accepted it, so a rejected address keeps a confirmed name.
func (e *Editor) Save(ctx context.Context, displayName, ip string) (models.Device, error) {
	current := e.Device()
	displayName = strings.TrimSpace(displayName)

	if current.Kind.Addressable() {
		ip = NormalizeAddress(current.Kind, ip)
		if ip != "" && !ValidAddress(ip) {
			return current, e.invalid("ip", i18n.InvalidIP)
		}
	} else {
		ip = ""
	}

	updated := current
	if displayName != "" && displayName != current.DisplayName {
		if err := e.deps.API.UpdateDisplayName(ctx, current.ID, displayName); err != nil {
			return updated, e.fail(err, i18n.DeviceUpdateFailed)
		}
		updated = e.commit(updated, func(d *models.Device) { d.DisplayName = displayName })
	}
	if ip != "" && ip != current.IPAddress {
		if err := e.deps.API.UpdateIP(ctx, current.Kind, current.ID, ip); err != nil {
			return updated, e.fail(err, i18n.DeviceUpdateFailed)
		}
		updated = e.commit(updated, func(d *models.Device) { d.IPAddress = ip })
	}

	e.logger.Info("device updated",
		zap.String("display_name", updated.DisplayName),
		zap.String("ip", updated.IPAddress),
	)
	e.report.Success(i18n.DeviceUpdated)
	return updated, nil
}

// commit writes a confirmed change to the store and returns the result.
func (e *Editor) commit(d models.Device, fn func(d *models.Device)) models.Device {
	if updated, ok := e.deps.Store.UpdateDevice(d.ID, fn); ok {
		return updated
	}
	fn(&d)
	return d
}

// AddInterface configures a new router interface. A bare address gets the
// given prefix length. On success the list is refreshed and a confirmation
// is shown inside the editor.
func (e *Editor) AddInterface(ctx context.Context, name, ip string, maskBits int) error {
	if e.device.Kind != models.DeviceKindRouter {
		return fmt.Errorf("%s has no interfaces", e.device.Kind)
	}
	name, ip = strings.TrimSpace(name), strings.TrimSpace(ip)
	if name == "" || ip == "" {
		return e.invalid("interface", i18n.InterfaceFieldsEmpty)
	}
	if maskBits <= 0 {
		maskBits = DefaultMaskBits
	}
	if !strings.Contains(ip, "/") {
		ip = ip + "/" + strconv.Itoa(maskBits)
	}
	if !ValidAddress(ip) {
		return e.invalid("ip", i18n.InvalidInterfaceIP)
	}

	iface := models.RouterInterface{Name: name, IP: ip, SubnetMaskBits: maskBits}
	if err := e.deps.API.ConfigureRouterInterface(ctx, e.device.ID, iface); err != nil {
		if auth.HandleExpiry(err, e.deps.Navigator) {
			return err
		}
		e.setError(remote.Message(err, e.printer.Sprintf(i18n.InterfacesLoadFailed)))
		return fmt.Errorf("configure interface %s: %w", name, err)
	}
	e.logger.Info("router interface configured", zap.String("interface", name), zap.String("ip", ip))

	e.confirm(e.printer.Sprintf(i18n.InterfaceAdded))
	return e.refreshInterfaces(ctx)
}

// Close stops the confirmation timer.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.confirmGen++
	if e.confirmTimer != nil {
		e.confirmTimer.Stop()
		e.confirmTimer = nil
	}
	e.confirmation = ""
}

func (e *Editor) refreshInterfaces(ctx context.Context) error {
	list, err := e.deps.API.RouterInterfaces(ctx, e.device.ID)
	if err != nil {
		if auth.HandleExpiry(err, e.deps.Navigator) {
			return err
		}
		e.mu.Lock()
		e.interfaces = nil
		e.mu.Unlock()
		e.setError(e.printer.Sprintf(i18n.InterfacesLoadFailed))
		e.logger.Warn("load router interfaces", zap.Error(err))
		return fmt.Errorf("list interfaces of %s: %w", e.device.ID, err)
	}
	e.mu.Lock()
	e.interfaces = list
	e.lastError = ""
	e.mu.Unlock()
	return nil
}

func (e *Editor) confirm(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.confirmTimer != nil {
		e.confirmTimer.Stop()
	}
	e.confirmGen++
	gen := e.confirmGen
	e.confirmation = msg
	e.lastError = ""
	e.confirmTimer = e.deps.Clock.AfterFunc(ConfirmationTTL, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen == e.confirmGen {
			e.confirmation = ""
			e.confirmTimer = nil
		}
	})
}

func (e *Editor) invalid(field, key string) error {
	msg := e.printer.Sprintf(key)
	e.setError(msg)
	return &ValidationError{Field: field, Message: msg}
}

func (e *Editor) setError(msg string) {
	e.mu.Lock()
	e.lastError = msg
	e.mu.Unlock()
}

// fail reports a rejected save through the global channel.
func (e *Editor) fail(err error, fallbackKey string) error {
	e.report.Fail(err, fallbackKey)
	if errors.Is(err, context.Canceled) || errors.Is(err, auth.ErrExpired) {
		return err
	}
	return fmt.Errorf("update %s: %w", e.device.ID, err)
}
