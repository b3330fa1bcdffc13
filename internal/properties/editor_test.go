package properties

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/clock"
	"github.com/HerbHall/netcanvas/internal/i18n"
	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/internal/testutil"
	"github.com/HerbHall/netcanvas/pkg/models"
)

type call struct {
	Op    string
	Name  string
	Value string
}

type fakeAPI struct {
	mu         sync.Mutex
	calls      []call
	err        error
	ipErr      error
	listErr    error
	interfaces []models.RouterInterface
}

func (f *fakeAPI) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeAPI) UpdateDisplayName(_ context.Context, name, displayName string) error {
	return f.record(call{"display_name", name, displayName})
}

func (f *fakeAPI) UpdateIP(_ context.Context, kind models.DeviceKind, name, ip string) error {
	if err := f.record(call{"ip:" + string(kind), name, ip}); err != nil {
		return err
	}
	return f.ipErr
}

func (f *fakeAPI) RouterInterfaces(_ context.Context, router string) ([]models.RouterInterface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{"list", router, ""})
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.RouterInterface(nil), f.interfaces...), nil
}

func (f *fakeAPI) ConfigureRouterInterface(_ context.Context, router string, iface models.RouterInterface) error {
	if err := f.record(call{"configure", router, iface.Name + "=" + iface.IP}); err != nil {
		return err
	}
	f.mu.Lock()
	f.interfaces = append(f.interfaces, iface)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Op
	}
	return out
}

// memStore is a one-map DeviceStore.
type memStore struct {
	mu      sync.Mutex
	devices map[string]models.Device
}

func newMemStore(devs ...models.Device) *memStore {
	s := &memStore{devices: make(map[string]models.Device)}
	for _, d := range devs {
		s.devices[d.ID] = d
	}
	return s
}

func (s *memStore) Device(id string) (models.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	return d, ok
}

func (s *memStore) UpdateDevice(id string, fn func(*models.Device)) (models.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return d, false
	}
	fn(&d)
	s.devices[id] = d
	return d, true
}

type fixture struct {
	api      *fakeAPI
	store    *memStore
	notifier *testutil.Notifier
	nav      *testutil.Navigator
	clock    *clock.Fake
}

func newEditor(t *testing.T, dev models.Device, locale string) (*Editor, *fixture) {
	t.Helper()
	f := &fixture{
		api:      &fakeAPI{},
		store:    newMemStore(dev),
		notifier: &testutil.Notifier{},
		nav:      &testutil.Navigator{},
		clock:    testutil.NewClock(),
	}
	e := New(Deps{
		API:       f.api,
		Store:     f.store,
		Notifier:  f.notifier,
		Navigator: f.nav,
		Clock:     f.clock,
		Printer:   i18n.Printer(locale),
		Logger:    testutil.Logger(),
	}, dev)
	t.Cleanup(e.Close)
	return e, f
}

func host() models.Device {
	return testutil.NewDevice(testutil.WithID("h1"), testutil.WithIP("10.0.0.1/24"))
}

func router() models.Device {
	return testutil.NewDevice(testutil.WithID("r1"), testutil.WithKind(models.DeviceKindRouter), testutil.WithIP(""))
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"10.0.0.1", true},
		{"10.0.0.1/24", true},
		{"0.0.0.0/0", true},
		{"255.255.255.255/32", true},
		{"10.0.0.256", false},
		{"10.0.0.1/33", false},
		{"10.0.0", false},
		{"10.0.0.1/", false},
		{"a.b.c.d", false},
		{"10.0.0.1 ", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidAddress(tt.in))
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "10.0.0.5/24", NormalizeAddress(models.DeviceKindHost, "10.0.0.5"))
	assert.Equal(t, "10.0.0.5/16", NormalizeAddress(models.DeviceKindRouter, "10.0.0.5/16"))
	assert.Equal(t, "10.0.0.5", NormalizeAddress(models.DeviceKindSwitch, "10.0.0.5"))
	assert.Equal(t, "", NormalizeAddress(models.DeviceKindHost, "  "))
	assert.Equal(t, "10.0.0.5", HostPart("10.0.0.5/24"))
}

func TestSave_AppendsDefaultMask(t *testing.T) {
	e, f := newEditor(t, host(), "en")

	d, err := e.Save(context.Background(), "", "10.0.0.5")

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5/24", d.IPAddress)
	assert.Equal(t, []string{"ip:host"}, f.api.ops())
	stored, _ := f.store.Device("h1")
	assert.Equal(t, "10.0.0.5/24", stored.IPAddress)
	assert.Equal(t, []string{i18n.DeviceUpdated}, f.notifier.Successes())
}

func TestSave_InvalidAddressMakesNoCall(t *testing.T) {
	e, f := newEditor(t, host(), "ru")

	_, err := e.Save(context.Background(), "Web", "10.0.0.300")

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "Недопустимый IP-адрес")
	assert.Equal(t, ve.Message, e.LastError())
	assert.Empty(t, f.api.ops())
	stored, _ := f.store.Device("h1")
	assert.Equal(t, "h1", stored.DisplayName)
}

func TestSave_OnlyChangedFields(t *testing.T) {
	e, f := newEditor(t, host(), "en")

	_, err := e.Save(context.Background(), "h1", "10.0.0.1/24")
	require.NoError(t, err)
	assert.Empty(t, f.api.ops())

	_, err = e.Save(context.Background(), "Web server", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"display_name"}, f.api.ops())
	stored, _ := f.store.Device("h1")
	assert.Equal(t, "Web server", stored.DisplayName)
	assert.Equal(t, "10.0.0.1/24", stored.IPAddress)
}

func TestSave_SwitchIgnoresAddress(t *testing.T) {
	sw := testutil.NewDevice(testutil.WithID("s1"), testutil.WithKind(models.DeviceKindSwitch))
	e, f := newEditor(t, sw, "en")

	_, err := e.Save(context.Background(), "Core", "not-an-ip")

	require.NoError(t, err)
	assert.Equal(t, []string{"display_name"}, f.api.ops())
}

func TestSave_RejectionLeavesStore(t *testing.T) {
	e, f := newEditor(t, host(), "en")
	f.api.err = &remote.RejectedError{StatusCode: 400, Message: "IP already in use"}

	_, err := e.Save(context.Background(), "", "10.0.0.9")

	require.Error(t, err)
	stored, _ := f.store.Device("h1")
	assert.Equal(t, "10.0.0.1/24", stored.IPAddress)
	assert.Equal(t, []string{"IP already in use"}, f.notifier.Errors())
}

func TestSave_RejectedAddressKeepsConfirmedName(t *testing.T) {
	e, f := newEditor(t, host(), "en")
	f.api.ipErr = &remote.RejectedError{StatusCode: 400, Message: "IP already in use"}

	got, err := e.Save(context.Background(), "Web server", "10.0.0.9")

	require.Error(t, err)
	assert.Equal(t, []string{"display_name", "ip:host"}, f.api.ops())
	stored, _ := f.store.Device("h1")
	assert.Equal(t, "Web server", stored.DisplayName, "the accepted name is kept")
	assert.Equal(t, "10.0.0.1/24", stored.IPAddress)
	assert.Equal(t, stored, got)
	assert.Equal(t, []string{"IP already in use"}, f.notifier.Errors())
}

func TestSave_ExpiryNavigates(t *testing.T) {
	e, f := newEditor(t, host(), "en")
	f.api.err = remote.ErrAuthExpired

	_, err := e.Save(context.Background(), "New", "")

	require.ErrorIs(t, err, auth.ErrExpired)
	assert.Equal(t, []string{auth.LoginPath}, f.nav.Paths())
	assert.Empty(t, f.notifier.Notices())
}

func TestTabs(t *testing.T) {
	e, _ := newEditor(t, host(), "en")
	assert.Equal(t, []Tab{TabGeneral}, e.Tabs())
	assert.Error(t, e.ActivateTab(context.Background(), TabInterfaces))

	r, _ := newEditor(t, router(), "en")
	assert.Equal(t, []Tab{TabGeneral, TabInterfaces}, r.Tabs())
}

func TestActivateTab_FetchesOnce(t *testing.T) {
	e, f := newEditor(t, router(), "en")
	f.api.interfaces = []models.RouterInterface{{Name: "eth0", IP: "10.0.0.254/24", SubnetMaskBits: 24}}
	ctx := context.Background()

	require.NoError(t, e.ActivateTab(ctx, TabInterfaces))
	require.NoError(t, e.ActivateTab(ctx, TabGeneral))
	require.NoError(t, e.ActivateTab(ctx, TabInterfaces))

	assert.Equal(t, []string{"list"}, f.api.ops())
	assert.Equal(t, TabInterfaces, e.Tab())
	assert.Len(t, e.Interfaces(), 1)
}

func TestActivateTab_LoadFailureShownInEditor(t *testing.T) {
	e, f := newEditor(t, router(), "en")
	f.api.listErr = errors.New("not implemented")

	err := e.ActivateTab(context.Background(), TabInterfaces)

	require.Error(t, err)
	assert.Equal(t, i18n.InterfacesLoadFailed, e.LastError())
	assert.Empty(t, f.notifier.Notices())
}

func TestAddInterface(t *testing.T) {
	e, f := newEditor(t, router(), "en")
	ctx := context.Background()

	require.NoError(t, e.AddInterface(ctx, "eth1", "192.168.1.1", 16))

	assert.Equal(t, []string{"configure", "list"}, f.api.ops())
	require.Len(t, e.Interfaces(), 1)
	assert.Equal(t, "192.168.1.1/16", e.Interfaces()[0].IP)
	assert.Equal(t, i18n.InterfaceAdded, e.Confirmation())
	assert.Empty(t, f.notifier.Notices(), "confirmation stays inside the editor")

	f.clock.Advance(ConfirmationTTL - time.Millisecond)
	assert.Equal(t, i18n.InterfaceAdded, e.Confirmation())
	f.clock.Advance(time.Millisecond)
	assert.Empty(t, e.Confirmation())
}

func TestAddInterface_Validation(t *testing.T) {
	tests := []struct {
		name    string
		iface   string
		ip      string
		wantMsg string
	}{
		{"empty name", "", "10.0.0.1", i18n.InterfaceFieldsEmpty},
		{"empty ip", "eth0", "", i18n.InterfaceFieldsEmpty},
		{"bad octet", "eth0", "10.0.0.999", i18n.InvalidInterfaceIP},
		{"bad mask", "eth0", "10.0.0.1/40", i18n.InvalidInterfaceIP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, f := newEditor(t, router(), "en")
			err := e.AddInterface(context.Background(), tt.iface, tt.ip, 24)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantMsg, ve.Message)
			assert.Empty(t, f.api.ops())
		})
	}
}

func TestAddInterface_RejectionKeepsServerMessage(t *testing.T) {
	e, f := newEditor(t, router(), "en")
	f.api.err = &remote.RejectedError{StatusCode: 409, Message: "interface eth0 exists"}

	err := e.AddInterface(context.Background(), "eth0", "10.0.0.1", 24)

	require.Error(t, err)
	assert.Equal(t, "interface eth0 exists", e.LastError())
	assert.Empty(t, e.Confirmation())
}

func TestClose_StopsConfirmation(t *testing.T) {
	e, f := newEditor(t, router(), "en")
	require.NoError(t, e.AddInterface(context.Background(), "eth0", "10.0.0.1", 24))
	require.Equal(t, 1, f.clock.Pending())

	e.Close()

	assert.Empty(t, e.Confirmation())
	assert.Equal(t, 0, f.clock.Pending())
}
