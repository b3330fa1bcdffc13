// Package diagnostics runs packet traces and pings against the emulated
// network. A Session runs one operation at a time; a trace is polled on a
// single timer until the server reports a terminal state.
package diagnostics

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/message"

	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/clock"
	"github.com/HerbHall/netcanvas/internal/event"
	"github.com/HerbHall/netcanvas/internal/i18n"
	"github.com/HerbHall/netcanvas/internal/properties"
	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// TopicUpdated carries a Snapshot after every state change.
const TopicUpdated = "diagnostics.updated"

// Defaults for a new session.
const (
	DefaultPollInterval = time.Second
	DefaultPingCount    = 4
	MinPingCount        = 1
	MaxPingCount        = 10
)

var (
	ErrCannotSubmit = errors.New("diagnostics: required fields missing or a run is in progress")
	ErrDisposed     = errors.New("diagnostics: session disposed")
)

// Variant selects the diagnostic.
type Variant string

const (
	VariantTrace Variant = "trace"
	VariantPing  Variant = "ping"
)

// Phase is the lifecycle state of a run.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhasePolling    Phase = "polling"
	PhaseResolved   Phase = "resolved"
	PhaseFailed     Phase = "failed"
)

// InFlight reports whether a run has not reached a terminal state.
func (p Phase) InFlight() bool {
	return p == PhaseSubmitting || p == PhasePolling
}

// Form is the user input of a session.
type Form struct {
	Source        string
	Destination   string
	DestinationIP string
	Protocol      models.Protocol
	Count         int
}

// Snapshot is the observable state of a session.
type Snapshot struct {
	Variant Variant
	Phase   Phase
	Form    Form
	Handle  string
	Trace   *models.TraceResult
	Ping    *models.PingResult
	Err     error
	Message string
}

// API is the part of the lab service a session calls.
type API interface {
	StartTrace(ctx context.Context, req remote.TraceRequest) (string, error)
	GetTrace(ctx context.Context, handle string) (*models.TraceResult, error)
	Ping(ctx context.Context, req remote.PingRequest) (*models.PingResult, error)
}

// DeviceLookup resolves destination devices.
type DeviceLookup interface {
	Device(id string) (models.Device, bool)
}

// Deps are the collaborators of a Session.
type Deps struct {
	API          API
	Devices      DeviceLookup
	Navigator    auth.Navigator
	Clock        clock.Clock
	Bus          event.Publisher
	Printer      *message.Printer
	Logger       *zap.Logger
	PollInterval time.Duration
}

// Session is a single-flight trace or ping runner.
type Session struct {
	deps   Deps
	logger *zap.Logger

	mu       sync.Mutex
	variant  Variant
	phase    Phase
	form     Form
	handle   string
	trace    *models.TraceResult
	ping     *models.PingResult
	err      error
	message  string
	gen      uint64
	timer    clock.Timer
	cancel   context.CancelFunc
	done     chan struct{}
	disposed bool
}

// New creates an idle trace session.
func New(deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = DefaultPollInterval
	}
	if deps.Printer == nil {
		deps.Printer = i18n.Printer("en")
	}
	done := make(chan struct{})
	close(done)
	return &Session{
		deps:    deps,
		logger:  deps.Logger.Named("diagnostics"),
		variant: VariantTrace,
		phase:   PhaseIdle,
		form:    Form{Protocol: models.ProtocolTCP, Count: DefaultPingCount},
		done:    done,
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Variant: s.variant,
		Phase:   s.phase,
		Form:    s.form,
		Handle:  s.handle,
		Trace:   s.trace,
		Ping:    s.ping,
		Err:     s.err,
		Message: s.message,
	}
}

// SetSource sets the device the packets originate from.
func (s *Session) SetSource(id string) {
	s.update(func() { s.form.Source = id })
}

// SelectDestinationDevice sets the trace destination and pre-fills the
// ping address with the device's address without its prefix length.
func (s *Session) SelectDestinationDevice(id string) {
	var ip string
	if s.deps.Devices != nil {
		if d, ok := s.deps.Devices.Device(id); ok && d.IPAddress != "" {
			ip = properties.HostPart(d.IPAddress)
		}
	}
	s.update(func() {
		s.form.Destination = id
		if ip != "" {
			s.form.DestinationIP = ip
		}
	})
}

// SetDestinationIP sets the ping target address.
func (s *Session) SetDestinationIP(ip string) {
	s.update(func() { s.form.DestinationIP = ip })
}

// SetProtocol sets the trace protocol.
func (s *Session) SetProtocol(p models.Protocol) {
	s.update(func() { s.form.Protocol = p })
}

// SetCount sets the ping count, clamped to [MinPingCount, MaxPingCount].
func (s *Session) SetCount(n int) {
	s.update(func() { s.form.Count = clampCount(n) })
}

// SelectVariant switches between trace and ping. When idle the results of
// the variant being left are cleared; a run in flight continues.
func (s *Session) SelectVariant(v Variant) {
	s.update(func() {
		if v == s.variant {
			return
		}
		if !s.phase.InFlight() {
			switch s.variant {
			case VariantTrace:
				s.trace = nil
				s.handle = ""
			case VariantPing:
				s.ping = nil
			}
			s.phase = PhaseIdle
			s.err = nil
			s.message = ""
		}
		s.variant = v
	})
}

// CanSubmit reports whether the form is complete and nothing is running.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked()
}

func (s *Session) canSubmitLocked() bool {
	if s.disposed || s.phase.InFlight() || s.form.Source == "" {
		return false
	}
	if s.variant == VariantPing {
		return s.form.DestinationIP != ""
	}
	return s.form.Destination != ""
}

// Submit starts the selected diagnostic. A trace returns once the server
// accepted it and is then polled in the background; a ping returns with
// its result.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if !s.canSubmitLocked() {
		s.mu.Unlock()
		return ErrCannotSubmit
	}
	s.stopLocked()
	gen := s.gen
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.phase = PhaseSubmitting
	s.err, s.message = nil, ""
	form, variant := s.form, s.variant
	if variant == VariantTrace {
		s.trace, s.handle = nil, ""
	} else {
		s.ping = nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)

	if variant == VariantPing {
		return s.runPing(runCtx, gen, form)
	}
	return s.startTrace(runCtx, gen, form)
}

func (s *Session) startTrace(ctx context.Context, gen uint64, form Form) error {
	handle, err := s.deps.API.StartTrace(ctx, remote.TraceRequest{
		Source:      form.Source,
		Destination: form.Destination,
		Protocol:    form.Protocol,
	})

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return context.Canceled
	}
	if err != nil {
		snap := s.failLocked(err, i18n.TraceStartFailed)
		s.mu.Unlock()
		s.publish(snap)
		auth.HandleExpiry(err, s.deps.Navigator)
		return err
	}
	s.phase = PhasePolling
	s.handle = handle
	s.scheduleLocked(ctx, gen, handle)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("trace started", zap.String("handle", handle),
		zap.String("source", form.Source), zap.String("destination", form.Destination))
	s.publish(snap)
	return nil
}

func (s *Session) scheduleLocked(ctx context.Context, gen uint64, handle string) {
	s.timer = s.deps.Clock.AfterFunc(s.deps.PollInterval, func() {
		s.poll(ctx, gen, handle)
	})
}

func (s *Session) poll(ctx context.Context, gen uint64, handle string) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	res, err := s.deps.API.GetTrace(ctx, handle)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		snap := s.failLocked(err, i18n.TracePollFailed)
		s.mu.Unlock()
		s.publish(snap)
		auth.HandleExpiry(err, s.deps.Navigator)
		return
	}
	s.trace = res
	if res.Done() {
		s.phase = PhaseResolved
		s.finishLocked()
		s.logger.Info("trace finished", zap.String("handle", handle),
			zap.Bool("success", res.Success), zap.Int("hops", len(res.Hops)))
	} else {
		s.scheduleLocked(ctx, gen, handle)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Session) runPing(ctx context.Context, gen uint64, form Form) error {
	res, err := s.deps.API.Ping(ctx, remote.PingRequest{
		Source:        form.Source,
		DestinationIP: form.DestinationIP,
		Count:         clampCount(form.Count),
	})

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return context.Canceled
	}
	if err != nil {
		snap := s.failLocked(err, i18n.PingFailed)
		s.mu.Unlock()
		s.publish(snap)
		auth.HandleExpiry(err, s.deps.Navigator)
		return err
	}
	s.ping = res
	s.phase = PhaseResolved
	s.finishLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
	return nil
}

// Wait blocks until the current run reaches a terminal state, the session
// is disposed or ctx ends.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	select {
	case <-done:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Dispose stops polling and abandons any request in flight. Responses
// that arrive afterwards are ignored.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.stopLocked()
}

// stopLocked invalidates the current run.
func (s *Session) stopLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.finishLocked()
}

func (s *Session) finishLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Session) failLocked(err error, fallbackKey string) Snapshot {
	s.phase = PhaseFailed
	s.err = err
	s.message = remote.Message(err, s.deps.Printer.Sprintf(fallbackKey))
	s.finishLocked()
	s.logger.Warn(fallbackKey, zap.Error(err))
	return s.snapshotLocked()
}

func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Session) publish(snap Snapshot) {
	if s.deps.Bus == nil {
		return
	}
	_ = s.deps.Bus.Publish(context.Background(), event.Event{
		Topic:   TopicUpdated,
		Source:  "diagnostics",
		Payload: snap,
	})
}

func clampCount(n int) int {
	if n < MinPingCount {
		return MinPingCount
	}
	if n > MaxPingCount {
		return MaxPingCount
	}
	return n
}
