// Package notify implements the single-slot transient notification shown
// over the canvas.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netcanvas/internal/clock"
	"github.com/HerbHall/netcanvas/internal/event"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 3 * time.Second

// Event topics published by the channel.
const (
	TopicShown     = "notify.shown"
	TopicDismissed = "notify.dismissed"
)

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is the message currently on screen.
type Notification struct {
	Message string
	Kind    Kind
	ShownAt time.Time
}

// Notifier is what components use to report outcomes.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Compile-time interface guard.
var _ Notifier = (*Channel)(nil)

// Channel holds at most one visible notification. A new message replaces
// the current one and restarts the dismiss timer.
type Channel struct {
	mu      sync.Mutex
	clock   clock.Clock
	ttl     time.Duration
	current *Notification
	timer   clock.Timer
	gen     uint64
	bus     event.Publisher
	logger  *zap.Logger
}

// New creates an empty channel. bus may be nil.
func New(c clock.Clock, ttl time.Duration, bus event.Publisher, logger *zap.Logger) *Channel {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Channel{clock: c, ttl: ttl, bus: bus, logger: logger.Named("notify")}
}

func (ch *Channel) Success(msg string) { ch.Show(KindSuccess, msg) }
func (ch *Channel) Error(msg string)   { ch.Show(KindError, msg) }

// Show displays msg, replacing whatever is visible.
func (ch *Channel) Show(kind Kind, msg string) {
	ch.mu.Lock()
	if ch.timer != nil {
		ch.timer.Stop()
	}
	ch.gen++
	gen := ch.gen
	n := Notification{Message: msg, Kind: kind, ShownAt: ch.clock.Now()}
	ch.current = &n
	ch.timer = ch.clock.AfterFunc(ch.ttl, func() { ch.expire(gen) })
	ch.mu.Unlock()

	if kind == KindError {
		ch.logger.Warn("notification", zap.String("message", msg))
	} else {
		ch.logger.Info("notification", zap.String("message", msg))
	}
	ch.publish(TopicShown, n)
}

// Current returns the visible notification, if any.
func (ch *Channel) Current() (Notification, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.current == nil {
		return Notification{}, false
	}
	return *ch.current, true
}

// Dismiss hides the visible notification immediately.
func (ch *Channel) Dismiss() {
	ch.mu.Lock()
	ch.gen++
	had := ch.clearLocked()
	ch.mu.Unlock()
	if had {
		ch.publish(TopicDismissed, nil)
	}
}

// Close stops the pending dismiss timer. The channel must not be used
// afterwards.
func (ch *Channel) Close() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.gen++
	ch.clearLocked()
}

func (ch *Channel) expire(gen uint64) {
	ch.mu.Lock()
	if gen != ch.gen {
		ch.mu.Unlock()
		return
	}
	had := ch.clearLocked()
	ch.mu.Unlock()
	if had {
		ch.publish(TopicDismissed, nil)
	}
}

func (ch *Channel) clearLocked() bool {
	if ch.timer != nil {
		ch.timer.Stop()
		ch.timer = nil
	}
	had := ch.current != nil
	ch.current = nil
	return had
}

func (ch *Channel) publish(topic string, payload any) {
	if ch.bus == nil {
		return
	}
	_ = ch.bus.Publish(context.Background(), event.Event{
		Topic:   topic,
		Source:  "notify",
		Payload: payload,
	})
}
