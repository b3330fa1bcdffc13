package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HerbHall/netcanvas/internal/event"
)

// redrawPrefixes are the topics whose events change what the canvas shows.
var redrawPrefixes = []string{"topology.", "notify.", "diagnostics."}

// changedMsg asks the model to redraw after a state change it did not
// cause itself, such as a notification expiring.
type changedMsg struct {
	topic string
}

// Bus is the part of the event bus the forwarder listens on.
type Bus interface {
	SubscribeAll(h event.Handler) func()
}

// Forward delivers a changedMsg through send whenever bus carries an event
// that affects the canvas. Bursts collapse into one pending message, and
// handlers never block on send: they may run inside the program's own
// Update. The returned function unsubscribes and stops the delivery
// goroutine.
func Forward(bus Bus, send func(tea.Msg)) (stop func()) {
	pending := make(chan string, 1)
	done := make(chan struct{})
	unsub := bus.SubscribeAll(func(_ context.Context, e event.Event) {
		if !redraws(e.Topic) {
			return
		}
		select {
		case pending <- e.Topic:
		default:
		}
	})
	go func() {
		for {
			select {
			case <-done:
				return
			case topic := <-pending:
				send(changedMsg{topic: topic})
			}
		}
	}()
	return func() {
		unsub()
		close(done)
	}
}

func redraws(topic string) bool {
	for _, p := range redrawPrefixes {
		if strings.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}
