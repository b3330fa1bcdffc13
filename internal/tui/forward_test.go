package tui

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/netcanvas/internal/event"
	"github.com/HerbHall/netcanvas/internal/notify"
	"github.com/HerbHall/netcanvas/internal/testutil"
	"github.com/HerbHall/netcanvas/internal/topology"
)

func publish(bus *event.Bus, topic string) {
	_ = bus.Publish(context.Background(), event.Event{Topic: topic})
}

func TestForward_RedrawsOnCanvasTopics(t *testing.T) {
	bus := event.NewBus(testutil.Logger())
	got := make(chan tea.Msg, 8)
	stop := Forward(bus, func(msg tea.Msg) { got <- msg })
	defer stop()

	publish(bus, "auth.redirect")
	publish(bus, notify.TopicDismissed)

	select {
	case msg := <-got:
		assert.Equal(t, changedMsg{topic: notify.TopicDismissed}, msg)
	case <-time.After(testutil.WaitTimeout):
		t.Fatal("no redraw after a dismissed notification")
	}

	publish(bus, topology.TopicLoaded)
	select {
	case msg := <-got:
		assert.Equal(t, changedMsg{topic: topology.TopicLoaded}, msg)
	case <-time.After(testutil.WaitTimeout):
		t.Fatal("no redraw after a topology load")
	}
}

func TestForward_NeverBlocksPublisher(t *testing.T) {
	bus := event.NewBus(testutil.Logger())
	release := make(chan struct{})
	var sent atomic.Int32
	stop := Forward(bus, func(tea.Msg) {
		sent.Add(1)
		<-release
	})

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			publish(bus, topology.TopicDeviceMoved)
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(testutil.WaitTimeout):
		t.Fatal("publisher blocked on a busy program")
	}
	close(release)
	stop()
	assert.LessOrEqual(t, sent.Load(), int32(2), "a burst collapses into one pending redraw")
}

func TestForward_StopUnsubscribes(t *testing.T) {
	bus := event.NewBus(testutil.Logger())
	got := make(chan tea.Msg, 1)
	stop := Forward(bus, func(msg tea.Msg) { got <- msg })

	stop()
	publish(bus, topology.TopicDeviceAdded)

	assert.Never(t, func() bool { return len(got) > 0 }, 50*time.Millisecond, testutil.PollInterval)
}

func TestChangedMsgRedraws(t *testing.T) {
	m, _, _ := newTestModel(t)

	next, cmd := m.Update(changedMsg{topic: topology.TopicDeviceAdded})

	assert.Nil(t, cmd)
	require.IsType(t, Model{}, next)
	assert.Equal(t, m.View(), next.(Model).View())
}
