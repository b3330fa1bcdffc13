package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/netcanvas/internal/testutil"
)

func TestChannel_AutoDismiss(t *testing.T) {
	clk := testutil.NewClock()
	bus := testutil.NewMockBus()
	ch := New(clk, 3*time.Second, bus, testutil.Logger())

	ch.Success("Device deleted successfully")
	n, ok := ch.Current()
	require.True(t, ok)
	assert.Equal(t, KindSuccess, n.Kind)
	assert.Equal(t, "Device deleted successfully", n.Message)

	clk.Advance(2999 * time.Millisecond)
	_, ok = ch.Current()
	assert.True(t, ok, "still visible before ttl")

	clk.Advance(time.Millisecond)
	_, ok = ch.Current()
	assert.False(t, ok, "dismissed at ttl")
	assert.Equal(t, []string{TopicShown, TopicDismissed}, bus.Topics())
}

func TestChannel_ReplaceRestartsTimer(t *testing.T) {
	clk := testutil.NewClock()
	ch := New(clk, 3*time.Second, nil, testutil.Logger())

	ch.Success("A")
	clk.Advance(time.Second)
	ch.Error("B")

	n, ok := ch.Current()
	require.True(t, ok)
	assert.Equal(t, "B", n.Message)
	assert.Equal(t, KindError, n.Kind)

	clk.Advance(2500 * time.Millisecond)
	n, ok = ch.Current()
	require.True(t, ok, "B visible 2.5s after it was shown")
	assert.Equal(t, "B", n.Message)

	clk.Advance(500 * time.Millisecond)
	_, ok = ch.Current()
	assert.False(t, ok, "B gone 3s after it was shown")
	assert.Zero(t, clk.Pending(), "no stray timers")
}

func TestChannel_Dismiss(t *testing.T) {
	clk := testutil.NewClock()
	bus := testutil.NewMockBus()
	ch := New(clk, time.Second, bus, testutil.Logger())

	ch.Error("boom")
	ch.Dismiss()
	_, ok := ch.Current()
	assert.False(t, ok)

	ch.Dismiss()
	assert.Equal(t, 1, bus.Count(TopicDismissed), "second dismiss is a no-op")
	assert.Zero(t, clk.Pending())
}

func TestChannel_DefaultTTL(t *testing.T) {
	clk := testutil.NewClock()
	ch := New(clk, 0, nil, testutil.Logger())
	ch.Success("x")

	clk.Advance(DefaultTTL - time.Nanosecond)
	_, ok := ch.Current()
	assert.True(t, ok)
	clk.Advance(time.Nanosecond)
	_, ok = ch.Current()
	assert.False(t, ok)
}
