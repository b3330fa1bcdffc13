package testutil

import (
	"time"

	"github.com/HerbHall/netcanvas/internal/clock"
)

// NewClock returns a fake clock initialized to the given time, or to
// 2025-01-01 00:00:00 UTC when none is provided.
func NewClock(now ...time.Time) *clock.Fake {
	return clock.NewFake(now...)
}
