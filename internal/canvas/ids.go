package canvas

import (
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/HerbHall/netcanvas/internal/clock"
	"github.com/HerbHall/netcanvas/pkg/models"
)

// widenAfter is the number of colliding draws after which the random part
// of a device id is drawn from a larger range.
const widenAfter = 64

// IDGenerator issues device names of the form <prefix><ms%100><rand%100>.
// Names are unique for the lifetime of the generator and never collide
// with a device for which taken reports true.
type IDGenerator struct {
	clock clock.Clock
	taken func(id string) bool
	intN  func(n int) int

	mu     sync.Mutex
	issued map[string]struct{}
}

// NewIDGenerator returns a generator. taken may be nil.
func NewIDGenerator(c clock.Clock, taken func(id string) bool) *IDGenerator {
	return &IDGenerator{
		clock:  c,
		taken:  taken,
		intN:   rand.IntN,
		issued: make(map[string]struct{}),
	}
}

// Next returns a fresh name for a device of kind.
func (g *IDGenerator) Next(kind models.DeviceKind) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	prefix := kind.Prefix()
	for attempt := 0; ; attempt++ {
		span := 100
		if attempt >= widenAfter {
			span = 10000
		}
		ms := g.clock.Now().UnixMilli() % 100
		id := prefix + strconv.FormatInt(ms, 10) + strconv.Itoa(g.intN(span))
		if _, dup := g.issued[id]; dup {
			continue
		}
		if g.taken != nil && g.taken(id) {
			continue
		}
		g.issued[id] = struct{}{}
		return id
	}
}
