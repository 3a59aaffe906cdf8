package system

import (
	"time"

	"github.com/l1jgo/scenegraph/internal/core/event"
	coresys "github.com/l1jgo/scenegraph/internal/core/system"
)

// EventSystem swaps the bus and delivers everything emitted since the last
// swap, including this frame's flush events. Phase 1 (Events).
type EventSystem struct {
	bus       *event.Bus
	delivered int
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.Swap()
	s.delivered += s.bus.Dispatch()
}

// Delivered returns the number of events delivered so far.
func (s *EventSystem) Delivered() int { return s.delivered }
