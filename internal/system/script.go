package system

import (
	"time"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/core/event"
	coresys "github.com/l1jgo/scenegraph/internal/core/system"
)

// Hooks is the script surface driven by the frame loop.
type Hooks interface {
	OnFrame(frame uint64, dt time.Duration)
	OnOutOfBounds(id ecs.EntityID, graph string)
}

// FrameCounter reports the current frame number.
type FrameCounter interface {
	Frame() uint64
}

// ScriptSystem runs the per-frame script hook and forwards out-of-bounds
// events to scripts. Phase 2 (Script).
type ScriptSystem struct {
	hooks  Hooks
	frames FrameCounter
}

func NewScriptSystem(hooks Hooks, frames FrameCounter, bus *event.Bus) *ScriptSystem {
	event.Subscribe(bus, func(ev event.ObjectOutOfBounds) {
		hooks.OnOutOfBounds(ev.ID, ev.Graph)
	})
	return &ScriptSystem{hooks: hooks, frames: frames}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhaseScript }

func (s *ScriptSystem) Update(dt time.Duration) {
	s.hooks.OnFrame(s.frames.Frame(), dt)
}
