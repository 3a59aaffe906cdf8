package system

import "time"

// Phase orders systems within one frame.
type Phase int

const (
	PhaseFlush   Phase = iota // 0: apply deferred spawns/despawns
	PhaseEvents               // 1: deliver last frame's events
	PhaseScript               // 2: Lua frame hooks
	PhaseUpdate               // 3: motion, tweens
	PhaseRender               // 4: culling and transform composition
	PhasePersist              // 5: snapshots
)

var phaseNames = [...]string{"flush", "events", "script", "update", "render", "persist"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// System is one per-frame engine.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
