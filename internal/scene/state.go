package scene

import (
	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// ObjectState is the persistable part of a placed object.
type ObjectState struct {
	ID       ecs.EntityID
	Name     string
	Graph    string
	Parent   ecs.EntityID // zero for roots
	Local    geom.Mat4
	Extent   r3.Vec
	Velocity r3.Vec
}

// States captures every placed object in ID order. An object attached to a
// parent that is not placed yet is recorded as a root at its graph-space
// transform.
func (s *Scene[B]) States() []ObjectState {
	var out []ObjectState
	for o := range s.Objects() {
		if !o.placed {
			continue
		}
		st := ObjectState{
			ID:     o.id,
			Name:   o.name,
			Graph:  o.graph,
			Local:  o.local,
			Extent: o.extent,
		}
		switch {
		case o.parent == nil:
		case o.parent.placed:
			st.Parent = o.parent.id
		default:
			st.Local = geom.Compose(o)
		}
		if m, ok := s.motions.Get(o.id); ok {
			st.Velocity = m.velocity
		}
		out = append(out, st)
	}
	return out
}
