package data

import (
	"fmt"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/scene"
	"gonum.org/v1/gonum/spatial/r3"
)

// Build declares f's graphs and portals in s and queues f's objects. The
// objects become visible after the next Flush.
func Build[B geom.Bounds[B]](s *scene.Scene[B], f *SceneFile) error {
	for _, g := range f.Graphs {
		b, err := geom.TryBounds(s.Factory(), g.Center.R3(), g.Half.R3())
		if err != nil {
			return fmt.Errorf("graph %q: %w", g.Name, err)
		}
		graph, err := s.AddGraph(g.Name, b)
		if err != nil {
			return err
		}
		if !g.Origin.IsZero() {
			graph.SetTransform(geom.TranslateVec(g.Origin.R3()))
		}
	}
	for _, p := range f.Portals {
		if err := s.Link(p.From, p.To, p.Offset.R3()); err != nil {
			return err
		}
	}
	return SpawnObjects(s, f.Objects)
}

// SpawnObjects queues objects and wires their parents and velocities.
func SpawnObjects[B geom.Bounds[B]](s *scene.Scene[B], objects []ObjectEntry) error {
	ids := make([]ecs.EntityID, len(objects))
	byName := make(map[string]ecs.EntityID, len(objects))
	for i, o := range objects {
		id, err := s.Spawn(o.Graph, o.Name, o.Position.R3(), o.Extent.R3())
		if err != nil {
			return err
		}
		ids[i] = id
		if o.Name != "" {
			byName[o.Name] = id
		}
		if !o.Velocity.IsZero() {
			if err := s.SetVelocity(id, o.Velocity.R3()); err != nil {
				return err
			}
		}
	}
	for i, o := range objects {
		if o.Parent == "" {
			continue
		}
		parent, ok := byName[o.Parent]
		if !ok {
			return fmt.Errorf("object %q: unknown parent %q", o.Name, o.Parent)
		}
		if err := s.Attach(ids[i], parent); err != nil {
			return err
		}
	}
	return nil
}

// CameraRegion turns the camera entry into a query region.
func CameraRegion[B geom.Bounds[B]](factory geom.Factory[B], c CameraEntry) (B, error) {
	b, err := geom.TryBounds(factory, c.Center.R3(), c.Half.R3())
	if err != nil {
		return b, fmt.Errorf("camera: %w", err)
	}
	return b, nil
}

// Describe captures the graphs and portals of s. Objects are filled in from
// states so that a persisted snapshot can be exported without a live scene.
func Describe[B geom.Bounds[B]](s *scene.Scene[B], name string, states []scene.ObjectState) *SceneFile {
	f := &SceneFile{Name: name}
	for _, g := range s.Graphs() {
		lo, hi := g.Bounds().Min(), g.Bounds().Max()
		f.Graphs = append(f.Graphs, GraphEntry{
			Name:   g.Name(),
			Center: FromR3(r3.Scale(0.5, r3.Add(lo, hi))),
			Half:   FromR3(r3.Scale(0.5, r3.Sub(hi, lo))),
			Origin: FromR3(g.Transform().Origin()),
		})
	}
	for _, p := range s.Portals() {
		f.Portals = append(f.Portals, PortalEntry{From: p.From, To: p.To, Offset: FromR3(p.Offset)})
	}
	f.Objects = ObjectsFromStates(states)
	return f
}

// ObjectsFromStates converts captured states into object entries. Only the
// translation of each local transform survives. Unnamed objects that others
// are attached to get a generated name.
func ObjectsFromStates(states []scene.ObjectState) []ObjectEntry {
	names := make(map[ecs.EntityID]string, len(states))
	for _, st := range states {
		names[st.ID] = st.Name
	}
	for _, st := range states {
		if n, ok := names[st.Parent]; ok && n == "" {
			names[st.Parent] = fmt.Sprintf("object-%d", st.Parent.Index())
		}
	}
	out := make([]ObjectEntry, 0, len(states))
	for _, st := range states {
		e := ObjectEntry{
			Name:     names[st.ID],
			Graph:    st.Graph,
			Position: FromR3(st.Local.Origin()),
			Extent:   FromR3(st.Extent),
			Velocity: FromR3(st.Velocity),
		}
		if st.Parent != 0 {
			if _, ok := names[st.Parent]; ok {
				e.Parent = names[st.Parent]
			}
		}
		out = append(out, e)
	}
	return out
}
