package scene

import (
	"slices"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Object is a scene entity. Its local transform is relative to the object it
// is attached to, or to its graph's space when it has no parent.
//
// Attachment is non-owning in both directions: despawning a parent despawns
// its descendants through the scene, never through the pointers.
type Object struct {
	id       ecs.EntityID
	name     string
	graph    string
	local    geom.Mat4
	extent   r3.Vec
	parent   *Object
	children []*Object
	placed   bool
}

func (o *Object) EntityID() ecs.EntityID { return o.id }
func (o *Object) Name() string           { return o.name }
func (o *Object) Graph() string          { return o.graph }

// Extent returns the half-extent of the footprint; zero means a point.
func (o *Object) Extent() r3.Vec { return o.extent }

// Placed reports whether the object has been flushed into its graph's tree.
func (o *Object) Placed() bool { return o.placed }

func (o *Object) Parent() *Object { return o.parent }

// Children returns the attached objects. The slice must not be modified.
func (o *Object) Children() []*Object { return o.children }

func (o *Object) LocalTransform() geom.Mat4 { return o.local }

// LocalPosition is the translation part of the local transform.
func (o *Object) LocalPosition() r3.Vec { return o.local.Origin() }

// Up and Local satisfy geom.Link.
func (o *Object) Up() *Object      { return o.parent }
func (o *Object) Local() geom.Mat4 { return o.local }

// Position is the object's origin in graph space.
func (o *Object) Position() r3.Vec { return geom.Compose(o).Origin() }

func (o *Object) hasExtent() bool { return o.extent != (r3.Vec{}) }

// descendsFrom reports whether anc is o or one of o's ancestors.
func (o *Object) descendsFrom(anc *Object) bool {
	for p := o; p != nil; p = p.parent {
		if p == anc {
			return true
		}
	}
	return false
}

func (o *Object) detach() {
	if o.parent == nil {
		return
	}
	p := o.parent
	if i := slices.Index(p.children, o); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	o.parent = nil
}

// subtree appends o and every attached descendant, depth first.
func (o *Object) subtree(dst []*Object) []*Object {
	dst = append(dst, o)
	for _, c := range o.children {
		dst = c.subtree(dst)
	}
	return dst
}
