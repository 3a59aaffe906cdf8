package spatial

import (
	"slices"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
)

// Node is one volume of the tree. A node is either a leaf holding entities
// or an interior router with exactly Fanout() children; interior nodes only
// hold entities whose footprint straddles their split planes.
//
// Children are owned by their parent. The parent pointer and connections
// never own anything; a node destroyed by a merge is marked disposed and
// must not be used after the frame that destroyed it.
type Node[E Entity, B geom.Bounds[B]] struct {
	tree        *Tree[E, B]
	bounds      B
	threshold   int
	depth       int
	entities    []E
	children    []*Node[E, B]
	parent      *Node[E, B]
	connections []*Node[E, B]
	local       geom.Mat4
	disposed    bool
}

func newNode[E Entity, B geom.Bounds[B]](t *Tree[E, B], parent *Node[E, B], bounds B, threshold int) *Node[E, B] {
	n := &Node[E, B]{
		tree:      t,
		bounds:    bounds,
		threshold: threshold,
		parent:    parent,
		local:     geom.Identity(),
	}
	if parent != nil {
		n.depth = parent.depth + 1
	}
	return n
}

func (n *Node[E, B]) Bounds() B           { return n.bounds }
func (n *Node[E, B]) Parent() *Node[E, B] { return n.parent }
func (n *Node[E, B]) Depth() int          { return n.depth }
func (n *Node[E, B]) Threshold() int      { return n.threshold }
func (n *Node[E, B]) IsLeaf() bool        { return len(n.children) == 0 }
func (n *Node[E, B]) Disposed() bool      { return n.disposed }

// Children returns the owned children. The slice must not be modified.
func (n *Node[E, B]) Children() []*Node[E, B] { return n.children }

// Entities returns the entities held directly by n. The slice must not be
// modified.
func (n *Node[E, B]) Entities() []E { return n.entities }

// Root walks parent pointers to the top of the tree.
func (n *Node[E, B]) Root() *Node[E, B] {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// --- transform ---

func (n *Node[E, B]) LocalTransform() geom.Mat4     { return n.local }
func (n *Node[E, B]) SetLocalTransform(m geom.Mat4) { n.local = m }

// Up and Local satisfy geom.Link.
func (n *Node[E, B]) Up() *Node[E, B]  { return n.parent }
func (n *Node[E, B]) Local() geom.Mat4 { return n.local }

// AbsoluteTransform composes every ancestor's local transform, root first.
func (n *Node[E, B]) AbsoluteTransform() geom.Mat4 { return geom.Compose(n) }

// --- connections ---

// ConnectTo adds a one-way, non-owning link from n to other. Linking a node
// to itself or linking twice is a no-op.
func (n *Node[E, B]) ConnectTo(other *Node[E, B]) {
	if other == nil || other == n || slices.Contains(n.connections, other) {
		return
	}
	n.connections = append(n.connections, other)
}

// DisconnectFrom severs the link to other without touching other.
func (n *Node[E, B]) DisconnectFrom(other *Node[E, B]) bool {
	i := slices.Index(n.connections, other)
	if i < 0 {
		return false
	}
	n.connections = slices.Delete(n.connections, i, i+1)
	return true
}

// Connections returns the live link targets, dropping disposed ones.
func (n *Node[E, B]) Connections() []*Node[E, B] {
	n.connections = slices.DeleteFunc(n.connections, func(c *Node[E, B]) bool { return c.disposed })
	return slices.Clone(n.connections)
}

// --- structure ---

// subdivide turns a leaf into an interior node and pushes its entities into
// the new children. Straddling entities stay behind.
func (n *Node[E, B]) subdivide() {
	if !n.IsLeaf() {
		panic("spatial: subdivide called on an interior node")
	}
	t := n.tree
	parts := n.bounds.Split()
	n.children = make([]*Node[E, B], len(parts))
	for i, b := range parts {
		n.children[i] = newNode(t, n, b, n.threshold)
	}
	held := n.entities
	n.entities = nil
	for _, e := range held {
		if i := t.childFor(n, e); i >= 0 {
			t.insertAt(n.children[i], e)
			continue
		}
		n.entities = append(n.entities, e)
	}
	if t.hooks.Subdivided != nil {
		t.hooks.Subdivided(n.depth)
	}
}

// mergeable reports whether n's children are all leaves and everything in
// the subtree fits back into n.
func (n *Node[E, B]) mergeable() bool {
	if n.IsLeaf() {
		return false
	}
	total := len(n.entities)
	for _, c := range n.children {
		if !c.IsLeaf() {
			return false
		}
		total += len(c.entities)
	}
	return total <= n.threshold
}

// merge folds the children's entities and connections into n and disposes
// the children.
func (n *Node[E, B]) merge() {
	t := n.tree
	for _, c := range n.children {
		for _, e := range c.entities {
			n.entities = append(n.entities, e)
			t.index[e.EntityID()] = n
		}
		for _, target := range c.connections {
			if !target.disposed {
				n.ConnectTo(target)
			}
		}
		c.dispose()
	}
	n.children = nil
	if t.hooks.Merged != nil {
		t.hooks.Merged(n.depth)
	}
}

func (n *Node[E, B]) dispose() {
	n.disposed = true
	n.entities = nil
	n.connections = nil
	n.children = nil
	n.parent = nil
}

func (n *Node[E, B]) erase(id ecs.EntityID) {
	i := slices.IndexFunc(n.entities, func(e E) bool { return e.EntityID() == id })
	if i < 0 {
		return
	}
	last := len(n.entities) - 1
	n.entities[i] = n.entities[last]
	var zero E
	n.entities[last] = zero
	n.entities = n.entities[:last]
}
