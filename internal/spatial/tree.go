// Package spatial implements the adaptive octree/quadtree that indexes scene
// entities. A single generic tree serves both dimensionalities; the bounds
// type decides the fan-out (8 for geom.Box, 4 for geom.Rect).
//
// Trees are driven from the frame loop goroutine only and take no locks.
package spatial

import (
	"errors"
	"fmt"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrOutOfBounds    = errors.New("position outside tree bounds")
	ErrAlreadyTracked = errors.New("entity already tracked")
	ErrNotTracked     = errors.New("entity not tracked")
)

// DefaultMaxDepth bounds subdivision when Options.MaxDepth is zero.
const DefaultMaxDepth = 16

// Entity is the handle a tree stores. Position must be stable between
// calls to Insert/Update for the same entity.
type Entity interface {
	EntityID() ecs.EntityID
	Position() r3.Vec
}

// Hooks receive structural events. Either field may be nil.
type Hooks struct {
	Subdivided func(depth int)
	Merged     func(depth int)
}

type Options[E Entity, B geom.Bounds[B]] struct {
	// Threshold is the number of entities a leaf holds before it subdivides.
	Threshold int
	// MaxDepth stops subdivision; leaves at this depth may exceed Threshold.
	MaxDepth int
	// Footprint optionally gives an entity a volume. Entities without one
	// are treated as points.
	Footprint func(E) (B, bool)
	Hooks     Hooks
}

// Tree owns a root node and an entity→node index.
type Tree[E Entity, B geom.Bounds[B]] struct {
	root      *Node[E, B]
	index     map[ecs.EntityID]*Node[E, B]
	maxDepth  int
	footprint func(E) (B, bool)
	hooks     Hooks
	walking   int
}

// NewTree creates a tree whose root is a leaf covering bounds.
// It panics when opts.Threshold is below 1.
func NewTree[E Entity, B geom.Bounds[B]](bounds B, opts Options[E, B]) *Tree[E, B] {
	if opts.Threshold < 1 {
		panic(fmt.Sprintf("spatial: subdivide threshold must be at least 1, got %d", opts.Threshold))
	}
	t := &Tree[E, B]{
		index:     make(map[ecs.EntityID]*Node[E, B]),
		maxDepth:  opts.MaxDepth,
		footprint: opts.Footprint,
		hooks:     opts.Hooks,
	}
	if t.maxDepth <= 0 {
		t.maxDepth = DefaultMaxDepth
	}
	t.root = newNode(t, nil, bounds, opts.Threshold)
	return t
}

func (t *Tree[E, B]) Root() *Node[E, B] { return t.root }
func (t *Tree[E, B]) Bounds() B         { return t.root.bounds }

// Len returns the number of tracked entities.
func (t *Tree[E, B]) Len() int { return len(t.index) }

// Owner returns the node currently holding id.
func (t *Tree[E, B]) Owner(id ecs.EntityID) (*Node[E, B], bool) {
	n, ok := t.index[id]
	return n, ok
}

func (t *Tree[E, B]) Has(id ecs.EntityID) bool {
	_, ok := t.index[id]
	return ok
}

// Insert stores e in the deepest node that can hold it. It fails with
// ErrOutOfBounds when e's position is outside the root, and with
// ErrAlreadyTracked when e is already in the tree.
func (t *Tree[E, B]) Insert(e E) error {
	t.mustNotWalk()
	id := e.EntityID()
	if _, ok := t.index[id]; ok {
		return fmt.Errorf("insert %v: %w", id, ErrAlreadyTracked)
	}
	if p := e.Position(); !t.root.bounds.Contains(p) {
		return fmt.Errorf("insert %v at %v: %w", id, p, ErrOutOfBounds)
	}
	t.insertAt(t.root, e)
	return nil
}

// Remove drops id from the tree and merges emptied subtrees back into their
// parent. It reports false when id is not tracked.
func (t *Tree[E, B]) Remove(id ecs.EntityID) bool {
	t.mustNotWalk()
	n, ok := t.index[id]
	if !ok {
		return false
	}
	n.erase(id)
	delete(t.index, id)
	t.collapse(n)
	return true
}

// Update re-homes e after its position changed. The entity is lifted to the
// nearest ancestor that still contains it and pushed down from there. A
// position outside the root leaves the entity at its previous node and
// returns ErrOutOfBounds.
func (t *Tree[E, B]) Update(e E) error {
	t.mustNotWalk()
	id := e.EntityID()
	n, ok := t.index[id]
	if !ok {
		return fmt.Errorf("update %v: %w", id, ErrNotTracked)
	}
	p := e.Position()
	if !t.root.bounds.Contains(p) {
		return fmt.Errorf("update %v to %v: %w", id, p, ErrOutOfBounds)
	}
	if t.settled(n, e) {
		return nil
	}
	n.erase(id)
	delete(t.index, id)
	at := t.collapse(n)
	for at.parent != nil && !t.fits(at, e) {
		at = at.parent
	}
	t.insertAt(at, e)
	return nil
}

// insertAt descends from n and appends e to the first node that is a leaf or
// cannot place e in a single child.
func (t *Tree[E, B]) insertAt(n *Node[E, B], e E) {
	for !n.IsLeaf() {
		i := t.childFor(n, e)
		if i < 0 {
			break
		}
		n = n.children[i]
	}
	n.entities = append(n.entities, e)
	t.index[e.EntityID()] = n
	if n.IsLeaf() && len(n.entities) > n.threshold && n.depth < t.maxDepth {
		n.subdivide()
	}
}

// collapse merges upward starting at n (when it is interior) or its parent,
// and returns the highest node that absorbed entities, or n when none did.
func (t *Tree[E, B]) collapse(n *Node[E, B]) *Node[E, B] {
	at := n
	cand := n
	if n.IsLeaf() {
		cand = n.parent
	}
	for cand != nil && cand.mergeable() {
		cand.merge()
		at = cand
		cand = cand.parent
	}
	return at
}

// childFor returns the index of the child of interior node n that fully
// holds e, or -1 when e straddles the split planes.
func (t *Tree[E, B]) childFor(n *Node[E, B], e E) int {
	i := n.bounds.Octant(e.Position())
	if fp, ok := t.footprintOf(e); ok && !n.children[i].bounds.Encloses(fp) {
		return -1
	}
	return i
}

func (t *Tree[E, B]) fits(n *Node[E, B], e E) bool {
	if fp, ok := t.footprintOf(e); ok {
		return n.bounds.Encloses(fp)
	}
	return n.bounds.Contains(e.Position())
}

// settled reports whether e may stay where it is.
func (t *Tree[E, B]) settled(n *Node[E, B], e E) bool {
	if !t.fits(n, e) {
		return false
	}
	return n.IsLeaf() || t.childFor(n, e) < 0
}

// hit is the query predicate: footprint overlap, or point containment.
func (t *Tree[E, B]) hit(e E, region B) bool {
	if fp, ok := t.footprintOf(e); ok {
		return region.Intersects(fp)
	}
	return region.Contains(e.Position())
}

func (t *Tree[E, B]) footprintOf(e E) (B, bool) {
	if t.footprint == nil {
		var zero B
		return zero, false
	}
	return t.footprint(e)
}

func (t *Tree[E, B]) mustNotWalk() {
	if t.walking > 0 {
		panic("spatial: tree mutated during traversal")
	}
}
