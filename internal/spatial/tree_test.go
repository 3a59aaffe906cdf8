package spatial

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type point struct {
	id  ecs.EntityID
	pos r3.Vec
}

func (p *point) EntityID() ecs.EntityID { return p.id }
func (p *point) Position() r3.Vec       { return p.pos }

func pt(id uint32, x, y, z float64) *point {
	return &point{id: ecs.NewEntityID(id, 0), pos: r3.Vec{X: x, Y: y, Z: z}}
}

func newOctree(threshold int) *Tree[*point, geom.Box] {
	return NewTree(geom.NewCube(r3.Vec{}, 10), Options[*point, geom.Box]{Threshold: threshold})
}

func newQuadtree(threshold int) *Tree[*point, geom.Rect] {
	return NewTree(geom.NewSquare(0, 0, 10), Options[*point, geom.Rect]{Threshold: threshold})
}

func subtreeCount[E Entity, B geom.Bounds[B]](n *Node[E, B]) int {
	c := len(n.entities)
	for _, k := range n.children {
		c += subtreeCount(k)
	}
	return c
}

// shape is a comparable snapshot of a tree: bounds, held ids and children.
type shape struct {
	Bounds   string
	IDs      []uint64
	Children []shape
}

func shapeOf[E Entity, B geom.Bounds[B]](n *Node[E, B]) shape {
	s := shape{Bounds: fmt.Sprint(n.bounds)}
	for _, e := range n.entities {
		s.IDs = append(s.IDs, uint64(e.EntityID()))
	}
	slices.Sort(s.IDs)
	for _, c := range n.children {
		s.Children = append(s.Children, shapeOf(c))
	}
	return s
}

// checkInvariants verifies exclusivity, partition, parent links and the index.
func checkInvariants[E Entity, B geom.Bounds[B]](t *testing.T, tr *Tree[E, B], points bool) {
	t.Helper()
	owned := 0
	tr.Walk(func(n *Node[E, B]) bool {
		require.False(t, n.Disposed())
		if n == tr.root {
			require.Nil(t, n.parent)
		}
		if n.IsLeaf() {
			if n.depth < tr.maxDepth {
				require.LessOrEqual(t, len(n.entities), n.threshold, "leaf over threshold at depth %d", n.depth)
			}
		} else {
			require.Len(t, n.children, n.bounds.Fanout())
			require.Equal(t, n.bounds.Split(), collectBounds(n.children))
			if points {
				require.Empty(t, n.entities, "interior node holds point entities")
			}
			for _, c := range n.children {
				require.Same(t, n, c.parent)
			}
		}
		for _, e := range n.entities {
			got, ok := tr.index[e.EntityID()]
			require.True(t, ok)
			require.Same(t, n, got)
		}
		owned += len(n.entities)
		return true
	})
	require.Equal(t, tr.Len(), owned, "every tracked entity is held exactly once")
}

func collectBounds[E Entity, B geom.Bounds[B]](nodes []*Node[E, B]) []B {
	out := make([]B, len(nodes))
	for i, n := range nodes {
		out[i] = n.bounds
	}
	return out
}

func TestSubdivisionThreshold(t *testing.T) {
	tr := newOctree(4)
	for i := 1; i <= 5; i++ {
		require.NoError(t, tr.Insert(pt(uint32(i), float64(i), 1+float64(i)/2, 2)))
	}

	root := tr.Root()
	require.Len(t, root.Children(), 8)
	require.Empty(t, root.Entities())
	sum := 0
	for _, c := range root.Children() {
		sum += subtreeCount(c)
	}
	require.Equal(t, 5, sum)
	checkInvariants(t, tr, true)
}

func TestQuadtreeScenario(t *testing.T) {
	tr := newQuadtree(1)
	e1 := pt(1, 0, 0, 0)
	e2 := pt(2, 5, 5, 0)
	require.NoError(t, tr.Insert(e1))
	require.True(t, tr.Root().IsLeaf())
	require.NoError(t, tr.Insert(e2))

	kids := tr.Root().Children()
	require.Len(t, kids, 4)
	for _, k := range kids {
		require.Equal(t, r3.Vec{X: 5, Y: 5}, k.Bounds().Half)
	}
	require.Equal(t, []*point{e1}, kids[geom.SW].Entities())
	require.Equal(t, []*point{e2}, kids[geom.NE].Entities())
	checkInvariants(t, tr, true)
}

func TestMergeBack(t *testing.T) {
	var subdivided, merged int
	tr := NewTree(geom.NewCube(r3.Vec{}, 10), Options[*point, geom.Box]{
		Threshold: 4,
		Hooks: Hooks{
			Subdivided: func(int) { subdivided++ },
			Merged:     func(int) { merged++ },
		},
	})
	// one entity per octant keeps every child a leaf
	corners := []r3.Vec{
		{X: -5, Y: -5, Z: -5}, {X: 5, Y: -5, Z: -5}, {X: -5, Y: 5, Z: -5},
		{X: 5, Y: 5, Z: -5}, {X: -5, Y: -5, Z: 5},
	}
	for i, c := range corners {
		require.NoError(t, tr.Insert(pt(uint32(i+1), c.X, c.Y, c.Z)))
	}
	require.False(t, tr.Root().IsLeaf())
	require.Equal(t, 1, subdivided)

	require.True(t, tr.Remove(ecs.NewEntityID(5, 0)))
	require.True(t, tr.Root().IsLeaf())
	require.Len(t, tr.Root().Entities(), 4)
	require.Equal(t, 1, merged)
	for i := 1; i <= 4; i++ {
		owner, ok := tr.Owner(ecs.NewEntityID(uint32(i), 0))
		require.True(t, ok)
		require.Same(t, tr.Root(), owner)
	}
	checkInvariants(t, tr, true)
}

func TestMergePropagatesUpward(t *testing.T) {
	tr := newQuadtree(1)
	require.NoError(t, tr.Insert(pt(1, 1, 1, 0)))
	require.NoError(t, tr.Insert(pt(2, 2, 2, 0)))
	// both land in NE, which splits again
	ne := tr.Root().Children()[geom.NE]
	require.False(t, ne.IsLeaf())

	require.True(t, tr.Remove(ecs.NewEntityID(2, 0)))
	require.True(t, tr.Root().IsLeaf())
	require.True(t, ne.Disposed())
	require.Len(t, tr.Root().Entities(), 1)
}

func TestRemoveUnknown(t *testing.T) {
	tr := newOctree(2)
	require.False(t, tr.Remove(ecs.NewEntityID(42, 0)))
	require.NoError(t, tr.Insert(pt(1, 0, 0, 0)))
	require.True(t, tr.Remove(ecs.NewEntityID(1, 0)))
	require.False(t, tr.Remove(ecs.NewEntityID(1, 0)), "second removal is a no-op")
}

func TestInsertRejects(t *testing.T) {
	tr := newOctree(2)
	err := tr.Insert(pt(1, 11, 0, 0))
	require.True(t, errors.Is(err, ErrOutOfBounds), "got %v", err)
	require.Zero(t, tr.Len())

	require.NoError(t, tr.Insert(pt(2, 10, 10, 10)), "the boundary is inside")
	err = tr.Insert(pt(2, 0, 0, 0))
	require.ErrorIs(t, err, ErrAlreadyTracked)
	require.Equal(t, 1, tr.Len())
}

func TestRoundTripRestoresShape(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	tr := newOctree(3)
	for i := 1; i <= 60; i++ {
		require.NoError(t, tr.Insert(pt(uint32(i), rng.Float64()*20-10, rng.Float64()*20-10, rng.Float64()*20-10)))
	}
	for trial := 0; trial < 40; trial++ {
		before := shapeOf(tr.Root())
		e := pt(uint32(1000+trial), rng.Float64()*20-10, rng.Float64()*20-10, rng.Float64()*20-10)
		require.NoError(t, tr.Insert(e))
		require.True(t, tr.Remove(e.id))
		if diff := cmp.Diff(before, shapeOf(tr.Root())); diff != "" {
			t.Fatalf("trial %d: shape changed (-before +after):\n%s", trial, diff)
		}
	}
}

func TestUpdate(t *testing.T) {
	tr := newQuadtree(1)
	a := pt(1, -5, -5, 0)
	b := pt(2, 5, 5, 0)
	require.NoError(t, tr.Insert(a))
	require.NoError(t, tr.Insert(b))
	sw := tr.Root().Children()[geom.SW]

	// small move inside the same leaf keeps the owner
	a.pos = r3.Vec{X: -4, Y: -6}
	require.NoError(t, tr.Update(a))
	owner, _ := tr.Owner(a.id)
	require.Same(t, sw, owner)

	// crossing into NE splits NE
	a.pos = r3.Vec{X: 6, Y: 6}
	require.NoError(t, tr.Update(a))
	owner, _ = tr.Owner(a.id)
	require.Equal(t, 2, owner.Depth())
	require.Equal(t, []*point{a}, slices.Collect(tr.QueryBounds(geom.NewSquare(6, 6, 0.5))))
	checkInvariants(t, tr, true)

	// leaving the root is reported and nothing moves
	a.pos = r3.Vec{X: 50, Y: 0}
	err := tr.Update(a)
	require.ErrorIs(t, err, ErrOutOfBounds)
	still, ok := tr.Owner(a.id)
	require.True(t, ok)
	require.Same(t, owner, still)

	require.ErrorIs(t, tr.Update(pt(9, 0, 0, 0)), ErrNotTracked)
}

func TestQueryMatchesBruteForce(t *testing.T) {
	t.Run("octree", func(t *testing.T) {
		tr := newOctree(4)
		fuzzTree(t, tr, func(c r3.Vec, h float64) geom.Box { return geom.NewCube(c, h) }, true)
	})
	t.Run("quadtree", func(t *testing.T) {
		tr := newQuadtree(2)
		fuzzTree(t, tr, func(c r3.Vec, h float64) geom.Rect { return geom.NewSquare(c.X, c.Y, h) }, false)
	})
}

func fuzzTree[B geom.Bounds[B]](t *testing.T, tr *Tree[*point, B], region func(r3.Vec, float64) B, threeD bool) {
	rng := rand.New(rand.NewPCG(1, 2))
	randPos := func() r3.Vec {
		v := r3.Vec{X: rng.Float64()*20 - 10, Y: rng.Float64()*20 - 10}
		if threeD {
			v.Z = rng.Float64()*20 - 10
		}
		return v
	}
	live := map[ecs.EntityID]*point{}
	next := uint32(1)
	for step := 0; step < 1500; step++ {
		switch op := rng.IntN(10); {
		case op < 5 || len(live) == 0:
			p := &point{id: ecs.NewEntityID(next, 0), pos: randPos()}
			next++
			require.NoError(t, tr.Insert(p))
			live[p.id] = p
		case op < 7:
			for id := range live {
				require.True(t, tr.Remove(id))
				delete(live, id)
				break
			}
		default:
			for _, p := range live {
				// mostly short hops, sometimes across the tree
				if rng.IntN(4) == 0 {
					p.pos = randPos()
				} else {
					p.pos.X = max(-10, min(10, p.pos.X+rng.Float64()-0.5))
					p.pos.Y = max(-10, min(10, p.pos.Y+rng.Float64()-0.5))
				}
				require.NoError(t, tr.Update(p))
				break
			}
		}
		if step%100 == 0 {
			checkInvariants(t, tr, true)
		}
	}
	checkInvariants(t, tr, true)
	require.Equal(t, len(live), tr.Len())

	for q := 0; q < 100; q++ {
		r := region(randPos(), 0.5+rng.Float64()*6)
		var want []ecs.EntityID
		for id, p := range live {
			if r.Contains(p.pos) {
				want = append(want, id)
			}
		}
		var got []ecs.EntityID
		for p := range tr.QueryBounds(r) {
			got = append(got, p.id)
		}
		require.ElementsMatch(t, want, got, "region %v", r)
	}
}

type crate struct {
	point
	half float64
}

func TestFootprintStraddlesStayInParent(t *testing.T) {
	tr := NewTree(geom.NewCube(r3.Vec{}, 10), Options[*crate, geom.Box]{
		Threshold: 1,
		Footprint: func(c *crate) (geom.Box, bool) {
			if c.half == 0 {
				return geom.Box{}, false
			}
			return geom.NewCube(c.pos, c.half), true
		},
	})
	big := &crate{point: point{id: ecs.NewEntityID(1, 0)}, half: 2}
	small := &crate{point: point{id: ecs.NewEntityID(2, 0), pos: r3.Vec{X: 5, Y: 5, Z: 5}}}
	other := &crate{point: point{id: ecs.NewEntityID(3, 0), pos: r3.Vec{X: -5, Y: -5, Z: -5}}}
	require.NoError(t, tr.Insert(big))
	require.NoError(t, tr.Insert(small))
	require.NoError(t, tr.Insert(other))

	root := tr.Root()
	require.False(t, root.IsLeaf())
	require.Equal(t, []*crate{big}, root.Entities(), "the straddler stays at the root")

	// the footprint reaches into the query even though the centre does not
	hits := slices.Collect(tr.QueryBounds(geom.NewCube(r3.Vec{X: 1.5, Y: 1.5, Z: 1.5}, 0.25)))
	require.Equal(t, []*crate{big}, hits)

	// once it fits an octant it moves down
	big.pos = r3.Vec{X: -5, Y: 5, Z: 5}
	require.NoError(t, tr.Update(big))
	owner, _ := tr.Owner(big.id)
	require.Equal(t, 1, owner.Depth())
	require.Empty(t, root.Entities())
}

func TestMutationDuringTraversalPanics(t *testing.T) {
	tr := newOctree(2)
	for i := 1; i <= 6; i++ {
		require.NoError(t, tr.Insert(pt(uint32(i), float64(i), 0, 0)))
	}
	require.PanicsWithValue(t, "spatial: tree mutated during traversal", func() {
		for e := range tr.QueryBounds(tr.Bounds()) {
			tr.Remove(e.id)
		}
	})
	// an abandoned iteration releases the guard
	for range tr.QueryBounds(tr.Bounds()) {
		break
	}
	require.NotPanics(t, func() { tr.Remove(ecs.NewEntityID(1, 0)) })
}

func TestStructuralViolationsPanic(t *testing.T) {
	require.Panics(t, func() { newOctree(0) })

	tr := newOctree(1)
	require.NoError(t, tr.Insert(pt(1, 1, 1, 1)))
	require.NoError(t, tr.Insert(pt(2, -1, -1, -1)))
	require.PanicsWithValue(t, "spatial: subdivide called on an interior node", func() {
		tr.Root().subdivide()
	})
}

func TestMaxDepthStopsSplitting(t *testing.T) {
	tr := NewTree(geom.NewCube(r3.Vec{}, 10), Options[*point, geom.Box]{Threshold: 1, MaxDepth: 3})
	for i := 1; i <= 4; i++ {
		require.NoError(t, tr.Insert(pt(uint32(i), 1, 1, 1)))
	}
	owner, _ := tr.Owner(ecs.NewEntityID(1, 0))
	require.Equal(t, 3, owner.Depth())
	require.True(t, owner.IsLeaf())
	require.Len(t, owner.Entities(), 4)
}
