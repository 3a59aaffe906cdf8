package scene

import (
	"iter"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/metrics"
	"github.com/l1jgo/scenegraph/internal/spatial"
	"go.uber.org/zap"
)

// Graph is one named space of the scene backed by its own spatial tree. The
// tree root's local transform places the graph in the world.
type Graph[B geom.Bounds[B]] struct {
	name string
	tree *spatial.Tree[*Object, B]
}

func newGraph[B geom.Bounds[B]](name string, bounds B, cfg Config, factory geom.Factory[B], log *zap.Logger) *Graph[B] {
	log = log.With(zap.String("graph", name))
	footprint := func(o *Object) (B, bool) {
		if !o.hasExtent() {
			var zero B
			return zero, false
		}
		return factory(o.Position(), o.extent), true
	}
	tree := spatial.NewTree(bounds, spatial.Options[*Object, B]{
		Threshold: cfg.Threshold,
		MaxDepth:  cfg.MaxDepth,
		Footprint: footprint,
		Hooks: spatial.Hooks{
			Subdivided: func(depth int) {
				metrics.CountSubdivision(name)
				log.Debug("node subdivided", zap.Int("depth", depth))
			},
			Merged: func(depth int) {
				metrics.CountMerge(name)
				log.Debug("subtree merged", zap.Int("depth", depth))
			},
		},
	})
	return &Graph[B]{name: name, tree: tree}
}

func (g *Graph[B]) Name() string { return g.name }
func (g *Graph[B]) Bounds() B    { return g.tree.Bounds() }
func (g *Graph[B]) Len() int     { return g.tree.Len() }

// Tree exposes the backing tree for inspection. Mutate it only through the
// scene.
func (g *Graph[B]) Tree() *spatial.Tree[*Object, B] { return g.tree }

func (g *Graph[B]) Insert(o *Object) error {
	if err := g.tree.Insert(o); err != nil {
		return err
	}
	metrics.SetObjects(g.name, g.tree.Len())
	return nil
}

func (g *Graph[B]) Remove(id ecs.EntityID) bool {
	if !g.tree.Remove(id) {
		return false
	}
	metrics.SetObjects(g.name, g.tree.Len())
	return true
}

func (g *Graph[B]) Update(o *Object) error { return g.tree.Update(o) }

// QueryBounds yields the objects whose position or footprint falls in
// region, expressed in graph space.
func (g *Graph[B]) QueryBounds(region B) iter.Seq[*Object] {
	return g.tree.QueryBounds(region)
}

// SetTransform places the whole graph in the world.
func (g *Graph[B]) SetTransform(m geom.Mat4) { g.tree.Root().SetLocalTransform(m) }
func (g *Graph[B]) Transform() geom.Mat4     { return g.tree.Root().LocalTransform() }

// AbsoluteTransform returns o's world transform: the graph placement
// followed by o's attachment chain.
func (g *Graph[B]) AbsoluteTransform(o *Object) geom.Mat4 {
	return g.tree.Root().AbsoluteTransform().Mul(geom.Compose(o))
}
