// Package scene owns the objects of a running scene, the spatial graphs that
// index them and the deferred mutation queue applied once per frame.
package scene

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/core/event"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/metrics"
	"github.com/l1jgo/scenegraph/internal/spatial"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrUnknownObject = errors.New("unknown object")
	ErrUnknownGraph  = errors.New("unknown graph")
	ErrGraphExists   = errors.New("graph already exists")
	ErrNameTaken     = errors.New("object name already taken")
	ErrBadExtent     = errors.New("invalid extent")
	ErrCycle         = errors.New("attachment would create a cycle")
	ErrCrossGraph    = errors.New("objects belong to different graphs")
)

// Config tunes the trees of every graph.
type Config struct {
	Threshold int
	MaxDepth  int
}

type Option func(*options)

type options struct {
	log *zap.Logger
	bus *event.Bus
}

func WithLogger(log *zap.Logger) Option { return func(o *options) { o.log = log } }

// WithBus shares an event bus with the caller. A private bus is created
// otherwise.
func WithBus(bus *event.Bus) Option { return func(o *options) { o.bus = bus } }

// FlushStats summarises one Flush.
type FlushStats struct {
	Removed  int
	Missing  int
	Added    int
	Rejected int
}

// Portal links two graphs. A region in From's space maps to To's space by
// adding Offset.
type Portal struct {
	From, To string
	Offset   r3.Vec
}

type portalKey struct{ from, to string }

// Scene is driven from the frame loop goroutine only.
type Scene[B geom.Bounds[B]] struct {
	cfg     Config
	factory geom.Factory[B]
	log     *zap.Logger
	bus     *event.Bus

	world   *ecs.World
	objects *ecs.Store[Object]
	motions *ecs.Store[motion]

	graphs  map[string]*Graph[B]
	order   []string
	byRoot  map[*spatial.Node[*Object, B]]*Graph[B]
	portals map[portalKey]r3.Vec
	names   map[string]ecs.EntityID

	pending Pending
	frame   uint64
}

// NewScene creates an empty scene. factory builds footprints and regions of
// the scene's dimensionality: geom.BoxFactory or geom.RectFactory.
func NewScene[B geom.Bounds[B]](cfg Config, factory geom.Factory[B], opts ...Option) *Scene[B] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.bus == nil {
		o.bus = event.NewBus()
	}
	w := ecs.NewWorld()
	return &Scene[B]{
		cfg:     cfg,
		factory: factory,
		log:     o.log,
		bus:     o.bus,
		world:   w,
		objects: ecs.Attach[Object](w.Registry()),
		motions: ecs.Attach[motion](w.Registry()),
		graphs:  make(map[string]*Graph[B]),
		byRoot:  make(map[*spatial.Node[*Object, B]]*Graph[B]),
		portals: make(map[portalKey]r3.Vec),
		names:   make(map[string]ecs.EntityID),
	}
}

func (s *Scene[B]) Bus() *event.Bus          { return s.bus }
func (s *Scene[B]) World() *ecs.World        { return s.world }
func (s *Scene[B]) Factory() geom.Factory[B] { return s.factory }

// Frame returns the number of flushes applied so far.
func (s *Scene[B]) Frame() uint64 { return s.frame }

// Pending returns the number of queued spawns and despawns.
func (s *Scene[B]) Pending() int { return s.pending.Len() }

// --- graphs ---

func (s *Scene[B]) AddGraph(name string, bounds B) (*Graph[B], error) {
	if _, ok := s.graphs[name]; ok {
		return nil, fmt.Errorf("add graph %q: %w", name, ErrGraphExists)
	}
	g := newGraph(name, bounds, s.cfg, s.factory, s.log)
	s.graphs[name] = g
	s.order = append(s.order, name)
	s.byRoot[g.tree.Root()] = g
	return g, nil
}

func (s *Scene[B]) Graph(name string) (*Graph[B], bool) {
	g, ok := s.graphs[name]
	return g, ok
}

// Graphs returns the graphs in creation order.
func (s *Scene[B]) Graphs() []*Graph[B] {
	out := make([]*Graph[B], 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.graphs[name])
	}
	return out
}

// Link connects from's root to to's root. Queries that follow links map
// regions into to's space by adding offset. Linking again replaces the
// offset.
func (s *Scene[B]) Link(from, to string, offset r3.Vec) error {
	src, ok := s.graphs[from]
	if !ok {
		return fmt.Errorf("link %q: %w", from, ErrUnknownGraph)
	}
	dst, ok := s.graphs[to]
	if !ok {
		return fmt.Errorf("link %q: %w", to, ErrUnknownGraph)
	}
	if src == dst {
		return fmt.Errorf("link %q to itself", from)
	}
	src.tree.Root().ConnectTo(dst.tree.Root())
	s.portals[portalKey{from, to}] = offset
	return nil
}

// Unlink removes the link from → to and reports whether it existed.
func (s *Scene[B]) Unlink(from, to string) bool {
	src, ok1 := s.graphs[from]
	dst, ok2 := s.graphs[to]
	if !ok1 || !ok2 {
		return false
	}
	delete(s.portals, portalKey{from, to})
	return src.tree.Root().DisconnectFrom(dst.tree.Root())
}

// Portals returns every link sorted by source then target.
func (s *Scene[B]) Portals() []Portal {
	out := make([]Portal, 0, len(s.portals))
	for k, off := range s.portals {
		out = append(out, Portal{From: k.from, To: k.to, Offset: off})
	}
	slices.SortFunc(out, func(a, b Portal) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return out
}

// --- lifecycle ---

// Spawn creates an object and queues it for insertion at the next Flush.
// pos is in graph space. A zero extent makes the object a point; otherwise
// extent is the half-size of its footprint. Names are optional and unique
// after NFC normalisation.
func (s *Scene[B]) Spawn(graph, name string, pos, extent r3.Vec) (ecs.EntityID, error) {
	if _, ok := s.graphs[graph]; !ok {
		return 0, fmt.Errorf("spawn %q: %w", graph, ErrUnknownGraph)
	}
	name = norm.NFC.String(name)
	if name != "" {
		if _, taken := s.names[name]; taken {
			return 0, fmt.Errorf("spawn %q: %w", name, ErrNameTaken)
		}
	}
	if extent != (r3.Vec{}) {
		if err := s.checkExtent(pos, extent); err != nil {
			return 0, fmt.Errorf("spawn %q: %w", name, err)
		}
	}
	o := &Object{
		id:     s.world.CreateEntity(),
		name:   name,
		graph:  graph,
		local:  geom.TranslateVec(pos),
		extent: extent,
	}
	s.objects.Set(o.id, o)
	if name != "" {
		s.names[name] = o.id
	}
	s.pending.Add(o)
	metrics.SetPending(s.pending.Len())
	return o.id, nil
}

// checkExtent builds a footprint once so that a malformed extent fails here
// instead of inside the tree.
func (s *Scene[B]) checkExtent(pos, extent r3.Vec) error {
	if _, err := geom.TryBounds(s.factory, pos, extent); err != nil {
		return fmt.Errorf("%w: %v", ErrBadExtent, err)
	}
	return nil
}

// Despawn queues id and everything attached below it for removal. Objects
// that were never flushed are dropped immediately.
func (s *Scene[B]) Despawn(id ecs.EntityID) error {
	o, ok := s.objects.Get(id)
	if !ok {
		return fmt.Errorf("despawn %v: %w", id, ErrUnknownObject)
	}
	for _, d := range o.subtree(nil) {
		if s.pending.Remove(d.id) {
			s.release(d)
		}
	}
	metrics.SetPending(s.pending.Len())
	return nil
}

// Flush applies queued removals, then queued additions. Additions outside
// their graph are dropped and reported in the returned error.
func (s *Scene[B]) Flush() (FlushStats, error) {
	var stats FlushStats
	var errs []error
	removes, adds := s.pending.take()

	for _, id := range removes {
		o, ok := s.objects.Get(id)
		if !ok {
			stats.Missing++
			continue
		}
		if o.placed {
			s.graphs[o.graph].Remove(id)
		}
		s.release(o)
		event.Emit(s.bus, event.ObjectDespawned{ID: id, Graph: o.graph})
		stats.Removed++
	}

	for _, o := range adds {
		if err := s.graphs[o.graph].Insert(o); err != nil {
			stats.Rejected++
			errs = append(errs, err)
			if errors.Is(err, spatial.ErrOutOfBounds) {
				s.outOfBounds(o)
			}
			s.release(o)
			continue
		}
		o.placed = true
		event.Emit(s.bus, event.ObjectSpawned{ID: o.id, Graph: o.graph, Name: o.name})
		stats.Added++
	}

	s.frame++
	metrics.SetPending(0)
	metrics.CountFlushed("removed", stats.Removed)
	metrics.CountFlushed("missing", stats.Missing)
	metrics.CountFlushed("added", stats.Added)
	metrics.CountFlushed("rejected", stats.Rejected)
	return stats, errors.Join(errs...)
}

// release forgets o. Objects still attached to o keep their graph-space
// placement and become roots.
func (s *Scene[B]) release(o *Object) {
	world := geom.Compose(o)
	for _, c := range o.children {
		c.parent = nil
		c.local = world.Mul(c.local)
	}
	o.children = nil
	o.detach()
	o.placed = false
	if o.name != "" && s.names[o.name] == o.id {
		delete(s.names, o.name)
	}
	s.world.Destroy(o.id)
}

func (s *Scene[B]) outOfBounds(o *Object) {
	p := o.Position()
	metrics.CountOutOfBounds(o.graph)
	s.log.Warn("object outside graph bounds",
		zap.Stringer("id", o.id),
		zap.String("name", o.name),
		zap.String("graph", o.graph),
		zap.Float64s("position", []float64{p.X, p.Y, p.Z}))
	event.Emit(s.bus, event.ObjectOutOfBounds{ID: o.id, Graph: o.graph, Position: p})
}

// --- transforms ---

// Move sets the local translation of id, in its parent's space or in graph
// space for roots. A move that would carry the object or anything attached
// to it outside the graph is rolled back and reported as
// spatial.ErrOutOfBounds.
func (s *Scene[B]) Move(id ecs.EntityID, pos r3.Vec) error {
	o, ok := s.objects.Get(id)
	if !ok {
		return fmt.Errorf("move %v: %w", id, ErrUnknownObject)
	}
	prev := o.local
	o.local = o.local.WithOrigin(pos)
	return s.reindex(o, func() { o.local = prev })
}

// SetTransform replaces the whole local transform of id, with the same
// rollback rule as Move.
func (s *Scene[B]) SetTransform(id ecs.EntityID, m geom.Mat4) error {
	o, ok := s.objects.Get(id)
	if !ok {
		return fmt.Errorf("transform %v: %w", id, ErrUnknownObject)
	}
	prev := o.local
	o.local = m
	return s.reindex(o, func() { o.local = prev })
}

// Attach makes child's transform relative to parent. The child keeps its
// local transform, so it moves with the parent from now on.
func (s *Scene[B]) Attach(child, parent ecs.EntityID) error {
	c, ok := s.objects.Get(child)
	if !ok {
		return fmt.Errorf("attach %v: %w", child, ErrUnknownObject)
	}
	p, ok := s.objects.Get(parent)
	if !ok {
		return fmt.Errorf("attach to %v: %w", parent, ErrUnknownObject)
	}
	if c.graph != p.graph {
		return fmt.Errorf("attach %v to %v: %w", child, parent, ErrCrossGraph)
	}
	if p.descendsFrom(c) {
		return fmt.Errorf("attach %v to %v: %w", child, parent, ErrCycle)
	}
	if c.parent == p {
		return nil
	}
	prev := c.parent
	c.detach()
	c.parent = p
	p.children = append(p.children, c)
	return s.reindex(c, func() {
		c.detach()
		if prev != nil {
			c.parent = prev
			prev.children = append(prev.children, c)
		}
	})
}

// Detach makes child a root again without moving it.
func (s *Scene[B]) Detach(child ecs.EntityID) error {
	c, ok := s.objects.Get(child)
	if !ok {
		return fmt.Errorf("detach %v: %w", child, ErrUnknownObject)
	}
	if c.parent == nil {
		return nil
	}
	c.local = geom.Compose(c)
	c.detach()
	return nil
}

// reindex updates every placed object under o. When any of them would leave
// the graph, undo restores the previous state and the tree is put back.
func (s *Scene[B]) reindex(o *Object, undo func()) error {
	g := s.graphs[o.graph]
	moved := o.subtree(nil)
	var errs []error
	var escaped []*Object
	for _, d := range moved {
		if !d.placed {
			continue
		}
		if err := g.Update(d); err != nil {
			errs = append(errs, err)
			if errors.Is(err, spatial.ErrOutOfBounds) {
				escaped = append(escaped, d)
			}
		}
	}
	if len(escaped) == 0 {
		return errors.Join(errs...)
	}
	for _, d := range escaped {
		s.outOfBounds(d)
	}
	undo()
	for _, d := range moved {
		if d.placed {
			_ = g.Update(d)
		}
	}
	return errors.Join(errs...)
}

// AbsoluteTransform returns the world transform of id.
func (s *Scene[B]) AbsoluteTransform(id ecs.EntityID) (geom.Mat4, bool) {
	o, ok := s.objects.Get(id)
	if !ok {
		return geom.Mat4{}, false
	}
	return s.graphs[o.graph].AbsoluteTransform(o), true
}

// --- lookup ---

func (s *Scene[B]) Object(id ecs.EntityID) (*Object, bool) {
	return s.objects.Get(id)
}

// Lookup finds an object by name. Names are compared after NFC
// normalisation.
func (s *Scene[B]) Lookup(name string) (*Object, bool) {
	id, ok := s.names[norm.NFC.String(name)]
	if !ok {
		return nil, false
	}
	return s.objects.Get(id)
}

// Objects yields every live object, placed or pending, in ID order.
func (s *Scene[B]) Objects() iter.Seq[*Object] {
	all := make([]*Object, 0, s.objects.Len())
	for _, o := range s.objects.All() {
		all = append(all, o)
	}
	slices.SortFunc(all, func(a, b *Object) int { return cmp.Compare(a.id, b.id) })
	return slices.Values(all)
}

// --- queries ---

// Query yields the placed objects of graph inside region. An unknown graph
// yields nothing.
func (s *Scene[B]) Query(graph string, region B) iter.Seq[*Object] {
	g, ok := s.graphs[graph]
	if !ok {
		return func(func(*Object) bool) {}
	}
	return g.QueryBounds(region)
}

// QueryLinked is Query followed through up to hops links. Each graph is
// searched at most once, with region translated by the link offsets along
// the way.
func (s *Scene[B]) QueryLinked(graph string, region B, hops int) iter.Seq[*Object] {
	return func(yield func(*Object) bool) {
		start, ok := s.graphs[graph]
		if !ok {
			return
		}
		type step struct {
			g      *Graph[B]
			region B
			hops   int
		}
		visited := make(map[*Graph[B]]bool)
		queue := []step{{start, region, hops}}
		for len(queue) > 0 {
			st := queue[0]
			queue = queue[1:]
			if visited[st.g] {
				continue
			}
			visited[st.g] = true
			for o := range st.g.QueryBounds(st.region) {
				if !yield(o) {
					return
				}
			}
			if st.hops <= 0 {
				continue
			}
			for target := range st.g.tree.Connected(st.region) {
				dst, ok := s.byRoot[target.Root()]
				if !ok || visited[dst] {
					continue
				}
				off := s.portals[portalKey{st.g.name, dst.name}]
				queue = append(queue, step{dst, st.region.Translate(off), st.hops - 1})
			}
		}
	}
}
