package system

import (
	"time"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	coresys "github.com/l1jgo/scenegraph/internal/core/system"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/metrics"
	"github.com/l1jgo/scenegraph/internal/scene"
)

// Visible is one object inside the camera region with its world transform.
type Visible struct {
	ID        ecs.EntityID
	Graph     string
	Transform geom.Mat4
}

// CullSystem collects what a renderer would draw: every object inside the
// camera region, following up to Hops portal links. Phase 4 (Render).
type CullSystem[B geom.Bounds[B]] struct {
	scene   *scene.Scene[B]
	graph   string
	region  B
	hops    int
	enabled bool
	visible []Visible
}

func NewCullSystem[B geom.Bounds[B]](s *scene.Scene[B], hops int) *CullSystem[B] {
	return &CullSystem[B]{scene: s, hops: hops}
}

func (s *CullSystem[B]) Phase() coresys.Phase { return coresys.PhaseRender }

// SetCamera points the camera at region of graph.
func (s *CullSystem[B]) SetCamera(graph string, region B) {
	s.graph = graph
	s.region = region
	s.enabled = true
}

func (s *CullSystem[B]) Update(_ time.Duration) {
	s.visible = s.visible[:0]
	if !s.enabled {
		return
	}
	for o := range s.scene.QueryLinked(s.graph, s.region, s.hops) {
		g, _ := s.scene.Graph(o.Graph())
		s.visible = append(s.visible, Visible{
			ID:        o.EntityID(),
			Graph:     o.Graph(),
			Transform: g.AbsoluteTransform(o),
		})
	}
	metrics.SetVisible(s.graph, len(s.visible))
}

// Visible returns this frame's visible set. The slice is reused next frame.
func (s *CullSystem[B]) Visible() []Visible { return s.visible }
