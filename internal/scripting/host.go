package scripting

import (
	"time"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/geom"
	"github.com/l1jgo/scenegraph/internal/scene"
	"gonum.org/v1/gonum/spatial/r3"
)

// Host is the part of a scene that scripts may drive.
type Host interface {
	Spawn(graph, name string, pos, extent r3.Vec) (ecs.EntityID, error)
	Despawn(id ecs.EntityID) error
	Move(id ecs.EntityID, pos r3.Vec) error
	Attach(child, parent ecs.EntityID) error
	SetVelocity(id ecs.EntityID, v r3.Vec) error
	TweenTo(id ecs.EntityID, target r3.Vec, d time.Duration, easing string) error
	Position(id ecs.EntityID) (r3.Vec, bool)
	Find(name string) (ecs.EntityID, bool)
	QueryBox(graph string, center, half r3.Vec) ([]ecs.EntityID, error)
	Frame() uint64
}

// Bind exposes s to scripts.
func Bind[B geom.Bounds[B]](s *scene.Scene[B]) Host {
	return sceneHost[B]{s}
}

type sceneHost[B geom.Bounds[B]] struct {
	*scene.Scene[B]
}

func (h sceneHost[B]) Position(id ecs.EntityID) (r3.Vec, bool) {
	o, ok := h.Object(id)
	if !ok {
		return r3.Vec{}, false
	}
	return o.Position(), true
}

func (h sceneHost[B]) Find(name string) (ecs.EntityID, bool) {
	o, ok := h.Lookup(name)
	if !ok {
		return 0, false
	}
	return o.EntityID(), true
}

// QueryBox collects the matches before returning so that the script may
// mutate the scene while looping over them.
func (h sceneHost[B]) QueryBox(graph string, center, half r3.Vec) ([]ecs.EntityID, error) {
	region, err := geom.TryBounds(h.Factory(), center, half)
	if err != nil {
		return nil, err
	}
	var ids []ecs.EntityID
	for o := range h.Query(graph, region) {
		ids = append(ids, o.EntityID())
	}
	return ids, nil
}
