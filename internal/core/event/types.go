package event

import (
	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

// ObjectSpawned fires when a deferred spawn is applied by Flush.
type ObjectSpawned struct {
	ID    ecs.EntityID
	Graph string
	Name  string
}

// ObjectDespawned fires when a deferred despawn is applied by Flush.
type ObjectDespawned struct {
	ID    ecs.EntityID
	Graph string
}

// ObjectOutOfBounds fires when an object could not be placed because its
// position left its graph's root bounds.
type ObjectOutOfBounds struct {
	ID       ecs.EntityID
	Graph    string
	Position r3.Vec
}
