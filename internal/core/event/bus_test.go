package event

import (
	"testing"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/stretchr/testify/require"
)

func TestEventsArriveNextFrame(t *testing.T) {
	b := NewBus()
	var got []ecs.EntityID
	Subscribe(b, func(ev ObjectSpawned) { got = append(got, ev.ID) })

	Emit(b, ObjectSpawned{ID: 1})
	Emit(b, ObjectSpawned{ID: 2})
	require.Equal(t, 2, b.Pending())
	require.Zero(t, b.Dispatch(), "nothing is delivered before Swap")

	b.Swap()
	require.Zero(t, b.Pending())
	require.Equal(t, 2, b.Dispatch())
	require.Equal(t, []ecs.EntityID{1, 2}, got)

	b.Swap()
	require.Zero(t, b.Dispatch())
}

func TestDispatchOrderFollowsFirstEmission(t *testing.T) {
	b := NewBus()
	var order []string
	Subscribe(b, func(ObjectDespawned) { order = append(order, "despawned") })
	Subscribe(b, func(ObjectOutOfBounds) { order = append(order, "oob") })
	Subscribe(b, func(ObjectSpawned) { order = append(order, "spawned") })

	Emit(b, ObjectOutOfBounds{})
	Emit(b, ObjectSpawned{})
	Emit(b, ObjectDespawned{})
	b.Swap()
	b.Dispatch()
	require.Equal(t, []string{"oob", "spawned", "despawned"}, order)
}

func TestHandlersMayEmit(t *testing.T) {
	b := NewBus()
	Subscribe(b, func(ev ObjectSpawned) { Emit(b, ObjectDespawned{ID: ev.ID}) })
	var despawned int
	Subscribe(b, func(ObjectDespawned) { despawned++ })

	Emit(b, ObjectSpawned{ID: 5})
	b.Swap()
	b.Dispatch()
	require.Zero(t, despawned)
	b.Swap()
	b.Dispatch()
	require.Equal(t, 1, despawned)
}
