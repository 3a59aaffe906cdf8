package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolRecyclesWithNewGeneration(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	require.False(t, a.IsZero())
	require.True(t, p.Alive(a))

	require.True(t, p.Destroy(a))
	require.False(t, p.Alive(a))
	require.False(t, p.Destroy(a), "stale destroy is a no-op")

	b := p.Create()
	require.Equal(t, a.Index(), b.Index())
	require.Equal(t, a.Generation()+1, b.Generation())
	require.False(t, p.Alive(a))
	require.Equal(t, 1, p.Live())
}

func TestZeroIDNeverAlive(t *testing.T) {
	p := NewEntityPool()
	require.False(t, p.Alive(0))
	require.False(t, p.Alive(NewEntityID(99, 0)))
}

func TestWorldDestroyStripsComponents(t *testing.T) {
	w := NewWorld()
	names := Attach[string](w.Registry())
	speeds := Attach[float64](w.Registry())

	id := w.CreateEntity()
	n, s := "crate", 2.5
	names.Set(id, &n)
	speeds.Set(id, &s)

	other := w.CreateEntity()
	n2 := "barrel"
	names.Set(other, &n2)

	joined := 0
	for got, pair := range Join(names, speeds) {
		require.Equal(t, id, got)
		require.Equal(t, "crate", *pair.A)
		require.Equal(t, 2.5, *pair.B)
		joined++
	}
	require.Equal(t, 1, joined)

	require.True(t, w.Destroy(id))
	require.False(t, names.Has(id))
	require.False(t, speeds.Has(id))
	require.True(t, names.Has(other))
	require.False(t, w.Destroy(id))
}

func TestStoreAllStopsEarly(t *testing.T) {
	s := NewStore[int]()
	for i := 0; i < 5; i++ {
		v := i
		s.Set(NewEntityID(uint32(i+1), 0), &v)
	}
	seen := 0
	for range s.All() {
		seen++
		if seen == 2 {
			break
		}
	}
	require.Equal(t, 2, seen)
}
