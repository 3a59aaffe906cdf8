package ecs

import "iter"

// Removable is implemented by every component store so the Registry can
// strip a destroyed entity from all of them at once.
type Removable interface {
	Remove(id EntityID)
}

// Store is a typed map from entity to component pointer.
type Store[T any] struct {
	data map[EntityID]*T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{data: make(map[EntityID]*T, 256)}
}

func (s *Store[T]) Set(id EntityID, c *T) { s.data[id] = c }

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id EntityID) { delete(s.data, id) }

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int { return len(s.data) }

// All yields every (id, component) pair in unspecified order. Removing the
// current id while ranging is allowed; adding is not.
func (s *Store[T]) All() iter.Seq2[EntityID, *T] {
	return func(yield func(EntityID, *T) bool) {
		for id, c := range s.data {
			if !yield(id, c) {
				return
			}
		}
	}
}

// Join yields the entities present in both stores, iterating the smaller one.
func Join[A, B any](sa *Store[A], sb *Store[B]) iter.Seq2[EntityID, Pair[A, B]] {
	return func(yield func(EntityID, Pair[A, B]) bool) {
		if sa.Len() <= sb.Len() {
			for id, a := range sa.data {
				if b, ok := sb.data[id]; ok && !yield(id, Pair[A, B]{a, b}) {
					return
				}
			}
			return
		}
		for id, b := range sb.data {
			if a, ok := sa.data[id]; ok && !yield(id, Pair[A, B]{a, b}) {
				return
			}
		}
	}
}

// Pair carries the two components produced by Join.
type Pair[A, B any] struct {
	A *A
	B *B
}
