package scene

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/l1jgo/scenegraph/internal/core/ecs"
	"github.com/l1jgo/scenegraph/internal/spatial"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrUnknownEasing = errors.New("unknown easing")

// motion drives an object's local position each frame. A running tween
// takes precedence over the velocity.
type motion struct {
	velocity r3.Vec
	tween    *[3]*gween.Tween
}

var easings = map[string]ease.TweenFunc{
	"linear":       ease.Linear,
	"in_quad":      ease.InQuad,
	"out_quad":     ease.OutQuad,
	"in_out_quad":  ease.InOutQuad,
	"in_cubic":     ease.InCubic,
	"out_cubic":    ease.OutCubic,
	"in_out_cubic": ease.InOutCubic,
	"in_sine":      ease.InSine,
	"out_sine":     ease.OutSine,
	"in_out_sine":  ease.InOutSine,
	"out_bounce":   ease.OutBounce,
	"out_elastic":  ease.OutElastic,
	"in_out_expo":  ease.InOutExpo,
}

// Easing resolves an easing name; the empty name is linear.
func Easing(name string) (ease.TweenFunc, bool) {
	if name == "" {
		return ease.Linear, true
	}
	fn, ok := easings[name]
	return fn, ok
}

// SetVelocity makes id drift by v units per second. A zero v stops it.
func (s *Scene[B]) SetVelocity(id ecs.EntityID, v r3.Vec) error {
	if _, ok := s.objects.Get(id); !ok {
		return fmt.Errorf("velocity %v: %w", id, ErrUnknownObject)
	}
	m, ok := s.motions.Get(id)
	if !ok {
		if v == (r3.Vec{}) {
			return nil
		}
		m = &motion{}
		s.motions.Set(id, m)
	}
	m.velocity = v
	s.settle(id, m)
	return nil
}

// Velocity reports the drift of id, if any.
func (s *Scene[B]) Velocity(id ecs.EntityID) (r3.Vec, bool) {
	m, ok := s.motions.Get(id)
	if !ok {
		return r3.Vec{}, false
	}
	return m.velocity, true
}

// TweenTo eases id's local position to target over d.
func (s *Scene[B]) TweenTo(id ecs.EntityID, target r3.Vec, d time.Duration, easing string) error {
	o, ok := s.objects.Get(id)
	if !ok {
		return fmt.Errorf("tween %v: %w", id, ErrUnknownObject)
	}
	fn, ok := Easing(easing)
	if !ok {
		return fmt.Errorf("tween %v: %w %q", id, ErrUnknownEasing, easing)
	}
	if d <= 0 {
		return s.Move(id, target)
	}
	from := o.LocalPosition()
	secs := float32(d.Seconds())
	m, ok := s.motions.Get(id)
	if !ok {
		m = &motion{}
		s.motions.Set(id, m)
	}
	m.tween = &[3]*gween.Tween{
		gween.New(float32(from.X), float32(target.X), secs, fn),
		gween.New(float32(from.Y), float32(target.Y), secs, fn),
		gween.New(float32(from.Z), float32(target.Z), secs, fn),
	}
	return nil
}

// Moving returns the number of objects with an active velocity or tween.
func (s *Scene[B]) Moving() int { return s.motions.Len() }

// Step advances every motion by dt. Objects whose motion would carry them
// out of their graph stop where they are.
func (s *Scene[B]) Step(dt time.Duration) error {
	ids := make([]ecs.EntityID, 0, s.motions.Len())
	for id := range s.motions.All() {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, cmp.Compare[ecs.EntityID])

	var errs []error
	secs := dt.Seconds()
	for _, id := range ids {
		m, _ := s.motions.Get(id)
		o, ok := s.objects.Get(id)
		if !ok {
			s.motions.Remove(id)
			continue
		}
		var next r3.Vec
		if m.tween != nil {
			x, done := m.tween[0].Update(float32(secs))
			y, _ := m.tween[1].Update(float32(secs))
			z, _ := m.tween[2].Update(float32(secs))
			next = r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}
			if done {
				m.tween = nil
			}
		} else {
			next = r3.Add(o.LocalPosition(), r3.Scale(secs, m.velocity))
		}
		if err := s.Move(id, next); err != nil {
			if errors.Is(err, spatial.ErrOutOfBounds) {
				m.velocity = r3.Vec{}
				m.tween = nil
			}
			errs = append(errs, err)
		}
		s.settle(id, m)
	}
	return errors.Join(errs...)
}

func (s *Scene[B]) settle(id ecs.EntityID, m *motion) {
	if m.tween == nil && m.velocity == (r3.Vec{}) {
		s.motions.Remove(id)
	}
}
