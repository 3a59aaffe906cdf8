// Package geom holds the axis-aligned bounds and matrix math shared by the
// spatial tree and the scene.
package geom

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Bounds is the contract a spatial volume must satisfy to partition a tree.
// B is the concrete bounds type itself so that Split and Intersects stay
// statically typed.
type Bounds[B any] interface {
	// Contains reports whether p lies inside the volume, boundary included.
	Contains(p r3.Vec) bool
	// Encloses reports whether b lies entirely inside the volume.
	Encloses(b B) bool
	// Intersects reports whether the two volumes overlap, touching included.
	Intersects(b B) bool
	// Octant returns the index of the child volume that owns p. A coordinate
	// equal to the centre resolves to the low half.
	Octant(p r3.Vec) int
	// Split returns the Fanout() children in Octant order.
	Split() []B
	Fanout() int
	Translate(d r3.Vec) B
	Min() r3.Vec
	Max() r3.Vec
}

// Factory builds bounds of type B from a centre and per-axis half extent.
// It is handed to trees and scenes instead of a global constructor.
type Factory[B any] func(center, half r3.Vec) B

// Box is an axis-aligned 3-D volume. Octant index bits: 1 = +X, 2 = +Y, 4 = +Z.
type Box struct {
	Center r3.Vec
	Half   r3.Vec
}

// NewBox returns a box centred on center. It panics when any half extent is
// not positive.
func NewBox(center, half r3.Vec) Box {
	if half.X <= 0 || half.Y <= 0 || half.Z <= 0 {
		panic(fmt.Sprintf("geom: box half extent must be positive, got %v", half))
	}
	return Box{Center: center, Half: half}
}

// NewCube returns a cube with the same half extent on every axis.
func NewCube(center r3.Vec, half float64) Box {
	return NewBox(center, r3.Vec{X: half, Y: half, Z: half})
}

// BoxFactory is the Factory for 3-D scenes.
func BoxFactory(center, half r3.Vec) Box { return NewBox(center, half) }

func (b Box) Min() r3.Vec { return r3.Sub(b.Center, b.Half) }
func (b Box) Max() r3.Vec { return r3.Add(b.Center, b.Half) }

func (b Box) Contains(p r3.Vec) bool {
	lo, hi := b.Min(), b.Max()
	return p.X >= lo.X && p.X <= hi.X &&
		p.Y >= lo.Y && p.Y <= hi.Y &&
		p.Z >= lo.Z && p.Z <= hi.Z
}

func (b Box) Encloses(o Box) bool {
	return b.Contains(o.Min()) && b.Contains(o.Max())
}

func (b Box) Intersects(o Box) bool {
	lo, hi := b.Min(), b.Max()
	olo, ohi := o.Min(), o.Max()
	return lo.X <= ohi.X && hi.X >= olo.X &&
		lo.Y <= ohi.Y && hi.Y >= olo.Y &&
		lo.Z <= ohi.Z && hi.Z >= olo.Z
}

func (b Box) Octant(p r3.Vec) int {
	i := 0
	if p.X > b.Center.X {
		i |= 1
	}
	if p.Y > b.Center.Y {
		i |= 2
	}
	if p.Z > b.Center.Z {
		i |= 4
	}
	return i
}

func (b Box) Split() []Box {
	q := r3.Scale(0.5, b.Half)
	out := make([]Box, 8)
	for i := range out {
		c := b.Center
		c.X += sign(i&1 != 0) * q.X
		c.Y += sign(i&2 != 0) * q.Y
		c.Z += sign(i&4 != 0) * q.Z
		out[i] = Box{Center: c, Half: q}
	}
	return out
}

func (Box) Fanout() int { return 8 }

func (b Box) Translate(d r3.Vec) Box {
	return Box{Center: r3.Add(b.Center, d), Half: b.Half}
}

func (b Box) String() string {
	return fmt.Sprintf("box(%g,%g,%g ±%g,%g,%g)", b.Center.X, b.Center.Y, b.Center.Z, b.Half.X, b.Half.Y, b.Half.Z)
}

// Rect is an axis-aligned area in the XY plane; Z is ignored by every test.
// Quadrant index bits: 1 = east, 2 = north, giving SW=0, SE=1, NW=2, NE=3.
type Rect struct {
	Center r3.Vec
	Half   r3.Vec
}

const (
	SW = 0
	SE = 1
	NW = 2
	NE = 3
)

// NewRect returns a rectangle centred on (x, y). It panics when either half
// extent is not positive.
func NewRect(x, y, hx, hy float64) Rect {
	if hx <= 0 || hy <= 0 {
		panic(fmt.Sprintf("geom: rect half extent must be positive, got %gx%g", hx, hy))
	}
	return Rect{Center: r3.Vec{X: x, Y: y}, Half: r3.Vec{X: hx, Y: hy}}
}

// NewSquare returns a square with equal half extents.
func NewSquare(x, y, half float64) Rect {
	return NewRect(x, y, half, half)
}

// RectFactory is the Factory for planar scenes.
func RectFactory(center, half r3.Vec) Rect {
	return NewRect(center.X, center.Y, half.X, half.Y)
}

func (r Rect) Min() r3.Vec {
	return r3.Vec{X: r.Center.X - r.Half.X, Y: r.Center.Y - r.Half.Y}
}

func (r Rect) Max() r3.Vec {
	return r3.Vec{X: r.Center.X + r.Half.X, Y: r.Center.Y + r.Half.Y}
}

func (r Rect) Contains(p r3.Vec) bool {
	lo, hi := r.Min(), r.Max()
	return p.X >= lo.X && p.X <= hi.X && p.Y >= lo.Y && p.Y <= hi.Y
}

func (r Rect) Encloses(o Rect) bool {
	return r.Contains(o.Min()) && r.Contains(o.Max())
}

func (r Rect) Intersects(o Rect) bool {
	lo, hi := r.Min(), r.Max()
	olo, ohi := o.Min(), o.Max()
	return lo.X <= ohi.X && hi.X >= olo.X && lo.Y <= ohi.Y && hi.Y >= olo.Y
}

func (r Rect) Octant(p r3.Vec) int {
	i := SW
	if p.X > r.Center.X {
		i |= SE
	}
	if p.Y > r.Center.Y {
		i |= NW
	}
	return i
}

func (r Rect) Split() []Rect {
	qx, qy := r.Half.X/2, r.Half.Y/2
	out := make([]Rect, 4)
	for i := range out {
		out[i] = Rect{
			Center: r3.Vec{
				X: r.Center.X + sign(i&SE != 0)*qx,
				Y: r.Center.Y + sign(i&NW != 0)*qy,
			},
			Half: r3.Vec{X: qx, Y: qy},
		}
	}
	return out
}

func (Rect) Fanout() int { return 4 }

func (r Rect) Translate(d r3.Vec) Rect {
	return Rect{Center: r3.Vec{X: r.Center.X + d.X, Y: r.Center.Y + d.Y}, Half: r.Half}
}

func (r Rect) String() string {
	return fmt.Sprintf("rect(%g,%g ±%g,%g)", r.Center.X, r.Center.Y, r.Half.X, r.Half.Y)
}

func sign(high bool) float64 {
	if high {
		return 1
	}
	return -1
}

// TryBounds builds bounds with f and turns a constructor panic into an
// error, for input read from files or scripts.
func TryBounds[B any](f Factory[B], center, half r3.Vec) (b B, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return f(center, half), nil
}
