package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mat4 is a row-major 4x4 matrix applied to column vectors (p' = M·p).
// Translation lives in elements 3, 7 and 11.
type Mat4 [16]float64

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate returns a translation matrix.
func Translate(x, y, z float64) Mat4 {
	m := Identity()
	m[3], m[7], m[11] = x, y, z
	return m
}

// TranslateVec is Translate for a vector.
func TranslateVec(v r3.Vec) Mat4 { return Translate(v.X, v.Y, v.Z) }

// Scale returns a scaling matrix.
func Scale(x, y, z float64) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = x, y, z
	return m
}

// RotateX returns a counter-clockwise rotation about the X axis.
func RotateX(rad float64) Mat4 {
	s, c := math.Sincos(rad)
	m := Identity()
	m[5], m[6] = c, -s
	m[9], m[10] = s, c
	return m
}

// RotateY returns a counter-clockwise rotation about the Y axis.
func RotateY(rad float64) Mat4 {
	s, c := math.Sincos(rad)
	m := Identity()
	m[0], m[2] = c, s
	m[8], m[10] = -s, c
	return m
}

// RotateZ returns a counter-clockwise rotation about the Z axis.
func RotateZ(rad float64) Mat4 {
	s, c := math.Sincos(rad)
	m := Identity()
	m[0], m[1] = c, -s
	m[4], m[5] = s, c
	return m
}

// Mul returns m·o: o is applied first, then m.
func (m Mat4) Mul(o Mat4) Mat4 {
	var r Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			r[row*4+col] = m[row*4]*o[col] +
				m[row*4+1]*o[4+col] +
				m[row*4+2]*o[8+col] +
				m[row*4+3]*o[12+col]
		}
	}
	return r
}

// TransformPoint applies m to p with an implicit w of 1.
func (m Mat4) TransformPoint(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		Y: m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		Z: m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}

// Origin is where m maps the local origin to.
func (m Mat4) Origin() r3.Vec {
	return r3.Vec{X: m[3], Y: m[7], Z: m[11]}
}

// WithOrigin returns m with its translation column replaced.
func (m Mat4) WithOrigin(p r3.Vec) Mat4 {
	m[3], m[7], m[11] = p.X, p.Y, p.Z
	return m
}

// ApproxEqual compares element-wise within eps.
func (m Mat4) ApproxEqual(o Mat4, eps float64) bool {
	for i := range m {
		if math.Abs(m[i]-o[i]) > eps {
			return false
		}
	}
	return true
}

// Link is anything that sits in a parent chain and carries a local transform.
// Up returns the zero value at the root.
type Link[T any] interface {
	comparable
	Up() T
	Local() Mat4
}

// Compose returns the world transform of n:
//
//	root.Local · … · parent.Local · n.Local
//
// Each ancestor is left-multiplied while walking upward, so the result is
// identical to folding the chain root-first without buffering it. Nothing is
// cached; callers that need the value twice keep it.
func Compose[T Link[T]](n T) Mat4 {
	var zero T
	if n == zero {
		return Identity()
	}
	acc := n.Local()
	for p := n.Up(); p != zero; p = p.Up() {
		acc = p.Local().Mul(acc)
	}
	return acc
}
