package splash

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const rayEpsilon = 1e-12

// rayTriangle is the Möller–Trumbore test of the ray origin + t·dir against
// the triangle p. It returns t and the barycentric weights (u, v) of p[1]
// and p[2].
func rayTriangle(origin, dir mgl64.Vec3, p [3]mgl64.Vec3) (t, u, v float64, ok bool) {
	e1 := p[1].Sub(p[0])
	e2 := p[2].Sub(p[0])
	h := dir.Cross(e2)
	det := e1.Dot(h)
	if math.Abs(det) < rayEpsilon {
		return 0, 0, 0, false
	}
	inv := 1 / det
	s := origin.Sub(p[0])
	u = inv * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := s.Cross(e1)
	v = inv * dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = inv * e2.Dot(q)
	return t, u, v, true
}

// bounds is an axis-aligned box used to reject faces cheaply.
type bounds struct {
	min, max mgl64.Vec3
}

func faceBounds(p [3]mgl64.Vec3) bounds {
	b := bounds{min: p[0], max: p[0]}
	for _, q := range p[1:] {
		b = b.extend(q)
	}
	return b
}

func (b bounds) extend(q mgl64.Vec3) bounds {
	for i := 0; i < 3; i++ {
		b.min[i] = math.Min(b.min[i], q[i])
		b.max[i] = math.Max(b.max[i], q[i])
	}
	return b
}

func (b bounds) overlaps(o bounds) bool {
	for i := 0; i < 3; i++ {
		if b.max[i] < o.min[i] || o.max[i] < b.min[i] {
			return false
		}
	}
	return true
}
