package splash

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Hit is the first crossing of an arc through a face plane.
type Hit struct {
	Point mgl64.Vec3
	// Angle between the segment direction and the plane normal, in
	// [0, π/2] whichever side the arc arrives from.
	Angle   float64
	Segment int
}

// Contribution is the splashback weight of a hit at the given incident angle.
// Grazing hits weigh 1, head-on hits 0.
func Contribution(angle float64) float64 {
	s := math.Sin(angle)
	return s * s
}

// IntersectArc walks the arc's segments and returns the first one whose
// crossing of the plane (point, normal) lies strictly ahead of the segment
// start and no further than its end. Zero-length segments, segments
// parallel to the plane and unusable normals never hit.
func IntersectArc(arc []mgl64.Vec3, point, normal mgl64.Vec3) (Hit, bool) {
	n, ok := unit(normal)
	if !ok {
		return Hit{}, false
	}
	for i := 0; i+1 < len(arc); i++ {
		a, b := arc[i], arc[i+1]
		seg := b.Sub(a)
		length := seg.Len()
		if length == 0 {
			continue
		}
		d := seg.Mul(1 / length)
		denom := n.Dot(d)
		if denom == 0 {
			continue
		}
		t := n.Dot(point.Sub(a)) / denom
		if t <= 0 || t > length || math.IsNaN(t) {
			continue
		}
		return Hit{
			Point:   a.Add(d.Mul(t)),
			Angle:   math.Acos(mgl64.Clamp(math.Abs(denom), 0, 1)),
			Segment: i,
		}, true
	}
	return Hit{}, false
}
