// Package splash estimates where particulate splashback lands on a mesh.
//
// Two strategies share the Estimator interface: Analytic samples a fixed
// cone of ballistic arcs against every face in one pass, Particles steps
// randomly spread particles frame by frame and accumulates their collisions.
// Both produce a Result carrying per-face intensities and per-vertex
// normalised, display-ready colours.
package splash

import (
	"fmt"
	"math"

	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// normalEpsilon is the shortest vector still treated as a usable direction.
const normalEpsilon = 1e-9

// Face is one triangle of the mesh, resolved into world-space geometry.
type Face struct {
	Index    int
	Vertices [3]int
	Points   [3]mgl64.Vec3
	Centroid mgl64.Vec3
	Normal   mgl64.Vec3

	// Degenerate faces have no usable normal and are skipped by every
	// strategy with an intensity of exactly 0.
	Degenerate bool
}

// Faces resolves every triangle of m. The face normal is the mesh's own
// normal for the triangle (see kernel.Mesh.FaceNormal); when that is missing
// or degenerate, the winding normal is used instead.
func Faces(m *kernel.Mesh) []Face {
	n := m.TriangleCount()
	faces := make([]Face, n)
	for f := 0; f < n; f++ {
		tri := m.Triangle(f)
		face := Face{Index: f, Vertices: tri}
		for i, vi := range tri {
			face.Points[i] = m.Position(vi)
		}
		face.Centroid = face.Points[0].Add(face.Points[1]).Add(face.Points[2]).Mul(1.0 / 3)

		normal, ok := unit(m.FaceNormal(f))
		if !ok {
			normal, ok = windingNormal(face.Points)
		}
		face.Normal = normal
		face.Degenerate = !ok
		faces[f] = face
	}
	return faces
}

// resolve validates m and returns its faces, or ErrNoFaces when there are
// none.
func resolve(m *kernel.Mesh) ([]Face, error) {
	if m == nil {
		return nil, ErrNoFaces
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("splash: %w", err)
	}
	faces := Faces(m)
	if len(faces) == 0 {
		return nil, ErrNoFaces
	}
	return faces, nil
}

func windingNormal(p [3]mgl64.Vec3) (mgl64.Vec3, bool) {
	return unit(p[1].Sub(p[0]).Cross(p[2].Sub(p[0])))
}

// unit normalises v, reporting false for zero, tiny or non-finite vectors.
func unit(v mgl64.Vec3) (mgl64.Vec3, bool) {
	l := v.Len()
	if l < normalEpsilon || math.IsNaN(l) || math.IsInf(l, 0) {
		return mgl64.Vec3{}, false
	}
	return v.Mul(1 / l), true
}
