package splash

import (
	"image"

	"github.com/chazu/splashmap/pkg/heatmap"
	"github.com/chazu/splashmap/pkg/kernel"
)

// Result is the outcome of one estimation run. It is never modified after
// the strategy returns it.
type Result struct {
	Version  uint64 `json:"version"`
	Strategy string `json:"strategy"`
	Params   Params `json:"params"`

	// Per face, indexed like Faces(mesh).
	FaceIntensities []float64 `json:"faceIntensities"`
	FaceNormalized  []float64 `json:"faceNormalized"`
	FaceHits        []int     `json:"faceHits"`

	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`

	// Per vertex: the mean of the vertex's faces, that mean normalised
	// against Min/Max, and the inverted value the colours are built from.
	VertexIntensities []float64 `json:"vertexIntensities"`
	VertexNormalized  []float64 `json:"vertexNormalized"`
	VertexDisplay     []float64 `json:"vertexDisplay"`
	VertexColors      []float32 `json:"vertexColors"`

	// Samples is the number of trajectories evaluated per face (analytic)
	// or the number of particles emitted (particles).
	Samples      int `json:"samples"`
	TotalHits    int `json:"totalHits"`
	SkippedFaces int `json:"skippedFaces"`

	// Splats holds collision splats in UV space when the particle strategy
	// ran on a mesh with texture coordinates.
	Splats *heatmap.Accumulator `json:"-"`
}

// FaceCount returns the number of faces the result covers.
func (r *Result) FaceCount() int { return len(r.FaceIntensities) }

// Texture renders the result as a size×size heatmap texture for m. Particle
// splats are used when present, otherwise each triangle is filled from the
// vertex display values. Both use the same colour direction as VertexColors.
func (r *Result) Texture(m *kernel.Mesh, size int) (*image.RGBA, error) {
	if r.Splats != nil {
		return r.Splats.Scaled(heatmap.DefaultRamp.Reversed(), size), nil
	}
	return heatmap.PaintTexture(m, r.VertexDisplay, size, heatmap.DefaultRamp)
}
