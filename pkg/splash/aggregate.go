package splash

import (
	"math"

	"github.com/chazu/splashmap/pkg/heatmap"
	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// buildResult reduces per-face values into global statistics and per-vertex
// display data. values and hits are indexed by face and owned by the result
// afterwards. Degenerate faces carry 0 and take part in Min/Max like any
// other face.
func buildResult(m *kernel.Mesh, faces []Face, values []float64, hits []int) *Result {
	r := &Result{
		FaceIntensities: values,
		FaceHits:        hits,
		Min:             math.Inf(1),
		Max:             math.Inf(-1),
	}

	var sum float64
	for i, v := range values {
		if v < r.Min {
			r.Min = v
		}
		if v > r.Max {
			r.Max = v
		}
		sum += v
		r.TotalHits += hits[i]
	}
	r.Average = sum / float64(len(values))

	r.FaceNormalized = make([]float64, len(values))
	for i, v := range values {
		r.FaceNormalized[i] = normalize(v, r.Min, r.Max)
	}
	for _, f := range faces {
		if f.Degenerate {
			r.SkippedFaces++
		}
	}

	// Vertex accumulation: (total, count) per vertex over its faces.
	nv := m.VertexCount()
	total := make([]float64, nv)
	count := make([]int, nv)
	for _, f := range faces {
		for _, vi := range f.Vertices {
			total[vi] += values[f.Index]
			count[vi]++
		}
	}

	r.VertexIntensities = make([]float64, nv)
	r.VertexNormalized = make([]float64, nv)
	r.VertexDisplay = make([]float64, nv)
	for i := 0; i < nv; i++ {
		v := r.Min
		if count[i] > 0 {
			v = total[i] / float64(count[i])
		}
		r.VertexIntensities[i] = v
		r.VertexNormalized[i] = normalize(v, r.Min, r.Max)
		r.VertexDisplay[i] = 1 - r.VertexNormalized[i]
	}
	r.VertexColors = heatmap.VertexColors(r.VertexDisplay, heatmap.DefaultRamp)
	return r
}

// normalize maps v from [lo, hi] onto [0, 1]; a flat range maps to 0.
func normalize(v, lo, hi float64) float64 {
	span := hi - lo
	if span <= 0 || math.IsNaN(span) {
		return 0
	}
	return mgl64.Clamp((v-lo)/span, 0, 1)
}
