package heatmap

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/llgcode/draw2d/draw2dimg"
	"golang.org/x/image/draw"
)

// ErrNoUVs is returned when a texture is requested for a mesh without
// texture coordinates.
var ErrNoUVs = errors.New("heatmap: mesh has no texture coordinates")

// PaintTexture fills every triangle's UV footprint with the ramp colour of
// the mean of its three vertex values. V runs bottom-up as in WebGL, so the
// image row is flipped.
func PaintTexture(m *kernel.Mesh, values []float64, size int, ramp Ramp) (*image.RGBA, error) {
	if !m.HasUVs() {
		return nil, ErrNoUVs
	}
	if len(values) != m.VertexCount() {
		return nil, fmt.Errorf("heatmap: %d values for %d vertices", len(values), m.VertexCount())
	}
	if size <= 0 {
		return nil, fmt.Errorf("heatmap: texture size must be positive, got %d", size)
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	gc := draw2dimg.NewGraphicContext(img)
	s := float64(size)

	for f := 0; f < m.TriangleCount(); f++ {
		tri := m.Triangle(f)
		mean := (values[tri[0]] + values[tri[1]] + values[tri[2]]) / 3

		gc.BeginPath()
		gc.SetFillColor(ramp.At(mean).NRGBA())
		for i, vi := range tri {
			uv := m.UV(vi)
			x, y := uv[0]*s, (1-uv[1])*s
			if i == 0 {
				gc.MoveTo(x, y)
			} else {
				gc.LineTo(x, y)
			}
		}
		gc.Close()
		gc.Fill()
	}
	return img, nil
}

// Accumulator is a square float grid collecting radial splats in UV space.
// It backs the texture variant of the particle strategy.
type Accumulator struct {
	size   int
	radius float64
	cells  []float64
	max    float64
}

// NewAccumulator returns an empty size×size grid whose splats fall off
// linearly to zero at radius cells.
func NewAccumulator(size int, radius float64) *Accumulator {
	if size <= 0 {
		size = 1
	}
	if radius < 1 {
		radius = 1
	}
	return &Accumulator{
		size:   size,
		radius: radius,
		cells:  make([]float64, size*size),
	}
}

// Size returns the edge length of the grid.
func (a *Accumulator) Size() int { return a.size }

// Max returns the largest accumulated cell value.
func (a *Accumulator) Max() float64 { return a.max }

// Value returns the accumulated value at cell (x, y).
func (a *Accumulator) Value(x, y int) float64 {
	if x < 0 || y < 0 || x >= a.size || y >= a.size {
		return 0
	}
	return a.cells[y*a.size+x]
}

// Splat adds weight around texture coordinate (u, v).
func (a *Accumulator) Splat(u, v, weight float64) {
	if math.IsNaN(u) || math.IsNaN(v) || weight <= 0 {
		return
	}
	cx := clamp01(u) * float64(a.size-1)
	cy := (1 - clamp01(v)) * float64(a.size-1)
	r := int(math.Ceil(a.radius))

	for y := int(cy) - r; y <= int(cy)+r; y++ {
		if y < 0 || y >= a.size {
			continue
		}
		for x := int(cx) - r; x <= int(cx)+r; x++ {
			if x < 0 || x >= a.size {
				continue
			}
			d := math.Hypot(float64(x)-cx, float64(y)-cy)
			if d > a.radius {
				continue
			}
			i := y*a.size + x
			a.cells[i] += weight * (1 - d/a.radius)
			if a.cells[i] > a.max {
				a.max = a.cells[i]
			}
		}
	}
}

// Clone returns an independent copy.
func (a *Accumulator) Clone() *Accumulator {
	c := *a
	c.cells = append([]float64(nil), a.cells...)
	return &c
}

// Image renders the grid normalized to its own maximum.
func (a *Accumulator) Image(ramp Ramp) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, a.size, a.size))
	for y := 0; y < a.size; y++ {
		for x := 0; x < a.size; x++ {
			v := 0.0
			if a.max > 0 {
				v = a.cells[y*a.size+x] / a.max
			}
			img.SetRGBA(x, y, rgba(ramp.At(v)))
		}
	}
	return img
}

// Scaled renders the grid and resamples it to size×size.
func (a *Accumulator) Scaled(ramp Ramp, size int) *image.RGBA {
	src := a.Image(ramp)
	if size <= 0 || size == a.size {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
