// Package heatmap maps normalized splashback values to colours and paints
// them onto vertex colour arrays or UV-mapped textures.
package heatmap

import (
	"image/color"
	"math"
)

// RGB is a linear colour with components in [0,1].
type RGB struct {
	R, G, B float64
}

// NRGBA converts the colour to an opaque 8-bit colour.
func (c RGB) NRGBA() color.NRGBA {
	return color.NRGBA{
		R: to8(c.R),
		G: to8(c.G),
		B: to8(c.B),
		A: 255,
	}
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

// Stop pins a colour to a position on the ramp.
type Stop struct {
	At    float64
	Color RGB
}

// Ramp is a piecewise-linear colour gradient. Stops must be sorted by At.
type Ramp []Stop

// DefaultRamp runs blue, green, yellow, red at 0, 0.4, 0.7 and 1.
var DefaultRamp = Ramp{
	{At: 0.0, Color: RGB{0, 0, 1}},
	{At: 0.4, Color: RGB{0, 1, 0}},
	{At: 0.7, Color: RGB{1, 1, 0}},
	{At: 1.0, Color: RGB{1, 0, 0}},
}

// At returns the colour for x. Values outside the ramp clamp to the end
// stops; NaN is treated as the first stop.
func (r Ramp) At(x float64) RGB {
	if len(r) == 0 {
		return RGB{}
	}
	if math.IsNaN(x) || x <= r[0].At {
		return r[0].Color
	}
	last := r[len(r)-1]
	if x >= last.At {
		return last.Color
	}

	for i := 0; i < len(r)-1; i++ {
		lo, hi := r[i], r[i+1]
		if x == hi.At {
			return hi.Color
		}
		if x > hi.At {
			continue
		}
		span := hi.At - lo.At
		if span <= 0 {
			return hi.Color
		}
		f := (x - lo.At) / span
		return RGB{
			R: lerp(lo.Color.R, hi.Color.R, f),
			G: lerp(lo.Color.G, hi.Color.G, f),
			B: lerp(lo.Color.B, hi.Color.B, f),
		}
	}
	return last.Color
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// VertexColors maps one value per vertex through the ramp and returns a
// flat [r0,g0,b0, r1,g1,b1, ...] array ready for a colour attribute.
func VertexColors(values []float64, ramp Ramp) []float32 {
	colors := make([]float32, 0, len(values)*3)
	for _, v := range values {
		c := ramp.At(v)
		colors = append(colors, float32(c.R), float32(c.G), float32(c.B))
	}
	return colors
}

func rgba(c RGB) color.RGBA {
	n := c.NRGBA()
	return color.RGBA{R: n.R, G: n.G, B: n.B, A: 255}
}

// Reversed returns the ramp mirrored end to end, so the colour for x becomes
// the colour the original gives 1-x.
func (r Ramp) Reversed() Ramp {
	out := make(Ramp, len(r))
	for i, s := range r {
		out[len(r)-1-i] = Stop{At: 1 - s.At, Color: s.Color}
	}
	return out
}
