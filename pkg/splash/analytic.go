package splash

import (
	"context"
	"runtime"

	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
)

// Analytic is the batch strategy: every face is tested against the full
// launch grid. Faces are independent, so they are spread over Workers
// goroutines; each writes only its own slot and the result does not depend
// on scheduling.
type Analytic struct {
	Workers int
}

// Name implements Estimator.
func (Analytic) Name() string { return StrategyAnalytic }

// Estimate implements Estimator.
func (a Analytic) Estimate(ctx context.Context, m *kernel.Mesh, p Params) (*Result, error) {
	p = p.Normalized()
	faces, err := resolve(m)
	if err != nil {
		return nil, err
	}

	// Arcs depend only on the source and launch velocity, so one set serves
	// every face.
	flight := p.Flight()
	velocities := p.Sampler().Velocities(p.Force)
	arcs := make([][]mgl64.Vec3, len(velocities))
	for i, v := range velocities {
		arcs[i] = flight.Arc(p.Source, v)
	}

	values := make([]float64, len(faces))
	hits := make([]int, len(faces))

	workers := a.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range faces {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			values[i], hits[i] = faceIntensity(faces[i], arcs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := buildResult(m, faces, values, hits)
	r.Strategy = StrategyAnalytic
	r.Params = p
	r.Samples = len(arcs)
	return r, nil
}

// faceIntensity returns the mean sin² of the incident angles of the arcs
// that cross f, and how many did. A face nothing reaches scores 0.
func faceIntensity(f Face, arcs [][]mgl64.Vec3) (float64, int) {
	if f.Degenerate {
		return 0, 0
	}
	var sum float64
	var n int
	for _, arc := range arcs {
		hit, ok := IntersectArc(arc, f.Centroid, f.Normal)
		if !ok {
			continue
		}
		sum += Contribution(hit.Angle)
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
