package splash_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chazu/splashmap/pkg/heatmap"
	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/chazu/splashmap/pkg/splash"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test meshes ---

// floor returns an upward-facing square of the given half extent centred on
// (0, y, 0), as two triangles with UVs.
func floor(y, half float32) *kernel.Mesh {
	return &kernel.Mesh{
		Vertices: []float32{
			-half, y, -half,
			half, y, -half,
			half, y, half,
			-half, y, half,
		},
		Normals: []float32{0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0},
		UVs:     []float32{0, 0, 1, 0, 1, 1, 0, 1},
		Indices: []uint32{0, 2, 1, 0, 3, 2},
	}
}

// wall returns a square facing -X standing on the ground at x.
func wall(x float32) *kernel.Mesh {
	return &kernel.Mesh{
		Vertices: []float32{
			x, 0, -1,
			x, 0, 1,
			x, 2, 1,
			x, 2, -1,
		},
		Normals: []float32{-1, 0, 0, -1, 0, 0, -1, 0, 0, -1, 0, 0},
		UVs:     []float32{0, 0, 1, 0, 1, 1, 0, 1},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// facetedCube returns an axis-aligned cube spanning [-0.5, 0.5] in X and Z
// and [lo, lo+1] in Y, unindexed with one normal per facet as an STL file
// carries it. The +Y facet comes first.
func facetedCube(lo float32) *kernel.Mesh {
	hi := lo + 1
	type facet struct {
		n       [3]float32
		corners [4][3]float32
	}
	facets := []facet{
		{[3]float32{0, 1, 0}, [4][3]float32{{-0.5, hi, -0.5}, {-0.5, hi, 0.5}, {0.5, hi, 0.5}, {0.5, hi, -0.5}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-0.5, lo, -0.5}, {0.5, lo, -0.5}, {0.5, lo, 0.5}, {-0.5, lo, 0.5}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{0.5, lo, -0.5}, {0.5, hi, -0.5}, {0.5, hi, 0.5}, {0.5, lo, 0.5}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-0.5, lo, -0.5}, {-0.5, lo, 0.5}, {-0.5, hi, 0.5}, {-0.5, hi, -0.5}}},
		{[3]float32{0, 0, 1}, [4][3]float32{{-0.5, lo, 0.5}, {0.5, lo, 0.5}, {0.5, hi, 0.5}, {-0.5, hi, 0.5}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{-0.5, lo, -0.5}, {-0.5, hi, -0.5}, {0.5, hi, -0.5}, {0.5, lo, -0.5}}},
	}
	m := &kernel.Mesh{Name: "cube"}
	for _, f := range facets {
		for _, ci := range []int{0, 1, 2, 0, 2, 3} {
			c := f.corners[ci]
			m.Vertices = append(m.Vertices, c[0], c[1], c[2])
			m.Normals = append(m.Normals, f.n[0], f.n[1], f.n[2])
		}
	}
	return m
}

// room mixes floors at several heights with a wall so faces score
// differently.
func room() *kernel.Mesh {
	return kernel.Merge("room", floor(0.2, 0.5), floor(0.5, 1), floor(0.8, 2), wall(2), floor(3, 1))
}

func params(source mgl64.Vec3, force float64) splash.Params {
	p := splash.DefaultParams()
	p.Source = source
	p.Force = force
	return p
}

func estimate(t *testing.T, m *kernel.Mesh, p splash.Params) *splash.Result {
	t.Helper()
	r, err := splash.Analytic{}.Estimate(context.Background(), m, p)
	require.NoError(t, err)
	return r
}

// --- Analytic strategy ---

// The steepest sampled launch at force 50 peaks at (5·cos π/6)²/2g ≈ 0.955,
// so a face at height 1 is out of reach.
func TestAnalyticFaceAboveApexIsUnreached(t *testing.T) {
	r := estimate(t, floor(1, 0.5), params(mgl64.Vec3{}, 50))

	assert.Equal(t, []int{0, 0}, r.FaceHits)
	assert.Equal(t, []float64{0, 0}, r.FaceIntensities)
	assert.Equal(t, 0.0, r.Min)
	assert.Equal(t, 0.0, r.Max)
	assert.Equal(t, 60, r.Samples)
}

// At height 0.5 the two shallower rings (40 of 60 trajectories) cross the
// face plane.
func TestAnalyticFaceWithinReach(t *testing.T) {
	r := estimate(t, floor(0.5, 0.5), params(mgl64.Vec3{}, 50))

	assert.Equal(t, []int{40, 40}, r.FaceHits)
	assert.Equal(t, 80, r.TotalHits)
	for i, v := range r.FaceIntensities {
		assert.Greater(t, v, 0.0, "face %d", i)
		assert.Less(t, v, 1.0, "face %d", i)
	}
}

func TestAnalyticIncidentAnglesFollowElevation(t *testing.T) {
	p := params(mgl64.Vec3{}, 50).Normalized()
	flight := p.Flight()
	up := mgl64.Vec3{0, 1, 0}

	hits := 0
	for i, v := range p.Sampler().Velocities(p.Force) {
		hit, ok := splash.IntersectArc(flight.Arc(p.Source, v), mgl64.Vec3{0, 0.5, 0}, up)
		if !ok {
			continue
		}
		hits++
		elevation := splash.MinElevation + float64(i/p.AzimuthSteps)*splash.ElevationStep
		// Gravity has slowed the climb, so the arc arrives flatter than it
		// left.
		assert.Greater(t, hit.Angle, elevation, "trajectory %d", i)
		assert.Less(t, hit.Angle, math.Pi/2, "trajectory %d", i)
	}
	assert.Equal(t, 40, hits)
}

func TestAnalyticWeldKeepsFacetNormals(t *testing.T) {
	raw := facetedCube(0.5)
	welded := raw.Weld(1e-4)
	require.Equal(t, 8, welded.VertexCount())
	require.Equal(t, raw.TriangleCount(), welded.TriangleCount())

	rawFaces, weldedFaces := splash.Faces(raw), splash.Faces(welded)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, weldedFaces[0].Normal)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, weldedFaces[1].Normal)
	for f := range rawFaces {
		assert.Equal(t, rawFaces[f].Normal, weldedFaces[f].Normal, "face %d", f)
	}

	p := splash.DefaultParams()
	before, after := estimate(t, raw, p), estimate(t, welded, p)
	assert.Greater(t, before.Max, 0.0)
	assert.InDeltaSlice(t, before.FaceIntensities, after.FaceIntensities, 1e-12)
}

func TestAnalyticSourceOutsideEnvelope(t *testing.T) {
	tri := &kernel.Mesh{
		Vertices: []float32{-1, 3, -1, 1, 3, -1, 0, 3, 1},
		Normals:  []float32{0, -1, 0, 0, -1, 0, 0, -1, 0},
	}
	r := estimate(t, tri, params(mgl64.Vec3{0, -5, 0}, 100))
	assert.Equal(t, []float64{0}, r.FaceIntensities)
	assert.Equal(t, []int{0}, r.FaceHits)
}

func TestAnalyticNormalizationBounds(t *testing.T) {
	r := estimate(t, room(), params(mgl64.Vec3{0, 0.1, 0}, 60))
	require.Equal(t, 10, r.FaceCount())
	require.Less(t, r.Min, r.Max, "room faces should not all score alike")

	for i, v := range r.FaceIntensities {
		assert.GreaterOrEqual(t, v, r.Min, "face %d", i)
		assert.LessOrEqual(t, v, r.Max, "face %d", i)
		assert.GreaterOrEqual(t, r.FaceNormalized[i], 0.0)
		assert.LessOrEqual(t, r.FaceNormalized[i], 1.0)
	}
	for i := range r.VertexNormalized {
		assert.GreaterOrEqual(t, r.VertexNormalized[i], 0.0)
		assert.LessOrEqual(t, r.VertexNormalized[i], 1.0)
		assert.Equal(t, 1-r.VertexNormalized[i], r.VertexDisplay[i])
	}

	var sum float64
	for _, v := range r.FaceIntensities {
		sum += v
	}
	assert.InDelta(t, sum/10, r.Average, 1e-12)
}

func TestAnalyticVertexAveraging(t *testing.T) {
	m := &kernel.Mesh{
		Vertices: []float32{
			-1, 0.5, -1,
			1, 0.5, -1,
			-1, 0.5, 1,
			1, 2.5, 1,
			9, 9, 9, // belongs to no face
		},
		Indices: []uint32{0, 1, 2, 1, 3, 2},
	}
	r := estimate(t, m, params(mgl64.Vec3{}, 50))
	f := r.FaceIntensities

	assert.Equal(t, f[0], r.VertexIntensities[0])
	assert.Equal(t, f[1], r.VertexIntensities[3])
	assert.InDelta(t, (f[0]+f[1])/2, r.VertexIntensities[1], 1e-15)
	assert.InDelta(t, (f[0]+f[1])/2, r.VertexIntensities[2], 1e-15)
	assert.Equal(t, r.Min, r.VertexIntensities[4])
	assert.Equal(t, 0.0, r.VertexNormalized[4])
}

func TestAnalyticColorsFollowDisplayValues(t *testing.T) {
	r := estimate(t, room(), params(mgl64.Vec3{0, 0.1, 0}, 60))
	assert.Equal(t, heatmap.VertexColors(r.VertexDisplay, heatmap.DefaultRamp), r.VertexColors)
	assert.Len(t, r.VertexColors, 3*len(r.VertexDisplay))
}

func TestAnalyticDeterministic(t *testing.T) {
	m := room()
	p := params(mgl64.Vec3{0.3, 0.1, -0.2}, 70)

	serial, err := splash.Analytic{Workers: 1}.Estimate(context.Background(), m, p)
	require.NoError(t, err)
	parallel, err := splash.Analytic{Workers: 8}.Estimate(context.Background(), m, p)
	require.NoError(t, err)
	again, err := splash.Analytic{Workers: 8}.Estimate(context.Background(), m, p)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
	assert.Equal(t, parallel.VertexColors, again.VertexColors)
}

func TestAnalyticSkipsDegenerateFaces(t *testing.T) {
	sliver := &kernel.Mesh{
		Vertices: []float32{0, 0.5, 0, 1, 0.5, 0, 2, 0.5, 0},
		Normals:  make([]float32, 9),
	}
	r := estimate(t, kernel.Merge("m", floor(0.5, 0.5), sliver), params(mgl64.Vec3{}, 50))

	require.Equal(t, 3, r.FaceCount())
	assert.Equal(t, 1, r.SkippedFaces)
	assert.Equal(t, 0.0, r.FaceIntensities[2])
	assert.Equal(t, 0, r.FaceHits[2])
	assert.Equal(t, 0.0, r.Min)
	for _, v := range r.FaceIntensities {
		assert.False(t, math.IsNaN(v))
	}
	// The reachable floor scores highest and so renders at the cool end.
	assert.Equal(t, 1.0, r.FaceNormalized[0])
	assert.Equal(t, 0.0, r.VertexDisplay[0])
}

func TestAnalyticErrors(t *testing.T) {
	ctx := context.Background()

	_, err := splash.Analytic{}.Estimate(ctx, &kernel.Mesh{}, splash.DefaultParams())
	assert.True(t, errors.Is(err, splash.ErrNoFaces))

	_, err = splash.Analytic{}.Estimate(ctx, nil, splash.DefaultParams())
	assert.True(t, errors.Is(err, splash.ErrNoFaces))

	bad := &kernel.Mesh{Vertices: make([]float32, 9), Indices: []uint32{0, 1, 7}}
	_, err = splash.Analytic{}.Estimate(ctx, bad, splash.DefaultParams())
	assert.True(t, errors.Is(err, kernel.ErrMalformedMesh))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = splash.Analytic{}.Estimate(cancelled, room(), splash.DefaultParams())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestResultTexture(t *testing.T) {
	m := floor(0.5, 0.5)
	r := estimate(t, m, params(mgl64.Vec3{}, 50))
	img, err := r.Texture(m, 16)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

// --- Parameters ---

func TestClampSource(t *testing.T) {
	got := splash.ClampSource(mgl64.Vec3{-7, 2, math.NaN()})
	assert.Equal(t, mgl64.Vec3{-5, 2, 0}, got)
	assert.Equal(t, mgl64.Vec3{5, 5, 5}, splash.ClampSource(mgl64.Vec3{6, 5, 100}))
}

func TestClampForce(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 1},
		{-3, 1},
		{49.6, 50},
		{100, 100},
		{250, 100},
		{math.NaN(), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splash.ClampForce(tt.in), "ClampForce(%v)", tt.in)
	}
}

func TestParamsNormalized(t *testing.T) {
	p := splash.Params{Source: mgl64.Vec3{0, 9, 0}, Force: 500}.Normalized()
	assert.Equal(t, mgl64.Vec3{0, 5, 0}, p.Source)
	assert.Equal(t, 100.0, p.Force)
	assert.Equal(t, splash.DefaultAzimuthSteps, p.AzimuthSteps)
	assert.Equal(t, splash.DefaultElevationSteps, p.ElevationSteps)
	assert.Equal(t, splash.DefaultTimeStep, p.TimeStep)
	assert.Equal(t, splash.DefaultMaxTime, p.MaxTime)
	assert.Equal(t, splash.DefaultGravity, p.Gravity)

	p = splash.Params{ElevationSteps: 7}.Normalized()
	assert.Equal(t, splash.MaxElevationSteps, p.ElevationSteps)
}

// --- Strategy selection and versioning ---

func TestNewEstimator(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", splash.StrategyAnalytic},
		{"analytic", splash.StrategyAnalytic},
		{"particles", splash.StrategyParticles},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.name, func(t *testing.T) {
			e, err := splash.NewEstimator(tt.name, splash.Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Name())
		})
	}

	_, err := splash.NewEstimator("fluid", splash.Options{})
	assert.True(t, errors.Is(err, splash.ErrUnknownStrategy))
}

func TestSimulatorVersions(t *testing.T) {
	sim := splash.NewSimulator(nil)
	assert.Equal(t, splash.StrategyAnalytic, sim.Estimator().Name())

	m := floor(0.5, 0.5)
	first, err := sim.Run(context.Background(), m, splash.DefaultParams())
	require.NoError(t, err)
	second, err := sim.Run(context.Background(), m, splash.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, uint64(2), second.Version)
	assert.NotSame(t, first, second)
	assert.False(t, sim.IsCurrent(first.Version))
	assert.True(t, sim.IsCurrent(second.Version))

	// Everything but the stamp is identical between the two runs.
	first.Version = second.Version
	assert.Equal(t, first, second)

	live := sim.Next()
	assert.Equal(t, uint64(3), live)
	assert.False(t, sim.IsCurrent(second.Version))

	_, err = sim.Run(context.Background(), &kernel.Mesh{}, splash.DefaultParams())
	assert.True(t, errors.Is(err, splash.ErrNoFaces))
	assert.Contains(t, err.Error(), "analytic run 4")
}

func TestSimulatorSetEstimator(t *testing.T) {
	sim := splash.NewSimulator(splash.Analytic{})
	sim.SetEstimator(nil)
	assert.Equal(t, splash.StrategyAnalytic, sim.Estimator().Name())
	sim.SetEstimator(splash.Particles{})
	assert.Equal(t, splash.StrategyParticles, sim.Estimator().Name())
}
