package splash

import (
	"context"
	"math"
	"math/rand"

	"github.com/chazu/splashmap/pkg/heatmap"
	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// ParticleConfig tunes the incremental strategy. Zero fields take the
// DefaultParticleConfig values.
type ParticleConfig struct {
	Count     int     // particles emitted over the session
	Rate      float64 // particles per second
	Spread    float64 // half-angle of the emission cone around +Y, radians
	Lifetime  float64 // seconds before a particle retires unseen
	FrameStep float64 // seconds per Estimate frame
	Seed      int64
}

// DefaultParticleConfig returns the default tuning.
func DefaultParticleConfig() ParticleConfig {
	return ParticleConfig{
		Count:     2000,
		Rate:      500,
		Spread:    math.Pi / 6,
		Lifetime:  2,
		FrameStep: 1.0 / 60,
		Seed:      1,
	}
}

func (c ParticleConfig) withDefaults() ParticleConfig {
	d := DefaultParticleConfig()
	if c.Count <= 0 {
		c.Count = d.Count
	}
	if c.Rate <= 0 {
		c.Rate = d.Rate
	}
	if c.Spread <= 0 {
		c.Spread = d.Spread
	}
	if c.Lifetime <= 0 {
		c.Lifetime = d.Lifetime
	}
	if c.FrameStep <= 0 {
		c.FrameStep = d.FrameStep
	}
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
	return c
}

// Speed jitter applied to each particle's launch speed.
const (
	minSpeedScale = 0.8
	maxSpeedScale = 1.2
)

// Particles is the incremental strategy: particles are emitted from the
// source, stepped frame by frame and raycast against the mesh; each first
// collision adds sin² of its incident angle to the face it hit.
type Particles struct {
	Config      ParticleConfig
	TextureSize int
	SplatRadius float64
}

// Name implements Estimator.
func (Particles) Name() string { return StrategyParticles }

// Estimate implements Estimator by running a session to completion.
func (p Particles) Estimate(ctx context.Context, m *kernel.Mesh, params Params) (*Result, error) {
	s, err := p.Start(m, params)
	if err != nil {
		return nil, err
	}
	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.Step(s.cfg.FrameStep)
	}
	return s.Snapshot(), nil
}

// Start prepares a session over m. The session is not safe for concurrent
// use.
func (p Particles) Start(m *kernel.Mesh, params Params) (*Session, error) {
	faces, err := resolve(m)
	if err != nil {
		return nil, err
	}
	params = params.Normalized()
	cfg := p.Config.withDefaults()

	s := &Session{
		mesh:     m,
		faces:    faces,
		boxes:    make([]bounds, len(faces)),
		params:   params,
		flight:   params.Flight(),
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		energy:   make([]float64, len(faces)),
		faceHits: make([]int, len(faces)),
	}
	for i, f := range faces {
		s.boxes[i] = faceBounds(f.Points)
	}
	if m.HasUVs() {
		size, radius := p.TextureSize, p.SplatRadius
		if size <= 0 {
			size = 512
		}
		if radius <= 0 {
			radius = 6
		}
		s.splats = heatmap.NewAccumulator(size, radius)
	}
	return s, nil
}

type particle struct {
	velocity mgl64.Vec3
	age      float64
}

// FrameStats describes one Step.
type FrameStats struct {
	Frame   int `json:"frame"`
	Spawned int `json:"spawned"`
	Active  int `json:"active"`
	NewHits int `json:"newHits"`
	Hits    int `json:"hits"`
}

// Session is one live particle run. Its running totals can be read at any
// time through Snapshot.
type Session struct {
	mesh   *kernel.Mesh
	faces  []Face
	boxes  []bounds
	params Params
	flight Flight
	cfg    ParticleConfig
	rng    *rand.Rand

	live     []particle
	spawned  int
	debt     float64
	frame    int
	hits     int
	energy   []float64
	faceHits []int
	splats   *heatmap.Accumulator
}

// Config returns the effective particle tuning.
func (s *Session) Config() ParticleConfig { return s.cfg }

// Done reports whether every particle has been emitted and retired.
func (s *Session) Done() bool {
	return s.spawned >= s.cfg.Count && len(s.live) == 0
}

// Step advances the session by dt seconds: new particles are emitted at the
// configured rate, then every live particle moves along its arc and retires
// on its first collision, below ground or past its lifetime.
func (s *Session) Step(dt float64) FrameStats {
	if dt <= 0 {
		dt = s.cfg.FrameStep
	}
	s.frame++

	s.debt += s.cfg.Rate * dt
	for s.debt >= 1 && s.spawned < s.cfg.Count {
		s.live = append(s.live, particle{velocity: s.launch()})
		s.spawned++
		s.debt--
	}
	if s.spawned >= s.cfg.Count {
		s.debt = 0
	}

	newHits := 0
	kept := s.live[:0]
	for _, p := range s.live {
		from := s.flight.At(s.params.Source, p.velocity, p.age)
		p.age += dt
		to := s.flight.At(s.params.Source, p.velocity, p.age)

		if s.collide(from, to) {
			newHits++
			continue
		}
		if to.Y() < GroundLevel || p.age >= s.cfg.Lifetime {
			continue
		}
		kept = append(kept, p)
	}
	s.live = kept
	s.hits += newHits

	return FrameStats{
		Frame:   s.frame,
		Spawned: s.spawned,
		Active:  len(s.live),
		NewHits: newHits,
		Hits:    s.hits,
	}
}

// launch draws a velocity inside the emission cone.
func (s *Session) launch() mgl64.Vec3 {
	speed := InitialSpeed(s.params.Force) * (minSpeedScale + (maxSpeedScale-minSpeedScale)*s.rng.Float64())
	azimuth := 2 * math.Pi * s.rng.Float64()
	polar := s.cfg.Spread * s.rng.Float64()
	sinT, cosT := math.Sincos(polar)
	sinP, cosP := math.Sincos(azimuth)
	return mgl64.Vec3{speed * sinT * cosP, speed * cosT, speed * sinT * sinP}
}

// collide raycasts the segment from→to against every face and records the
// closest hit.
func (s *Session) collide(from, to mgl64.Vec3) bool {
	seg := to.Sub(from)
	length := seg.Len()
	if length == 0 {
		return false
	}
	box := bounds{min: from, max: from}.extend(to)

	best, bestT := -1, math.Inf(1)
	var bestU, bestV float64
	for i, f := range s.faces {
		if f.Degenerate || !box.overlaps(s.boxes[i]) {
			continue
		}
		t, u, v, ok := rayTriangle(from, seg, f.Points)
		if !ok || t <= 0 || t > 1 || t >= bestT {
			continue
		}
		best, bestT, bestU, bestV = i, t, u, v
	}
	if best < 0 {
		return false
	}

	f := s.faces[best]
	d := seg.Mul(1 / length)
	angle := math.Acos(mgl64.Clamp(math.Abs(d.Dot(f.Normal)), 0, 1))
	w := Contribution(angle)
	s.energy[best] += w
	s.faceHits[best]++

	if s.splats != nil {
		uv := s.mesh.UV(f.Vertices[0]).Mul(1 - bestU - bestV).
			Add(s.mesh.UV(f.Vertices[1]).Mul(bestU)).
			Add(s.mesh.UV(f.Vertices[2]).Mul(bestV))
		s.splats.Splat(uv[0], uv[1], w)
	}
	return true
}

// Snapshot builds a Result from the totals accumulated so far. Face
// intensity is the summed sin² energy of the collisions on that face.
func (s *Session) Snapshot() *Result {
	values := append([]float64(nil), s.energy...)
	hits := append([]int(nil), s.faceHits...)
	r := buildResult(s.mesh, s.faces, values, hits)
	r.Strategy = StrategyParticles
	r.Params = s.params
	r.Samples = s.spawned
	if s.splats != nil {
		r.Splats = s.splats.Clone()
	}
	return r
}
