package splash

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// Strategy names accepted by NewEstimator.
const (
	StrategyAnalytic  = "analytic"
	StrategyParticles = "particles"
)

// Input ranges exposed to users.
const (
	SourceLimit  = 5.0
	MinForce     = 1.0
	MaxForce     = 100.0
	DefaultForce = 50.0
)

var (
	// ErrNoFaces is returned when the mesh has no triangles to estimate.
	ErrNoFaces = errors.New("splash: mesh has no faces")

	// ErrUnknownStrategy is returned by NewEstimator for an unknown name.
	ErrUnknownStrategy = errors.New("splash: unknown strategy")
)

// Estimator turns geometry and emission parameters into a normalised
// intensity field.
type Estimator interface {
	Name() string
	Estimate(ctx context.Context, m *kernel.Mesh, p Params) (*Result, error)
}

// Params are the emission parameters of one run.
type Params struct {
	Source         mgl64.Vec3 `json:"source"`
	Force          float64    `json:"force"`
	AzimuthSteps   int        `json:"azimuthSteps"`
	ElevationSteps int        `json:"elevationSteps"`
	TimeStep       float64    `json:"timeStep"`
	MaxTime        float64    `json:"maxTime"`
	Gravity        float64    `json:"gravity"`
}

// DefaultParams returns the parameters of the default 20×3 grid with the
// source at the origin.
func DefaultParams() Params {
	return Params{
		Force:          DefaultForce,
		AzimuthSteps:   DefaultAzimuthSteps,
		ElevationSteps: DefaultElevationSteps,
		TimeStep:       DefaultTimeStep,
		MaxTime:        DefaultMaxTime,
		Gravity:        DefaultGravity,
	}
}

// Normalized clamps the source and force into their user ranges and fills
// unset grid and timing fields with defaults.
func (p Params) Normalized() Params {
	p.Source = ClampSource(p.Source)
	p.Force = ClampForce(p.Force)
	if p.AzimuthSteps <= 0 {
		p.AzimuthSteps = DefaultAzimuthSteps
	}
	if p.ElevationSteps <= 0 {
		p.ElevationSteps = DefaultElevationSteps
	}
	if p.ElevationSteps > MaxElevationSteps {
		p.ElevationSteps = MaxElevationSteps
	}
	f := p.Flight()
	p.TimeStep, p.MaxTime, p.Gravity = f.TimeStep, f.MaxTime, f.Gravity
	return p
}

// Sampler returns the launch grid described by p.
func (p Params) Sampler() Sampler {
	return Sampler{AzimuthSteps: p.AzimuthSteps, ElevationSteps: p.ElevationSteps}
}

// Flight returns the integrator described by p.
func (p Params) Flight() Flight {
	return Flight{TimeStep: p.TimeStep, MaxTime: p.MaxTime, Gravity: p.Gravity}.withDefaults()
}

// ClampSource limits every coordinate to [-SourceLimit, SourceLimit].
func ClampSource(v mgl64.Vec3) mgl64.Vec3 {
	for i := range v {
		if math.IsNaN(v[i]) {
			v[i] = 0
		}
		v[i] = mgl64.Clamp(v[i], -SourceLimit, SourceLimit)
	}
	return v
}

// ClampForce rounds to the nearest integer and limits it to
// [MinForce, MaxForce].
func ClampForce(f float64) float64 {
	if math.IsNaN(f) {
		return MinForce
	}
	return mgl64.Clamp(math.Round(f), MinForce, MaxForce)
}

// Options configure the strategies built by NewEstimator.
type Options struct {
	// Workers bounds the analytic per-face fan-out; 0 means one per CPU.
	Workers     int
	Particles   ParticleConfig
	TextureSize int
	SplatRadius float64
}

// NewEstimator returns the strategy registered under name. An empty name
// selects the analytic strategy.
func NewEstimator(name string, opts Options) (Estimator, error) {
	switch name {
	case "", StrategyAnalytic:
		return Analytic{Workers: opts.Workers}, nil
	case StrategyParticles:
		return Particles{
			Config:      opts.Particles,
			TextureSize: opts.TextureSize,
			SplatRadius: opts.SplatRadius,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Simulator stamps every run with a monotonically increasing version so
// callers can tell a fresh result from a superseded one. It keeps no result
// itself; each Run hands ownership of a new Result to the caller.
type Simulator struct {
	mu        sync.Mutex
	estimator Estimator
	version   uint64
}

// NewSimulator returns a Simulator using e, or the analytic strategy when e
// is nil.
func NewSimulator(e Estimator) *Simulator {
	if e == nil {
		e = Analytic{}
	}
	return &Simulator{estimator: e}
}

// SetEstimator swaps the strategy used by later runs.
func (s *Simulator) SetEstimator(e Estimator) {
	if e == nil {
		return
	}
	s.mu.Lock()
	s.estimator = e
	s.mu.Unlock()
}

// Estimator returns the current strategy.
func (s *Simulator) Estimator() Estimator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimator
}

// Next reserves a new version number. Live sessions use it to tag frames.
func (s *Simulator) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	return s.version
}

// IsCurrent reports whether v is the most recently issued version.
func (s *Simulator) IsCurrent(v uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return v == s.version
}

// Run estimates m with the current strategy and returns a new Result
// stamped with a fresh version.
func (s *Simulator) Run(ctx context.Context, m *kernel.Mesh, p Params) (*Result, error) {
	s.mu.Lock()
	s.version++
	v := s.version
	est := s.estimator
	s.mu.Unlock()

	r, err := est.Estimate(ctx, m, p)
	if err != nil {
		return nil, fmt.Errorf("splash: %s run %d: %w", est.Name(), v, err)
	}
	r.Version = v
	return r, nil
}
