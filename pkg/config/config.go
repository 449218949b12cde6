// Package config reads splashmap settings from gcfg (INI-style) files.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chazu/splashmap/pkg/splash"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/gcfg.v1"
)

// ExampleFile is a fully commented configuration holding the defaults. The
// CLI prints it with -example-config.
const ExampleFile = `[Simulation]

# Estimation strategy: analytic (deterministic trajectory grid) or
# particles (seeded particle emission, streamable).
Strategy = analytic

# Launch force, clamped to [1, 100]. Initial speed is Force / 10.
Force = 50

# Trajectory grid: azimuth samples around the source and elevation rings
# starting at 30 degrees in 15 degree steps.
AzimuthSteps = 20
ElevationSteps = 3

# Integration settings (seconds, m/s^2).
TimeStep = 0.01
MaxTime = 2.0
Gravity = 9.81

# Faces evaluated in parallel. 0 uses every CPU.
Workers = 0

# Vertices closer than this are merged before estimation. 0 disables.
WeldEpsilon = 0.0001

[Source]

# Launch point, each coordinate clamped to [-5, 5].
X = 0
Y = 0
Z = 0

[Particles]

Count = 2000
Rate = 500
# Half-angle of the emission cone around +Y, radians.
Spread = 0.5236
Lifetime = 2.0
FrameStep = 0.016666
Seed = 1

[Heatmap]

# Edge length of exported textures, pixels.
TextureSize = 512
# Particle splat radius, texture cells.
SplatRadius = 6

[Kernel]

# Marching cubes resolution along the longest axis of a scripted part.
MeshCells = 200

[Server]

Address = :8731
FrameInterval = 50ms
`

type SimulationConfig struct {
	Strategy                     string
	Force                        float64
	AzimuthSteps, ElevationSteps int
	TimeStep, MaxTime, Gravity   float64
	Workers                      int
	WeldEpsilon                  float64
}

type SourceConfig struct {
	X, Y, Z float64
}

type ParticlesConfig struct {
	Count     int
	Rate      float64
	Spread    float64
	Lifetime  float64
	FrameStep float64
	Seed      int64
}

type HeatmapConfig struct {
	TextureSize int
	SplatRadius float64
}

type KernelConfig struct {
	MeshCells int
}

type ServerConfig struct {
	Address       string
	FrameInterval string
}

// Config mirrors the sections of a configuration file.
type Config struct {
	Simulation SimulationConfig
	Source     SourceConfig
	Particles  ParticlesConfig
	Heatmap    HeatmapConfig
	Kernel     KernelConfig
	Server     ServerConfig
}

// Default returns the configuration described by ExampleFile.
func Default() *Config {
	pc := splash.DefaultParticleConfig()
	return &Config{
		Simulation: SimulationConfig{
			Strategy:       splash.StrategyAnalytic,
			Force:          splash.DefaultForce,
			AzimuthSteps:   splash.DefaultAzimuthSteps,
			ElevationSteps: splash.DefaultElevationSteps,
			TimeStep:       splash.DefaultTimeStep,
			MaxTime:        splash.DefaultMaxTime,
			Gravity:        splash.DefaultGravity,
			WeldEpsilon:    1e-4,
		},
		Particles: ParticlesConfig{
			Count:     pc.Count,
			Rate:      pc.Rate,
			Spread:    pc.Spread,
			Lifetime:  pc.Lifetime,
			FrameStep: pc.FrameStep,
			Seed:      pc.Seed,
		},
		Heatmap: HeatmapConfig{TextureSize: 512, SplatRadius: 6},
		Kernel:  KernelConfig{MeshCells: 200},
		Server:  ServerConfig{Address: ":8731", FrameInterval: "50ms"},
	}
}

// ReadFile reads the file at path over the defaults and validates the
// result. Variables missing from the file keep their default values.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if err := gcfg.ReadFileInto(cfg, path); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ReadString parses configuration text over the defaults and validates it.
func ReadString(text string) (*Config, error) {
	cfg := Default()
	if err := gcfg.ReadStringInto(cfg, text); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (con *SimulationConfig) ValidStrategy() bool {
	s := strings.ToLower(con.Strategy)
	return s == splash.StrategyAnalytic || s == splash.StrategyParticles
}
func (con *SimulationConfig) ValidAzimuthSteps() bool {
	return con.AzimuthSteps > 0
}
func (con *SimulationConfig) ValidElevationSteps() bool {
	return con.ElevationSteps > 0 && con.ElevationSteps <= splash.MaxElevationSteps
}
func (con *SimulationConfig) ValidTimeStep() bool {
	return finite(con.TimeStep) && con.TimeStep > 0 && con.TimeStep <= con.MaxTime
}
func (con *SimulationConfig) ValidMaxTime() bool {
	return finite(con.MaxTime) && con.MaxTime > 0
}
func (con *SimulationConfig) ValidGravity() bool {
	return finite(con.Gravity) && con.Gravity > 0
}
func (con *SimulationConfig) ValidWorkers() bool {
	return con.Workers >= 0
}
func (con *SimulationConfig) ValidWeldEpsilon() bool {
	return finite(con.WeldEpsilon) && con.WeldEpsilon >= 0
}

func (con *ParticlesConfig) ValidCount() bool {
	return con.Count > 0
}
func (con *ParticlesConfig) ValidRate() bool {
	return finite(con.Rate) && con.Rate > 0
}
func (con *ParticlesConfig) ValidSpread() bool {
	return finite(con.Spread) && con.Spread >= 0 && con.Spread <= math.Pi/2
}
func (con *ParticlesConfig) ValidLifetime() bool {
	return finite(con.Lifetime) && con.Lifetime > 0
}
func (con *ParticlesConfig) ValidFrameStep() bool {
	return finite(con.FrameStep) && con.FrameStep > 0
}

func (con *HeatmapConfig) ValidTextureSize() bool {
	return con.TextureSize > 0 && con.TextureSize <= 8192
}
func (con *HeatmapConfig) ValidSplatRadius() bool {
	return finite(con.SplatRadius) && con.SplatRadius >= 1
}

func (con *KernelConfig) ValidMeshCells() bool {
	return con.MeshCells >= 8
}

func (con *ServerConfig) ValidAddress() bool {
	return con.Address != ""
}

// Interval parses FrameInterval.
func (con *ServerConfig) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(con.FrameInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("frame interval must be positive, got %s", d)
	}
	return d, nil
}

// Validate checks every field and reports all problems at once. Force and
// source coordinates are not checked; they are clamped when used.
func (cfg *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	s := &cfg.Simulation
	check(s.ValidStrategy(), "Simulation.Strategy %q must be %s or %s", s.Strategy, splash.StrategyAnalytic, splash.StrategyParticles)
	check(s.ValidAzimuthSteps(), "Simulation.AzimuthSteps must be positive, got %d", s.AzimuthSteps)
	check(s.ValidElevationSteps(), "Simulation.ElevationSteps must be in [1, %d], got %d", splash.MaxElevationSteps, s.ElevationSteps)
	check(s.ValidMaxTime(), "Simulation.MaxTime must be positive, got %g", s.MaxTime)
	check(s.ValidTimeStep(), "Simulation.TimeStep must be in (0, MaxTime], got %g", s.TimeStep)
	check(s.ValidGravity(), "Simulation.Gravity must be positive, got %g", s.Gravity)
	check(s.ValidWorkers(), "Simulation.Workers must not be negative, got %d", s.Workers)
	check(s.ValidWeldEpsilon(), "Simulation.WeldEpsilon must not be negative, got %g", s.WeldEpsilon)

	p := &cfg.Particles
	check(p.ValidCount(), "Particles.Count must be positive, got %d", p.Count)
	check(p.ValidRate(), "Particles.Rate must be positive, got %g", p.Rate)
	check(p.ValidSpread(), "Particles.Spread must be in [0, pi/2], got %g", p.Spread)
	check(p.ValidLifetime(), "Particles.Lifetime must be positive, got %g", p.Lifetime)
	check(p.ValidFrameStep(), "Particles.FrameStep must be positive, got %g", p.FrameStep)

	h := &cfg.Heatmap
	check(h.ValidTextureSize(), "Heatmap.TextureSize must be in [1, 8192], got %d", h.TextureSize)
	check(h.ValidSplatRadius(), "Heatmap.SplatRadius must be at least 1, got %g", h.SplatRadius)

	check(cfg.Kernel.ValidMeshCells(), "Kernel.MeshCells must be at least 8, got %d", cfg.Kernel.MeshCells)

	check(cfg.Server.ValidAddress(), "Server.Address must not be empty")
	if _, err := cfg.Server.Interval(); err != nil {
		problems = append(problems, fmt.Sprintf("Server.FrameInterval: %v", err))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration:\n  " + strings.Join(problems, "\n  "))
}

// Params returns the estimation parameters, clamped and defaulted.
func (cfg *Config) Params() splash.Params {
	s := cfg.Simulation
	return splash.Params{
		Source:         mgl64.Vec3{cfg.Source.X, cfg.Source.Y, cfg.Source.Z},
		Force:          s.Force,
		AzimuthSteps:   s.AzimuthSteps,
		ElevationSteps: s.ElevationSteps,
		TimeStep:       s.TimeStep,
		MaxTime:        s.MaxTime,
		Gravity:        s.Gravity,
	}.Normalized()
}

// Options returns the strategy options.
func (cfg *Config) Options() splash.Options {
	p := cfg.Particles
	return splash.Options{
		Workers: cfg.Simulation.Workers,
		Particles: splash.ParticleConfig{
			Count:     p.Count,
			Rate:      p.Rate,
			Spread:    p.Spread,
			Lifetime:  p.Lifetime,
			FrameStep: p.FrameStep,
			Seed:      p.Seed,
		},
		TextureSize: cfg.Heatmap.TextureSize,
		SplatRadius: cfg.Heatmap.SplatRadius,
	}
}

// Estimator builds the configured strategy.
func (cfg *Config) Estimator() (splash.Estimator, error) {
	return splash.NewEstimator(strings.ToLower(cfg.Simulation.Strategy), cfg.Options())
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
