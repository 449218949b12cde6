package splash

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultTimeStep = 0.01
	DefaultMaxTime  = 2.0
	DefaultGravity  = 9.81

	// GroundLevel is the height below which a trajectory has landed.
	GroundLevel = 0.0
)

// Flight integrates projectile motion under constant downward gravity.
// Zero fields take the package defaults.
type Flight struct {
	TimeStep float64
	MaxTime  float64
	Gravity  float64
}

func (f Flight) withDefaults() Flight {
	if f.TimeStep <= 0 {
		f.TimeStep = DefaultTimeStep
	}
	if f.MaxTime <= 0 {
		f.MaxTime = DefaultMaxTime
	}
	if f.Gravity == 0 {
		f.Gravity = DefaultGravity
	}
	return f
}

// At returns the closed-form position at time t.
func (f Flight) At(start, velocity mgl64.Vec3, t float64) mgl64.Vec3 {
	f = f.withDefaults()
	p := start.Add(velocity.Mul(t))
	p[1] -= 0.5 * f.Gravity * t * t
	return p
}

// VelocityAt returns the velocity at time t.
func (f Flight) VelocityAt(velocity mgl64.Vec3, t float64) mgl64.Vec3 {
	f = f.withDefaults()
	velocity[1] -= f.Gravity * t
	return velocity
}

// Arc samples the trajectory every TimeStep up to MaxTime. The first point
// below GroundLevel is kept and ends the arc. The result always holds at least
// two points.
func (f Flight) Arc(start, velocity mgl64.Vec3) []mgl64.Vec3 {
	f = f.withDefaults()
	steps := int(math.Floor(f.MaxTime/f.TimeStep + 1e-9))
	if steps < 1 {
		steps = 1
	}

	arc := make([]mgl64.Vec3, 0, steps+1)
	for k := 0; k <= steps; k++ {
		p := f.At(start, velocity, float64(k)*f.TimeStep)
		arc = append(arc, p)
		if k > 0 && p.Y() < GroundLevel {
			break
		}
	}
	return arc
}
