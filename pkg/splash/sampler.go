package splash

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Launch cone bounds. Elevation is measured from the up (+Y) axis; the cone
// avoids near-vertical and near-horizontal launches.
const (
	MinElevation  = math.Pi / 6
	ElevationStep = math.Pi / 12

	DefaultAzimuthSteps   = 20
	DefaultElevationSteps = 3

	// MaxElevationSteps keeps the flattest ring, π/6 + 3·π/12, above the
	// horizon.
	MaxElevationSteps = 4
)

// InitialSpeed converts a force value into a launch speed.
func InitialSpeed(force float64) float64 {
	return force / 10
}

// Sampler produces the fixed angular grid of launch velocities.
type Sampler struct {
	AzimuthSteps   int
	ElevationSteps int
}

// Velocities returns AzimuthSteps×ElevationSteps launch velocities of
// magnitude InitialSpeed(force), azimuth-major within each elevation ring.
func (s Sampler) Velocities(force float64) []mgl64.Vec3 {
	nPhi, nTheta := s.AzimuthSteps, s.ElevationSteps
	if nPhi <= 0 {
		nPhi = DefaultAzimuthSteps
	}
	if nTheta <= 0 {
		nTheta = DefaultElevationSteps
	}
	if nTheta > MaxElevationSteps {
		nTheta = MaxElevationSteps
	}

	v := InitialSpeed(force)
	out := make([]mgl64.Vec3, 0, nPhi*nTheta)
	for j := 0; j < nTheta; j++ {
		theta := MinElevation + float64(j)*ElevationStep
		sinT, cosT := math.Sincos(theta)
		for i := 0; i < nPhi; i++ {
			phi := 2 * math.Pi * float64(i) / float64(nPhi)
			sinP, cosP := math.Sincos(phi)
			out = append(out, mgl64.Vec3{v * sinT * cosP, v * cosT, v * sinT * sinP})
		}
	}
	return out
}
