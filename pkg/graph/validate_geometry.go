package graph

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Geometric validation (errors)
// ---------------------------------------------------------------------------

// Emitter ranges. Values outside them are clamped by the estimator; the
// validator only warns.
const (
	SourceLimit = 5.0
	MinForce    = 1.0
	MaxForce    = 100.0
)

// validateGeometry checks primitive dimensions and that each primitive
// carries the payload its kind expects. Placements that move nothing are
// reported as warnings.
func validateGeometry(g *SceneGraph) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	for _, node := range g.Nodes {
		if node.Kind != NodePrimitive {
			continue
		}
		for _, msg := range dimensionProblems(node.Data) {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  msg,
				Severity: SeverityError,
			})
		}
	}

	for _, node := range g.Nodes {
		td, ok := node.Data.(TransformData)
		if ok && td.Translation == nil && td.Rotation == nil {
			warnings = append(warnings, ValidationWarning{
				NodeID:  node.ID,
				Message: "placement has neither :at nor :rotate",
			})
		}
	}

	return errs, warnings
}

// dimensionProblems lists the non-positive or non-finite extents of a
// primitive payload.
func dimensionProblems(d NodeData) []string {
	var out []string
	check := func(label string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			out = append(out, fmt.Sprintf("%s is %.4f, must be positive", label, v))
		}
	}

	switch d := d.(type) {
	case BoxData:
		check("box size X", d.Size.X)
		check("box size Y", d.Size.Y)
		check("box size Z", d.Size.Z)
	case SphereData:
		check("sphere radius", d.Radius)
	case CylinderData:
		check("cylinder radius", d.Radius)
		check("cylinder height", d.Height)
	case PanelData:
		check("panel width", d.Width)
		check("panel depth", d.Depth)
	default:
		out = append(out, fmt.Sprintf("primitive has no shape data (%T)", d))
	}
	return out
}

// ---------------------------------------------------------------------------
// Emitter validation (warnings)
// ---------------------------------------------------------------------------

// validateEmitters warns when an emitter lies outside the ranges the
// estimator accepts, or when the scene declares more than one.
func validateEmitters(g *SceneGraph) []ValidationWarning {
	var warnings []ValidationWarning
	count := 0

	for _, node := range g.Nodes {
		d, ok := node.Data.(EmitterData)
		if !ok {
			continue
		}
		count++

		if s := d.Source; s != nil {
			for _, c := range []struct {
				axis string
				v    float64
			}{{"x", s.X}, {"y", s.Y}, {"z", s.Z}} {
				if math.Abs(c.v) > SourceLimit {
					warnings = append(warnings, ValidationWarning{
						NodeID:  node.ID,
						Message: fmt.Sprintf("source %s = %.3f is outside [-%g, %g] and will be clamped", c.axis, c.v, SourceLimit, SourceLimit),
					})
				}
			}
		}
		if f := d.Force; f != nil && (*f < MinForce || *f > MaxForce) {
			warnings = append(warnings, ValidationWarning{
				NodeID:  node.ID,
				Message: fmt.Sprintf("force %.3f is outside [%g, %g] and will be clamped", *f, MinForce, MaxForce),
			})
		}
	}

	if count > 1 {
		warnings = append(warnings, ValidationWarning{
			Message: fmt.Sprintf("scene declares %d emitters; later settings override earlier ones", count),
		})
	}
	return warnings
}
