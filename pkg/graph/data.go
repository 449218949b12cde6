package graph

import "github.com/go-gl/mathgl/mgl64"

// Vec3 is a point or extent in scene units (metres). Y is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns v as an mgl64 vector.
func (v Vec3) Vec() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// PrimitiveKind distinguishes between primitive shapes.
type PrimitiveKind int

const (
	PrimBox      PrimitiveKind = iota // rectangular solid
	PrimSphere                        // sphere
	PrimCylinder                      // upright cylinder
	PrimPanel                         // flat, open, UV-mapped rectangle
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimBox:
		return "box"
	case PrimSphere:
		return "sphere"
	case PrimCylinder:
		return "cylinder"
	case PrimPanel:
		return "panel"
	default:
		return "unknown"
	}
}

// BoxData is an axis-aligned box centred on its placement point.
type BoxData struct {
	Size Vec3 `json:"size"`
}

func (BoxData) nodeData() {}

// SphereData is a sphere centred on its placement point.
type SphereData struct {
	Radius float64 `json:"radius"`
}

func (SphereData) nodeData() {}

// CylinderData is a cylinder standing on the Y axis.
type CylinderData struct {
	Radius float64 `json:"radius"`
	Height float64 `json:"height"`
}

func (CylinderData) nodeData() {}

// PanelData is a single-sided rectangle in the XZ plane facing +Y, with UVs
// spanning the unit square. Panels are the texture-friendly surface type.
type PanelData struct {
	Width float64 `json:"width"` // along X
	Depth float64 `json:"depth"` // along Z
}

func (PanelData) nodeData() {}

// PrimitiveKindOf returns the primitive kind of d, or false when d is not a
// primitive payload.
func PrimitiveKindOf(d NodeData) (PrimitiveKind, bool) {
	switch d.(type) {
	case BoxData:
		return PrimBox, true
	case SphereData:
		return PrimSphere, true
	case CylinderData:
		return PrimCylinder, true
	case PanelData:
		return PrimPanel, true
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData represents a spatial transformation applied to a child node.
// Created by the (place ...) form.
type TransformData struct {
	Translation *Vec3 `json:"translation,omitempty"`
	Rotation    *Vec3 `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData represents a logical grouping. Created by the (assembly ...) form.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}

// ---------------------------------------------------------------------------
// Emitter
// ---------------------------------------------------------------------------

// EmitterData is the splash source of the scene. Created by the (source ...)
// and (force ...) forms; either may be absent, in which case the caller's
// defaults apply.
type EmitterData struct {
	Source *Vec3    `json:"source,omitempty"`
	Force  *float64 `json:"force,omitempty"`
}

func (EmitterData) nodeData() {}
