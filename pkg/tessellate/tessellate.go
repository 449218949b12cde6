// Package tessellate walks a scene graph and produces triangle meshes, one
// per placed part, in world coordinates.
package tessellate

import (
	"fmt"

	"github.com/chazu/splashmap/pkg/graph"
	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

// CylinderSegments is passed to kernels that facet cylinders.
const CylinderSegments = 32

// Tessellate walks the scene graph and produces one triangle mesh per
// placed primitive. Solid primitives come from the kernel; panels are built
// directly as a UV-mapped quad. Placements compose parent to child. The graph
// is never mutated.
func Tessellate(g *graph.SceneGraph, k kernel.Kernel) ([]*kernel.Mesh, error) {
	if g == nil {
		return nil, nil
	}

	w := &walker{g: g, k: k, cache: make(map[graph.NodeID]*kernel.Mesh)}
	for _, rootID := range g.Roots {
		root := g.Get(rootID)
		if root == nil {
			continue
		}
		if err := w.walk(root, mgl64.Ident4(), 0); err != nil {
			return nil, fmt.Errorf("tessellate: root %s: %w", rootID.Short(), err)
		}
	}
	return w.meshes, nil
}

// World tessellates the scene and merges every part into a single mesh
// named "world". Coincident vertices closer than weldEps are merged when
// weldEps is positive.
func World(g *graph.SceneGraph, k kernel.Kernel, weldEps float64) (*kernel.Mesh, error) {
	meshes, err := Tessellate(g, k)
	if err != nil {
		return nil, err
	}
	world := kernel.Merge("world", meshes...)
	if weldEps > 0 {
		world = world.Weld(weldEps)
	}
	if world.IsEmpty() {
		return nil, fmt.Errorf("tessellate: scene has no geometry")
	}
	return world, nil
}

type walker struct {
	g      *graph.SceneGraph
	k      kernel.Kernel
	cache  map[graph.NodeID]*kernel.Mesh // part meshes in local space
	meshes []*kernel.Mesh
}

// maxDepth bounds recursion on graphs that skipped validation.
const maxDepth = 256

func (w *walker) walk(n *graph.Node, world mgl64.Mat4, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("node %s: nesting deeper than %d", n.ID.Short(), maxDepth)
	}
	switch n.Kind {
	case graph.NodePrimitive:
		return w.primitive(n, world)

	case graph.NodeTransform:
		td, ok := n.Data.(graph.TransformData)
		if !ok {
			return fmt.Errorf("transform node %s has unexpected data type %T", n.ID.Short(), n.Data)
		}
		return w.children(n, world.Mul4(Matrix(td)), depth)

	case graph.NodeGroup:
		return w.children(n, world, depth)

	case graph.NodeEmitter:
		return nil

	default:
		return fmt.Errorf("unknown node kind: %v", n.Kind)
	}
}

func (w *walker) children(n *graph.Node, world mgl64.Mat4, depth int) error {
	for _, child := range w.g.Children(n) {
		if err := w.walk(child, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) primitive(n *graph.Node, world mgl64.Mat4) error {
	local, ok := w.cache[n.ID]
	if !ok {
		var err error
		local, err = w.build(n)
		if err != nil {
			return err
		}
		w.cache[n.ID] = local
	}

	m := Transform(local, world)
	if n.Name != "" {
		m.Name = n.Name
	} else {
		m.Name = n.ID.Short()
	}
	w.meshes = append(w.meshes, m)
	return nil
}

// build produces the part mesh centred on the origin.
func (w *walker) build(n *graph.Node) (*kernel.Mesh, error) {
	var solid kernel.Solid
	switch d := n.Data.(type) {
	case graph.BoxData:
		solid = w.k.Box(d.Size.X, d.Size.Y, d.Size.Z)
	case graph.SphereData:
		solid = w.k.Sphere(d.Radius)
	case graph.CylinderData:
		solid = w.k.Cylinder(d.Height, d.Radius, CylinderSegments)
	case graph.PanelData:
		return Panel(d.Width, d.Depth), nil
	default:
		return nil, fmt.Errorf("primitive node %s has unsupported data type %T", n.ID.Short(), n.Data)
	}

	m, err := w.k.ToMesh(solid)
	if err != nil {
		return nil, fmt.Errorf("ToMesh failed for node %s: %w", n.ID.Short(), err)
	}
	if !m.HasNormals() {
		m.ComputeFaceNormals()
	}
	return m, nil
}

// Matrix returns the local transform of a placement: rotate about X, then
// Y, then Z (degrees), then translate.
func Matrix(td graph.TransformData) mgl64.Mat4 {
	m := mgl64.Ident4()
	if td.Translation != nil {
		t := *td.Translation
		m = mgl64.Translate3D(t.X, t.Y, t.Z)
	}
	if td.Rotation != nil {
		r := *td.Rotation
		rot := mgl64.HomogRotate3DZ(mgl64.DegToRad(r.Z)).
			Mul4(mgl64.HomogRotate3DY(mgl64.DegToRad(r.Y))).
			Mul4(mgl64.HomogRotate3DX(mgl64.DegToRad(r.X)))
		m = m.Mul4(rot)
	}
	return m
}

// Transform returns a copy of m with positions and normals mapped through
// xf. Indices and UVs are shared with m. Normals assume xf has no scale.
func Transform(m *kernel.Mesh, xf mgl64.Mat4) *kernel.Mesh {
	out := &kernel.Mesh{
		Name:     m.Name,
		Vertices: make([]float32, len(m.Vertices)),
		UVs:      m.UVs,
		Indices:  m.Indices,
	}
	if m.HasNormals() {
		out.Normals = make([]float32, len(m.Normals))
	}
	if m.HasFaceNormals() {
		out.FaceNormals = make([]float32, len(m.FaceNormals))
		for f := 0; f < m.TriangleCount(); f++ {
			nv := rotateNormal(xf, m.FaceNormal(f))
			out.FaceNormals[f*3] = float32(nv[0])
			out.FaceNormals[f*3+1] = float32(nv[1])
			out.FaceNormals[f*3+2] = float32(nv[2])
		}
	}
	for i := 0; i < m.VertexCount(); i++ {
		p := xf.Mul4x1(m.Position(i).Vec4(1))
		out.Vertices[i*3] = float32(p[0])
		out.Vertices[i*3+1] = float32(p[1])
		out.Vertices[i*3+2] = float32(p[2])

		if out.Normals == nil {
			continue
		}
		nv := rotateNormal(xf, m.Normal(i))
		out.Normals[i*3] = float32(nv[0])
		out.Normals[i*3+1] = float32(nv[1])
		out.Normals[i*3+2] = float32(nv[2])
	}
	return out
}

func rotateNormal(xf mgl64.Mat4, n mgl64.Vec3) mgl64.Vec3 {
	nv := xf.Mul4x1(n.Vec4(0)).Vec3()
	if l := nv.Len(); l > 0 {
		nv = nv.Mul(1 / l)
	}
	return nv
}

// Panel returns a flat width×depth rectangle in the XZ plane, centred on the
// origin and facing +Y, with UVs spanning the unit square.
func Panel(width, depth float64) *kernel.Mesh {
	x, z := float32(width/2), float32(depth/2)
	return &kernel.Mesh{
		Vertices: []float32{
			-x, 0, -z,
			x, 0, -z,
			x, 0, z,
			-x, 0, z,
		},
		Normals: []float32{0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0},
		UVs:     []float32{0, 0, 1, 0, 1, 1, 0, 1},
		Indices: []uint32{0, 2, 1, 0, 3, 2},
	}
}
