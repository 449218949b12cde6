package kernel

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrMalformedMesh is returned by Validate when the flat arrays disagree.
var ErrMalformedMesh = errors.New("kernel: malformed mesh")

// Mesh is a triangle mesh suitable for rendering and for the splashback pass.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, uvs has 2 floats per vertex, indices has
// 3 uint32s per triangle. When Indices is empty the vertices are consumed in
// sequential triples.
//
// FaceNormals, when present, holds one normal per triangle and takes
// precedence over the vertex normals for the triangle's plane. Weld fills it
// so that smoothing shared vertices does not tilt the faces around them.
type Mesh struct {
	Vertices    []float32 `json:"vertices"`              // [x0,y0,z0, x1,y1,z1, ...]
	Normals     []float32 `json:"normals"`               // [nx0,ny0,nz0, ...]
	UVs         []float32 `json:"uvs,omitempty"`         // [u0,v0, u1,v1, ...]
	Indices     []uint32  `json:"indices,omitempty"`     // [i0,i1,i2, ...] triangles
	FaceNormals []float32 `json:"faceNormals,omitempty"` // [nx0,ny0,nz0, ...] per triangle
	Name        string    `json:"name"`                  // part or file this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	if len(m.Indices) > 0 {
		return len(m.Indices) / 3
	}
	return m.VertexCount() / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// HasNormals reports whether every vertex carries a normal.
func (m *Mesh) HasNormals() bool {
	return len(m.Normals) > 0 && len(m.Normals) == len(m.Vertices)
}

// HasUVs reports whether every vertex carries a texture coordinate.
func (m *Mesh) HasUVs() bool {
	return len(m.UVs) > 0 && len(m.UVs)/2 == m.VertexCount()
}

// HasFaceNormals reports whether every triangle carries its own normal.
func (m *Mesh) HasFaceNormals() bool {
	return len(m.FaceNormals) > 0 && len(m.FaceNormals) == 3*m.TriangleCount()
}

// Position returns vertex i in world coordinates.
func (m *Mesh) Position(i int) mgl64.Vec3 {
	return mgl64.Vec3{
		float64(m.Vertices[i*3]),
		float64(m.Vertices[i*3+1]),
		float64(m.Vertices[i*3+2]),
	}
}

// Normal returns the normal of vertex i, or the zero vector when the mesh
// carries no normals.
func (m *Mesh) Normal(i int) mgl64.Vec3 {
	if !m.HasNormals() {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{
		float64(m.Normals[i*3]),
		float64(m.Normals[i*3+1]),
		float64(m.Normals[i*3+2]),
	}
}

// UV returns the texture coordinate of vertex i.
func (m *Mesh) UV(i int) mgl64.Vec2 {
	if !m.HasUVs() {
		return mgl64.Vec2{}
	}
	return mgl64.Vec2{float64(m.UVs[i*2]), float64(m.UVs[i*2+1])}
}

// FaceNormal returns the unit normal of triangle f: its stored face normal,
// or else the normalised mean of its vertex normals. It returns the zero
// vector when neither is available or the vertex normals cancel out.
func (m *Mesh) FaceNormal(f int) mgl64.Vec3 {
	if m.HasFaceNormals() {
		return mgl64.Vec3{
			float64(m.FaceNormals[f*3]),
			float64(m.FaceNormals[f*3+1]),
			float64(m.FaceNormals[f*3+2]),
		}
	}
	if !m.HasNormals() {
		return mgl64.Vec3{}
	}
	tri := m.Triangle(f)
	n := m.Normal(tri[0]).Add(m.Normal(tri[1])).Add(m.Normal(tri[2]))
	if l := n.Len(); l > 1e-9 {
		return n.Mul(1 / l)
	}
	return mgl64.Vec3{}
}

// Triangle returns the vertex indices of triangle f.
func (m *Mesh) Triangle(f int) [3]int {
	if len(m.Indices) > 0 {
		return [3]int{int(m.Indices[f*3]), int(m.Indices[f*3+1]), int(m.Indices[f*3+2])}
	}
	return [3]int{f * 3, f*3 + 1, f*3 + 2}
}

// Validate checks that the flat arrays are consistent with each other and
// that every index points at an existing vertex.
func (m *Mesh) Validate() error {
	if len(m.Vertices)%3 != 0 {
		return fmt.Errorf("%w: vertex array length %d is not a multiple of 3", ErrMalformedMesh, len(m.Vertices))
	}
	if len(m.Normals) > 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("%w: %d normal floats for %d vertex floats", ErrMalformedMesh, len(m.Normals), len(m.Vertices))
	}
	if len(m.UVs) > 0 && len(m.UVs)/2 != m.VertexCount() {
		return fmt.Errorf("%w: %d uv floats for %d vertices", ErrMalformedMesh, len(m.UVs), m.VertexCount())
	}
	if len(m.FaceNormals) > 0 && len(m.FaceNormals) != 3*m.TriangleCount() {
		return fmt.Errorf("%w: %d face normal floats for %d triangles", ErrMalformedMesh, len(m.FaceNormals), m.TriangleCount())
	}
	if len(m.Indices) > 0 {
		if len(m.Indices)%3 != 0 {
			return fmt.Errorf("%w: index array length %d is not a multiple of 3", ErrMalformedMesh, len(m.Indices))
		}
		n := uint32(m.VertexCount())
		for i, idx := range m.Indices {
			if idx >= n {
				return fmt.Errorf("%w: index %d at position %d out of range (%d vertices)", ErrMalformedMesh, idx, i, n)
			}
		}
	} else if m.VertexCount()%3 != 0 {
		return fmt.Errorf("%w: %d unindexed vertices do not form whole triangles", ErrMalformedMesh, m.VertexCount())
	}
	return nil
}

// Merge concatenates meshes into one indexed mesh. UVs are kept only when
// every input carries them; normals only when every input carries them.
// Face normals are kept when any input carries them and every input has
// some normal per triangle.
func Merge(name string, meshes ...*Mesh) *Mesh {
	out := &Mesh{Name: name}
	keepNormals, keepUVs := true, true
	anyFaceNormals, allFaceNormals := false, true
	for _, m := range meshes {
		if m == nil || m.IsEmpty() {
			continue
		}
		keepNormals = keepNormals && m.HasNormals()
		keepUVs = keepUVs && m.HasUVs()
		anyFaceNormals = anyFaceNormals || m.HasFaceNormals()
		allFaceNormals = allFaceNormals && (m.HasFaceNormals() || m.HasNormals())
	}
	keepFaceNormals := anyFaceNormals && allFaceNormals

	for _, m := range meshes {
		if m == nil || m.IsEmpty() {
			continue
		}
		base := uint32(out.VertexCount())
		out.Vertices = append(out.Vertices, m.Vertices...)
		if keepNormals {
			out.Normals = append(out.Normals, m.Normals...)
		}
		if keepUVs {
			out.UVs = append(out.UVs, m.UVs...)
		}
		for f := 0; f < m.TriangleCount(); f++ {
			tri := m.Triangle(f)
			out.Indices = append(out.Indices, base+uint32(tri[0]), base+uint32(tri[1]), base+uint32(tri[2]))
			if keepFaceNormals {
				out.FaceNormals = appendVec3(out.FaceNormals, m.FaceNormal(f))
			}
		}
	}
	return out
}

func appendVec3(dst []float32, v mgl64.Vec3) []float32 {
	return append(dst, float32(v[0]), float32(v[1]), float32(v[2]))
}

// Weld merges vertices whose positions lie within eps of each other (on a
// quantised grid) so that faces sharing a corner also share a vertex index.
// Normals of merged vertices are averaged; the first UV wins. Each triangle
// keeps the normal it had before welding in FaceNormals, so creases stay
// sharp for anything that works per face.
func (m *Mesh) Weld(eps float64) *Mesh {
	if eps <= 0 || m.IsEmpty() {
		return m
	}

	type key [3]int64
	quantise := func(p mgl64.Vec3) key {
		return key{
			int64(math.Round(p[0] / eps)),
			int64(math.Round(p[1] / eps)),
			int64(math.Round(p[2] / eps)),
		}
	}

	out := &Mesh{Name: m.Name}
	remap := make([]uint32, m.VertexCount())
	seen := make(map[key]uint32, m.VertexCount())
	var normalSums []mgl64.Vec3

	for i := 0; i < m.VertexCount(); i++ {
		p := m.Position(i)
		k := quantise(p)
		if idx, ok := seen[k]; ok {
			remap[i] = idx
			if m.HasNormals() {
				normalSums[idx] = normalSums[idx].Add(m.Normal(i))
			}
			continue
		}
		idx := uint32(out.VertexCount())
		seen[k] = idx
		remap[i] = idx
		out.Vertices = append(out.Vertices, m.Vertices[i*3:i*3+3]...)
		if m.HasNormals() {
			normalSums = append(normalSums, m.Normal(i))
		}
		if m.HasUVs() {
			out.UVs = append(out.UVs, m.UVs[i*2:i*2+2]...)
		}
	}

	for _, n := range normalSums {
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		out.Normals = append(out.Normals, float32(n[0]), float32(n[1]), float32(n[2]))
	}

	keepFaceNormals := m.HasFaceNormals() || m.HasNormals()
	for f := 0; f < m.TriangleCount(); f++ {
		tri := m.Triangle(f)
		out.Indices = append(out.Indices, remap[tri[0]], remap[tri[1]], remap[tri[2]])
		if keepFaceNormals {
			out.FaceNormals = appendVec3(out.FaceNormals, m.FaceNormal(f))
		}
	}
	return out
}

// ComputeFaceNormals fills FaceNormals with the geometric normal of each
// triangle and writes the same normal to its three vertices. Used for
// sources that carry no normals; shared vertices end up with the normal of
// the last face written, the faces keep their own.
func (m *Mesh) ComputeFaceNormals() {
	m.Normals = make([]float32, len(m.Vertices))
	m.FaceNormals = make([]float32, 0, 3*m.TriangleCount())
	for f := 0; f < m.TriangleCount(); f++ {
		tri := m.Triangle(f)
		a, b, c := m.Position(tri[0]), m.Position(tri[1]), m.Position(tri[2])
		n := b.Sub(a).Cross(c.Sub(a))
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		m.FaceNormals = appendVec3(m.FaceNormals, n)
		for _, vi := range tri {
			m.Normals[vi*3] = float32(n[0])
			m.Normals[vi*3+1] = float32(n[1])
			m.Normals[vi*3+2] = float32(n[2])
		}
	}
}
