package meshio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/splashmap/pkg/splash"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# unit quad facing up
o floor
v -0.5 0 -0.5
v 0.5 0 -0.5
v 0.5 0 0.5
v -0.5 0 0.5
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 1 0
usemtl tile
s off
f 1/1/1 3/3/1 2/2/1
f -4/-4/-1 -1/-1/-1 -2/-2/-1
`

func TestReadOBJ(t *testing.T) {
	m, err := Read(strings.NewReader(quadOBJ), FormatOBJ)
	require.NoError(t, err)

	assert.Equal(t, 4, m.VertexCount(), "shared corners are reused")
	assert.Equal(t, 2, m.TriangleCount())
	assert.True(t, m.HasNormals())
	assert.True(t, m.HasUVs())
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, m.Normal(2))

	// Negative indices resolve to the same corners as positive ones.
	tri := m.Triangle(1)
	assert.Equal(t, m.Position(0), m.Position(tri[0]))
	assert.Equal(t, mgl64.Vec3{-0.5, 0, 0.5}, m.Position(tri[1]))
}

func TestReadOBJFanTriangulates(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 1 0 1
v 0 0 1
v 0.5 0 1.5
f 1 5 4 3 2
`
	m, err := Read(strings.NewReader(src), FormatOBJ)
	require.NoError(t, err)
	assert.Equal(t, 3, m.TriangleCount())
	assert.Equal(t, [3]int{0, 1, 2}, m.Triangle(0))
	assert.Equal(t, [3]int{0, 3, 4}, m.Triangle(2))

	assert.False(t, m.HasUVs())
	require.True(t, m.HasNormals(), "missing normals are computed")
	assert.InDelta(t, 1.0, math.Abs(m.Normal(0)[1]), 1e-6)
}

func TestReadOBJDropsPartialAttributes(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 0 0 1
v 1 0 1
vn 0 1 0
f 1//1 3//1 2//1
f 2 3 4
`
	m, err := Read(strings.NewReader(src), FormatOBJ)
	require.NoError(t, err)
	assert.Equal(t, 4, m.VertexCount())
	require.True(t, m.HasNormals())
	assert.Equal(t, [3]int{2, 1, 3}, m.Triangle(1))
}

func TestReadOBJErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no faces", "v 0 0 0\n"},
		{"index out of range", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n"},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n"},
		{"short vertex", "v 0 0\n"},
		{"bad number", "v 0 zero 0\n"},
		{"two corner face", "v 0 0 0\nv 1 0 0\nf 1 2\n"},
		{"missing position", "v 0 0 0\nvt 0 0\nf /1 /1 /1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.src), FormatOBJ)
			assert.Error(t, err)
		})
	}
}

const triangleSTL = `solid tri
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
  facet normal 0 0 0
    outer loop
      vertex 0 0 0
      vertex 0 1 0
      vertex -1 0 0
    endloop
  endfacet
endsolid tri
`

func TestReadASCIISTL(t *testing.T) {
	m, err := Read(strings.NewReader(triangleSTL), FormatSTL)
	require.NoError(t, err)
	assert.Equal(t, 6, m.VertexCount())
	assert.Equal(t, 2, m.TriangleCount())
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, m.Normal(0))
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, m.Normal(4), "zero normal replaced by winding normal")

	welded := m.Weld(1e-6)
	assert.Equal(t, 4, welded.VertexCount())
}

func binarySTL(facets [][4][3]float32) []byte {
	var buf bytes.Buffer
	header := make([]byte, stlHeaderSize)
	copy(header, "solid but actually binary")
	buf.Write(header)
	binary.Write(&buf, binary.LittleEndian, uint32(len(facets)))
	for _, f := range facets {
		for _, v := range f {
			binary.Write(&buf, binary.LittleEndian, v)
		}
		binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

func TestReadBinarySTL(t *testing.T) {
	data := binarySTL([][4][3]float32{
		{{0, 1, 0}, {0, 0, 0}, {0, 0, 1}, {1, 0, 0}},
	})
	m, err := Read(bytes.NewReader(data), FormatSTL)
	require.NoError(t, err)
	assert.Equal(t, 3, m.VertexCount())
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, m.Normal(0))
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, m.Position(2))
}

func TestReadSTLErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty solid", "solid x\nendsolid x\n"},
		{"vertex outside facet", "solid x\nvertex 0 0 0\n"},
		{"short facet", "solid x\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nendloop\nendfacet\n"},
		{"unterminated", "solid x\nfacet normal 0 0 1\n"},
		{"garbage", "hello world\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.src), FormatSTL)
			assert.Error(t, err)
		})
	}
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("Basin.OBJ")
	require.NoError(t, err)
	assert.Equal(t, FormatOBJ, f)

	f, err = FormatOf("dir/part.stl")
	require.NoError(t, err)
	assert.Equal(t, FormatSTL, f)

	_, err = FormatOf("scene.gltf")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = Read(strings.NewReader(""), Format("ply"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestLoadAndDecodeName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floor.obj")
	require.NoError(t, os.WriteFile(path, []byte(quadOBJ), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "floor", m.Name)

	m, err = Decode("uploads/sink.obj", []byte(quadOBJ))
	require.NoError(t, err)
	assert.Equal(t, "sink", m.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.obj"))
	assert.Error(t, err)
}

func sampleResult(t *testing.T) *splash.Result {
	t.Helper()
	m, err := Read(strings.NewReader(quadOBJ), FormatOBJ)
	require.NoError(t, err)
	p := splash.DefaultParams()
	p.Source = mgl64.Vec3{0, -0.5, 0}
	r, err := splash.Analytic{Workers: 1}.Estimate(t.Context(), m, p)
	require.NoError(t, err)
	return r
}

func TestResultRoundTrip(t *testing.T) {
	r := sampleResult(t)
	dir := t.TempDir()

	for _, name := range []string{"result.json", "result.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, SaveResult(path, r))

			got, err := LoadResult(path)
			require.NoError(t, err)
			assert.Equal(t, r.FaceIntensities, got.FaceIntensities)
			assert.Equal(t, r.VertexColors, got.VertexColors)
			assert.Equal(t, r.Params.Source, got.Params.Source)
			assert.Equal(t, r.Strategy, got.Strategy)
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "result.json.zst"))
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(raw, []byte("{")), "compressed file is not plain JSON")
}

func TestSavePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	path := filepath.Join(t.TempDir(), "tex.png")
	require.NoError(t, SavePNG(path, img))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, decoded.Bounds().Dx())
}
