package meshio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/chazu/splashmap/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50 // normal, three corners, attribute count
)

// readSTL reads ASCII or binary STL. Corners are not shared between facets;
// run Mesh.Weld to join them. A facet whose stored normal is zero gets its
// winding normal.
func readSTL(r io.Reader) (*kernel.Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("stl: %w", err)
	}

	var facets []stlFacet
	if isBinarySTL(data) {
		facets, err = parseBinarySTL(data)
	} else {
		facets, err = parseASCIISTL(data)
	}
	if err != nil {
		return nil, err
	}
	if len(facets) == 0 {
		return nil, fmt.Errorf("stl: no facets")
	}

	m := &kernel.Mesh{
		Vertices: make([]float32, 0, len(facets)*9),
		Normals:  make([]float32, 0, len(facets)*9),
		Indices:  make([]uint32, 0, len(facets)*3),
	}
	for i, f := range facets {
		n := f.normal
		if n.Len() < 1e-12 {
			n = f.corners[1].Sub(f.corners[0]).Cross(f.corners[2].Sub(f.corners[0]))
		}
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		for j, p := range f.corners {
			m.Vertices = append(m.Vertices, float32(p[0]), float32(p[1]), float32(p[2]))
			m.Normals = append(m.Normals, float32(n[0]), float32(n[1]), float32(n[2]))
			m.Indices = append(m.Indices, uint32(i*3+j))
		}
	}
	return m, nil
}

type stlFacet struct {
	normal  mgl64.Vec3
	corners [3]mgl64.Vec3
}

// isBinarySTL trusts the triangle count in the header when the file length
// matches it exactly. Binary files often start with "solid" too.
func isBinarySTL(data []byte) bool {
	if len(data) < stlHeaderSize+4 {
		return false
	}
	n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	return uint64(len(data)) == stlHeaderSize+4+uint64(n)*stlTriangleSize
}

func parseBinarySTL(data []byte) ([]stlFacet, error) {
	n := int(binary.LittleEndian.Uint32(data[stlHeaderSize:]))
	facets := make([]stlFacet, n)
	off := stlHeaderSize + 4
	vec := func(at int) mgl64.Vec3 {
		var v mgl64.Vec3
		for k := 0; k < 3; k++ {
			bits := binary.LittleEndian.Uint32(data[at+k*4:])
			v[k] = float64(math.Float32frombits(bits))
		}
		return v
	}
	for i := range facets {
		base := off + i*stlTriangleSize
		facets[i].normal = vec(base)
		for j := 0; j < 3; j++ {
			facets[i].corners[j] = vec(base + 12 + j*12)
		}
	}
	return facets, nil
}

func parseASCIISTL(data []byte) ([]stlFacet, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	var (
		facets []stlFacet
		cur    stlFacet
		corner int
		open   bool
		line   int
	)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "solid", "endsolid", "outer", "endloop":
		case "facet":
			if len(fields) != 5 || strings.ToLower(fields[1]) != "normal" {
				return nil, fmt.Errorf("stl line %d: want \"facet normal nx ny nz\"", line)
			}
			n, err := parseFloats(fields[2:], 3)
			if err != nil {
				return nil, fmt.Errorf("stl line %d: %w", line, err)
			}
			cur = stlFacet{normal: mgl64.Vec3{float64(n[0]), float64(n[1]), float64(n[2])}}
			corner, open = 0, true
		case "vertex":
			if !open || corner >= 3 {
				return nil, fmt.Errorf("stl line %d: unexpected vertex", line)
			}
			p, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("stl line %d: %w", line, err)
			}
			cur.corners[corner] = mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
			corner++
		case "endfacet":
			if !open || corner != 3 {
				return nil, fmt.Errorf("stl line %d: facet has %d vertices, want 3", line, corner)
			}
			facets = append(facets, cur)
			open = false
		default:
			return nil, fmt.Errorf("stl line %d: unexpected %q", line, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("stl: %w", err)
	}
	if open {
		return nil, fmt.Errorf("stl: unterminated facet")
	}
	return facets, nil
}
