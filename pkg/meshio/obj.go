package meshio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/splashmap/pkg/kernel"
)

// objCorner is one face corner: position, texture and normal indices, with
// -1 for an absent reference.
type objCorner struct {
	v, vt, vn int
}

// readOBJ reads the geometry of a Wavefront OBJ file: v, vt, vn and f
// records. Polygons are fan triangulated. Every other record is ignored.
// Normals and UVs are kept only when every face corner references one.
func readOBJ(r io.Reader) (*kernel.Mesh, error) {
	var (
		positions, normals [][3]float32
		uvs                [][2]float32
		corners            []objCorner
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			p, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", line, err)
			}
			positions = append(positions, [3]float32{p[0], p[1], p[2]})
		case "vn":
			n, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", line, err)
			}
			normals = append(normals, [3]float32{n[0], n[1], n[2]})
		case "vt":
			t, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", line, err)
			}
			uvs = append(uvs, [2]float32{t[0], t[1]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face needs at least 3 corners", line)
			}
			poly := make([]objCorner, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				c, err := parseCorner(tok, len(positions), len(uvs), len(normals))
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", line, err)
				}
				poly = append(poly, c)
			}
			for i := 1; i+1 < len(poly); i++ {
				corners = append(corners, poly[0], poly[i], poly[i+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("obj: %w", err)
	}
	if len(corners) == 0 {
		return nil, fmt.Errorf("obj: no faces")
	}

	keepNormals, keepUVs := true, true
	for _, c := range corners {
		keepNormals = keepNormals && c.vn >= 0
		keepUVs = keepUVs && c.vt >= 0
	}

	m := &kernel.Mesh{}
	index := make(map[objCorner]uint32)
	for _, c := range corners {
		if !keepNormals {
			c.vn = -1
		}
		if !keepUVs {
			c.vt = -1
		}
		if idx, ok := index[c]; ok {
			m.Indices = append(m.Indices, idx)
			continue
		}
		idx := uint32(len(index))
		index[c] = idx
		m.Indices = append(m.Indices, idx)

		p := positions[c.v]
		m.Vertices = append(m.Vertices, p[0], p[1], p[2])
		if keepNormals {
			n := normals[c.vn]
			m.Normals = append(m.Normals, n[0], n[1], n[2])
		}
		if keepUVs {
			t := uvs[c.vt]
			m.UVs = append(m.UVs, t[0], t[1])
		}
	}
	return m, nil
}

// parseCorner parses "v", "v/vt", "v//vn" or "v/vt/vn". Indices are 1-based;
// negative indices count back from the latest record.
func parseCorner(tok string, nv, nvt, nvn int) (objCorner, error) {
	parts := strings.Split(tok, "/")
	if len(parts) > 3 {
		return objCorner{}, fmt.Errorf("bad face corner %q", tok)
	}
	c := objCorner{v: -1, vt: -1, vn: -1}
	refs := []*int{&c.v, &c.vt, &c.vn}
	counts := []int{nv, nvt, nvn}
	for i, s := range parts {
		if s == "" {
			if i == 0 {
				return objCorner{}, fmt.Errorf("face corner %q has no position", tok)
			}
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return objCorner{}, fmt.Errorf("bad face corner %q: %w", tok, err)
		}
		switch {
		case n > 0:
			n--
		case n < 0:
			n += counts[i]
		default:
			return objCorner{}, fmt.Errorf("face corner %q uses index 0", tok)
		}
		if n < 0 || n >= counts[i] {
			return objCorner{}, fmt.Errorf("face corner %q is out of range", tok)
		}
		*refs[i] = n
	}
	return c, nil
}

// parseFloats parses the first want fields. Extra fields (w components,
// vertex colours) are ignored.
func parseFloats(fields []string, want int) ([]float32, error) {
	if len(fields) < want {
		return nil, fmt.Errorf("want %d numbers, got %d", want, len(fields))
	}
	out := make([]float32, want)
	for i := 0; i < want; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}
