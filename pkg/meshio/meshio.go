// Package meshio loads triangle meshes from Wavefront OBJ and STL files and
// exports estimation results as JSON and PNG.
package meshio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/splashmap/pkg/kernel"
)

// Format names a mesh file format.
type Format string

const (
	FormatOBJ Format = "obj"
	FormatSTL Format = "stl"
)

// ErrUnsupportedFormat is returned for file names or formats that no loader
// handles.
var ErrUnsupportedFormat = errors.New("meshio: unsupported mesh format")

// FormatOf returns the format implied by a file name's extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".obj":
		return FormatOBJ, nil
	case ".stl":
		return FormatSTL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Load reads the mesh file at path.
func Load(path string) (*kernel.Mesh, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: %w", err)
	}
	defer f.Close()

	m, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("meshio: %s: %w", path, err)
	}
	m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return m, nil
}

// Decode reads a mesh from in-memory file contents, picking the format from
// name.
func Decode(name string, contents []byte) (*kernel.Mesh, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	m, err := Read(bytes.NewReader(contents), format)
	if err != nil {
		return nil, fmt.Errorf("meshio: %s: %w", name, err)
	}
	m.Name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return m, nil
}

// Read decodes a mesh in the given format. Meshes without normals get per
// face normals. The result always validates.
func Read(r io.Reader, format Format) (*kernel.Mesh, error) {
	var (
		m   *kernel.Mesh
		err error
	)
	switch format {
	case FormatOBJ:
		m, err = readOBJ(r)
	case FormatSTL:
		m, err = readSTL(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if !m.HasNormals() {
		m.ComputeFaceNormals()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
