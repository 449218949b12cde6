package meshio

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/chazu/splashmap/pkg/splash"
	"github.com/klauspost/compress/zstd"
)

// CompressedExt marks result files written through zstd.
const CompressedExt = ".zst"

// WriteResult encodes r as indented JSON.
func WriteResult(w io.Writer, r *splash.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("meshio: encode result: %w", err)
	}
	return nil
}

// ReadResult decodes a result written by WriteResult.
func ReadResult(rd io.Reader) (*splash.Result, error) {
	var r splash.Result
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("meshio: decode result: %w", err)
	}
	return &r, nil
}

// SaveResult writes r to path, compressing with zstd when path ends in
// CompressedExt.
func SaveResult(path string, r *splash.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("meshio: %w", err)
	}

	var w io.Writer = f
	var zw *zstd.Encoder
	if strings.HasSuffix(path, CompressedExt) {
		zw, err = zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("meshio: zstd writer: %w", err)
		}
		w = zw
	}

	if err := WriteResult(w, r); err != nil {
		if zw != nil {
			zw.Close()
		}
		f.Close()
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			f.Close()
			return fmt.Errorf("meshio: zstd close: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("meshio: %w", err)
	}
	return nil
}

// LoadResult reads a result saved by SaveResult.
func LoadResult(path string) (*splash.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(path, CompressedExt) {
		return ReadResult(f)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("meshio: zstd reader: %w", err)
	}
	defer zr.Close()
	return ReadResult(zr)
}

// SavePNG writes img to path as a PNG.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("meshio: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("meshio: encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("meshio: %w", err)
	}
	return nil
}
