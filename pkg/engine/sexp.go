package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/splashmap/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// sexpShape carries primitive shape data from a shape builtin (box, sphere,
// cylinder, panel) to defpart, place or assembly.
type sexpShape struct {
	data graph.NodeData
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	switch d := s.data.(type) {
	case graph.BoxData:
		return fmt.Sprintf("(box :size (vec3 %g %g %g))", d.Size.X, d.Size.Y, d.Size.Z)
	case graph.SphereData:
		return fmt.Sprintf("(sphere :radius %g)", d.Radius)
	case graph.CylinderData:
		return fmt.Sprintf("(cylinder :radius %g :height %g)", d.Radius, d.Height)
	case graph.PanelData:
		return fmt.Sprintf("(panel :width %g :depth %g)", d.Width, d.Depth)
	}
	return "(shape)"
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(noderef %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds a builtin's arguments split into keyword and positional.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A keyword
// in last position with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	out := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			out.positional = append(out.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			out.kw[name] = args[i+1]
			i++
		} else {
			out.kw[name] = zygo.SexpNull
		}
	}
	return out
}

// float returns keyword key as a number, or def when absent.
func (a kwArgs) float(key string, def float64) (float64, error) {
	v, ok := a.kw[key]
	if !ok {
		return def, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// vec returns keyword key as a vector, or nil when absent.
func (a kwArgs) vec(key string) (*graph.Vec3, error) {
	v, ok := a.kw[key]
	if !ok {
		return nil, nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &vec, nil
}

// toFloat64 extracts a float64 from a SexpInt or SexpFloat.
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %s", describe(s))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok && !strings.HasPrefix(str.S, kwPrefix) {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %s", describe(s))
}

func toNodeRef(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return graph.NodeID{}, fmt.Errorf("expected part reference, got %s", describe(s))
}

// toVec3 accepts a vec3 value or a plain list or array of three numbers.
func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil || len(items) != 3 {
		return graph.Vec3{}, fmt.Errorf("expected vec3, got %s", describe(s))
	}
	var xyz [3]float64
	for i, item := range items {
		if xyz[i], err = toFloat64(item); err != nil {
			return graph.Vec3{}, fmt.Errorf("vec3 component %d: %w", i, err)
		}
	}
	return graph.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// sexpListToSlice converts a Lisp list or array to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

func describe(s zygo.Sexp) string {
	if s == nil {
		return "nothing"
	}
	if name, ok := isKW(s); ok {
		return "keyword :" + name
	}
	return fmt.Sprintf("%T (%s)", s, s.SexpString(nil))
}
