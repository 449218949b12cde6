package engine

import (
	"fmt"

	"github.com/chazu/splashmap/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// sceneBuilder collects the nodes created while a script runs.
type sceneBuilder struct {
	g     *graph.SceneGraph
	order []graph.NodeID
	anon  map[string]int
}

func newSceneBuilder() *sceneBuilder {
	return &sceneBuilder{g: graph.New(), anon: make(map[string]int)}
}

func (b *sceneBuilder) add(n *graph.Node) *sexpNodeRef {
	if b.g.Get(n.ID) == nil {
		b.order = append(b.order, n.ID)
	}
	b.g.AddNode(n)
	return &sexpNodeRef{id: n.ID, name: n.Name}
}

// anonID numbers unnamed nodes per kind in creation order, so the same
// script always yields the same IDs.
func (b *sceneBuilder) anonID(kind string) graph.NodeID {
	b.anon[kind]++
	return graph.NewNodeID(fmt.Sprintf("%s#%d", kind, b.anon[kind]))
}

// claim fails when name is already taken by another node.
func (b *sceneBuilder) claim(builtin, name string) error {
	if name == "" {
		return fmt.Errorf("%s: name must not be empty", builtin)
	}
	if b.g.Lookup(name) != nil {
		return fmt.Errorf("%s: %q is already defined", builtin, name)
	}
	return nil
}

// shapeNode turns a shape value into a new anonymous primitive node.
func (b *sceneBuilder) shapeNode(s *sexpShape) *sexpNodeRef {
	return b.add(&graph.Node{
		ID:   b.anonID("shape"),
		Kind: graph.NodePrimitive,
		Data: s.data,
	})
}

// child resolves a place or assembly argument: a node reference, or an
// inline shape that becomes an anonymous part.
func (b *sceneBuilder) child(s zygo.Sexp) (graph.NodeID, error) {
	if shape, ok := s.(*sexpShape); ok {
		return b.shapeNode(shape).id, nil
	}
	return toNodeRef(s)
}

// finish promotes every top-level geometry node that nothing references to a
// root, in creation order, and returns the graph.
func (b *sceneBuilder) finish() *graph.SceneGraph {
	referenced := make(map[graph.NodeID]bool)
	for _, n := range b.g.Nodes {
		for _, c := range n.Children {
			referenced[c] = true
		}
	}
	for _, r := range b.g.Roots {
		referenced[r] = true
	}
	for _, id := range b.order {
		if !referenced[id] {
			b.g.AddRoot(id)
		}
	}
	return b.g
}

// registerBuiltins installs the scene builtins into env. Source must go
// through preprocessSource first so keyword arguments are recognisable.
func registerBuiltins(env *zygo.Zlisp, b *sceneBuilder) {
	// (vec3 x y z)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: graph.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}}, nil
	})

	// (box :size (vec3 2 0.2 2))
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		size, err := pa.vec("size")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		if size == nil {
			return zygo.SexpNull, fmt.Errorf("box requires :size")
		}
		return &sexpShape{data: graph.BoxData{Size: *size}}, nil
	})

	// (sphere :radius 0.5)
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		r, err := parseArgs(args).float("radius", 0.5)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
		}
		return &sexpShape{data: graph.SphereData{Radius: r}}, nil
	})

	// (cylinder :radius 0.5 :height 1)
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		r, err := pa.float("radius", 0.5)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		h, err := pa.float("height", 1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		return &sexpShape{data: graph.CylinderData{Radius: r, Height: h}}, nil
	})

	// (panel :width 2 :depth 2)
	env.AddFunction("panel", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		w, err := pa.float("width", 1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("panel: %w", err)
		}
		d, err := pa.float("depth", 1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("panel: %w", err)
		}
		return &sexpShape{data: graph.PanelData{Width: w, Depth: d}}, nil
	})

	// (defpart "name" (box ...))
	env.AddFunction("defpart", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("defpart requires a name and a shape")
		}
		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: name: %w", err)
		}
		if err := b.claim("defpart", partName); err != nil {
			return zygo.SexpNull, err
		}
		shape, ok := args[1].(*sexpShape)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("defpart: expected shape, got %s", describe(args[1]))
		}
		return b.add(&graph.Node{
			ID:   graph.NewNodeID("part/" + partName),
			Kind: graph.NodePrimitive,
			Name: partName,
			Data: shape.data,
		}), nil
	})

	// (part "name")
	env.AddFunction("part", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("part requires a name argument")
		}
		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
		}
		n := b.g.Lookup(partName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("part: no part named %q", partName)
		}
		return &sexpNodeRef{id: n.ID, name: partName}, nil
	})

	// (place (part "ball") :at (vec3 0 1.5 0) :rotate (vec3 0 45 0))
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("place requires exactly one part or shape")
		}
		childID, err := b.child(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}

		var td graph.TransformData
		if td.Translation, err = pa.vec("at"); err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}
		if td.Rotation, err = pa.vec("rotate"); err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}

		return b.add(&graph.Node{
			ID:       b.anonID("place"),
			Kind:     graph.NodeTransform,
			Children: []graph.NodeID{childID},
			Data:     td,
		}), nil
	})

	// (assembly "name" child...)
	env.AddFunction("assembly", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("assembly requires a name argument")
		}
		asmName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("assembly: name: %w", err)
		}
		if err := b.claim("assembly", asmName); err != nil {
			return zygo.SexpNull, err
		}

		var children []graph.NodeID
		for i, a := range args[1:] {
			id, err := b.child(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("assembly %q: child %d: %w", asmName, i+1, err)
			}
			children = append(children, id)
		}

		ref := b.add(&graph.Node{
			ID:       graph.NewNodeID("assembly/" + asmName),
			Kind:     graph.NodeGroup,
			Name:     asmName,
			Children: children,
			Data:     graph.GroupData{},
		})
		b.g.AddRoot(ref.id)
		return ref, nil
	})

	// (source (vec3 0 0.2 0)) or (source 0 0.2 0)
	env.AddFunction("source", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		var (
			v   graph.Vec3
			err error
		)
		switch len(args) {
		case 1:
			v, err = toVec3(args[0])
		case 3:
			v, err = toVec3(&zygo.SexpArray{Val: args})
		default:
			err = fmt.Errorf("expected a vec3 or three numbers, got %d arguments", len(args))
		}
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("source: %w", err)
		}
		return b.emitter(graph.EmitterData{Source: &v}), nil
	})

	// (force 50)
	env.AddFunction("force", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("force requires exactly one number")
		}
		f, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("force: %w", err)
		}
		return b.emitter(graph.EmitterData{Force: &f}), nil
	})
}

func (b *sceneBuilder) emitter(d graph.EmitterData) *sexpNodeRef {
	ref := b.add(&graph.Node{
		ID:   b.anonID("emitter"),
		Kind: graph.NodeEmitter,
		Data: d,
	})
	b.g.AddRoot(ref.id)
	return ref
}
