package dsl

import (
	"fmt"
	"strings"

	"github.com/chazu/trellis/pkg/catalog"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/go-gl/mathgl/mgl64"
)

// ---------------------------------------------------------------------------
// Sexp wrappers for values passed between builtins
// ---------------------------------------------------------------------------

type sexpVec3 struct {
	vec mgl64.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

type sexpGeometry struct {
	def catalog.GeometryDef
}

func (g *sexpGeometry) SexpString(ps *zygo.PrintState) string {
	var s string
	switch g.def.Kind {
	case catalog.GeometryCylinder:
		s = fmt.Sprintf("(cylinder %g %g)", g.def.Height, g.def.Radius)
	case catalog.GeometryUnion:
		s = fmt.Sprintf("(union <%d parts>)", len(g.def.Parts))
	default:
		b := g.def.Size
		s = fmt.Sprintf("(box %g %g %g)", b[0], b[1], b[2])
	}
	if o := g.def.Offset; o != (mgl64.Vec3{}) {
		s = fmt.Sprintf("(offset %s (vec3 %g %g %g))", s, o[0], o[1], o[2])
	}
	return s
}
func (g *sexpGeometry) Type() *zygo.RegisteredType { return nil }

type sexpConnection struct {
	def catalog.ConnectionDef
}

func (c *sexpConnection) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(connection :id %d :type %q)", c.def.ID, c.def.Type)
}
func (c *sexpConnection) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword arguments from positional ones. A trailing
// keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	res := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			res.positional = append(res.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			res.kw[name] = args[i+1]
			i++
		} else {
			res.kw[name] = zygo.SexpNull
		}
	}
	return res
}

// ---------------------------------------------------------------------------
// Value extraction
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toBool accepts true and false.
func toBool(s zygo.Sexp) (bool, error) {
	switch s.SexpString(nil) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (mgl64.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return mgl64.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a list or array to a Go slice.
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

// numbers extracts exactly n numeric positional arguments.
func numbers(fn string, args []zygo.Sexp, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s requires exactly %d arguments, got %d", fn, n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", fn, i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the catalog builtins; part and rule append to c
// as they are evaluated. Source must go through preprocessSource first.
func registerBuiltins(env *zygo.Zlisp, c *catalog.Catalog) {

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		v, err := numbers("vec3", args, 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec3{vec: mgl64.Vec3{v[0], v[1], v[2]}}, nil
	})

	// (box 1 2 3)
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		v, err := numbers("box", args, 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpGeometry{def: catalog.GeometryDef{
			Kind: catalog.GeometryBox,
			Size: mgl64.Vec3{v[0], v[1], v[2]},
		}}, nil
	})

	// (cylinder height radius)
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		v, err := numbers("cylinder", args, 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpGeometry{def: catalog.GeometryDef{
			Kind:   catalog.GeometryCylinder,
			Height: v[0],
			Radius: v[1],
		}}, nil
	})

	// (union (box ..) (offset (cylinder ..) (vec3 ..)) ..)
	env.AddFunction("union", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("union requires at least 2 geometries, got %d", len(args))
		}
		def := catalog.GeometryDef{Kind: catalog.GeometryUnion}
		for i, a := range args {
			g, ok := a.(*sexpGeometry)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("union: argument %d: expected geometry, got %T", i+1, a)
			}
			def.Parts = append(def.Parts, g.def)
		}
		return &sexpGeometry{def: def}, nil
	})

	// (offset (box ..) (vec3 dx dy dz))
	env.AddFunction("offset", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("offset requires exactly 2 arguments, got %d", len(args))
		}
		g, ok := args[0].(*sexpGeometry)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("offset: expected geometry, got %T", args[0])
		}
		d, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("offset: %w", err)
		}
		def := g.def
		def.Offset = def.Offset.Add(d)
		return &sexpGeometry{def: def}, nil
	})

	// (connection :id 0 :type "A" :origin (vec3 ..) :x (vec3 ..) :y (vec3 ..))
	env.AddFunction("connection", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		def := catalog.ConnectionDef{X: mgl64.Vec3{1, 0, 0}, Y: mgl64.Vec3{0, 1, 0}}

		v, ok := pa.kw["id"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("connection requires :id")
		}
		id, err := toInt(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connection: id: %w", err)
		}
		def.ID = id

		if v, ok := pa.kw["type"]; ok {
			if def.Type, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("connection: type: %w", err)
			}
		}
		for key, dst := range map[string]*mgl64.Vec3{"origin": &def.Origin, "x": &def.X, "y": &def.Y} {
			if v, ok := pa.kw[key]; ok {
				if *dst, err = toVec3(v); err != nil {
					return zygo.SexpNull, fmt.Errorf("connection: %s: %w", key, err)
				}
			}
		}
		return &sexpConnection{def: def}, nil
	})

	// (part "name" :geometry (box ..) :connections (list (connection ..) ..))
	env.AddFunction("part", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("part requires a name argument")
		}
		partName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
		}
		t := catalog.TemplateDef{Name: partName}

		v, ok := pa.kw["geometry"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("part %q: requires :geometry", partName)
		}
		g, ok := v.(*sexpGeometry)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("part %q: geometry: expected box, cylinder or union, got %T", partName, v)
		}
		t.Geometry = g.def

		if v, ok := pa.kw["connections"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("part %q: connections: %w", partName, err)
			}
			for i, item := range items {
				conn, ok := item.(*sexpConnection)
				if !ok {
					return zygo.SexpNull, fmt.Errorf("part %q: connection %d: expected connection, got %T", partName, i, item)
				}
				t.Connections = append(t.Connections, conn.def)
			}
		}

		c.AddTemplate(t)
		return &zygo.SexpStr{S: partName}, nil
	})

	// (rule "partA" connA "partB" connB :active true :group "name")
	env.AddFunction("rule", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 4 {
			return zygo.SexpNull, fmt.Errorf("rule requires part, connection, part, connection; got %d arguments", len(pa.positional))
		}
		var keys [2]catalog.ConnKey
		for side := 0; side < 2; side++ {
			p, err := toString(pa.positional[2*side])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rule: part %d: %w", side+1, err)
			}
			id, err := toInt(pa.positional[2*side+1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rule: connection %d: %w", side+1, err)
			}
			keys[side] = catalog.ConnKey{Part: p, ID: id}
		}
		r := catalog.RuleDef{A: keys[0], B: keys[1], Active: true}

		if v, ok := pa.kw["active"]; ok {
			b, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rule: active: %w", err)
			}
			r.Active = b
		}
		if v, ok := pa.kw["group"]; ok {
			g, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rule: group: %w", err)
			}
			r.Group = g
		}

		c.AddRule(r)
		return zygo.SexpNull, nil
	})
}
