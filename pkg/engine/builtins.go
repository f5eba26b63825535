package engine

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/chazu/lagoon/pkg/polygon"
	"github.com/chazu/lagoon/pkg/pool"
	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r2"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms design script source before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: shallow-flat -> shallow_flat
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for DSL values
// ---------------------------------------------------------------------------

// sexpPoint wraps a plan-view point.
type sexpPoint struct {
	p r2.Vec
}

func (s *sexpPoint) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(pt %g %g)", s.p.X, s.p.Y)
}
func (s *sexpPoint) Type() *zygo.RegisteredType { return nil }

// sexpVertex is an outline vertex whose outgoing edge may carry a curve
// control point.
type sexpVertex struct {
	at      r2.Vec
	control *r2.Vec
}

func (s *sexpVertex) SexpString(ps *zygo.PrintState) string {
	if s.control != nil {
		return fmt.Sprintf("(vertex %g %g :control (pt %g %g))", s.at.X, s.at.Y, s.control.X, s.control.Y)
	}
	return fmt.Sprintf("(vertex %g %g)", s.at.X, s.at.Y)
}
func (s *sexpVertex) Type() *zygo.RegisteredType { return nil }

// sexpOutline wraps a built outline so scripts can bind it with def.
type sexpOutline struct {
	poly *polygon.Polygon
}

func (s *sexpOutline) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(outline %d vertices)", s.poly.Len())
}
func (s *sexpOutline) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toPoint accepts (pt x y) values.
func toPoint(s zygo.Sexp) (r2.Vec, error) {
	if p, ok := s.(*sexpPoint); ok {
		return p.p, nil
	}
	return r2.Vec{}, fmt.Errorf("expected point, got %T (%s)", s, s.SexpString(nil))
}

// toVertex accepts (vertex ...) and bare (pt ...) values.
func toVertex(s zygo.Sexp) (*sexpVertex, error) {
	switch v := s.(type) {
	case *sexpVertex:
		return v, nil
	case *sexpPoint:
		return &sexpVertex{at: v.p}, nil
	}
	return nil, fmt.Errorf("expected vertex or point, got %T (%s)", s, s.SexpString(nil))
}

// paramName maps a script keyword such as shallow-flat (or shallow_flat)
// onto the camelCase parameter name used by pool.Params.
func paramName(kw string) string {
	var b strings.Builder
	upper := false
	for _, r := range kw {
		if r == '-' || r == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
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

// ---------------------------------------------------------------------------
// Design accumulation
// ---------------------------------------------------------------------------

// designBuilder collects the effects of one script run.
type designBuilder struct {
	params   pool.Params
	sawPool  bool
	outline  *polygon.Polygon
	warnings []EvalWarning
}

func newDesignBuilder() *designBuilder {
	return &designBuilder{params: pool.DefaultParams()}
}

func (b *designBuilder) warn(format string, args ...any) {
	b.warnings = append(b.warnings, EvalWarning{Message: fmt.Sprintf(format, args...)})
}

// finish cross-checks shape against outline and returns the design.
func (b *designBuilder) finish() *Design {
	switch {
	case b.params.Shape.PolygonBased() && b.outline == nil:
		b.warn("shape %s has no outline; a rectangle of the pool's length and width is used", b.params.Shape)
		b.outline = polygon.NewRectangle(b.params.Length, b.params.Width)
	case !b.params.Shape.PolygonBased() && b.outline != nil:
		b.warn("outline ignored for shape %s", b.params.Shape)
		b.outline = nil
	}
	return &Design{Params: b.params, Outline: b.outline, Warnings: b.warnings}
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the design DSL into a zygomys environment. The
// builtins fill in b as the script runs.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *designBuilder) {

	// -----------------------------------------------------------------------
	// (pool :shape :kidney :length 9 :shallow-flat 2 :step-count 4)
	// -----------------------------------------------------------------------
	env.AddFunction("pool", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if b.sawPool {
			return zygo.SexpNull, fmt.Errorf("pool: defined more than once")
		}
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("pool: unexpected positional argument %s", pa.positional[0].SexpString(nil))
		}
		p := pool.DefaultParams()

		if v, ok := pa.kw["shape"]; ok {
			s, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pool: shape: %w", err)
			}
			shape, err := pool.ParseShape(s)
			if err != nil {
				return zygo.SexpNull, err
			}
			p.Shape = shape
		}
		for _, kw := range slices.Sorted(maps.Keys(pa.kw)) {
			if kw == "shape" {
				continue
			}
			v := pa.kw[kw]
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pool: %s: %w", kw, err)
			}
			if err := p.Set(paramName(kw), f); err != nil {
				return zygo.SexpNull, err
			}
		}

		b.params = p
		b.sawPool = true
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (pt x y)
	// -----------------------------------------------------------------------
	env.AddFunction("pt", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("pt: expected 2 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pt: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pt: y: %w", err)
		}
		return &sexpPoint{p: r2.Vec{X: x, Y: y}}, nil
	})

	// -----------------------------------------------------------------------
	// (vertex x y :control (pt cx cy))
	// -----------------------------------------------------------------------
	env.AddFunction("vertex", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("vertex: expected x and y, got %d positional arguments", len(pa.positional))
		}
		x, err := toFloat64(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vertex: x: %w", err)
		}
		y, err := toFloat64(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vertex: y: %w", err)
		}
		v := &sexpVertex{at: r2.Vec{X: x, Y: y}}
		if c, ok := pa.kw["control"]; ok {
			cp, err := toPoint(c)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vertex: control: %w", err)
			}
			v.control = &cp
		}
		return v, nil
	})

	// -----------------------------------------------------------------------
	// (outline v1 v2 v3 ...) or (outline [v1 v2 v3 ...])
	// -----------------------------------------------------------------------
	env.AddFunction("outline", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if b.outline != nil {
			return zygo.SexpNull, fmt.Errorf("outline: defined more than once")
		}
		items := args
		if len(args) == 1 {
			if list, err := sexpListToSlice(args[0]); err == nil {
				items = list
			}
		}

		verts := make([]*sexpVertex, 0, len(items))
		pts := make([]r2.Vec, 0, len(items))
		for i, it := range items {
			v, err := toVertex(it)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("outline: item %d: %w", i, err)
			}
			verts = append(verts, v)
			pts = append(pts, v.at)
		}

		poly := polygon.FromPoints(pts, polygon.MinFreeform)
		if poly == nil {
			return zygo.SexpNull, fmt.Errorf("outline: need at least %d vertices, got %d", polygon.MinFreeform, len(pts))
		}
		for i, v := range verts {
			if v.control != nil && !poly.MoveCurveControl(i, *v.control) {
				return zygo.SexpNull, fmt.Errorf("outline: edge %d: invalid control point", i)
			}
		}

		b.outline = poly
		return &sexpOutline{poly: poly}, nil
	})
}
