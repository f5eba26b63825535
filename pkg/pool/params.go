package pool

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/chazu/lagoon/pkg/depth"
	"github.com/samber/lo"
)

var (
	// ErrUnknownParam is returned for a parameter name Params does not have.
	ErrUnknownParam = errors.New("pool: unknown parameter")
	// ErrUnknownShape is returned for a shape value or name outside the
	// supported set.
	ErrUnknownShape = errors.New("pool: unknown shape")
	// ErrNoOutline is returned when a freeform build has no usable outline.
	ErrNoOutline = errors.New("pool: freeform shape needs an outline")
)

// Shape selects how the perimeter is produced.
type Shape int

const (
	ShapeRectangle Shape = iota
	ShapeOval
	ShapeKidney
	ShapeLShape
	ShapeFreeform
)

var shapeNames = map[Shape]string{
	ShapeRectangle: "rectangle",
	ShapeOval:      "oval",
	ShapeKidney:    "kidney",
	ShapeLShape:    "l-shape",
	ShapeFreeform:  "freeform",
}

func (s Shape) String() string {
	if n, ok := shapeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// PolygonBased reports whether the shape is driven by an editable outline.
func (s Shape) PolygonBased() bool { return s == ShapeFreeform }

// Curved reports whether the shape uses ring walls and ring coping.
func (s Shape) Curved() bool { return s == ShapeOval || s == ShapeKidney }

// ParseShape maps a shape name (case-insensitive, "lshape" and "polygon"
// accepted as aliases) to a Shape.
func ParseShape(name string) (Shape, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "lshape", "l_shape":
		return ShapeLShape, nil
	case "polygon":
		return ShapeFreeform, nil
	}
	if s, ok := lo.FindKey(shapeNames, n); ok {
		return s, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownShape, name)
}

// Params is the flat parameter record driving a build. Lengths are metres;
// depths are positive distances below the deck.
type Params struct {
	Shape       Shape   `json:"shape"`
	Length      float64 `json:"length"`
	Width       float64 `json:"width"`
	Shallow     float64 `json:"shallow"`
	Deep        float64 `json:"deep"`
	ShallowFlat float64 `json:"shallowFlat"`
	DeepFlat    float64 `json:"deepFlat"`
	StepCount   int     `json:"stepCount"`
	StepRise    float64 `json:"stepRise"`

	// Kidney: big-lobe to small-lobe radius ratio, waist depth as a
	// fraction of the width, and sideways offset of the big lobe.
	KidneyLobe   float64 `json:"kidneyLobe"`
	KidneyPinch  float64 `json:"kidneyPinch"`
	KidneyOffset float64 `json:"kidneyOffset"`

	// L-shape: the leg sits on the +Y side at the deep end.
	LegLength float64 `json:"legLength"`
	LegWidth  float64 `json:"legWidth"`
}

// DefaultParams returns a 10 × 5 m rectangle with three entry steps.
func DefaultParams() Params {
	return Params{
		Shape:        ShapeRectangle,
		Length:       10,
		Width:        5,
		Shallow:      1.2,
		Deep:         2.5,
		ShallowFlat:  2,
		DeepFlat:     2,
		StepCount:    3,
		StepRise:     0.25,
		KidneyLobe:   1.4,
		KidneyPinch:  0.2,
		KidneyOffset: 0.1,
		LegLength:    4,
		LegWidth:     3,
	}
}

// paramFields maps parameter names to their storage. stepCount is handled
// separately since it is an integer.
var paramFields = map[string]func(*Params) *float64{
	"length":       func(p *Params) *float64 { return &p.Length },
	"width":        func(p *Params) *float64 { return &p.Width },
	"shallow":      func(p *Params) *float64 { return &p.Shallow },
	"deep":         func(p *Params) *float64 { return &p.Deep },
	"shallowFlat":  func(p *Params) *float64 { return &p.ShallowFlat },
	"deepFlat":     func(p *Params) *float64 { return &p.DeepFlat },
	"stepRise":     func(p *Params) *float64 { return &p.StepRise },
	"kidneyLobe":   func(p *Params) *float64 { return &p.KidneyLobe },
	"kidneyPinch":  func(p *Params) *float64 { return &p.KidneyPinch },
	"kidneyOffset": func(p *Params) *float64 { return &p.KidneyOffset },
	"legLength":    func(p *Params) *float64 { return &p.LegLength },
	"legWidth":     func(p *Params) *float64 { return &p.LegWidth },
}

const paramStepCount = "stepCount"

// ParamNames returns every settable numeric parameter name, sorted.
func ParamNames() []string {
	names := append(lo.Keys(paramFields), paramStepCount)
	slices.Sort(names)
	return names
}

// IsDepthParam reports whether changing name only affects the depth
// profile, so it can be previewed by patching the floor in place.
func IsDepthParam(name string) bool {
	switch name {
	case "shallow", "deep", "shallowFlat", "deepFlat":
		return true
	}
	return false
}

// Get returns the named parameter.
func (p Params) Get(name string) (float64, error) {
	if name == paramStepCount {
		return float64(p.StepCount), nil
	}
	f, ok := paramFields[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	return *f(&p), nil
}

// Set assigns the named parameter. Values are stored as given; the
// builder clamps them.
func (p *Params) Set(name string, v float64) error {
	if name == paramStepCount {
		if math.IsNaN(v) {
			v = 0
		}
		p.StepCount = int(math.Round(math.Max(0, math.Min(v, maxSteps))))
		return nil
	}
	f, ok := paramFields[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	*f(p) = v
	return nil
}

// Clone returns an independent copy.
func (p Params) Clone() Params { return p }

// Profile returns the depth-affecting subset.
func (p Params) Profile() depth.Profile {
	return depth.Profile{
		Shallow:     p.Shallow,
		Deep:        p.Deep,
		ShallowFlat: p.ShallowFlat,
		DeepFlat:    p.DeepFlat,
	}
}

const (
	minPlan  = 1.0
	maxSteps = 12
)

// clamped returns a copy with every value forced into a buildable range.
// Out-of-range input is never an error.
func (p Params) clamped() Params {
	c := p
	c.Length = clampFinite(p.Length, minPlan, 100, 10)
	c.Width = clampFinite(p.Width, minPlan, 50, 5)
	c.Shallow, c.Deep = depth.ClampDepths(p.Profile())
	c.ShallowFlat = clampFinite(p.ShallowFlat, 0, c.Length, 0)
	c.DeepFlat = clampFinite(p.DeepFlat, 0, c.Length, 0)
	c.StepCount = max(0, min(p.StepCount, maxSteps))
	c.StepRise = clampFinite(p.StepRise, 0.1, 0.4, 0.25)
	c.KidneyLobe = clampFinite(p.KidneyLobe, 1, 2.5, 1.4)
	c.KidneyPinch = clampFinite(p.KidneyPinch, 0, 0.4, 0.2)
	c.KidneyOffset = clampFinite(p.KidneyOffset, -0.25, 0.25, 0)
	c.LegLength = clampFinite(p.LegLength, minPlan/2, c.Length-minPlan/2, c.Length/2)
	c.LegWidth = clampFinite(p.LegWidth, minPlan/2, 50, 2)
	return c
}

func clampFinite(v, low, high, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = fallback
	}
	if high < low {
		high = low
	}
	return math.Max(low, math.Min(high, v))
}
