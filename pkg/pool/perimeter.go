package pool

import (
	"fmt"
	"math"

	"github.com/chazu/lagoon/pkg/geom"
	"github.com/chazu/lagoon/pkg/logging"
	"github.com/chazu/lagoon/pkg/polygon"
	"gonum.org/v1/gonum/spatial/r2"
)

// Preset perimeters occupy x ∈ [0, Length], y ∈ [-Width/2, Width/2] and
// wind counter-clockwise, starting at the shallow-end corner on -Y.

func rectanglePerimeter(p Params) []r2.Vec {
	hw := p.Width / 2
	return []r2.Vec{
		{X: 0, Y: -hw},
		{X: p.Length, Y: -hw},
		{X: p.Length, Y: hw},
		{X: 0, Y: hw},
	}
}

// lShapePerimeter adds a leg of LegLength × LegWidth on the +Y side at the
// deep end.
func lShapePerimeter(p Params) []r2.Vec {
	hw := p.Width / 2
	legStart := p.Length - p.LegLength
	return []r2.Vec{
		{X: 0, Y: -hw},
		{X: p.Length, Y: -hw},
		{X: p.Length, Y: hw + p.LegWidth},
		{X: legStart, Y: hw + p.LegWidth},
		{X: legStart, Y: hw},
		{X: 0, Y: hw},
	}
}

func ovalPerimeter(p Params, segments int) []r2.Vec {
	segments = max(segments, 8)
	cx, rx, ry := p.Length/2, p.Length/2, p.Width/2
	pts := make([]r2.Vec, segments)
	for i := range pts {
		// Start at the shallow end so index 0 sits on the start edge.
		a := math.Pi + 2*math.Pi*float64(i)/float64(segments)
		pts[i] = r2.Vec{X: cx + rx*math.Cos(a), Y: ry * math.Sin(a)}
	}
	return pts
}

// kidneyControl is the unit control outline: u runs along the length, v
// across the width. The small lobe is at u = 0, the big lobe at u = 1 and
// the waist on the +Y side.
var kidneyControl = [8][2]float64{
	{0.05, -0.35},
	{0.45, -0.50},
	{0.92, -0.42},
	{1.00, 0.05},
	{0.82, 0.50},
	{0.50, 0.50}, // waist, pulled in by KidneyPinch
	{0.18, 0.44},
	{0.00, 0.05},
}

// kidneyPerimeter warps the control outline by the lobe ratio, pinch and
// offset, smooths it with Chaikin passes and fits the result to the plan
// rectangle.
func kidneyPerimeter(p Params, smoothing int) []r2.Vec {
	ctrl := make([]r2.Vec, len(kidneyControl))
	small := 1 / p.KidneyLobe
	for i, c := range kidneyControl {
		u, v := c[0], c[1]
		// Blend from the small-lobe scale to the big-lobe scale along u.
		k := small + (1-small)*u
		v *= k
		if u > 0.5 {
			v += p.KidneyOffset * (u - 0.5) * 2
		}
		ctrl[i] = r2.Vec{X: u, Y: v}
	}
	ctrl[5].Y = (0.5 - p.KidneyPinch) * (small + (1-small)*kidneyControl[5][0])

	smooth := geom.Chaikin(ctrl, smoothing)
	return fitToPlan(smooth, p.Length, p.Width)
}

// fitToPlan maps pts so their bounds become [0,length]×[-width/2,width/2].
func fitToPlan(pts []r2.Vec, length, width float64) []r2.Vec {
	b := geom.Bounds(pts)
	w, h := b.Max.X-b.Min.X, b.Max.Y-b.Min.Y
	if w <= 0 || h <= 0 {
		return pts
	}
	out := make([]r2.Vec, len(pts))
	for i, q := range pts {
		out[i] = r2.Vec{
			X: (q.X - b.Min.X) / w * length,
			Y: ((q.Y-b.Min.Y)/h - 0.5) * width,
		}
	}
	return out
}

// perimeter returns the cleaned counter-clockwise outline for p.
func (b *Builder) perimeter(p Params, outline *polygon.Polygon) ([]r2.Vec, polygon.ShapeReport, error) {
	var raw []r2.Vec
	switch p.Shape {
	case ShapeRectangle:
		raw = rectanglePerimeter(p)
	case ShapeLShape:
		raw = lShapePerimeter(p)
	case ShapeOval:
		raw = ovalPerimeter(p, b.Options.OvalSegments)
	case ShapeKidney:
		raw = kidneyPerimeter(p, b.Options.KidneySmoothing)
	case ShapeFreeform:
		if outline == nil {
			return nil, polygon.ShapeReport{}, ErrNoOutline
		}
		pts, rep := outline.ToShape(b.Options.CurveResolution)
		if len(pts) < 3 {
			return nil, rep, fmt.Errorf("%w: %d usable points", ErrNoOutline, len(pts))
		}
		return pts, rep, nil
	default:
		return nil, polygon.ShapeReport{}, fmt.Errorf("%w: %v", ErrUnknownShape, p.Shape)
	}
	pts, rep := polygon.Normalize(raw)
	if rep.Removed > 0 {
		logging.Logger().Debug("perimeter cleaned", "shape", p.Shape, "removed", rep.Removed)
	}
	return pts, rep, nil
}
