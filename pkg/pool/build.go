// Package pool turns pool parameters, and an outline for freeform pools,
// into an Assembly of role-tagged meshes: floor, steps, walls, coping and
// water. It also implements the in-place edits the live editor needs:
// step chain-push, wall raise, floor reprofiling and depth preview.
package pool

import (
	"fmt"
	"math"

	"github.com/chazu/lagoon/pkg/depth"
	"github.com/chazu/lagoon/pkg/geom"
	"github.com/chazu/lagoon/pkg/kernel"
	"github.com/chazu/lagoon/pkg/logging"
	"github.com/chazu/lagoon/pkg/polygon"
	"github.com/chazu/lagoon/pkg/uv"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Builder builds assemblies. It is stateless apart from its options and
// may be shared.
type Builder struct {
	Options Options
	Aligner uv.Aligner
}

// NewBuilder returns a builder; zero option fields take their defaults.
func NewBuilder(opts Options) *Builder {
	opts = opts.withDefaults()
	return &Builder{Options: opts, Aligner: uv.NewAligner(opts.TileSize)}
}

// Build produces a fresh assembly. Out-of-range parameters are clamped and
// degenerate pieces skipped; the only errors are an unknown shape and a
// freeform build without a usable outline.
func (b *Builder) Build(params Params, outline *polygon.Polygon) (*Assembly, error) {
	p := params.clamped()
	pts, rep, err := b.perimeter(p, outline)
	if err != nil {
		return nil, fmt.Errorf("build %v: %w", p.Shape, err)
	}
	bounds := geom.Bounds(pts)

	asm := &Assembly{
		ID:         uuid.New(),
		Shape:      p.Shape,
		OuterPts:   pts,
		Report:     rep,
		LastParams: p,
		opts:       b.Options,
	}

	b.buildSteps(asm, p, pts, bounds)
	origin := bounds.Min.X
	if n := len(asm.Steps); n > 0 {
		origin = asm.Steps[n-1].Right()
	}
	asm.Axis = depth.Axis{
		Start:   bounds.Min.X,
		End:     bounds.Max.X,
		OriginX: origin,
	}.WithFlats(p.Profile())
	b.buildFloor(asm, p, bounds)

	height := depth.WallHeight(p.Profile())
	if p.Shape.Curved() {
		b.buildRingWall(asm, pts, height)
	} else {
		b.buildBoxWalls(asm, p.Shape, pts, height)
	}
	b.buildCoping(asm, pts)

	asm.Water = newWaterSurface(kernel.NewCap(pts, b.Options.WaterLevel, kernel.RoleWater, "water"), b.Options.WaterLevel)

	asm.Retile(b.Aligner)
	logging.Logger().Debug("assembly built",
		"id", asm.ID, "shape", p.Shape, "steps", len(asm.Steps),
		"walls", len(asm.Walls), "coping", len(asm.Coping), "perimeter", len(pts))
	return asm, nil
}

// ---------------------------------------------------------------------------
// Floor
// ---------------------------------------------------------------------------

// buildFloor lays a grid over the perimeter's bounding rectangle. The
// floor follows the bounds, not the perimeter, so at curved extremities it
// may extend past the water surface.
func (b *Builder) buildFloor(asm *Assembly, p Params, bounds r2.Box) {
	density := b.Options.FloorSegmentsPerMeter
	segX := int(math.Ceil((bounds.Max.X - bounds.Min.X) * density))
	segY := int(math.Ceil((bounds.Max.Y - bounds.Min.Y) * density))
	asm.Floor = kernel.NewGrid(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y, segX, segY, kernel.RoleFloor, "floor")
	depth.PatchFloor(asm.Floor.Vertices, p.Profile(), asm.Axis, asm.Footprints())
}

// ---------------------------------------------------------------------------
// Steps
// ---------------------------------------------------------------------------

const (
	// chordInset keeps chord samples off the exact perimeter vertices.
	chordInset = 1e-3
	// minStepWidth is the narrowest step worth building.
	minStepWidth = 0.5
)

// buildSteps chains boxes along the start edge of the bounding rectangle.
// Each step spans the outline's chord at its far edge, which is the wide
// side when the start edge is a curved tip. A slot with no room across the
// pool is skipped and the chain carries on past it. Built step k has its
// tread at -(k+1)·rise; the last one reaches down to the shallow floor.
func (b *Builder) buildSteps(asm *Assembly, p Params, pts []r2.Vec, bounds r2.Box) {
	n := p.StepCount
	if n == 0 {
		return
	}
	o := b.Options
	byDepth := int(math.Floor((p.Shallow - o.MinFinalStep) / p.StepRise))
	byLength := int(math.Floor((bounds.Max.X - bounds.Min.X) / 2 / o.StepLength))
	if lim := max(0, min(byDepth, byLength)); n > lim {
		logging.Logger().Debug("step count clamped", "requested", n, "fits", lim)
		n = lim
	}

	type placement struct{ left, minY, maxY float64 }
	var placed []placement
	for slot := 0; slot < byLength && len(placed) < n; slot++ {
		left := bounds.Min.X + float64(slot)*o.StepLength
		minY, maxY, ok := chordAt(pts, left+o.StepLength-chordInset)
		if !ok || maxY-minY < minStepWidth {
			logging.Logger().Debug("skipping step slot", "slot", slot, "reason", "no room across the pool")
			continue
		}
		placed = append(placed, placement{left, minY, maxY})
	}

	for k, pl := range placed {
		top := -float64(k+1) * p.StepRise
		height := p.StepRise
		if k == len(placed)-1 {
			height = math.Max(o.MinFinalStep, top+p.Shallow)
		}
		m := kernel.NewBox(o.StepLength, pl.maxY-pl.minY, height, kernel.RoleStep, fmt.Sprintf("step-%d", k))
		m.Transform.Position = r3.Vec{X: pl.left + o.StepLength/2, Y: (pl.minY + pl.maxY) / 2, Z: top - height/2}
		asm.Steps = append(asm.Steps, &Step{
			Mesh:       m,
			Index:      k,
			BaseLength: o.StepLength,
			Length:     o.StepLength,
			Top:        top,
			Bottom:     top - height,
			MinY:       pl.minY,
			MaxY:       pl.maxY,
		})
	}
}

// chordAt returns the Y extent of the closed outline along the vertical
// line at x.
func chordAt(pts []r2.Vec, x float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	n := len(pts)
	for i := 0; i < n; i++ {
		a, c := pts[i], pts[(i+1)%n]
		if (a.X <= x) == (c.X <= x) {
			continue
		}
		y := a.Y + (x-a.X)*(c.Y-a.Y)/(c.X-a.X)
		lo, hi = math.Min(lo, y), math.Max(hi, y)
	}
	return lo, hi, hi > lo
}

// ---------------------------------------------------------------------------
// Walls
// ---------------------------------------------------------------------------

// buildBoxWalls places one box per perimeter segment, outside the inner
// face. Boxes run past their segment ends so neighbouring walls close the
// corners.
func (b *Builder) buildBoxWalls(asm *Assembly, shape Shape, pts []r2.Vec, height float64) {
	t := b.Options.WallThickness
	extend := t
	if shape == ShapeFreeform {
		extend = t / 2
	}
	n := len(pts)
	for i := 0; i < n; i++ {
		a, c := pts[i], pts[(i+1)%n]
		d := r2.Sub(c, a)
		l := r2.Norm(d)
		if !(l > geom.Epsilon) || !geom.Finite(a) || !geom.Finite(c) {
			logging.Logger().Debug("skipping wall segment", "index", i, "length", l)
			continue
		}
		out := geom.Unit(geom.PerpRight(d))
		center := r2.Add(geom.Lerp(a, c, 0.5), r2.Scale(t/2, out))

		m := kernel.NewBox(l+2*extend, t, height, kernel.RoleWall, fmt.Sprintf("wall-%d", len(asm.Walls)))
		m.Transform.Position = r3.Vec{X: center.X, Y: center.Y, Z: -height / 2}
		m.Transform.Yaw = math.Atan2(d.Y, d.X)
		asm.Walls = append(asm.Walls, &Wall{
			Mesh:        m,
			Index:       len(asm.Walls),
			BaseHeight:  height,
			Height:      height,
			Coping:      -1,
			Start:       a,
			End:         c,
			localTop:    height / 2,
			localBottom: -height / 2,
		})
	}
}

// buildRingWall extrudes the band between the perimeter and its outward
// offset.
func (b *Builder) buildRingWall(asm *Assembly, pts []r2.Vec, height float64) {
	outer := geom.Offset(pts, b.Options.WallThickness)
	m := kernel.NewRing(outer, pts, 0, -height, kernel.RoleWall, "wall-ring")
	if m.IsEmpty() {
		logging.Logger().Debug("skipping ring wall", "points", len(pts))
		return
	}
	asm.Walls = append(asm.Walls, &Wall{
		Mesh:        m,
		BaseHeight:  height,
		Height:      height,
		Coping:      -1,
		ring:        true,
		localTop:    0,
		localBottom: -height,
	})
}

// ---------------------------------------------------------------------------
// Coping
// ---------------------------------------------------------------------------

// buildCoping caps the walls with a band from CopingOverhang inside the
// perimeter to the outer wall face. Rectangle and L-shape pools get one
// piece per wall; other shapes get a single ring.
func (b *Builder) buildCoping(asm *Assembly, pts []r2.Vec) {
	o := b.Options
	if asm.Shape == ShapeRectangle || asm.Shape == ShapeLShape {
		depthBand := o.WallThickness + o.CopingOverhang
		for _, w := range asm.Walls {
			d := r2.Sub(w.End, w.Start)
			out := geom.Unit(geom.PerpRight(d))
			center := r2.Add(geom.Lerp(w.Start, w.End, 0.5), r2.Scale((o.WallThickness-o.CopingOverhang)/2, out))
			length := r2.Norm(d) + 2*o.WallThickness

			m := kernel.NewBox(length, depthBand, o.CopingThickness, kernel.RoleCoping, fmt.Sprintf("coping-%d", w.Index))
			m.Transform.Position = r3.Vec{X: center.X, Y: center.Y, Z: o.CopingThickness / 2}
			m.Transform.Yaw = w.Mesh.Transform.Yaw
			w.Coping = len(asm.Coping)
			asm.Coping = append(asm.Coping, m)
			asm.copingBaseZ = append(asm.copingBaseZ, o.CopingThickness/2)
		}
		return
	}

	outer := geom.Offset(pts, o.WallThickness)
	inner := geom.Offset(pts, -o.CopingOverhang)
	m := kernel.NewRing(outer, inner, o.CopingThickness, 0, kernel.RoleCoping, "coping-ring")
	if m.IsEmpty() {
		logging.Logger().Debug("skipping coping ring", "points", len(pts))
		return
	}
	asm.Coping = append(asm.Coping, m)
	asm.copingBaseZ = append(asm.copingBaseZ, 0)
	asm.RingCoping = true
}
