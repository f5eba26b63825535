package pool

import (
	"github.com/chazu/lagoon/pkg/depth"
	"github.com/chazu/lagoon/pkg/kernel"
	"github.com/chazu/lagoon/pkg/polygon"
	"github.com/chazu/lagoon/pkg/uv"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
)

// Step is one entry step: a box whose run along X can be resized.
type Step struct {
	Mesh  *kernel.Mesh
	Index int

	// BaseLength is the mesh's local X size; Length is the current run.
	BaseLength float64
	Length     float64

	Top, Bottom float64
	MinY, MaxY  float64
}

// Center returns the step's centre X.
func (s *Step) Center() float64 { return s.Mesh.Transform.Position.X }

// Left returns the X of the step's start edge.
func (s *Step) Left() float64 { return s.Center() - s.Length/2 }

// Right returns the X of the step's far edge.
func (s *Step) Right() float64 { return s.Center() + s.Length/2 }

// Footprint returns the plan rectangle and bottom plane of the step.
func (s *Step) Footprint() depth.Footprint {
	return depth.Footprint{MinX: s.Left(), MaxX: s.Right(), MinY: s.MinY, MaxY: s.MaxY, Bottom: s.Bottom}
}

func (s *Step) setLength(l float64) {
	s.Length = l
	s.Mesh.Transform.Scale.X = l / s.BaseLength
}

// Wall is one wall run. Box walls follow a single perimeter segment; a
// ring wall follows the whole perimeter.
type Wall struct {
	Mesh  *kernel.Mesh
	Index int

	// BaseHeight is the built height, from -BaseHeight up to the deck.
	// Height grows above BaseHeight when the wall is raised.
	BaseHeight float64
	Height     float64

	// Coping indexes the wall's own coping piece, or is -1 when the
	// assembly uses ring coping.
	Coping int

	// Start and End are the inner-face segment for box walls.
	Start, End r2.Vec

	ring                  bool
	localTop, localBottom float64
}

// IsRing reports whether the wall follows the whole perimeter.
func (w *Wall) IsRing() bool { return w.ring }

// Extra returns how far the wall top sits above the deck.
func (w *Wall) Extra() float64 { return w.Height - w.BaseHeight }

// place fits the mesh between the given bottom and top planes by scaling
// its local Z extent.
func (w *Wall) place(bottom, top float64) {
	span := w.localTop - w.localBottom
	if span <= 0 || top <= bottom {
		return
	}
	s := (top - bottom) / span
	w.Mesh.Transform.Scale.Z = s
	w.Mesh.Transform.Position.Z = bottom - w.localBottom*s
}

func (w *Wall) commit() { w.place(-w.BaseHeight, w.Extra()) }

// Assembly owns every mesh of one built pool. Collaborators may reference
// the meshes but never own them; materials are not the assembly's to free.
type Assembly struct {
	ID    uuid.UUID
	Shape Shape

	Floor  *kernel.Mesh
	Steps  []*Step
	Walls  []*Wall
	Coping []*kernel.Mesh
	Water  *WaterSurface

	// OuterPts is the cleaned counter-clockwise perimeter.
	OuterPts []r2.Vec
	Report   polygon.ShapeReport

	Axis       depth.Axis
	Origins    uv.Origins
	LastParams Params
	RingCoping bool

	copingBaseZ []float64
	opts        Options
	previewing  bool
}

// Surfaces returns every mesh in a stable order: floor, steps, walls,
// coping, water.
func (a *Assembly) Surfaces() []*kernel.Mesh {
	var out []*kernel.Mesh
	if a.Floor != nil {
		out = append(out, a.Floor)
	}
	out = append(out, a.StepMeshes()...)
	out = append(out, lo.Map(a.Walls, func(w *Wall, _ int) *kernel.Mesh { return w.Mesh })...)
	out = append(out, a.Coping...)
	if a.Water != nil {
		out = append(out, a.Water.Mesh)
	}
	return out
}

// StepMeshes returns the step meshes in chain order.
func (a *Assembly) StepMeshes() []*kernel.Mesh {
	return lo.Map(a.Steps, func(s *Step, _ int) *kernel.Mesh { return s.Mesh })
}

// Footprints returns the plan footprints of all steps.
func (a *Assembly) Footprints() []depth.Footprint {
	return lo.Map(a.Steps, func(s *Step, _ int) depth.Footprint { return s.Footprint() })
}

// Animatables returns the surfaces that advance with time.
func (a *Assembly) Animatables() []Animatable {
	if a.Water == nil {
		return nil
	}
	return []Animatable{a.Water}
}

// Retile recomputes UV origins from current geometry and rewrites the UVs
// of every surface.
func (a *Assembly) Retile(al uv.Aligner) {
	a.Origins = al.ComputeOrigins(a.Floor, a.StepMeshes())
	al.Align(a.Origins, a.Surfaces()...)
}

// Dispose drops all geometry buffers.
func (a *Assembly) Dispose() {
	for _, m := range a.Surfaces() {
		m.Dispose()
	}
}
