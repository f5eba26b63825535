package pool

import (
	"math"

	"github.com/chazu/lagoon/pkg/depth"
	"github.com/chazu/lagoon/pkg/logging"
)

// ChainSteps lays the steps out left to right from leftEdge so each starts
// where the previous one ends. It returns the right edge of the last step,
// or leftEdge when there are no steps.
func (a *Assembly) ChainSteps(leftEdge float64) float64 {
	x := leftEdge
	for _, s := range a.Steps {
		s.Mesh.Transform.Position.X = x + s.Length/2
		x += s.Length
	}
	return x
}

// leftmostStepEdge returns the smallest step start X.
func (a *Assembly) leftmostStepEdge() float64 {
	left := math.Inf(1)
	for _, s := range a.Steps {
		left = math.Min(left, s.Left())
	}
	return left
}

// ResizeStep sets the run of step i, re-chains all steps from the
// leftmost edge, moves the profile origin to the new right edge and
// reprofiles the floor.
func (a *Assembly) ResizeStep(i int, length float64) bool {
	if i < 0 || i >= len(a.Steps) || math.IsNaN(length) || math.IsInf(length, 0) {
		return false
	}
	length = math.Max(length, a.opts.MinStepLength)
	left := a.leftmostStepEdge()
	a.Steps[i].setLength(length)
	a.Axis.OriginX = a.ChainSteps(left)
	a.ReprofileFloor(a.LastParams)
	return true
}

// ReprofileFloor rewrites floor Z from p's depth profile and the current
// step footprints. Only the depth fields of p are recorded.
func (a *Assembly) ReprofileFloor(p Params) {
	if a.Floor == nil {
		return
	}
	a.LastParams.Shallow = p.Shallow
	a.LastParams.Deep = p.Deep
	a.LastParams.ShallowFlat = p.ShallowFlat
	a.LastParams.DeepFlat = p.DeepFlat
	a.Axis = a.Axis.WithFlats(a.LastParams.Profile())
	depth.PatchFloor(a.Floor.Vertices, a.LastParams.Profile(), a.Axis, a.Footprints())
}

// RaiseWall sets wall i's height. The bottom stays at -BaseHeight and only
// the top moves; heights below BaseHeight are clamped to it. Coping
// follows the wall, or for ring coping follows the highest wall.
func (a *Assembly) RaiseWall(i int, height float64) bool {
	if i < 0 || i >= len(a.Walls) || math.IsNaN(height) || math.IsInf(height, 0) {
		return false
	}
	w := a.Walls[i]
	w.Height = math.Max(height, w.BaseHeight)
	w.commit()

	switch {
	case w.Coping >= 0 && w.Coping < len(a.Coping):
		a.Coping[w.Coping].Transform.Position.Z = a.copingBaseZ[w.Coping] + w.Extra()
	case a.RingCoping && len(a.Coping) > 0:
		extra := 0.0
		for _, other := range a.Walls {
			extra = math.Max(extra, other.Extra())
		}
		a.Coping[0].Transform.Position.Z = a.copingBaseZ[0] + extra
	}
	return true
}

// PreviewDepth shows p's depth profile without rebuilding: floor Z is
// patched in place and walls are stretched downward to the new deep end.
// Nothing is reallocated. ResetPreview undoes the wall stretch.
func (a *Assembly) PreviewDepth(p Params) {
	prof := p.Profile()
	if a.Floor != nil {
		depth.PatchFloor(a.Floor.Vertices, prof, a.Axis, a.Footprints())
	}
	h := depth.WallHeight(prof)
	for _, w := range a.Walls {
		w.place(-h, w.Extra())
	}
	a.previewing = true
	logging.Logger().Debug("depth preview", "id", a.ID, "wallHeight", h)
}

// ResetPreview restores the committed wall placement and floor profile.
func (a *Assembly) ResetPreview() {
	if !a.previewing {
		return
	}
	for _, w := range a.Walls {
		w.commit()
	}
	if a.Floor != nil {
		depth.PatchFloor(a.Floor.Vertices, a.LastParams.Profile(), a.Axis, a.Footprints())
	}
	a.previewing = false
}

// Previewing reports whether a depth preview is applied.
func (a *Assembly) Previewing() bool { return a.previewing }
