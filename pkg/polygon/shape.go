package polygon

import (
	"slices"

	"github.com/chazu/lagoon/pkg/geom"
	"github.com/chazu/lagoon/pkg/logging"
	"gonum.org/v1/gonum/spatial/r2"
)

// ShapeReport describes what ToShape had to do to produce a valid outline.
type ShapeReport struct {
	Removed  int  // points dropped as duplicates or collinear
	Reversed bool // input wound clockwise
	Repaired bool // self-intersection found; vertices re-ordered by angle
}

// ToShape returns a simple counter-clockwise outline suitable for
// triangulation. Curved edges are sampled at resolution points.
//
// A self-intersecting outline is replaced by its vertices sorted by angle
// around their centroid. The result is always triangulable but may not
// match what the user drew; Repaired is set so callers can tell.
func (p *Polygon) ToShape(resolution int) ([]r2.Vec, ShapeReport) {
	raw := slices.Collect(p.Sample(resolution))
	return Normalize(raw)
}

// Normalize applies the ToShape cleanup pipeline to an arbitrary ring.
func Normalize(raw []r2.Vec) ([]r2.Vec, ShapeReport) {
	var rep ShapeReport
	pts := geom.Clean(raw, geom.Epsilon)
	rep.Removed = len(raw) - len(pts)
	if len(pts) < 3 {
		return pts, rep
	}

	pts, rep.Reversed = geom.EnsureCCW(pts)

	if geom.SelfIntersects(pts) {
		logging.Logger().Warn("self-intersecting outline repaired by angle sort", "points", len(pts))
		pts, _ = geom.EnsureCCW(geom.AngleSort(pts))
		rep.Repaired = true
	}
	return pts, rep
}
