package geom

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// SegmentsIntersect reports whether segments ab and cd cross at a single
// interior point. Touching endpoints and collinear overlaps do not count.
func SegmentsIntersect(a, b, c, d r2.Vec) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// SelfIntersects runs the O(n²) proper-intersection test over every pair of
// non-adjacent edges of the closed polyline.
func SelfIntersects(pts []r2.Vec) bool {
	n := len(pts)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if SegmentsIntersect(a, b, pts[j], pts[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

// AngleSort orders a copy of pts by angle around their centroid, which
// always yields a simple (star-shaped) polygon in counter-clockwise order.
// Edit fidelity is lost for concave input.
func AngleSort(pts []r2.Vec) []r2.Vec {
	c := Centroid(pts)
	out := Clone(pts)
	sort.SliceStable(out, func(i, j int) bool {
		ai := math.Atan2(out[i].Y-c.Y, out[i].X-c.X)
		aj := math.Atan2(out[j].Y-c.Y, out[j].X-c.X)
		return ai < aj
	})
	return out
}
