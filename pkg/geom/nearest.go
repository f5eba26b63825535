package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// LoopHit describes the closest point on a closed polyline to a query point.
type LoopHit struct {
	Point    r2.Vec
	Segment  int     // index of the segment start vertex
	Distance float64 // distance from the query point
	Normal   r2.Vec  // outward unit normal of the segment
}

// NearestOnLoop returns the point of the closed polyline closest to p.
// ok is false for fewer than two points.
func NearestOnLoop(pts []r2.Vec, p r2.Vec) (hit LoopHit, ok bool) {
	n := len(pts)
	if n < 2 {
		return LoopHit{}, false
	}
	perp := PerpRight
	if !IsCCW(pts) {
		perp = PerpLeft
	}
	hit.Distance = math.Inf(1)
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		ab := r2.Sub(b, a)
		l2 := r2.Dot(ab, ab)
		t := 0.0
		if l2 > 0 {
			t = math.Max(0, math.Min(1, r2.Dot(r2.Sub(p, a), ab)/l2))
		}
		q := r2.Add(a, r2.Scale(t, ab))
		if d := Dist(p, q); d < hit.Distance {
			hit = LoopHit{Point: q, Segment: i, Distance: d, Normal: Unit(perp(ab))}
		}
	}
	return hit, true
}

// PointInPolygon tests containment by ray casting.
func PointInPolygon(p r2.Vec, pts []r2.Vec) bool {
	inside := false
	n := len(pts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := pts[i], pts[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}
