package geom

import "gonum.org/v1/gonum/spatial/r2"

// Chaikin applies corner cutting to the closed polyline. Each iteration
// replaces every edge with points at 1/4 and 3/4 along it, doubling the
// point count.
func Chaikin(pts []r2.Vec, iterations int) []r2.Vec {
	cur := pts
	for it := 0; it < iterations && len(cur) >= 3; it++ {
		next := make([]r2.Vec, 0, len(cur)*2)
		for i := range cur {
			a, b := cur[i], cur[(i+1)%len(cur)]
			next = append(next, Lerp(a, b, 0.25), Lerp(a, b, 0.75))
		}
		cur = next
	}
	return cur
}
