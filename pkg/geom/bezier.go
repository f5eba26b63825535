package geom

import "gonum.org/v1/gonum/spatial/r2"

// QuadBezier evaluates B(t) = (1-t)²·p0 + 2(1-t)t·c + t²·p1.
func QuadBezier(p0, c, p1 r2.Vec, t float64) r2.Vec {
	u := 1 - t
	return r2.Add(
		r2.Add(r2.Scale(u*u, p0), r2.Scale(2*u*t, c)),
		r2.Scale(t*t, p1),
	)
}

// SampleQuad returns n points of the curve at t = k/n for k in [0, n).
// The end point p1 is excluded so consecutive edges can be chained without
// duplicating shared vertices.
func SampleQuad(p0, c, p1 r2.Vec, n int) []r2.Vec {
	if n < 1 {
		n = 1
	}
	out := make([]r2.Vec, 0, n)
	for k := 0; k < n; k++ {
		out = append(out, QuadBezier(p0, c, p1, float64(k)/float64(n)))
	}
	return out
}
