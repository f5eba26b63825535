package geom

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// SignedArea returns the shoelace area of the closed polyline. Positive means
// counter-clockwise.
func SignedArea(pts []r2.Vec) float64 {
	var a float64
	n := len(pts)
	for i := 0; i < n; i++ {
		a += r2.Cross(pts[i], pts[(i+1)%n])
	}
	return a / 2
}

// IsCCW reports whether pts wind counter-clockwise.
func IsCCW(pts []r2.Vec) bool {
	return SignedArea(pts) > 0
}

// EnsureCCW returns pts in counter-clockwise order, reversing a copy when
// needed. The second result reports whether a reversal happened.
func EnsureCCW(pts []r2.Vec) ([]r2.Vec, bool) {
	if SignedArea(pts) >= 0 {
		return pts, false
	}
	out := Clone(pts)
	slices.Reverse(out)
	return out, true
}

// Clean removes non-finite points, consecutive near-duplicates, a duplicate
// closing point, and (while more than three points remain) near-collinear
// points.
func Clean(pts []r2.Vec, eps float64) []r2.Vec {
	out := make([]r2.Vec, 0, len(pts))
	for _, p := range pts {
		if !Finite(p) {
			continue
		}
		if len(out) > 0 && Dist(out[len(out)-1], p) < eps {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && Dist(out[0], out[len(out)-1]) < eps {
		out = out[:len(out)-1]
	}

	for changed := true; changed && len(out) > 3; {
		changed = false
		for i := 0; i < len(out) && len(out) > 3; i++ {
			prev := out[(i-1+len(out))%len(out)]
			next := out[(i+1)%len(out)]
			if math.Abs(cross(prev, out[i], next)) < eps {
				out = slices.Delete(out, i, i+1)
				changed = true
				i--
			}
		}
	}
	return out
}

// Bounds returns the axis-aligned bounding box of pts. An empty input yields
// the zero box.
func Bounds(pts []r2.Vec) r2.Box {
	if len(pts) == 0 {
		return r2.Box{}
	}
	b := r2.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}

// Centroid returns the vertex average of pts.
func Centroid(pts []r2.Vec) r2.Vec {
	var c r2.Vec
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		c = r2.Add(c, p)
	}
	return r2.Scale(1/float64(len(pts)), c)
}
