package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Epsilon is the default tolerance for duplicate and collinear point removal.
const Epsilon = 1e-5

// Finite reports whether both coordinates of p are finite numbers.
func Finite(p r2.Vec) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Unit returns p scaled to length 1, or the zero vector when p has no length.
func Unit(p r2.Vec) r2.Vec {
	n := r2.Norm(p)
	if n < 1e-12 {
		return r2.Vec{}
	}
	return r2.Scale(1/n, p)
}

// Lerp interpolates between a and b.
func Lerp(a, b r2.Vec, t float64) r2.Vec {
	return r2.Add(a, r2.Scale(t, r2.Sub(b, a)))
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(b, a))
}

// PerpLeft rotates v by +90°.
func PerpLeft(v r2.Vec) r2.Vec {
	return r2.Vec{X: -v.Y, Y: v.X}
}

// PerpRight rotates v by -90°.
func PerpRight(v r2.Vec) r2.Vec {
	return r2.Vec{X: v.Y, Y: -v.X}
}

// cross returns the z component of (a-o) × (b-o).
func cross(o, a, b r2.Vec) float64 {
	return r2.Cross(r2.Sub(a, o), r2.Sub(b, o))
}

// Clone returns a copy of pts.
func Clone(pts []r2.Vec) []r2.Vec {
	out := make([]r2.Vec, len(pts))
	copy(out, pts)
	return out
}
