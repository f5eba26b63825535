package interact

import (
	"math"

	"github.com/chazu/lagoon/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Ray is a pick ray in world space. Dir need not be normalized; hit
// distances are in units of Dir.
type Ray struct {
	Origin r3.Vec `json:"origin"`
	Dir    r3.Vec `json:"dir"`
}

// At returns the point at parameter t.
func (r Ray) At(t float64) r3.Vec { return r3.Add(r.Origin, r3.Scale(t, r.Dir)) }

const hitEpsilon = 1e-9

// hitMesh intersects r with m and returns the nearest positive ray
// parameter. The ray is taken into the mesh's local frame, so the
// parameter is the same as in world space.
func hitMesh(m *kernel.Mesh, r Ray) (float64, bool) {
	if m == nil || m.IsEmpty() {
		return 0, false
	}
	local := toLocal(m.Transform, r)
	lo, hi := localBounds(m)
	if _, ok := slab(local, lo, hi); !ok {
		return 0, false
	}

	best := math.Inf(1)
	for t := 0; t < m.TriangleCount(); t++ {
		a := m.Local(int(m.Indices[3*t]))
		b := m.Local(int(m.Indices[3*t+1]))
		c := m.Local(int(m.Indices[3*t+2]))
		if d, ok := triangle(local, a, b, c); ok && d < best {
			best = d
		}
	}
	return best, !math.IsInf(best, 1)
}

// toLocal inverts the mesh transform for a ray.
func toLocal(tr kernel.Transform, r Ray) Ray {
	inv := func(v r3.Vec) r3.Vec {
		return r3.Vec{X: v.X / nz(tr.Scale.X), Y: v.Y / nz(tr.Scale.Y), Z: v.Z / nz(tr.Scale.Z)}
	}
	return Ray{
		Origin: inv(tr.Unrotate(r3.Sub(r.Origin, tr.Position))),
		Dir:    inv(tr.Unrotate(r.Dir)),
	}
}

func nz(v float64) float64 {
	if v == 0 {
		return hitEpsilon
	}
	return v
}

func localBounds(m *kernel.Mesh) (lo, hi r3.Vec) {
	lo = m.Local(0)
	hi = lo
	for i := 1; i < m.VertexCount(); i++ {
		v := m.Local(i)
		lo = r3.Vec{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
		hi = r3.Vec{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
	}
	return lo, hi
}

// slab tests the ray against an axis-aligned box and returns the entry
// parameter.
func slab(r Ray, lo, hi r3.Vec) (float64, bool) {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	axis := func(o, d, l, h float64) bool {
		if math.Abs(d) < hitEpsilon {
			return o >= l && o <= h
		}
		t1, t2 := (l-o)/d, (h-o)/d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin, tmax = math.Max(tmin, t1), math.Min(tmax, t2)
		return tmin <= tmax
	}
	if !axis(r.Origin.X, r.Dir.X, lo.X, hi.X) ||
		!axis(r.Origin.Y, r.Dir.Y, lo.Y, hi.Y) ||
		!axis(r.Origin.Z, r.Dir.Z, lo.Z, hi.Z) {
		return 0, false
	}
	if tmax < 0 {
		return 0, false
	}
	return math.Max(tmin, 0), true
}

// triangle is the Möller–Trumbore ray/triangle test, two-sided.
func triangle(r Ray, a, b, c r3.Vec) (float64, bool) {
	e1, e2 := r3.Sub(b, a), r3.Sub(c, a)
	p := r3.Cross(r.Dir, e2)
	det := r3.Dot(e1, p)
	if math.Abs(det) < hitEpsilon {
		return 0, false
	}
	inv := 1 / det
	s := r3.Sub(r.Origin, a)
	u := r3.Dot(s, p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(s, e1)
	v := r3.Dot(r.Dir, q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := r3.Dot(e2, q) * inv
	return t, t > hitEpsilon
}
