package geom

import "gonum.org/v1/gonum/spatial/r2"

// VertexNormals returns one outward unit normal per vertex of the closed
// polyline: the normalized average of the unit perpendiculars of the two
// edges meeting at the vertex. The rotation direction follows the winding
// so the result always points away from the interior.
func VertexNormals(pts []r2.Vec) []r2.Vec {
	n := len(pts)
	normals := make([]r2.Vec, n)
	if n < 2 {
		return normals
	}
	perp := PerpRight
	if !IsCCW(pts) {
		perp = PerpLeft
	}
	edgeNormal := func(i int) r2.Vec {
		return Unit(perp(r2.Sub(pts[(i+1)%n], pts[i])))
	}
	for i := 0; i < n; i++ {
		in := edgeNormal((i - 1 + n) % n)
		out := edgeNormal(i)
		nv := Unit(r2.Add(in, out))
		if nv == (r2.Vec{}) {
			// Hairpin vertex: the two edge normals cancel.
			nv = out
		}
		normals[i] = nv
	}
	return normals
}

// Offset moves every vertex of the closed polyline by d along its outward
// vertex normal. Negative d moves inward.
func Offset(pts []r2.Vec, d float64) []r2.Vec {
	normals := VertexNormals(pts)
	out := make([]r2.Vec, len(pts))
	for i, p := range pts {
		out[i] = r2.Add(p, r2.Scale(d, normals[i]))
	}
	return out
}
