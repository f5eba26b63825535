package geom

import "gonum.org/v1/gonum/spatial/r2"

// Triangulate ear-clips a simple counter-clockwise polygon and returns
// vertex indices into pts, three per triangle. Degenerate input (fewer than
// three points) yields nil. If clipping stalls on numerically awkward input
// the remaining fan is emitted so the caller always gets a surface.
func Triangulate(pts []r2.Vec) []int {
	n := len(pts)
	if n < 3 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if !IsCCW(pts) {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			idx[i], idx[j] = idx[j], idx[i]
		}
	}

	tris := make([]int, 0, (n-2)*3)
	for guard := 0; len(idx) > 3 && guard < n*n; guard++ {
		clipped := false
		for i := range idx {
			m := len(idx)
			ia, ib, ic := idx[(i-1+m)%m], idx[i], idx[(i+1)%m]
			if !isEar(pts, idx, ia, ib, ic) {
				continue
			}
			tris = append(tris, ia, ib, ic)
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			break
		}
	}
	for i := 1; i+1 < len(idx); i++ {
		tris = append(tris, idx[0], idx[i], idx[i+1])
	}
	return tris
}

func isEar(pts []r2.Vec, idx []int, ia, ib, ic int) bool {
	a, b, c := pts[ia], pts[ib], pts[ic]
	if cross(a, b, c) <= 1e-12 {
		return false
	}
	for _, k := range idx {
		if k == ia || k == ib || k == ic {
			continue
		}
		if inTriangle(pts[k], a, b, c) {
			return false
		}
	}
	return true
}

func inTriangle(p, a, b, c r2.Vec) bool {
	return cross(a, b, p) >= 0 && cross(b, c, p) >= 0 && cross(c, a, p) >= 0
}
