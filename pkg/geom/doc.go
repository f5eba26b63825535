// Package geom is the 2D curve and offset kernel used to turn pool outlines
// into buildable geometry: quadratic Bézier sampling, polygon cleanup,
// winding normalization, self-intersection detection, outward-normal
// offsetting, smoothing and triangulation.
//
// Points are gonum r2.Vec values in plan coordinates (X along the pool
// length, Y across). Closed polylines are stored open: the last point is
// implicitly joined to the first.
package geom
