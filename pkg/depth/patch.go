package depth

import "math"

// Footprint is the plan rectangle of a step together with the Z of its
// bottom plane. Floor vertices inside it are raised to Bottom.
type Footprint struct {
	MinX, MaxX float64
	MinY, MaxY float64
	Bottom     float64
}

// Contains reports whether the plan point lies inside the footprint.
func (f Footprint) Contains(x, y float64) bool {
	return x >= f.MinX && x <= f.MaxX && y >= f.MinY && y <= f.MaxY
}

// PatchFloor rewrites the Z component of every vertex in positions (flat
// x,y,z triples in world space) from the profile. Vertices under a
// footprint take the higher of the profile and the footprint bottom. The
// slice is modified in place; nothing is reallocated.
func PatchFloor(positions []float32, p Profile, axis Axis, footprints []Footprint) {
	for i := 0; i+2 < len(positions); i += 3 {
		x, y := float64(positions[i]), float64(positions[i+1])
		z := axis.At(x, p)
		for _, f := range footprints {
			if f.Contains(x, y) {
				z = math.Max(z, f.Bottom)
			}
		}
		positions[i+2] = float32(z)
	}
}
