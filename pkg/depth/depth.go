// Package depth computes the pool floor's depth profile: a shallow flat,
// a linear slope and a deep flat laid out along the plan X axis.
package depth

import "math"

const (
	// MinShallow is the shallowest floor the profiler will produce.
	MinShallow = 0.5
	// MinSlope is the shortest slope run the flats must leave free.
	MinSlope = 0.01
)

// Profile is the depth-affecting subset of the pool parameters. Depths are
// positive distances below the deck datum.
type Profile struct {
	Shallow     float64 `json:"shallow"`
	Deep        float64 `json:"deep"`
	ShallowFlat float64 `json:"shallowFlat"`
	DeepFlat    float64 `json:"deepFlat"`
}

// Axis locates the profile in plan space. OriginX is where the shallow flat
// begins; it sits past any steps at the start of the pool. ShallowFlat and
// DeepFlat are the flat runs actually laid out, after clamping to the span
// between OriginX and End.
type Axis struct {
	Start       float64 `json:"axisStart"`
	End         float64 `json:"axisEnd"`
	OriginX     float64 `json:"originX"`
	ShallowFlat float64 `json:"shallowFlat"`
	DeepFlat    float64 `json:"deepFlat"`
}

// WithFlats returns a with p's flat runs recorded, clamped to the span
// between OriginX and End.
func (a Axis) WithFlats(p Profile) Axis {
	a.ShallowFlat, a.DeepFlat = ClampFlats(p, a.End-a.OriginX)
	return a
}

// ClampDepths enforces shallow ≥ MinShallow and deep ≥ shallow.
func ClampDepths(p Profile) (shallow, deep float64) {
	shallow = math.Max(MinShallow, finiteOr(p.Shallow, MinShallow))
	deep = math.Max(shallow, finiteOr(p.Deep, shallow))
	return shallow, deep
}

// ClampFlats returns the flat-run lengths for a profile spanning fullLen.
// When the flats would leave less than MinSlope of slope they are scaled
// down together, preserving their ratio.
func ClampFlats(p Profile, fullLen float64) (sFlat, dFlat float64) {
	sFlat = math.Max(0, finiteOr(p.ShallowFlat, 0))
	dFlat = math.Max(0, finiteOr(p.DeepFlat, 0))
	budget := fullLen - MinSlope
	if sum := sFlat + dFlat; sum > budget && sum > 0 {
		if budget <= 0 {
			return 0, 0
		}
		k := budget / sum
		sFlat *= k
		dFlat *= k
	}
	return sFlat, dFlat
}

// DepthAt returns the floor Z (negative) at plan X = worldX.
func DepthAt(worldX float64, p Profile, axisStart, axisEnd, originX float64) float64 {
	shallow, deep := ClampDepths(p)
	fullLen := axisEnd - originX
	sFlat, dFlat := ClampFlats(p, fullLen)
	slopeLen := math.Max(MinSlope, fullLen-sFlat-dFlat)

	dx := math.Max(0, worldX-originX)
	switch {
	case dx <= sFlat:
		return -shallow
	case dx >= fullLen-dFlat:
		return -deep
	default:
		t := (dx - sFlat) / slopeLen
		return -(shallow + t*(deep-shallow))
	}
}

// At is DepthAt over a stored axis.
func (a Axis) At(worldX float64, p Profile) float64 {
	return DepthAt(worldX, p, a.Start, a.End, a.OriginX)
}

// DeepEndZ returns the floor Z at the deep end.
func DeepEndZ(p Profile) float64 {
	_, deep := ClampDepths(p)
	return -deep
}

// WallHeight is the wall height needed to reach the deepest floor.
func WallHeight(p Profile) float64 {
	shallow, deep := ClampDepths(p)
	return math.Max(shallow, deep)
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
