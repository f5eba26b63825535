package pool

import (
	"math"
	"time"

	"github.com/chazu/lagoon/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r2"
)

// Rippleable is implemented by surfaces that react to touch impulses.
type Rippleable interface {
	Ripple(at r2.Vec, strength float64)
}

// Animatable is implemented by surfaces that advance with time.
type Animatable interface {
	Animate(dt time.Duration)
}

var (
	_ Rippleable = (*WaterSurface)(nil)
	_ Animatable = (*WaterSurface)(nil)
)

// Impulse is a pending ripple for the water collaborator to simulate.
type Impulse struct {
	At       r2.Vec  `json:"at"`
	Strength float64 `json:"strength"`
	Age      float64 `json:"age"`
}

const (
	// rippleHalfLife is the time for an impulse's strength to halve.
	rippleHalfLife = 0.6
	rippleCutoff   = 0.01
	maxImpulses    = 32
)

// WaterSurface is the water footprint: the triangulated true perimeter at
// the water level. It queues ripple impulses; simulating them is up to the
// water collaborator.
type WaterSurface struct {
	Mesh  *kernel.Mesh
	Level float64

	impulses []Impulse
	elapsed  time.Duration
}

func newWaterSurface(m *kernel.Mesh, level float64) *WaterSurface {
	return &WaterSurface{Mesh: m, Level: level}
}

// Ripple queues an impulse. Non-positive or non-finite strengths are ignored.
func (w *WaterSurface) Ripple(at r2.Vec, strength float64) {
	if !(strength > 0) || math.IsInf(strength, 0) || math.IsNaN(at.X) || math.IsNaN(at.Y) {
		return
	}
	if len(w.impulses) == maxImpulses {
		w.impulses = w.impulses[1:]
	}
	w.impulses = append(w.impulses, Impulse{At: at, Strength: strength})
}

// Animate ages and decays queued impulses, dropping spent ones.
func (w *WaterSurface) Animate(dt time.Duration) {
	if dt <= 0 {
		return
	}
	w.elapsed += dt
	sec := dt.Seconds()
	decay := math.Pow(0.5, sec/rippleHalfLife)
	kept := w.impulses[:0]
	for _, im := range w.impulses {
		im.Age += sec
		im.Strength *= decay
		if im.Strength >= rippleCutoff {
			kept = append(kept, im)
		}
	}
	w.impulses = kept
}

// Impulses returns a copy of the live impulses.
func (w *WaterSurface) Impulses() []Impulse {
	return append([]Impulse(nil), w.impulses...)
}

// Elapsed returns the total animated time.
func (w *WaterSurface) Elapsed() time.Duration { return w.elapsed }
