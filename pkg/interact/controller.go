// Package interact implements step and wall selection: ray picking against
// the assembly, selection observers for the UI, and the resize and raise
// edits applied to the selected piece.
package interact

import (
	"math"

	"github.com/chazu/lagoon/pkg/logging"
	"github.com/chazu/lagoon/pkg/pool"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind says what a selection refers to.
type Kind int

const (
	KindStep Kind = iota
	KindWall
)

func (k Kind) String() string {
	if k == KindWall {
		return "wall"
	}
	return "step"
}

// Selection is a picked step or wall.
type Selection struct {
	Kind     Kind    `json:"kind"`
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
	Point    r3.Vec  `json:"point"`
}

// Controller owns the current selection. It is not safe for concurrent
// use; the session serializes access.
type Controller struct {
	asm *pool.Assembly
	sel *Selection

	onSelect map[int]func(Selection)
	onClear  map[int]func()
	nextID   int
}

// NewController returns a controller with nothing selected.
func NewController() *Controller {
	return &Controller{
		onSelect: make(map[int]func(Selection)),
		onClear:  make(map[int]func()),
	}
}

// OnSelect registers fn for selections and returns a function removing it.
func (c *Controller) OnSelect(fn func(Selection)) (cancel func()) {
	id := c.nextID
	c.nextID++
	c.onSelect[id] = fn
	return func() { delete(c.onSelect, id) }
}

// OnClear registers fn for selection clears and returns a function
// removing it.
func (c *Controller) OnClear(fn func()) (cancel func()) {
	id := c.nextID
	c.nextID++
	c.onClear[id] = fn
	return func() { delete(c.onClear, id) }
}

// SetAssembly swaps the assembly being picked against. Any selection is
// cleared since its indices refer to the old geometry.
func (c *Controller) SetAssembly(asm *pool.Assembly) {
	c.asm = asm
	c.Clear()
}

// Selected returns the current selection.
func (c *Controller) Selected() (Selection, bool) {
	if c.sel == nil {
		return Selection{}, false
	}
	return *c.sel, true
}

// Clear drops the selection, notifying observers if there was one.
func (c *Controller) Clear() {
	if c.sel == nil {
		return
	}
	c.sel = nil
	for _, fn := range c.onClear {
		fn()
	}
}

// Pick selects the nearest step or wall hit by r. Steps and walls are
// tested together and only the single nearest hit is reported, so one
// pick produces at most one selection event. A miss clears the selection.
func (c *Controller) Pick(r Ray) (Selection, bool) {
	if c.asm == nil {
		return Selection{}, false
	}
	best := Selection{Distance: math.Inf(1)}
	for i, s := range c.asm.Steps {
		if t, ok := hitMesh(s.Mesh, r); ok && t < best.Distance {
			best = Selection{Kind: KindStep, Index: i, Distance: t}
		}
	}
	for i, w := range c.asm.Walls {
		if t, ok := hitMesh(w.Mesh, r); ok && t < best.Distance {
			best = Selection{Kind: KindWall, Index: i, Distance: t}
		}
	}
	if math.IsInf(best.Distance, 1) {
		c.Clear()
		return Selection{}, false
	}
	best.Point = r.At(best.Distance)
	c.sel = &best
	logging.Logger().Debug("picked", "kind", best.Kind, "index", best.Index, "distance", best.Distance)
	for _, fn := range c.onSelect {
		fn(best)
	}
	return best, true
}

// ResizeSelectedStep sets the run of the selected step, chain-pushing the
// others and reprofiling the floor.
func (c *Controller) ResizeSelectedStep(length float64) bool {
	if c.asm == nil || c.sel == nil || c.sel.Kind != KindStep {
		return false
	}
	return c.asm.ResizeStep(c.sel.Index, length)
}

// RaiseSelectedWall sets the height of the selected wall; coping follows.
func (c *Controller) RaiseSelectedWall(height float64) bool {
	if c.asm == nil || c.sel == nil || c.sel.Kind != KindWall {
		return false
	}
	return c.asm.RaiseWall(c.sel.Index, height)
}
