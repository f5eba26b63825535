// Package polygon implements the editable pool outline: an ordered ring of
// vertices whose edges may individually be bent into quadratic curves.
// Every successful mutation is announced to registered observers.
package polygon

import (
	"iter"
	"math"
	"slices"

	"github.com/chazu/lagoon/pkg/geom"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// MinFreeform is the vertex floor for free-form outlines.
	MinFreeform = 3
	// MinRectangular is the vertex floor for rectangle-mode outlines.
	MinRectangular = 4

	// curveBulge is the perpendicular control-point offset, as a fraction of
	// edge length, synthesized when an edge is first curved.
	curveBulge = 0.2

	// degenerateExtent is the smallest bounding-box extent RescaleTo will scale from.
	degenerateExtent = 1e-6
)

// Edge describes the connection from vertex i to vertex i+1 (wrapping).
type Edge struct {
	Curved  bool    `json:"curved"`
	Control *r2.Vec `json:"control,omitempty"`
}

// ChangeKind identifies which mutation produced a Change.
type ChangeKind int

const (
	VertexMoved ChangeKind = iota
	VertexAdded
	VertexDeleted
	EdgeCurveToggled
	CurveControlMoved
	Rescaled
	Replaced
)

func (k ChangeKind) String() string {
	switch k {
	case VertexMoved:
		return "vertex-moved"
	case VertexAdded:
		return "vertex-added"
	case VertexDeleted:
		return "vertex-deleted"
	case EdgeCurveToggled:
		return "edge-curve-toggled"
	case CurveControlMoved:
		return "curve-control-moved"
	case Rescaled:
		return "rescaled"
	case Replaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Change is delivered to observers after a mutation.
type Change struct {
	Kind  ChangeKind
	Index int // vertex or edge index, -1 for whole-polygon changes
}

// Polygon is the editable outline. The zero value is not usable; build one
// with FromPoints, NewRectangle or NewOval.
type Polygon struct {
	vertices    []r2.Vec
	edges       []Edge
	minVertices int
	rectangular bool

	observers map[int]func(Change)
	nextObs   int
}

// FromPoints creates a free-form polygon with straight edges. Points beyond
// the first minVertices are kept as given; fewer points than minVertices
// returns nil.
func FromPoints(pts []r2.Vec, minVertices int) *Polygon {
	if minVertices < MinFreeform {
		minVertices = MinFreeform
	}
	if len(pts) < minVertices {
		return nil
	}
	p := &Polygon{minVertices: minVertices}
	p.vertices = geom.Clone(pts)
	p.edges = make([]Edge, len(pts))
	return p
}

// NewRectangle creates an axis-aligned rectangle centred on the origin in
// rectangle mode: rescaling rebuilds the four corners instead of scaling.
func NewRectangle(length, width float64) *Polygon {
	p := &Polygon{minVertices: MinRectangular, rectangular: true}
	p.vertices = rectCorners(length, width)
	p.edges = make([]Edge, 4)
	return p
}

// NewOval creates a free-form polygon approximating an ellipse with n
// vertices, centred on the origin.
func NewOval(length, width float64, n int) *Polygon {
	if n < MinFreeform {
		n = MinFreeform
	}
	pts := make([]r2.Vec, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = r2.Vec{X: length / 2 * math.Cos(a), Y: width / 2 * math.Sin(a)}
	}
	return FromPoints(pts, MinFreeform)
}

func rectCorners(length, width float64) []r2.Vec {
	hl, hw := length/2, width/2
	return []r2.Vec{{X: -hl, Y: -hw}, {X: hl, Y: -hw}, {X: hl, Y: hw}, {X: -hl, Y: hw}}
}

// Len returns the number of vertices.
func (p *Polygon) Len() int { return len(p.vertices) }

// MinVertices returns the vertex floor.
func (p *Polygon) MinVertices() int { return p.minVertices }

// IsRectangular reports whether rescales rebuild an axis-aligned rectangle.
func (p *Polygon) IsRectangular() bool { return p.rectangular }

// SetRectangular switches rectangle mode. Enabling it requires four
// straight, axis-aligned edges. Leaving it drops the vertex floor to
// MinFreeform.
func (p *Polygon) SetRectangular(on bool) bool {
	if on && !p.axisAligned() {
		return false
	}
	p.rectangular = on
	if on {
		p.minVertices = MinRectangular
	} else {
		p.minVertices = MinFreeform
	}
	return true
}

// axisAligned reports whether the outline is a rectangle RescaleTo could
// rebuild without losing anything.
func (p *Polygon) axisAligned() bool {
	if len(p.vertices) != 4 {
		return false
	}
	for i, e := range p.edges {
		a, b := p.vertices[i], p.vertices[(i+1)%4]
		if e.Curved || (a.X != b.X && a.Y != b.Y) {
			return false
		}
	}
	return true
}

// keepRectangle leaves rectangle mode once an edit breaks the rectangle.
func (p *Polygon) keepRectangle() {
	if p.rectangular && !p.axisAligned() {
		p.SetRectangular(false)
	}
}

// Vertex returns vertex i.
func (p *Polygon) Vertex(i int) r2.Vec { return p.vertices[i] }

// Vertices returns a copy of the vertex ring.
func (p *Polygon) Vertices() []r2.Vec { return geom.Clone(p.vertices) }

// Edge returns a copy of edge i.
func (p *Polygon) Edge(i int) Edge {
	e := p.edges[i]
	if e.Control != nil {
		c := *e.Control
		e.Control = &c
	}
	return e
}

// Observe registers fn for change notifications and returns a function
// that removes it.
func (p *Polygon) Observe(fn func(Change)) (cancel func()) {
	if p.observers == nil {
		p.observers = make(map[int]func(Change))
	}
	id := p.nextObs
	p.nextObs++
	p.observers[id] = fn
	return func() { delete(p.observers, id) }
}

func (p *Polygon) notify(c Change) {
	for _, fn := range p.observers {
		fn(c)
	}
}

func (p *Polygon) validVertex(i int) bool { return i >= 0 && i < len(p.vertices) }

// MoveVertex sets vertex i to pos.
func (p *Polygon) MoveVertex(i int, pos r2.Vec) bool {
	if !p.validVertex(i) || !geom.Finite(pos) {
		return false
	}
	p.vertices[i] = pos
	p.keepRectangle()
	p.notify(Change{Kind: VertexMoved, Index: i})
	return true
}

// AddVertexAtEdge inserts pos after vertex edgeIndex, splitting that edge.
// The edge leaving the new vertex is straight. The polygon leaves rectangle
// mode since it no longer has four corners.
func (p *Polygon) AddVertexAtEdge(edgeIndex int, pos r2.Vec) bool {
	if !p.validVertex(edgeIndex) || !geom.Finite(pos) {
		return false
	}
	at := edgeIndex + 1
	p.vertices = slices.Insert(p.vertices, at, pos)
	p.edges = slices.Insert(p.edges, at, Edge{})
	p.keepRectangle()
	p.notify(Change{Kind: VertexAdded, Index: at})
	return true
}

// DeleteVertex removes vertex i. It returns false without changing anything
// if the polygon would drop below its vertex floor.
func (p *Polygon) DeleteVertex(i int) bool {
	if !p.validVertex(i) || len(p.vertices)-1 < p.minVertices {
		return false
	}
	p.vertices = slices.Delete(p.vertices, i, i+1)
	p.edges = slices.Delete(p.edges, i, i+1)
	p.keepRectangle()
	p.notify(Change{Kind: VertexDeleted, Index: i})
	return true
}

// ToggleEdgeCurved flips the curvature of edge i. Enabling synthesizes a
// control point at the edge midpoint pushed out perpendicular by 20 % of
// the edge length; disabling clears the control point.
func (p *Polygon) ToggleEdgeCurved(i int) bool {
	if !p.validVertex(i) {
		return false
	}
	e := &p.edges[i]
	if e.Curved {
		e.Curved = false
		e.Control = nil
	} else {
		a, b := p.vertices[i], p.vertices[(i+1)%len(p.vertices)]
		d := r2.Sub(b, a)
		perp := geom.PerpRight(d)
		if !geom.IsCCW(p.vertices) {
			perp = geom.PerpLeft(d)
		}
		c := r2.Add(geom.Lerp(a, b, 0.5), r2.Scale(curveBulge, perp))
		e.Curved = true
		e.Control = &c
	}
	p.keepRectangle()
	p.notify(Change{Kind: EdgeCurveToggled, Index: i})
	return true
}

// MoveCurveControl sets the control point of edge i, curving it if needed.
func (p *Polygon) MoveCurveControl(i int, pos r2.Vec) bool {
	if !p.validVertex(i) || !geom.Finite(pos) {
		return false
	}
	c := pos
	p.edges[i].Curved = true
	p.edges[i].Control = &c
	p.keepRectangle()
	p.notify(Change{Kind: CurveControlMoved, Index: i})
	return true
}

// Sample returns a lazy sequence approximating the outline. Straight edges
// contribute their start vertex; curved edges contribute resolution points
// along the curve starting at their start vertex. The sequence is not
// closed. Each call to the returned function restarts from vertex 0.
func (p *Polygon) Sample(resolution int) iter.Seq[r2.Vec] {
	if resolution < 1 {
		resolution = 1
	}
	return func(yield func(r2.Vec) bool) {
		n := len(p.vertices)
		for i := 0; i < n; i++ {
			a := p.vertices[i]
			e := p.edges[i]
			if !e.Curved || e.Control == nil {
				if !yield(a) {
					return
				}
				continue
			}
			b := p.vertices[(i+1)%n]
			for k := 0; k < resolution; k++ {
				if !yield(geom.QuadBezier(a, *e.Control, b, float64(k)/float64(resolution))) {
					return
				}
			}
		}
	}
}

// Bounds returns the bounding box of the vertices (control points excluded).
func (p *Polygon) Bounds() r2.Box {
	return geom.Bounds(p.vertices)
}

// RescaleTo resizes the outline so its bounding box is length × width.
// Rectangle-mode polygons are rebuilt as four axis-aligned corners at
// ±length/2, ±width/2. Other polygons are scaled anisotropically about the
// bounding-box centre, control points included. Degenerate current extents
// or non-positive targets leave the polygon untouched and return false.
func (p *Polygon) RescaleTo(length, width float64) bool {
	if !(length > 0) || !(width > 0) || math.IsInf(length, 0) || math.IsInf(width, 0) {
		return false
	}
	if p.rectangular {
		p.vertices = rectCorners(length, width)
		p.edges = make([]Edge, 4)
		p.notify(Change{Kind: Rescaled, Index: -1})
		return true
	}
	b := p.Bounds()
	w, h := b.Max.X-b.Min.X, b.Max.Y-b.Min.Y
	if w <= degenerateExtent || h <= degenerateExtent {
		return false
	}
	cx, cy := (b.Min.X+b.Max.X)/2, (b.Min.Y+b.Max.Y)/2
	sx, sy := length/w, width/h
	scale := func(v r2.Vec) r2.Vec {
		return r2.Vec{X: cx + (v.X-cx)*sx, Y: cy + (v.Y-cy)*sy}
	}
	for i, v := range p.vertices {
		p.vertices[i] = scale(v)
	}
	for i := range p.edges {
		if c := p.edges[i].Control; c != nil {
			s := scale(*c)
			p.edges[i].Control = &s
		}
	}
	p.notify(Change{Kind: Rescaled, Index: -1})
	return true
}

// Replace swaps in a new vertex ring with straight edges and leaves
// rectangle mode. It fails when pts is below the current floor.
func (p *Polygon) Replace(pts []r2.Vec) bool {
	if len(pts) < p.minVertices {
		return false
	}
	p.vertices = geom.Clone(pts)
	p.edges = make([]Edge, len(pts))
	if p.rectangular {
		p.SetRectangular(false)
	}
	p.notify(Change{Kind: Replaced, Index: -1})
	return true
}
