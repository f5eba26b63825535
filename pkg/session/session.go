// Package session is the editing front door. It owns the current pool
// parameters, the optional freeform outline and the built assembly, drives
// the live scheduler, and hands finished geometry to the host's scene,
// material and water collaborators.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/lagoon/pkg/depth"
	"github.com/chazu/lagoon/pkg/geom"
	"github.com/chazu/lagoon/pkg/interact"
	"github.com/chazu/lagoon/pkg/kernel"
	"github.com/chazu/lagoon/pkg/live"
	"github.com/chazu/lagoon/pkg/logging"
	"github.com/chazu/lagoon/pkg/polygon"
	"github.com/chazu/lagoon/pkg/pool"
	"gonum.org/v1/gonum/spatial/r2"
)

// Dirty keys used besides the pool.Params names.
const (
	dirtyShape   = "shape"
	dirtyOutline = "outline"
)

// ErrNoKernel is returned by GroundVoid when no solid kernel is configured.
var ErrNoKernel = errors.New("session: no solid kernel configured")

// ErrNoAssembly is returned by queries that need a built pool.
var ErrNoAssembly = errors.New("session: nothing built yet")

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// Scene inserts and removes assembly meshes and cuts the ground around the
// pool. Calls arrive with the session locked; the assembly must not be
// mutated or kept past the call.
type Scene interface {
	Attach(asm *pool.Assembly)
	Detach(asm *pool.Assembly)
	CutGroundVoid(outline []r2.Vec)
}

// Materials dresses a freshly built pool. Apply may be slow and runs off
// the editing path on a snapshot of the new generation; it must be
// idempotent and should honour ctx.
type Materials interface {
	Apply(ctx context.Context, snap Snapshot) error
}

// Water drives the water and caustics effects.
type Water interface {
	SetSurface(w *pool.WaterSurface)
	// SetVoid cuts a secondary cavity out of the water surface. A zero
	// size removes it.
	SetVoid(center, size r2.Vec)
	// MaterialsChanged is called after materials finished applying so
	// effects can re-attach.
	MaterialsChanged()
}

// Config wires a Session. Every collaborator is optional.
type Config struct {
	Builder   *pool.Builder
	Live      live.Options
	Clock     live.Clock
	Kernel    kernel.Kernel
	Scene     Scene
	Materials Materials
	Water     Water
}

// SpaAnchor is where a spa placed near p should snap.
type SpaAnchor struct {
	Point   r2.Vec  // nearest point on the pool edge
	Normal  r2.Vec  // outward unit normal of that edge
	Segment int     // index of the edge's start vertex
	DeepZ   float64 // Z of the deep-end floor
	Length  float64 // plan length of the pool
	Width   float64 // plan width of the pool
	Inside  bool    // the drop point lies within the pool
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// Session holds one pool being edited. Methods are safe for concurrent use.
// Collaborators are called with the session locked and must not call back
// into it.
type Session struct {
	mu  sync.Mutex
	cfg Config

	params    pool.Params
	outline   *polygon.Polygon
	unobserve func()

	asm     *pool.Assembly
	gen     uint64
	lastErr error
	spaVoid [2]r2.Vec

	ctl   *interact.Controller
	sched *live.Scheduler

	ctx          context.Context
	cancel       context.CancelFunc
	cancelApply  context.CancelFunc
	materialsRun sync.WaitGroup
	closed       bool
}

// Compile-time interface check.
var _ live.Target = (*Session)(nil)

// New returns a session editing p. Nothing is built until the first
// Rebuild (or until the scheduler gets there on its own).
func New(cfg Config, p pool.Params) *Session {
	if cfg.Builder == nil {
		cfg.Builder = pool.NewBuilder(pool.DefaultOptions())
	}
	s := &Session{
		cfg:    cfg,
		params: p,
		ctl:    interact.NewController(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.sched = live.New(s, cfg.Clock, cfg.Live)
	if p.Shape.PolygonBased() {
		s.setOutlineLocked(polygon.NewRectangle(p.Length, p.Width))
	}
	return s
}

// Params returns a copy of the current parameters.
func (s *Session) Params() pool.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Assembly returns the current assembly, or nil before the first build.
// The session keeps mutating it on edits and disposes it on the next
// rebuild, so it is only safe to read while nothing else drives the
// session. Concurrent readers use Snapshot.
func (s *Session) Assembly() *pool.Assembly {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asm
}

// Generation increments on every successful rebuild.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// LastError returns the error of the most recent failed rebuild, cleared
// by the next successful one.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// State reports the scheduler state.
func (s *Session) State() live.State { return s.sched.State() }

// ---------------------------------------------------------------------------
// Parameter edits
// ---------------------------------------------------------------------------

// SetParam changes one numeric parameter. For freeform pools, length and
// width rescale the outline to the new bounding box.
func (s *Session) SetParam(name string, v float64) error {
	s.mu.Lock()
	if err := s.params.Set(name, v); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.outline != nil && (name == "length" || name == "width") {
		s.outline.RescaleTo(s.params.Length, s.params.Width)
	}
	s.mu.Unlock()

	s.sched.MarkDirty(name)
	return nil
}

// SetShape switches the pool shape. Switching to freeform seeds an outline
// from the current length and width when there is none; switching away
// drops it.
func (s *Session) SetShape(shape pool.Shape) {
	s.mu.Lock()
	if s.params.Shape == shape {
		s.mu.Unlock()
		return
	}
	s.params.Shape = shape
	switch {
	case shape.PolygonBased() && s.outline == nil:
		s.setOutlineLocked(polygon.NewRectangle(s.params.Length, s.params.Width))
	case !shape.PolygonBased():
		s.setOutlineLocked(nil)
	}
	s.mu.Unlock()

	s.sched.MarkDirty(dirtyShape)
}

// ApplyDesign replaces parameters and outline wholesale and rebuilds
// immediately.
func (s *Session) ApplyDesign(p pool.Params, outline *polygon.Polygon) {
	s.mu.Lock()
	s.params = p
	switch {
	case !p.Shape.PolygonBased():
		outline = nil
	case outline == nil:
		outline = polygon.NewRectangle(p.Length, p.Width)
	}
	s.setOutlineLocked(outline)
	s.mu.Unlock()

	s.sched.RebuildNow()
}

// EditOutline runs fn on the freeform outline. Successful mutations mark
// the outline dirty. It returns false when the pool has no outline.
func (s *Session) EditOutline(fn func(p *polygon.Polygon)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outline == nil {
		return false
	}
	fn(s.outline)
	return true
}

// Outline returns the freeform outline's vertices and edges, or false
// when the pool has none.
func (s *Session) Outline() ([]r2.Vec, []polygon.Edge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outline == nil {
		return nil, nil, false
	}
	edges := make([]polygon.Edge, s.outline.Len())
	for i := range edges {
		edges[i] = s.outline.Edge(i)
	}
	return s.outline.Vertices(), edges, true
}

func (s *Session) setOutlineLocked(p *polygon.Polygon) {
	if s.unobserve != nil {
		s.unobserve()
		s.unobserve = nil
	}
	s.outline = p
	if p != nil {
		s.unobserve = p.Observe(func(polygon.Change) {
			s.sched.MarkDirty(dirtyOutline)
		})
	}
}

// BeginDrag marks the start of a slider or handle drag.
func (s *Session) BeginDrag() { s.sched.BeginDrag() }

// EndDrag ends a drag; pending changes rebuild immediately.
func (s *Session) EndDrag() { s.sched.EndDrag() }

// RebuildNow skips the debounce.
func (s *Session) RebuildNow() { s.sched.RebuildNow() }

// ---------------------------------------------------------------------------
// live.Target
// ---------------------------------------------------------------------------

// Preview handles depth parameters in place. Everything else waits for the
// rebuild.
func (s *Session) Preview(dirty []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asm == nil {
		return nil
	}
	var consumed []string
	for _, name := range dirty {
		if pool.IsDepthParam(name) {
			consumed = append(consumed, name)
		}
	}
	if len(consumed) > 0 {
		s.asm.PreviewDepth(s.params)
	}
	return consumed
}

// ResetPreview undoes any in-place depth preview.
func (s *Session) ResetPreview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asm != nil {
		s.asm.ResetPreview()
	}
}

// Rebuild builds a fresh assembly from the current parameters and swaps
// it in. On failure the previous assembly stays in place.
func (s *Session) Rebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	start := time.Now()
	asm, err := s.cfg.Builder.Build(s.params, s.outline)
	if err != nil {
		s.lastErr = err
		logging.Logger().Warn("rebuild failed", "shape", s.params.Shape, "err", err)
		return
	}
	s.lastErr = nil
	if asm.Report.Repaired {
		logging.Logger().Warn("outline self-intersects; vertices re-ordered", "id", asm.ID)
	}

	old := s.asm
	s.asm = asm
	s.gen++
	s.ctl.SetAssembly(asm)

	if sc := s.cfg.Scene; sc != nil {
		if old != nil {
			sc.Detach(old)
		}
		sc.Attach(asm)
		sc.CutGroundVoid(asm.OuterPts)
	}
	if old != nil {
		old.Dispose()
	}
	if w := s.cfg.Water; w != nil {
		w.SetSurface(asm.Water)
		if s.spaVoid[1] != (r2.Vec{}) {
			w.SetVoid(s.spaVoid[0], s.spaVoid[1])
		}
	}
	s.startMaterialsLocked()

	logging.Logger().Info("rebuilt", "id", asm.ID, "generation", s.gen, "took", time.Since(start))
}

// startMaterialsLocked applies materials to a snapshot of the current
// generation in the background. A result that arrives after a newer
// rebuild is dropped.
func (s *Session) startMaterialsLocked() {
	if s.cancelApply != nil {
		s.cancelApply()
		s.cancelApply = nil
	}
	m := s.cfg.Materials
	if m == nil {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelApply = cancel
	snap := s.snapshotLocked()

	s.materialsRun.Add(1)
	go func() {
		defer s.materialsRun.Done()
		err := m.Apply(ctx, snap)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || snap.Generation != s.gen {
			logging.Logger().Debug("dropped stale materials", "id", snap.ID, "generation", snap.Generation)
			return
		}
		if err != nil {
			logging.Logger().Warn("applying materials", "id", snap.ID, "err", err)
			return
		}
		if w := s.cfg.Water; w != nil {
			w.MaterialsChanged()
		}
	}()
}

// ---------------------------------------------------------------------------
// Interaction
// ---------------------------------------------------------------------------

// OnSelect registers fn for pick selections.
func (s *Session) OnSelect(fn func(interact.Selection)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.OnSelect(fn)
}

// OnClear registers fn for selection clears.
func (s *Session) OnClear(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.OnClear(fn)
}

// Pick selects the nearest step or wall under r.
func (s *Session) Pick(r interact.Ray) (interact.Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.Pick(r)
}

// ClearSelection drops the current selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctl.Clear()
}

// ResizeSelectedStep changes the run of the selected step and re-tiles.
func (s *Session) ResizeSelectedStep(length float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctl.ResizeSelectedStep(length) {
		return false
	}
	s.asm.Retile(s.cfg.Builder.Aligner)
	return true
}

// RaiseSelectedWall changes the height of the selected wall and re-tiles.
func (s *Session) RaiseSelectedWall(height float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctl.RaiseSelectedWall(height) {
		return false
	}
	s.asm.Retile(s.cfg.Builder.Aligner)
	return true
}

// ---------------------------------------------------------------------------
// Spa, ground and water
// ---------------------------------------------------------------------------

// SpaSnap finds where a spa dropped at p should attach to the pool edge.
func (s *Session) SpaSnap(p r2.Vec) (SpaAnchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asm == nil {
		return SpaAnchor{}, ErrNoAssembly
	}
	hit, ok := geom.NearestOnLoop(s.asm.OuterPts, p)
	if !ok {
		return SpaAnchor{}, fmt.Errorf("session: spa snap: perimeter has %d points", len(s.asm.OuterPts))
	}
	lp := s.asm.LastParams
	return SpaAnchor{
		Point:   hit.Point,
		Normal:  hit.Normal,
		Segment: hit.Segment,
		DeepZ:   depth.DeepEndZ(lp.Profile()),
		Length:  lp.Length,
		Width:   lp.Width,
		Inside:  geom.PointInPolygon(p, s.asm.OuterPts),
	}, nil
}

// SetSpaVoid records a cavity to cut from the water surface and forwards
// it to the water collaborator. It survives rebuilds. A zero size clears it.
func (s *Session) SetSpaVoid(center, size r2.Vec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaVoid = [2]r2.Vec{center, size}
	if w := s.cfg.Water; w != nil {
		w.SetVoid(center, size)
	}
}

// GroundVoid returns a solid filling the excavation: the perimeter grown
// by margin, extruded from the deck down past the deep end by margin.
func (s *Session) GroundVoid(margin float64) (kernel.Solid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Kernel == nil {
		return nil, ErrNoKernel
	}
	if s.asm == nil {
		return nil, ErrNoAssembly
	}
	outline := s.asm.OuterPts
	if margin > 0 {
		outline = geom.Offset(outline, margin)
	}
	h := depth.WallHeight(s.asm.LastParams.Profile()) + max(margin, 0)
	solid, err := s.cfg.Kernel.Prism(outline, h)
	if err != nil {
		return nil, fmt.Errorf("session: ground void: %w", err)
	}
	return solid, nil
}

// Ripple disturbs the water at a plan position.
func (s *Session) Ripple(at r2.Vec, strength float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asm == nil || s.asm.Water == nil {
		return
	}
	s.asm.Water.Ripple(at, strength)
}

// Tick advances every animated surface by dt.
func (s *Session) Tick(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asm == nil {
		return
	}
	for _, a := range s.asm.Animatables() {
		a.Animate(dt)
	}
}

// Close stops the scheduler, cancels material work, detaches and disposes
// the assembly. The session is unusable afterwards.
func (s *Session) Close() {
	s.sched.Close()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.setOutlineLocked(nil)
	if s.asm != nil {
		if sc := s.cfg.Scene; sc != nil {
			sc.Detach(s.asm)
		}
		s.ctl.SetAssembly(nil)
		s.asm.Dispose()
		s.asm = nil
	}
	s.mu.Unlock()

	s.materialsRun.Wait()
}
