package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chazu/lagoon/pkg/interact"
	"github.com/chazu/lagoon/pkg/kernel"
	"github.com/chazu/lagoon/pkg/kernel/sdfx"
	"github.com/chazu/lagoon/pkg/live"
	"github.com/chazu/lagoon/pkg/polygon"
	"github.com/chazu/lagoon/pkg/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeScene struct {
	attached []*pool.Assembly
	detached []*pool.Assembly
	cuts     int
}

func (f *fakeScene) Attach(asm *pool.Assembly)  { f.attached = append(f.attached, asm) }
func (f *fakeScene) Detach(asm *pool.Assembly)  { f.detached = append(f.detached, asm) }
func (f *fakeScene) CutGroundVoid(pts []r2.Vec) { f.cuts++ }

type fakeWater struct {
	mu       sync.Mutex
	surfaces []*pool.WaterSurface
	voids    [][2]r2.Vec
	changes  int
	changed  chan struct{}
}

func newFakeWater() *fakeWater {
	return &fakeWater{changed: make(chan struct{}, 8)}
}

func (f *fakeWater) SetSurface(w *pool.WaterSurface) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.surfaces = append(f.surfaces, w)
}

func (f *fakeWater) SetVoid(center, size r2.Vec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voids = append(f.voids, [2]r2.Vec{center, size})
}

func (f *fakeWater) MaterialsChanged() {
	f.mu.Lock()
	f.changes++
	f.mu.Unlock()
	f.changed <- struct{}{}
}

func (f *fakeWater) changeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changes
}

// blockingMaterials holds every Apply until release is closed or the
// context is cancelled.
type blockingMaterials struct {
	release chan struct{}
}

func (m *blockingMaterials) Apply(ctx context.Context, snap Snapshot) error {
	select {
	case <-m.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type harness struct {
	s     *Session
	clock *live.ManualClock
	scene *fakeScene
	water *fakeWater
}

func newHarness(t *testing.T, p pool.Params) *harness {
	t.Helper()
	h := &harness{
		clock: live.NewManualClock(time.Unix(0, 0)),
		scene: &fakeScene{},
		water: newFakeWater(),
	}
	h.s = New(Config{
		Clock:  h.clock,
		Scene:  h.scene,
		Water:  h.water,
		Kernel: sdfx.NewWithCells(16),
	}, p)
	t.Cleanup(h.s.Close)
	return h
}

func down(x, y float64) interact.Ray {
	return interact.Ray{Origin: r3.Vec{X: x, Y: y, Z: 5}, Dir: r3.Vec{Z: -1}}
}

// ---------------------------------------------------------------------------
// Rebuild
// ---------------------------------------------------------------------------

func TestRebuildAttachesAndSwaps(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	require.Nil(t, h.s.Assembly())

	h.s.RebuildNow()
	first := h.s.Assembly()
	require.NotNil(t, first)
	assert.Equal(t, uint64(1), h.s.Generation())
	assert.Equal(t, []*pool.Assembly{first}, h.scene.attached)
	assert.Empty(t, h.scene.detached)
	assert.Equal(t, 1, h.scene.cuts)
	require.Len(t, h.water.surfaces, 1)
	assert.Same(t, first.Water, h.water.surfaces[0])

	h.s.RebuildNow()
	second := h.s.Assembly()
	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, uint64(2), h.s.Generation())
	assert.Equal(t, []*pool.Assembly{first}, h.scene.detached)
	assert.True(t, first.Floor.IsEmpty(), "old assembly is disposed")
	assert.False(t, second.Floor.IsEmpty())
}

func TestDebouncedRebuild(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	h.s.RebuildNow()

	require.NoError(t, h.s.SetParam("length", 12))
	assert.Equal(t, live.RebuildPending, h.s.State())

	h.clock.Advance(199 * time.Millisecond)
	assert.Equal(t, uint64(1), h.s.Generation())

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, uint64(2), h.s.Generation())
	assert.Equal(t, 12.0, h.s.Assembly().LastParams.Length)
	assert.Equal(t, live.Idle, h.s.State())
}

func TestSetParamUnknown(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	err := h.s.SetParam("depth", 3)
	assert.ErrorIs(t, err, pool.ErrUnknownParam)
	assert.Equal(t, live.Idle, h.s.State())
}

func TestDragPreviewsDepthInPlace(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	h.s.RebuildNow()
	asm := h.s.Assembly()

	h.s.BeginDrag()
	require.NoError(t, h.s.SetParam("deep", 3))
	h.clock.Advance(time.Millisecond)

	assert.Same(t, asm, h.s.Assembly(), "preview must not rebuild")
	assert.True(t, asm.Previewing())
	assert.Equal(t, uint64(1), h.s.Generation())

	// Still dragging: the debounce does not rebuild.
	h.clock.Advance(time.Second)
	assert.Equal(t, uint64(1), h.s.Generation())

	h.s.EndDrag()
	assert.Equal(t, uint64(2), h.s.Generation())
	assert.Equal(t, 3.0, h.s.Assembly().LastParams.Deep)
	assert.False(t, h.s.Assembly().Previewing())
}

func TestRebuildFailureKeepsAssembly(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	h.s.RebuildNow()
	asm := h.s.Assembly()

	bad := pool.DefaultParams()
	bad.Shape = pool.Shape(99)
	h.s.ApplyDesign(bad, nil)

	assert.ErrorIs(t, h.s.LastError(), pool.ErrUnknownShape)
	assert.Same(t, asm, h.s.Assembly())
	assert.Equal(t, uint64(1), h.s.Generation())

	h.s.ApplyDesign(pool.DefaultParams(), nil)
	assert.NoError(t, h.s.LastError())
	assert.Equal(t, uint64(2), h.s.Generation())
}

// ---------------------------------------------------------------------------
// Shape and outline
// ---------------------------------------------------------------------------

func TestSetShapeSeedsAndDropsOutline(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	_, _, ok := h.s.Outline()
	require.False(t, ok)

	h.s.SetShape(pool.ShapeFreeform)
	verts, edges, ok := h.s.Outline()
	require.True(t, ok)
	assert.Len(t, verts, 4)
	assert.Len(t, edges, 4)

	h.clock.Advance(200 * time.Millisecond)
	require.NotNil(t, h.s.Assembly())
	assert.Equal(t, pool.ShapeFreeform, h.s.Assembly().Shape)

	h.s.SetShape(pool.ShapeOval)
	_, _, ok = h.s.Outline()
	assert.False(t, ok)
	assert.False(t, h.s.EditOutline(func(*polygon.Polygon) { t.Fatal("no outline to edit") }))
}

func TestOutlineEditsMarkDirty(t *testing.T) {
	p := pool.DefaultParams()
	p.Shape = pool.ShapeFreeform
	h := newHarness(t, p)
	h.s.RebuildNow()

	ok := h.s.EditOutline(func(o *polygon.Polygon) {
		o.MoveVertex(2, r2.Vec{X: 7, Y: 4})
	})
	require.True(t, ok)
	assert.Equal(t, live.RebuildPending, h.s.State())

	h.clock.Advance(200 * time.Millisecond)
	assert.Equal(t, uint64(2), h.s.Generation())
	b := h.s.Assembly().OuterPts
	var maxX float64
	for _, v := range b {
		maxX = max(maxX, v.X)
	}
	assert.InDelta(t, 7.0, maxX, 1e-9)
}

func TestFreeformLengthRescalesOutline(t *testing.T) {
	p := pool.DefaultParams()
	p.Shape = pool.ShapeFreeform
	h := newHarness(t, p)

	require.NoError(t, h.s.SetParam("length", 14))
	verts, _, ok := h.s.Outline()
	require.True(t, ok)
	var minX, maxX float64
	for _, v := range verts {
		minX, maxX = min(minX, v.X), max(maxX, v.X)
	}
	assert.InDelta(t, 14.0, maxX-minX, 1e-9)
}

func TestOutlineEditsSurviveResize(t *testing.T) {
	p := pool.DefaultParams()
	p.Shape = pool.ShapeFreeform
	h := newHarness(t, p)

	require.True(t, h.s.EditOutline(func(o *polygon.Polygon) {
		o.MoveVertex(2, r2.Vec{X: 6, Y: 3})
		o.ToggleEdgeCurved(0)
	}))
	require.NoError(t, h.s.SetParam("length", 12))

	verts, edges, ok := h.s.Outline()
	require.True(t, ok)
	require.Len(t, verts, 4)
	assert.True(t, edges[0].Curved, "curved edge kept")
	var minX, maxX float64
	for _, v := range verts {
		minX, maxX = min(minX, v.X), max(maxX, v.X)
	}
	assert.InDelta(t, 12.0, maxX-minX, 1e-9)
	assert.InDelta(t, maxX, verts[2].X, 1e-9, "moved vertex still the far corner")
	assert.Greater(t, verts[2].X, verts[1].X)

	// The edited outline is free-form now, so it can drop to a triangle.
	require.True(t, h.s.EditOutline(func(o *polygon.Polygon) {
		assert.True(t, o.DeleteVertex(3))
	}))
	verts, _, _ = h.s.Outline()
	assert.Len(t, verts, 3)
}

// ---------------------------------------------------------------------------
// Materials
// ---------------------------------------------------------------------------

func TestStaleMaterialsDropped(t *testing.T) {
	clock := live.NewManualClock(time.Unix(0, 0))
	water := newFakeWater()
	mats := &blockingMaterials{release: make(chan struct{})}
	s := New(Config{Clock: clock, Water: water, Materials: mats}, pool.DefaultParams())

	s.RebuildNow()
	s.RebuildNow()
	close(mats.release)

	select {
	case <-water.changed:
	case <-time.After(5 * time.Second):
		t.Fatal("materials never finished")
	}
	s.Close()
	assert.Equal(t, 1, water.changeCount(), "only the current generation notifies")
}

// recordingMaterials keeps every snapshot it is handed.
type recordingMaterials struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (m *recordingMaterials) Apply(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func TestMaterialsGetDetachedSnapshot(t *testing.T) {
	water := newFakeWater()
	mats := &recordingMaterials{}
	s := New(Config{Clock: live.NewManualClock(time.Unix(0, 0)), Water: water, Materials: mats}, pool.DefaultParams())
	t.Cleanup(s.Close)

	s.RebuildNow()
	select {
	case <-water.changed:
	case <-time.After(5 * time.Second):
		t.Fatal("materials never finished")
	}
	id := s.Assembly().ID
	s.RebuildNow()
	s.Close()

	mats.mu.Lock()
	defer mats.mu.Unlock()
	require.NotEmpty(t, mats.snaps)
	first := mats.snaps[0]
	assert.Equal(t, id, first.ID)
	assert.Equal(t, uint64(1), first.Generation)
	assert.Equal(t, pool.ShapeRectangle, first.Shape)
	// The assembly it was taken from is disposed; the copy is not.
	require.NotEmpty(t, first.Meshes)
	for _, m := range first.Meshes {
		assert.NotZero(t, m.VertexCount(), m.PartName)
	}
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

func TestSnapshot(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	_, ok := h.s.Snapshot()
	assert.False(t, ok)

	h.s.RebuildNow()
	snap, ok := h.s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, h.s.Assembly().ID, snap.ID)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Len(t, snap.Meshes, len(h.s.Assembly().Surfaces()))

	walls, _ := h.s.Snapshot(kernel.RoleWall)
	assert.Len(t, walls.Meshes, 4)

	// Writing to the copy leaves the live floor alone.
	floor := h.s.Assembly().Floor
	z := floor.Vertices[2]
	snap.Meshes[0].Vertices[2] = 99
	assert.Equal(t, z, floor.Vertices[2])
}

// Snapshots taken while the debounce timer rebuilds on its own goroutine
// never see a disposed or half-built pool. Run with -race.
func TestSnapshotDuringRebuilds(t *testing.T) {
	s := New(Config{
		Clock: live.RealClock{},
		Live:  live.Options{RebuildDelay: time.Millisecond},
	}, pool.DefaultParams())
	t.Cleanup(s.Close)
	s.RebuildNow()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = s.SetParam("length", 9+float64(i%3))
			_ = s.SetParam("shallow", 1+float64(i%2)/10)
			time.Sleep(2 * time.Millisecond)
		}
	}()

	for {
		select {
		case <-done:
			assert.Eventually(t, func() bool { return s.Generation() > 1 }, time.Second, time.Millisecond)
			return
		default:
		}
		snap, ok := s.Snapshot()
		require.True(t, ok)
		require.NotEmpty(t, snap.Meshes)
		for _, m := range snap.Meshes {
			require.NotZero(t, m.VertexCount(), m.PartName)
		}
	}
}

// ---------------------------------------------------------------------------
// Interaction
// ---------------------------------------------------------------------------

func TestPickAndResizeStep(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	h.s.RebuildNow()

	var picked []interact.Selection
	h.s.OnSelect(func(sel interact.Selection) { picked = append(picked, sel) })

	sel, ok := h.s.Pick(down(0.45, 0))
	require.True(t, ok)
	assert.Equal(t, interact.KindStep, sel.Kind)
	assert.Equal(t, 1, sel.Index)
	assert.Len(t, picked, 1)

	require.True(t, h.s.ResizeSelectedStep(0.5))
	asm := h.s.Assembly()
	assert.InDelta(t, 0.5, asm.Steps[1].Length, 1e-12)
	assert.InDelta(t, asm.Steps[1].Right(), asm.Steps[2].Left(), 1e-9)
	assert.False(t, h.s.RaiseSelectedWall(1), "selection is a step")
}

func TestRebuildClearsSelection(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	h.s.RebuildNow()
	cleared := 0
	h.s.OnClear(func() { cleared++ })

	_, ok := h.s.Pick(down(0.45, 0))
	require.True(t, ok)
	h.s.RebuildNow()
	assert.Equal(t, 1, cleared)
	assert.False(t, h.s.ResizeSelectedStep(0.5))
}

// ---------------------------------------------------------------------------
// Spa, ground and water
// ---------------------------------------------------------------------------

func TestSpaSnap(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	_, err := h.s.SpaSnap(r2.Vec{})
	require.ErrorIs(t, err, ErrNoAssembly)

	h.s.RebuildNow()
	a, err := h.s.SpaSnap(r2.Vec{X: 5, Y: -4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, a.Point.X, 1e-9)
	assert.InDelta(t, -2.5, a.Point.Y, 1e-9)
	assert.InDelta(t, -1.0, a.Normal.Y, 1e-9)
	assert.InDelta(t, -2.5, a.DeepZ, 1e-12)
	assert.Equal(t, 10.0, a.Length)
	assert.Equal(t, 5.0, a.Width)
	assert.False(t, a.Inside)

	a, err = h.s.SpaSnap(r2.Vec{X: 5, Y: 1})
	require.NoError(t, err)
	assert.True(t, a.Inside)
	assert.InDelta(t, 2.5, a.Point.Y, 1e-9)
}

func TestSpaVoidSurvivesRebuild(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	h.s.SetSpaVoid(r2.Vec{X: 9, Y: 3}, r2.Vec{X: 2, Y: 2})
	h.s.RebuildNow()
	h.s.RebuildNow()
	assert.Len(t, h.water.voids, 3)
	assert.Equal(t, r2.Vec{X: 2, Y: 2}, h.water.voids[2][1])
}

func TestGroundVoid(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	_, err := h.s.GroundVoid(0.5)
	require.ErrorIs(t, err, ErrNoAssembly)

	h.s.RebuildNow()
	solid, err := h.s.GroundVoid(0.5)
	require.NoError(t, err)
	min, max := solid.BoundingBox()
	assert.InDelta(t, -3.0, min[2], 1e-9)
	assert.InDelta(t, 0.0, max[2], 1e-9)
	assert.Less(t, min[0], 0.0, "grown past the shallow wall")
	assert.Greater(t, max[0], 10.0, "grown past the deep wall")

	noKernel := New(Config{Clock: live.NewManualClock(time.Unix(0, 0))}, pool.DefaultParams())
	defer noKernel.Close()
	noKernel.RebuildNow()
	_, err = noKernel.GroundVoid(0.5)
	assert.ErrorIs(t, err, ErrNoKernel)
}

func TestRippleAndTick(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	h.s.Ripple(r2.Vec{X: 1}, 1) // nothing built yet
	h.s.RebuildNow()

	h.s.Ripple(r2.Vec{X: 5}, 0.8)
	h.s.Tick(100 * time.Millisecond)
	w := h.s.Assembly().Water
	require.Len(t, w.Impulses(), 1)
	assert.Equal(t, 100*time.Millisecond, w.Elapsed())
}

func TestCloseDetaches(t *testing.T) {
	h := newHarness(t, pool.DefaultParams())
	h.s.RebuildNow()
	asm := h.s.Assembly()

	h.s.Close()
	assert.Equal(t, []*pool.Assembly{asm}, h.scene.detached)
	assert.Nil(t, h.s.Assembly())
	assert.True(t, asm.Floor.IsEmpty())

	// Later edits are ignored.
	require.NoError(t, h.s.SetParam("length", 8))
	h.clock.Advance(time.Second)
	assert.Nil(t, h.s.Assembly())
	h.s.Close()
}
