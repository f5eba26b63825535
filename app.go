package main

import (
	"context"
	"errors"
	"log"

	"github.com/chazu/lagoon/pkg/config"
	"github.com/chazu/lagoon/pkg/engine"
	"github.com/chazu/lagoon/pkg/interact"
	"github.com/chazu/lagoon/pkg/kernel"
	"github.com/chazu/lagoon/pkg/kernel/sdfx"
	"github.com/chazu/lagoon/pkg/polygon"
	"github.com/chazu/lagoon/pkg/pool"
	"github.com/chazu/lagoon/pkg/session"
	"github.com/chazu/lagoon/pkg/tessellate"
	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2/pkg/runtime"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Events emitted to the frontend.
const (
	EventAttached  = "pool:attached"
	EventDetached  = "pool:detached"
	EventUpdated   = "pool:updated"
	EventMaterials = "pool:materials"
	EventGround    = "ground:void"
	EventWater     = "water:surface"
	EventWaterVoid = "water:void"
	EventCaustics  = "water:materials"
	EventSelected  = "selection:set"
	EventCleared   = "selection:cleared"
)

// rolePalette assigns a default colour per surface role.
var rolePalette = map[kernel.Role]string{
	kernel.RoleFloor:  "#4A90D9",
	kernel.RoleStep:   "#F5F5F0",
	kernel.RoleWall:   "#3498DB",
	kernel.RoleCoping: "#D8CFC0",
	kernel.RoleWater:  "#1ABC9C",
}

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx     context.Context
	cfg     *config.Config
	engine  *engine.Engine
	kernel  kernel.Kernel
	session *session.Session

	// emit sends an event to the frontend. Tests replace it.
	emit func(name string, data ...any)
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
// Geometry is baked into world space.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	UVs      []float32 `json:"uvs"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Role     string    `json:"role"`
	Color    string    `json:"color"`
}

// SceneData is one assembly as the frontend sees it.
type SceneData struct {
	ID     string     `json:"id"`
	Shape  string     `json:"shape"`
	Meshes []MeshData `json:"meshes"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result returned to the frontend.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// SelectionData describes a picked step or wall.
type SelectionData struct {
	Hit   bool      `json:"hit"`
	Kind  string    `json:"kind"`
	Index int       `json:"index"`
	Point []float64 `json:"point"`
}

// SpaData is where the spa should snap.
type SpaData struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	NormalX float64 `json:"normalX"`
	NormalY float64 `json:"normalY"`
	DeepZ   float64 `json:"deepZ"`
	Inside  bool    `json:"inside"`
}

// NewApp creates a new App with an engine, the sdfx kernel and an editing
// session configured from cfg. A nil cfg uses the defaults.
func NewApp(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{
		cfg:    cfg,
		engine: engine.NewEngine(),
		kernel: sdfx.New(),
	}
	a.emit = a.runtimeEmit
	b := bridge{app: a}
	a.session = session.New(session.Config{
		Builder:   pool.NewBuilder(cfg.BuildOptions()),
		Live:      cfg.LiveOptions(),
		Kernel:    a.kernel,
		Scene:     b,
		Materials: b,
		Water:     b,
	}, pool.DefaultParams())
	a.session.OnSelect(func(s interact.Selection) { a.emit(EventSelected, selectionData(s, true)) })
	a.session.OnClear(func() { a.emit(EventCleared) })
	return a
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.session.RebuildNow()
}

// shutdown is called by Wails when the window closes.
func (a *App) shutdown(ctx context.Context) {
	a.session.Close()
}

func (a *App) runtimeEmit(name string, data ...any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, data...)
}

// ---------------------------------------------------------------------------
// Scripts
// ---------------------------------------------------------------------------

// Evaluate runs a design script, applies it and returns the rebuilt meshes.
// This is the primary binding called by the frontend editor.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: Evaluate the script into a design.
	d, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.Printf("Evaluate fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors to the frontend format.
	if len(evalErrs) > 0 {
		result.Errors = lo.Map(evalErrs, func(e engine.EvalError, _ int) EvalErrorData {
			return EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message}
		})
		return result
	}
	result.Warnings = append(result.Warnings, lo.Map(d.Warnings, func(w engine.EvalWarning, _ int) EvalErrorData {
		return EvalErrorData{Line: w.Line, Col: w.Col, Message: w.Message}
	})...)

	// Step 3: Rebuild the pool from the design.
	a.session.ApplyDesign(d.Params, d.Outline)
	if err := a.session.LastError(); err != nil {
		log.Printf("Rebuild error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "build failed: " + err.Error()})
		return result
	}

	// Step 4: Bake the pool into frontend meshes.
	snap, ok := a.session.Snapshot()
	if !ok {
		result.Errors = append(result.Errors, EvalErrorData{Message: "build failed: nothing built"})
		return result
	}
	if snap.Report.Repaired {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: "outline crossed itself; vertices were re-ordered"})
	}
	result.Meshes = meshData(snap.Meshes)
	return result
}

// ---------------------------------------------------------------------------
// Parameters
// ---------------------------------------------------------------------------

// Params returns the current parameters.
func (a *App) Params() pool.Params { return a.session.Params() }

// ParamNames lists the names accepted by SetParam.
func (a *App) ParamNames() []string { return pool.ParamNames() }

// SetParam changes one numeric parameter.
func (a *App) SetParam(name string, value float64) error {
	return a.session.SetParam(name, value)
}

// SetShape switches the pool shape by name.
func (a *App) SetShape(name string) error {
	s, err := pool.ParseShape(name)
	if err != nil {
		return err
	}
	a.session.SetShape(s)
	return nil
}

// BeginDrag is called when a slider or handle drag starts.
func (a *App) BeginDrag() { a.session.BeginDrag() }

// EndDrag is called when the drag is released.
func (a *App) EndDrag() { a.session.EndDrag() }

// ---------------------------------------------------------------------------
// Outline editing
// ---------------------------------------------------------------------------

func (a *App) editOutline(fn func(p *polygon.Polygon) bool) bool {
	var ok bool
	a.session.EditOutline(func(p *polygon.Polygon) { ok = fn(p) })
	return ok
}

// MoveVertex moves outline vertex i.
func (a *App) MoveVertex(i int, x, y float64) bool {
	return a.editOutline(func(p *polygon.Polygon) bool { return p.MoveVertex(i, r2.Vec{X: x, Y: y}) })
}

// AddVertex splits edge i at (x, y).
func (a *App) AddVertex(edge int, x, y float64) bool {
	return a.editOutline(func(p *polygon.Polygon) bool { return p.AddVertexAtEdge(edge, r2.Vec{X: x, Y: y}) })
}

// DeleteVertex removes outline vertex i.
func (a *App) DeleteVertex(i int) bool {
	return a.editOutline(func(p *polygon.Polygon) bool { return p.DeleteVertex(i) })
}

// ToggleEdgeCurve bends or straightens edge i.
func (a *App) ToggleEdgeCurve(i int) bool {
	return a.editOutline(func(p *polygon.Polygon) bool { return p.ToggleEdgeCurved(i) })
}

// MoveCurveControl moves the control point of edge i.
func (a *App) MoveCurveControl(i int, x, y float64) bool {
	return a.editOutline(func(p *polygon.Polygon) bool { return p.MoveCurveControl(i, r2.Vec{X: x, Y: y}) })
}

// ---------------------------------------------------------------------------
// Picking and direct manipulation
// ---------------------------------------------------------------------------

// Pick casts a ray from the camera and selects the nearest step or wall.
func (a *App) Pick(ox, oy, oz, dx, dy, dz float64) SelectionData {
	sel, ok := a.session.Pick(interact.Ray{
		Origin: r3.Vec{X: ox, Y: oy, Z: oz},
		Dir:    r3.Vec{X: dx, Y: dy, Z: dz},
	})
	return selectionData(sel, ok)
}

// ResizeStep sets the run of the selected step.
func (a *App) ResizeStep(length float64) bool {
	if !a.session.ResizeSelectedStep(length) {
		return false
	}
	a.emitUpdated()
	return true
}

// RaiseWall sets the height of the selected wall.
func (a *App) RaiseWall(height float64) bool {
	if !a.session.RaiseSelectedWall(height) {
		return false
	}
	a.emitUpdated()
	return true
}

func (a *App) emitUpdated() {
	if snap, ok := a.session.Snapshot(); ok {
		a.emit(EventUpdated, sceneData(snap))
	}
}

// ---------------------------------------------------------------------------
// Spa, water and export
// ---------------------------------------------------------------------------

// SpaSnap returns where a spa dropped at (x, y) attaches to the pool.
func (a *App) SpaSnap(x, y float64) (SpaData, error) {
	anchor, err := a.session.SpaSnap(r2.Vec{X: x, Y: y})
	if err != nil {
		return SpaData{}, err
	}
	return SpaData{
		X:       anchor.Point.X,
		Y:       anchor.Point.Y,
		NormalX: anchor.Normal.X,
		NormalY: anchor.Normal.Y,
		DeepZ:   anchor.DeepZ,
		Inside:  anchor.Inside,
	}, nil
}

// SetSpaVoid cuts the spa's footprint out of the water surface.
func (a *App) SetSpaVoid(cx, cy, sx, sy float64) {
	a.session.SetSpaVoid(r2.Vec{X: cx, Y: cy}, r2.Vec{X: sx, Y: sy})
}

// Ripple disturbs the water where the pointer touched it.
func (a *App) Ripple(x, y, strength float64) {
	a.session.Ripple(r2.Vec{X: x, Y: y}, strength)
}

// Meshes returns the current assembly's meshes.
func (a *App) Meshes() []MeshData {
	snap, ok := a.session.Snapshot()
	if !ok {
		return []MeshData{}
	}
	return meshData(snap.Meshes)
}

// ExportSTL writes the pool shell (everything but water) to path.
func (a *App) ExportSTL(path string) error {
	snap, ok := a.session.Snapshot(kernel.RoleFloor, kernel.RoleStep, kernel.RoleWall, kernel.RoleCoping)
	if !ok {
		return errors.New("nothing to export")
	}
	if err := tessellate.WriteSTL(path, snap.Meshes); err != nil {
		log.Printf("ExportSTL error: %v", err)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// meshData converts meshes already baked into world space.
func meshData(meshes []*kernel.Mesh) []MeshData {
	return lo.Map(meshes, func(m *kernel.Mesh, _ int) MeshData {
		return toMeshData(m)
	})
}

// toMeshData expects a mesh already baked into world space.
func toMeshData(m *kernel.Mesh) MeshData {
	return MeshData{
		Vertices: m.Vertices,
		Normals:  m.Normals,
		UVs:      m.UVs,
		Indices:  m.Indices,
		PartName: m.PartName,
		Role:     m.Role.String(),
		Color:    rolePalette[m.Role],
	}
}

func sceneData(snap session.Snapshot) SceneData {
	return SceneData{ID: snap.ID.String(), Shape: snap.Shape.String(), Meshes: meshData(snap.Meshes)}
}

func selectionData(s interact.Selection, ok bool) SelectionData {
	if !ok {
		return SelectionData{}
	}
	return SelectionData{
		Hit:   true,
		Kind:  s.Kind.String(),
		Index: s.Index,
		Point: []float64{s.Point.X, s.Point.Y, s.Point.Z},
	}
}

// ---------------------------------------------------------------------------
// Session collaborators
// ---------------------------------------------------------------------------

// bridge forwards session callbacks to the frontend as events. It is kept
// off App so Wails does not bind its methods.
type bridge struct {
	app *App
}

var (
	_ session.Scene     = bridge{}
	_ session.Materials = bridge{}
	_ session.Water     = bridge{}
)

func (b bridge) Attach(asm *pool.Assembly) {
	b.app.emit(EventAttached, SceneData{
		ID:     asm.ID.String(),
		Shape:  asm.Shape.String(),
		Meshes: meshData(tessellate.Tessellate(asm)),
	})
}

func (b bridge) Detach(asm *pool.Assembly) { b.app.emit(EventDetached, asm.ID.String()) }

func (b bridge) CutGroundVoid(outline []r2.Vec) {
	b.app.emit(EventGround, lo.Map(outline, func(p r2.Vec, _ int) []float64 { return []float64{p.X, p.Y} }))
}

// Apply sends the role palette for snap. Texture loading lives in the
// frontend; this only tells it which pool to dress.
func (b bridge) Apply(ctx context.Context, snap session.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	colors := make(map[string]string, len(rolePalette))
	for role, c := range rolePalette {
		colors[role.String()] = c
	}
	b.app.emit(EventMaterials, map[string]any{"id": snap.ID.String(), "shape": snap.Shape.String(), "colors": colors})
	return nil
}

func (b bridge) SetSurface(w *pool.WaterSurface) {
	if w == nil || w.Mesh == nil {
		return
	}
	b.app.emit(EventWater, toMeshData(tessellate.Bake(w.Mesh)))
}

func (b bridge) SetVoid(center, size r2.Vec) {
	b.app.emit(EventWaterVoid, map[string]float64{"cx": center.X, "cy": center.Y, "sx": size.X, "sy": size.Y})
}

func (b bridge) MaterialsChanged() { b.app.emit(EventCaustics) }
