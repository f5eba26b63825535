package main

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/lagoon/pkg/kernel"
)

// ---------------------------------------------------------------------------
// Script errors
// ---------------------------------------------------------------------------

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	app := newTestApp(t)
	source := "(def a 1)\n(def b 2)\n(pool :length (+ a b)"
	result := app.Evaluate(source)

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one error for multi-line syntax error")
	}
	if result.Errors[0].Message == "" {
		t.Error("error message should not be empty")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on syntax error, got %d", len(result.Meshes))
	}
}

func TestE2EUnknownParam(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(`(pool :lenght 9)`)

	if len(result.Errors) == 0 {
		t.Fatal("expected an error for a misspelled parameter")
	}
	if !strings.Contains(result.Errors[0].Message, "unknown parameter") {
		t.Errorf("error %q should mention the unknown parameter", result.Errors[0].Message)
	}
}

func TestE2EUnknownShape(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(`(pool :shape :hexagon)`)

	if len(result.Errors) == 0 {
		t.Fatal("expected an error for an unknown shape")
	}
	if !strings.Contains(result.Errors[0].Message, "unknown shape") {
		t.Errorf("error %q should mention the unknown shape", result.Errors[0].Message)
	}
}

// A failed script leaves the previous pool in place.
func TestE2EErrorKeepsPreviousPool(t *testing.T) {
	app := newTestApp(t)
	evaluateFile(t, app, "examples/kidney.lagoon")
	before, _ := app.session.Snapshot()

	result := app.Evaluate(`(pool :shape`)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error")
	}
	if after, _ := app.session.Snapshot(); after.ID != before.ID {
		t.Error("pool should not change on a script error")
	}
	if len(app.Meshes()) == 0 {
		t.Error("previous meshes should still be available")
	}
}

// ---------------------------------------------------------------------------
// Outlines
// ---------------------------------------------------------------------------

func TestE2EOutlineIgnoredWarning(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("(pool :shape :oval)\n(outline (pt 0 0) (pt 4 0) (pt 2 3))")

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", result.Warnings)
	}
	if !strings.Contains(result.Warnings[0].Message, "outline ignored") {
		t.Errorf("warning %q should say the outline was ignored", result.Warnings[0].Message)
	}
	if len(result.Meshes) == 0 {
		t.Error("the oval should still build")
	}
}

func TestE2ESelfIntersectingOutlineRepaired(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("(pool :shape :freeform)\n(outline (pt 0 0) (pt 6 4) (pt 6 0) (pt 0 4))")

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w.Message, "crossed itself") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a repair warning, got %v", result.Warnings)
	}
	checkMeshes(t, result.Meshes)
}

func TestE2EDegenerateOutlineFailsBuild(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("(pool :shape :freeform)\n(outline (pt 0 0) (pt 2 0) (pt 4 0))")

	if len(result.Errors) == 0 {
		t.Fatal("expected a build error for a collinear outline")
	}
	if !strings.HasPrefix(result.Errors[0].Message, "build failed") {
		t.Errorf("error %q should report a build failure", result.Errors[0].Message)
	}
}

func TestE2EOutlineEditing(t *testing.T) {
	app := newTestApp(t)
	evaluateFile(t, app, "examples/freeform.lagoon")

	if !app.AddVertex(0, 0, -3) {
		t.Fatal("AddVertex on edge 0 failed")
	}
	verts, _, _ := app.session.Outline()
	if len(verts) != 5 {
		t.Fatalf("outline has %d vertices, want 5", len(verts))
	}
	if !app.MoveVertex(1, 0.5, -3.2) {
		t.Error("MoveVertex failed")
	}
	if !app.ToggleEdgeCurve(0) {
		t.Error("ToggleEdgeCurve failed")
	}
	if !app.MoveCurveControl(0, -3, -3.5) {
		t.Error("MoveCurveControl failed")
	}
	if !app.DeleteVertex(1) {
		t.Error("DeleteVertex failed")
	}
	verts, _, _ = app.session.Outline()
	if len(verts) != 4 {
		t.Errorf("outline has %d vertices, want 4", len(verts))
	}

	// Preset shapes have no outline to edit.
	if err := app.SetShape("rectangle"); err != nil {
		t.Fatal(err)
	}
	if app.MoveVertex(0, 1, 1) {
		t.Error("MoveVertex should fail without an outline")
	}
}

// ---------------------------------------------------------------------------
// Parameters and shapes
// ---------------------------------------------------------------------------

func TestE2ESetShape(t *testing.T) {
	app := newTestApp(t)
	if err := app.SetShape("l-shape"); err != nil {
		t.Fatalf("SetShape: %v", err)
	}
	if got := app.Params().Shape.String(); got != "l-shape" {
		t.Errorf("shape = %s, want l-shape", got)
	}
	if err := app.SetShape("triangle"); err == nil {
		t.Error("expected an error for an unknown shape")
	}
}

func TestE2ESetParam(t *testing.T) {
	app := newTestApp(t)
	if err := app.SetParam("deep", 3); err != nil {
		t.Fatalf("SetParam: %v", err)
	}
	if app.Params().Deep != 3 {
		t.Errorf("deep = %v, want 3", app.Params().Deep)
	}
	if err := app.SetParam("depth", 3); err == nil {
		t.Error("expected an error for an unknown parameter")
	}
	names := app.ParamNames()
	if len(names) == 0 {
		t.Fatal("ParamNames should not be empty")
	}
}

// Out-of-range numbers are clamped by the builder, never rejected.
func TestE2EExtremeDimensions(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"zero", `(pool :length 0 :width 0)`},
		{"negative", `(pool :length -5 :width -2 :deep -1)`},
		{"huge", `(pool :length 100000 :width 100000)`},
		{"tiny steps", `(pool :step-count 12 :step-rise 0.001)`},
		{"fractional", `(pool :length 7.3333 :width 3.1415)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			result := app.Evaluate(tt.source)
			if len(result.Errors) != 0 {
				t.Fatalf("unexpected errors: %v", result.Errors)
			}
			checkMeshes(t, result.Meshes)
			if len(result.Meshes) == 0 {
				t.Error("expected meshes")
			}
		})
	}
}

func TestE2ECommentsOnly(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(";; just a comment\n; another one\n")

	if len(result.Errors) != 0 {
		t.Errorf("expected 0 errors for comments-only source, got %v", result.Errors)
	}
	if app.Params().Shape.String() != "rectangle" {
		t.Errorf("comments-only source should build the default pool")
	}
}

func TestE2EArithmetic(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(`
(def base 4)
(def scale 2.5)
(pool :length (* base scale) :width (+ base 1) :deep (- 3 0.5))
`)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	p := app.Params()
	if p.Length != 10 || p.Width != 5 || p.Deep != 2.5 {
		t.Errorf("params = %v x %v deep %v, want 10 x 5 deep 2.5", p.Length, p.Width, p.Deep)
	}
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestE2ERapidEvaluation(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 20; i++ {
		result := app.Evaluate(`(pool :shape :oval :length 8)`)
		if len(result.Errors) != 0 {
			t.Fatalf("iteration %d: unexpected errors: %v", i, result.Errors)
		}
	}
	if g := app.session.Generation(); g != 20 {
		t.Errorf("generation = %d, want 20", g)
	}
}

func TestE2EConcurrentEvaluation(t *testing.T) {
	app := newTestApp(t)
	sources := []string{
		`(pool :shape :oval)`,
		`(pool :shape :kidney)`,
		`(pool :shape :rectangle :length 12)`,
		`(pool :shape :l-shape)`,
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			app.Evaluate(src)
		}(sources[i%len(sources)])
	}
	wg.Wait()

	if _, ok := app.session.Snapshot(); !ok {
		t.Fatal("expected a pool after concurrent evaluation")
	}
	if app.session.LastError() != nil {
		t.Errorf("unexpected build error: %v", app.session.LastError())
	}
}

// ---------------------------------------------------------------------------
// Picking, spa and export
// ---------------------------------------------------------------------------

// Reads race the debounce timer's rebuilds; run with -race.
func TestE2EMeshesWhileEditing(t *testing.T) {
	app := newTestApp(t)
	app.Evaluate("")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 40; i++ {
			_ = app.SetParam("length", 9+float64(i%4))
			_ = app.SetParam("deep", 2+float64(i%3)/4)
			time.Sleep(time.Millisecond)
		}
		close(done)
	}()

	reads := 0
	for {
		select {
		case <-done:
			wg.Wait()
			if reads == 0 {
				t.Error("no reads overlapped the edits")
			}
			return
		default:
		}
		meshes := app.Meshes()
		if len(meshes) == 0 {
			t.Fatal("meshes went empty mid-edit")
		}
		for _, m := range meshes {
			if len(m.Vertices) == 0 {
				t.Fatalf("%s baked with no vertices", m.PartName)
			}
		}
		reads++
	}
}

func TestE2EPickAndResizeStep(t *testing.T) {
	app := newTestApp(t)
	rec := record(app)
	app.Evaluate("")

	// Straight down onto the first step.
	sel := app.Pick(0.15, 0, 5, 0, 0, -1)
	if !sel.Hit || sel.Kind != "step" || sel.Index != 0 {
		t.Fatalf("pick = %+v, want step 0", sel)
	}
	if !rec.saw(EventSelected) {
		t.Error("expected a selection event")
	}
	if !app.ResizeStep(0.6) {
		t.Fatal("ResizeStep failed")
	}
	if !rec.saw(EventUpdated) {
		t.Error("expected an update event after resizing")
	}
	if got := app.session.Assembly().Steps[0].Length; got != 0.6 {
		t.Errorf("step length = %v, want 0.6", got)
	}

	miss := app.Pick(0, 0, 5, 0, 0, 1)
	if miss.Hit {
		t.Errorf("ray pointing away should miss, got %+v", miss)
	}
}

func TestE2ESpaSnap(t *testing.T) {
	app := newTestApp(t)
	if _, err := app.SpaSnap(5, -4); err == nil {
		t.Error("SpaSnap before any build should fail")
	}

	app.Evaluate("")
	s, err := app.SpaSnap(5, -4)
	if err != nil {
		t.Fatalf("SpaSnap: %v", err)
	}
	if math.Abs(s.X-5) > 1e-9 || math.Abs(s.Y+2.5) > 1e-9 {
		t.Errorf("snap = (%v, %v), want (5, -2.5)", s.X, s.Y)
	}
	if math.Abs(s.NormalY+1) > 1e-9 {
		t.Errorf("normal = (%v, %v), want (0, -1)", s.NormalX, s.NormalY)
	}
	if s.Inside {
		t.Error("a drop beside the pool reported inside")
	}
	if s, _ := app.SpaSnap(5, 0); !s.Inside {
		t.Error("a drop in the middle of the pool reported outside")
	}
}

func TestE2EExportSTL(t *testing.T) {
	app := newTestApp(t)
	path := filepath.Join(t.TempDir(), "pool.stl")
	if err := app.ExportSTL(path); err == nil {
		t.Error("export before any build should fail")
	}

	app.Evaluate("")
	if err := app.ExportSTL(path); err != nil {
		t.Fatalf("ExportSTL: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() <= 84 {
		t.Errorf("STL file is only %d bytes", info.Size())
	}
}

func TestE2ERoleColors(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("")
	for _, m := range result.Meshes {
		var role kernel.Role
		for r := range rolePalette {
			if r.String() == m.Role {
				role = r
			}
		}
		if m.Color != rolePalette[role] {
			t.Errorf("part %q (%s): color %q, want %q", m.PartName, m.Role, m.Color, rolePalette[role])
		}
	}
}
