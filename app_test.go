package main

import (
	"os"
	"strings"
	"sync"
	"testing"
)

// newTestApp returns an App whose session is closed when the test ends.
func newTestApp(t *testing.T) *App {
	t.Helper()
	app := NewApp(nil)
	t.Cleanup(app.session.Close)
	return app
}

// recorder captures emitted events.
type recorder struct {
	mu     sync.Mutex
	events []string
	data   map[string][]any
}

func record(app *App) *recorder {
	r := &recorder{data: map[string][]any{}}
	app.emit = func(name string, data ...any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, name)
		r.data[name] = data
	}
	return r
}

func (r *recorder) saw(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == name {
			return true
		}
	}
	return false
}

func (r *recorder) last(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[name]
}

func evaluateFile(t *testing.T, app *App, path string) EvalResult {
	t.Helper()
	source, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	result := app.Evaluate(string(source))
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
	return result
}

func roleCounts(meshes []MeshData) map[string]int {
	counts := map[string]int{}
	for _, m := range meshes {
		counts[m.Role]++
	}
	return counts
}

// checkMeshes asserts every mesh has geometry, a colour and a unique name.
func checkMeshes(t *testing.T, meshes []MeshData) {
	t.Helper()
	seen := map[string]bool{}
	for _, m := range meshes {
		if seen[m.PartName] {
			t.Errorf("duplicate part name %q", m.PartName)
		}
		seen[m.PartName] = true

		if len(m.Vertices) == 0 || len(m.Vertices)%3 != 0 {
			t.Errorf("part %q: bad vertex buffer length %d", m.PartName, len(m.Vertices))
		}
		if len(m.Normals) != len(m.Vertices) {
			t.Errorf("part %q: %d normals for %d vertex floats", m.PartName, len(m.Normals), len(m.Vertices))
		}
		if len(m.Indices) == 0 || len(m.Indices)%3 != 0 {
			t.Errorf("part %q: bad index buffer length %d", m.PartName, len(m.Indices))
		}
		nv := uint32(len(m.Vertices) / 3)
		for _, idx := range m.Indices {
			if idx >= nv {
				t.Errorf("part %q: index %d out of range (%d vertices)", m.PartName, idx, nv)
				break
			}
		}
		if m.Color == "" || !strings.HasPrefix(m.Color, "#") {
			t.Errorf("part %q: invalid color %q", m.PartName, m.Color)
		}
	}
}

// TestE2EKidneyExample exercises the full pipeline: script → engine →
// session rebuild → tessellate → meshes. This is the same path that the
// Wails Evaluate binding takes, but without the Wails runtime.
func TestE2EKidneyExample(t *testing.T) {
	app := newTestApp(t)
	result := evaluateFile(t, app, "examples/kidney.lagoon")

	checkMeshes(t, result.Meshes)
	counts := roleCounts(result.Meshes)
	if counts["floor"] != 1 {
		t.Errorf("floor meshes = %d, want 1", counts["floor"])
	}
	if counts["water"] != 1 {
		t.Errorf("water meshes = %d, want 1", counts["water"])
	}
	// Curved pools get one ring wall and one ring of coping.
	if counts["wall"] != 1 {
		t.Errorf("wall meshes = %d, want 1", counts["wall"])
	}
	if counts["coping"] != 1 {
		t.Errorf("coping meshes = %d, want 1", counts["coping"])
	}

	p := app.Params()
	if p.Shape.String() != "kidney" {
		t.Errorf("shape = %s, want kidney", p.Shape)
	}
	if p.Length != 11 || p.Width != 5.5 {
		t.Errorf("plan = %v x %v, want 11 x 5.5", p.Length, p.Width)
	}
	if p.StepCount != 4 {
		t.Errorf("step count = %d, want 4", p.StepCount)
	}
}

func TestE2EFreeformExample(t *testing.T) {
	app := newTestApp(t)
	result := evaluateFile(t, app, "examples/freeform.lagoon")

	checkMeshes(t, result.Meshes)
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	verts, edges, ok := app.session.Outline()
	if !ok {
		t.Fatal("freeform pool should have an outline")
	}
	if len(verts) != 4 {
		t.Fatalf("outline has %d vertices, want 4", len(verts))
	}
	if !edges[1].Curved || !edges[2].Curved {
		t.Error("edges 1 and 2 should be curved")
	}
	if edges[0].Curved || edges[3].Curved {
		t.Error("edges 0 and 3 should be straight")
	}
	// Box walls, one per sampled perimeter segment.
	if n := roleCounts(result.Meshes)["wall"]; n <= 4 {
		t.Errorf("wall meshes = %d, want more than 4 for a curved outline", n)
	}
}

func TestE2ELShapeExample(t *testing.T) {
	app := newTestApp(t)
	result := evaluateFile(t, app, "examples/lshape.lagoon")

	checkMeshes(t, result.Meshes)
	counts := roleCounts(result.Meshes)
	if counts["wall"] != 6 {
		t.Errorf("wall meshes = %d, want 6", counts["wall"])
	}
	if counts["coping"] != counts["wall"] {
		t.Errorf("coping pieces = %d, want one per wall (%d)", counts["coping"], counts["wall"])
	}
}

// TestE2EEmptySource: an empty editor builds the default pool.
func TestE2EEmptySource(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate("")

	if len(result.Errors) != 0 {
		t.Errorf("expected 0 errors, got %d", len(result.Errors))
	}
	if result.Meshes == nil || result.Errors == nil || result.Warnings == nil {
		t.Error("result slices must be non-nil for JSON serialization")
	}
	checkMeshes(t, result.Meshes)

	counts := roleCounts(result.Meshes)
	want := map[string]int{"floor": 1, "step": 3, "wall": 4, "coping": 4, "water": 1}
	for role, n := range want {
		if counts[role] != n {
			t.Errorf("%s meshes = %d, want %d", role, counts[role], n)
		}
	}
}

func TestE2ESyntaxError(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(`(pool :length 9`)

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one error for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

func TestE2EEmitsSceneEvents(t *testing.T) {
	app := newTestApp(t)
	rec := record(app)

	evaluateFile(t, app, "examples/kidney.lagoon")
	for _, name := range []string{EventAttached, EventGround, EventWater} {
		if !rec.saw(name) {
			t.Errorf("expected a %s event", name)
		}
	}
	first, ok := rec.last(EventAttached)[0].(SceneData)
	if !ok {
		t.Fatalf("attach payload = %T, want SceneData", rec.last(EventAttached)[0])
	}
	if first.Shape != "kidney" || len(first.Meshes) == 0 {
		t.Errorf("attach payload = %s with %d meshes", first.Shape, len(first.Meshes))
	}

	// A second build detaches the first assembly.
	app.Evaluate("")
	if !rec.saw(EventDetached) {
		t.Fatal("expected a detach event")
	}
	if id := rec.last(EventDetached)[0]; id != first.ID {
		t.Errorf("detached %v, want %v", id, first.ID)
	}
}
