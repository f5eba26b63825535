// Package tessellate flattens a pool assembly into world-space triangle
// meshes for export. One mesh is produced per surface.
package tessellate

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chazu/lagoon/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("tessellate: no triangles to export")

// Source is anything that exposes renderable surfaces. *pool.Assembly
// satisfies it.
type Source interface {
	Surfaces() []*kernel.Mesh
}

// Tessellate bakes every surface of src into world space. When roles is
// non-empty only surfaces with one of those roles are kept. Empty surfaces
// are skipped. The source meshes are never mutated.
func Tessellate(src Source, roles ...kernel.Role) []*kernel.Mesh {
	if src == nil {
		return nil
	}
	surfaces := lo.Filter(src.Surfaces(), func(m *kernel.Mesh, _ int) bool {
		if m == nil || m.IsEmpty() {
			return false
		}
		return len(roles) == 0 || slices.Contains(roles, m.Role)
	})
	return lo.Map(surfaces, func(m *kernel.Mesh, _ int) *kernel.Mesh {
		return Bake(m)
	})
}

// Bake returns a copy of m with its transform applied to every vertex and
// normal. The copy carries the identity transform.
func Bake(m *kernel.Mesh) *kernel.Mesh {
	n := m.VertexCount()
	out := &kernel.Mesh{
		Vertices:  make([]float32, 0, n*3),
		Normals:   make([]float32, 0, len(m.Normals)),
		UVs:       slices.Clone(m.UVs),
		UV2:       slices.Clone(m.UV2),
		Indices:   slices.Clone(m.Indices),
		PartName:  m.PartName,
		Role:      m.Role,
		Transform: kernel.Identity(),
	}
	hasNormals := len(m.Normals) == len(m.Vertices)
	for i := 0; i < n; i++ {
		w := m.World(i)
		out.Vertices = append(out.Vertices, float32(w.X), float32(w.Y), float32(w.Z))
		if hasNormals {
			wn := m.Transform.ApplyNormal(m.LocalNormal(i))
			out.Normals = append(out.Normals, float32(wn.X), float32(wn.Y), float32(wn.Z))
		}
	}
	return out
}

// ToTriangles converts meshes (baked or not) into sdfx triangles in world
// space. Triangles whose indices run past the vertex buffer are dropped.
func ToTriangles(meshes []*kernel.Mesh) []*sdf.Triangle3 {
	return lo.FlatMap(meshes, func(m *kernel.Mesh, _ int) []*sdf.Triangle3 {
		if m == nil {
			return nil
		}
		n := uint32(m.VertexCount())
		tris := make([]*sdf.Triangle3, 0, m.TriangleCount())
		for i := 0; i+2 < len(m.Indices); i += 3 {
			a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
			if a >= n || b >= n || c >= n {
				continue
			}
			tris = append(tris, &sdf.Triangle3{
				toV3(m.World(int(a))),
				toV3(m.World(int(b))),
				toV3(m.World(int(c))),
			})
		}
		return tris
	})
}

// WriteSTL exports the meshes as a binary STL file.
func WriteSTL(path string, meshes []*kernel.Mesh) error {
	tris := ToTriangles(meshes)
	if len(tris) == 0 {
		return ErrEmpty
	}
	if err := render.SaveSTL(path, tris); err != nil {
		return fmt.Errorf("tessellate: writing %s: %w", path, err)
	}
	return nil
}

func toV3(p r3.Vec) v3.Vec {
	return v3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}
