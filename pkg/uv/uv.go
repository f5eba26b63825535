// Package uv lays tiling texture coordinates over pool surfaces so that a
// tile covers the same real-world area on every surface, however the mesh
// was generated, scaled or moved.
//
// Coordinates are derived from world positions relative to a per-role
// origin, expressed in the mesh's own yaw frame, and projected onto the
// plane picked by the dominant component of the local normal.
package uv

import (
	"math"

	"github.com/chazu/lagoon/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultTileSize is the real-world edge length of one tile repeat.
const DefaultTileSize = 0.25

// Origins holds the UV origin for each tiled surface family.
type Origins struct {
	Floor r3.Vec `json:"floor"`
	Step  r3.Vec `json:"step"`
	Wall  r3.Vec `json:"wall"`
}

// For returns the origin used for meshes of the given role. Coping follows
// the walls; water follows the floor.
func (o Origins) For(role kernel.Role) r3.Vec {
	switch role {
	case kernel.RoleStep:
		return o.Step
	case kernel.RoleWall, kernel.RoleCoping:
		return o.Wall
	default:
		return o.Floor
	}
}

// Aligner writes tiling UVs.
type Aligner struct {
	TileSize float64
}

// NewAligner returns an aligner for the given tile size. Non-positive sizes
// fall back to DefaultTileSize.
func NewAligner(tileSize float64) Aligner {
	if !(tileSize > 0) || math.IsInf(tileSize, 0) {
		tileSize = DefaultTileSize
	}
	return Aligner{TileSize: tileSize}
}

// ComputeOrigins derives origins from current world geometry. The floor
// origin is the minimum corner of the floor bounds. Steps start at the
// leftmost world X among all steps, walls at the floor's plan corner; both
// use the deck datum Z = 0 vertically.
func (a Aligner) ComputeOrigins(floor *kernel.Mesh, steps []*kernel.Mesh) Origins {
	var o Origins
	if floor != nil && !floor.IsEmpty() {
		min, _ := floor.WorldBounds()
		o.Floor = min
	}
	o.Wall = r3.Vec{X: o.Floor.X, Y: o.Floor.Y}

	o.Step = o.Wall
	first := true
	for _, s := range steps {
		if s == nil || s.IsEmpty() {
			continue
		}
		min, _ := s.WorldBounds()
		if first || min.X < o.Step.X {
			o.Step.X = min.X
			first = false
		}
	}
	return o
}

// Apply rewrites the UVs of m relative to origin. UV2 is kept as a copy of
// the primary channel.
func (a Aligner) Apply(m *kernel.Mesh, origin r3.Vec) {
	if m == nil || m.IsEmpty() {
		return
	}
	tile := a.TileSize
	if !(tile > 0) {
		tile = DefaultTileSize
	}
	m.EnsureUVs()
	for i := 0; i < m.VertexCount(); i++ {
		rel := m.Transform.Unrotate(r3.Sub(m.World(i), origin))
		u, v := project(rel, m.LocalNormal(i))
		m.UVs[2*i] = float32(u / tile)
		m.UVs[2*i+1] = float32(v / tile)
	}
	copy(m.UV2, m.UVs)
}

// Align applies the role-appropriate origin to every mesh.
func (a Aligner) Align(o Origins, meshes ...*kernel.Mesh) {
	for _, m := range meshes {
		if m == nil {
			continue
		}
		a.Apply(m, o.For(m.Role))
	}
}

// project picks the canonical plane for a normal: treads and floors tile
// on (x, y), faces looking along X on (y, z), faces looking along Y on
// (x, z). Risers therefore tile on z.
func project(p, n r3.Vec) (u, v float64) {
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	switch {
	case az >= ax && az >= ay:
		return p.X, p.Y
	case ax >= ay:
		return p.Y, p.Z
	default:
		return p.X, p.Z
	}
}
