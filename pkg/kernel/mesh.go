package kernel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Role tags what part of the pool a mesh represents.
type Role int

const (
	RoleNone Role = iota
	RoleFloor
	RoleStep
	RoleWall
	RoleCoping
	RoleWater
	RoleVoid
)

func (r Role) String() string {
	switch r {
	case RoleFloor:
		return "floor"
	case RoleStep:
		return "step"
	case RoleWall:
		return "wall"
	case RoleCoping:
		return "coping"
	case RoleWater:
		return "water"
	case RoleVoid:
		return "void"
	default:
		return "none"
	}
}

// Transform places a mesh in the world: local positions are scaled
// component-wise, rotated by Yaw radians about +Z, then translated.
type Transform struct {
	Position r3.Vec  `json:"position"`
	Scale    r3.Vec  `json:"scale"`
	Yaw      float64 `json:"yaw"`
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Scale: r3.Vec{X: 1, Y: 1, Z: 1}}
}

// Apply maps a local point to world space.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	s := r3.Vec{X: p.X * t.Scale.X, Y: p.Y * t.Scale.Y, Z: p.Z * t.Scale.Z}
	return r3.Add(t.rotate(s), t.Position)
}

// ApplyNormal maps a local normal to world space using the inverse-transpose
// of the scale.
func (t Transform) ApplyNormal(n r3.Vec) r3.Vec {
	s := r3.Vec{X: n.X / nz(t.Scale.X), Y: n.Y / nz(t.Scale.Y), Z: n.Z / nz(t.Scale.Z)}
	r := t.rotate(s)
	if l := r3.Norm(r); l > 0 {
		return r3.Scale(1/l, r)
	}
	return r
}

// Unrotate maps a world-space offset into the mesh's yaw frame.
func (t Transform) Unrotate(v r3.Vec) r3.Vec {
	c, s := math.Cos(-t.Yaw), math.Sin(-t.Yaw)
	return r3.Vec{X: c*v.X - s*v.Y, Y: s*v.X + c*v.Y, Z: v.Z}
}

func (t Transform) rotate(v r3.Vec) r3.Vec {
	if t.Yaw == 0 {
		return v
	}
	c, s := math.Cos(t.Yaw), math.Sin(t.Yaw)
	return r3.Vec{X: c*v.X - s*v.Y, Y: s*v.X + c*v.Y, Z: v.Z}
}

func nz(v float64) float64 {
	if v == 0 {
		return 1e-9
	}
	return v
}

// Mesh is an indexed triangle mesh. All arrays are flat: vertices and
// normals have 3 floats per vertex in local space, uvs and uv2 have 2 floats
// per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices  []float32 `json:"vertices"`
	Normals   []float32 `json:"normals"`
	UVs       []float32 `json:"uvs,omitempty"`
	UV2       []float32 `json:"uv2,omitempty"`
	Indices   []uint32  `json:"indices"`
	PartName  string    `json:"partName"`
	Role      Role      `json:"role"`
	Transform Transform `json:"transform"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Local returns local vertex i.
func (m *Mesh) Local(i int) r3.Vec {
	return r3.Vec{X: float64(m.Vertices[3*i]), Y: float64(m.Vertices[3*i+1]), Z: float64(m.Vertices[3*i+2])}
}

// LocalNormal returns local normal i.
func (m *Mesh) LocalNormal(i int) r3.Vec {
	return r3.Vec{X: float64(m.Normals[3*i]), Y: float64(m.Normals[3*i+1]), Z: float64(m.Normals[3*i+2])}
}

// World returns vertex i in world space.
func (m *Mesh) World(i int) r3.Vec {
	return m.Transform.Apply(m.Local(i))
}

// WorldBounds returns the world-space axis-aligned bounds of the mesh.
func (m *Mesh) WorldBounds() (min, max r3.Vec) {
	if m.IsEmpty() {
		return r3.Vec{}, r3.Vec{}
	}
	min = m.World(0)
	max = min
	for i := 1; i < m.VertexCount(); i++ {
		w := m.World(i)
		min = r3.Vec{X: math.Min(min.X, w.X), Y: math.Min(min.Y, w.Y), Z: math.Min(min.Z, w.Z)}
		max = r3.Vec{X: math.Max(max.X, w.X), Y: math.Max(max.Y, w.Y), Z: math.Max(max.Z, w.Z)}
	}
	return min, max
}

// EnsureUVs allocates UV and UV2 buffers sized to the vertex count.
func (m *Mesh) EnsureUVs() {
	n := m.VertexCount() * 2
	if len(m.UVs) != n {
		m.UVs = make([]float32, n)
	}
	if len(m.UV2) != n {
		m.UV2 = make([]float32, n)
	}
}

// Dispose drops the geometry buffers. Materials are not owned by meshes
// and are left alone.
func (m *Mesh) Dispose() {
	m.Vertices = nil
	m.Normals = nil
	m.UVs = nil
	m.UV2 = nil
	m.Indices = nil
}
