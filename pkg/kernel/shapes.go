package kernel

import (
	"github.com/chazu/lagoon/pkg/geom"
	"gonum.org/v1/gonum/spatial/r2"
)

// builder accumulates flat vertex/normal/index buffers.
type builder struct {
	verts   []float32
	normals []float32
	indices []uint32
}

func (b *builder) vertex(x, y, z, nx, ny, nz float64) uint32 {
	i := uint32(len(b.verts) / 3)
	b.verts = append(b.verts, float32(x), float32(y), float32(z))
	b.normals = append(b.normals, float32(nx), float32(ny), float32(nz))
	return i
}

// quad appends two triangles a-b-c, a-c-d. Vertices must be given
// counter-clockwise as seen from the side the normal points to.
func (b *builder) quad(a, bb, c, d uint32) {
	b.indices = append(b.indices, a, bb, c, a, c, d)
}

func (b *builder) mesh(role Role, name string) *Mesh {
	m := &Mesh{
		Vertices:  b.verts,
		Normals:   b.normals,
		Indices:   b.indices,
		PartName:  name,
		Role:      role,
		Transform: Identity(),
	}
	m.EnsureUVs()
	return m
}

// NewBox creates a box of the given size centred on the local origin with
// one flat-shaded quad per face.
func NewBox(sx, sy, sz float64, role Role, name string) *Mesh {
	hx, hy, hz := sx/2, sy/2, sz/2
	var b builder
	face := func(nx, ny, nz float64, corners [4][3]float64) {
		var ids [4]uint32
		for i, c := range corners {
			ids[i] = b.vertex(c[0], c[1], c[2], nx, ny, nz)
		}
		b.quad(ids[0], ids[1], ids[2], ids[3])
	}
	face(1, 0, 0, [4][3]float64{{hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}, {hx, -hy, hz}})
	face(-1, 0, 0, [4][3]float64{{-hx, hy, -hz}, {-hx, -hy, -hz}, {-hx, -hy, hz}, {-hx, hy, hz}})
	face(0, 1, 0, [4][3]float64{{hx, hy, -hz}, {-hx, hy, -hz}, {-hx, hy, hz}, {hx, hy, hz}})
	face(0, -1, 0, [4][3]float64{{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}, {-hx, -hy, hz}})
	face(0, 0, 1, [4][3]float64{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}})
	face(0, 0, -1, [4][3]float64{{-hx, hy, -hz}, {hx, hy, -hz}, {hx, -hy, -hz}, {-hx, -hy, -hz}})
	return b.mesh(role, name)
}

// NewGrid creates a regular grid in the Z=0 plane spanning the rectangle
// [minX,maxX]×[minY,maxY] with segX×segY cells. Vertices are laid out row
// by row along X so callers can address them as (ix, iy).
func NewGrid(minX, minY, maxX, maxY float64, segX, segY int, role Role, name string) *Mesh {
	segX, segY = max(segX, 1), max(segY, 1)
	var b builder
	for iy := 0; iy <= segY; iy++ {
		y := minY + (maxY-minY)*float64(iy)/float64(segY)
		for ix := 0; ix <= segX; ix++ {
			x := minX + (maxX-minX)*float64(ix)/float64(segX)
			b.vertex(x, y, 0, 0, 0, 1)
		}
	}
	row := uint32(segX + 1)
	for iy := 0; iy < segY; iy++ {
		for ix := 0; ix < segX; ix++ {
			a := uint32(iy)*row + uint32(ix)
			b.quad(a, a+1, a+1+row, a+row)
		}
	}
	return b.mesh(role, name)
}

// NewRing extrudes the band between two loops of equal length from zBottom
// to zTop. outer must wind counter-clockwise and enclose inner, with
// outer[i] corresponding to inner[i]. The inner side faces the enclosed
// area. Mismatched loops yield an empty mesh.
func NewRing(outer, inner []r2.Vec, zTop, zBottom float64, role Role, name string) *Mesh {
	var b builder
	n := len(outer)
	if n < 3 || len(inner) != n {
		return b.mesh(role, name)
	}
	outN := geom.VertexNormals(outer)
	inN := geom.VertexNormals(inner)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		o0, o1, i0, i1 := outer[i], outer[j], inner[i], inner[j]

		// Top and bottom caps.
		a := b.vertex(o0.X, o0.Y, zTop, 0, 0, 1)
		c := b.vertex(o1.X, o1.Y, zTop, 0, 0, 1)
		d := b.vertex(i1.X, i1.Y, zTop, 0, 0, 1)
		e := b.vertex(i0.X, i0.Y, zTop, 0, 0, 1)
		b.quad(a, c, d, e)

		a = b.vertex(o0.X, o0.Y, zBottom, 0, 0, -1)
		c = b.vertex(i0.X, i0.Y, zBottom, 0, 0, -1)
		d = b.vertex(i1.X, i1.Y, zBottom, 0, 0, -1)
		e = b.vertex(o1.X, o1.Y, zBottom, 0, 0, -1)
		b.quad(a, c, d, e)

		// Outer face, smooth normals from the loop.
		a = b.vertex(o0.X, o0.Y, zBottom, outN[i].X, outN[i].Y, 0)
		c = b.vertex(o1.X, o1.Y, zBottom, outN[j].X, outN[j].Y, 0)
		d = b.vertex(o1.X, o1.Y, zTop, outN[j].X, outN[j].Y, 0)
		e = b.vertex(o0.X, o0.Y, zTop, outN[i].X, outN[i].Y, 0)
		b.quad(a, c, d, e)

		// Inner face looks into the enclosed area.
		a = b.vertex(i1.X, i1.Y, zBottom, -inN[j].X, -inN[j].Y, 0)
		c = b.vertex(i0.X, i0.Y, zBottom, -inN[i].X, -inN[i].Y, 0)
		d = b.vertex(i0.X, i0.Y, zTop, -inN[i].X, -inN[i].Y, 0)
		e = b.vertex(i1.X, i1.Y, zTop, -inN[j].X, -inN[j].Y, 0)
		b.quad(a, c, d, e)
	}
	return b.mesh(role, name)
}

// NewCap triangulates a simple plan outline at height z, facing +Z.
func NewCap(outline []r2.Vec, z float64, role Role, name string) *Mesh {
	var b builder
	for _, p := range outline {
		b.vertex(p.X, p.Y, z, 0, 0, 1)
	}
	for _, i := range geom.Triangulate(outline) {
		b.indices = append(b.indices, uint32(i))
	}
	return b.mesh(role, name)
}
