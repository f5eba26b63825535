// Package kernel holds the mesh representation shared by the pool builder,
// the tiling pass and the exporters, plus the abstract solid kernel used to
// produce closed volumes (ground voids, export shells). Implementations of
// the solid kernel (sdfx) live in sub-packages so the rest of the system
// never depends on a particular backend.
package kernel

import "gonum.org/v1/gonum/spatial/r2"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract solid kernel interface. It deliberately offers no
// boolean operations: pool geometry is assembled from surfaces, and solids
// are only needed as closed volumes handed to collaborators.
type Kernel interface {
	// Box creates a box with its minimum corner at the origin.
	Box(x, y, z float64) Solid

	// Prism extrudes a simple plan outline downward from Z=0 to Z=-height.
	Prism(outline []r2.Vec, height float64) (Solid, error)

	// Translate moves a solid by (x, y, z).
	Translate(s Solid, x, y, z float64) Solid

	// ToMesh tessellates a solid.
	ToMesh(s Solid) (*Mesh, error)
}
