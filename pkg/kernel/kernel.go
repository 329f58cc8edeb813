// Package kernel defines the abstract geometry kernel interface used for
// part template solids. Templates need three things from geometry: a
// bounding box (grid sizing), a signed distance query (narrow-phase
// overlap tests) and a triangle mesh (export). The abstraction keeps the
// rest of the system independent of the backend.
package kernel

import "math"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
	// Evaluate returns the signed distance from p to the surface:
	// negative inside, positive outside.
	Evaluate(p [3]float64) float64
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives, centred on the origin.
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error) // axis along Z

	// Boolean operations
	Union(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, axis [3]float64, angle float64) Solid // radians, right hand rule

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}

// Diagonal returns the length of a solid's bounding box diagonal.
func Diagonal(s Solid) float64 {
	min, max := s.BoundingBox()
	var sum float64
	for i := 0; i < 3; i++ {
		d := max[i] - min[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
