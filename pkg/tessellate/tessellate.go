// Package tessellate turns the placed parts of an aggregation into triangle
// meshes using the world's geometry kernel. One mesh is produced per part.
package tessellate

import (
	"fmt"
	"math"

	"github.com/chazu/trellis/pkg/frame"
	"github.com/chazu/trellis/pkg/kernel"
	"github.com/chazu/trellis/pkg/part"
	"github.com/chazu/trellis/pkg/world"
)

// Tessellate meshes every placed part of w in id order, each template solid
// posed by its part's transform. Free parts are skipped. The tessellator is
// read-only and never mutates the world.
func Tessellate(w *world.World) ([]*kernel.Mesh, error) {
	if w == nil {
		return nil, nil
	}
	k := w.Kernel()

	var meshes []*kernel.Mesh
	for _, p := range w.PlacedParts() {
		m, err := partMesh(k, p)
		if err != nil {
			return nil, fmt.Errorf("tessellate: part %s: %w", p, err)
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

// partMesh applies rotation first, then translation, the same order as
// frame.Transform.Point.
func partMesh(k kernel.Kernel, p *part.Part) (*kernel.Mesh, error) {
	solid := p.Template.Solid
	tr := p.Body.Transform()

	if axis, angle, ok := axisAngle(tr); ok {
		solid = k.Rotate(solid, axis, angle)
	}
	if pos := tr.Position; pos[0] != 0 || pos[1] != 0 || pos[2] != 0 {
		solid = k.Translate(solid, pos[0], pos[1], pos[2])
	}

	mesh, err := k.ToMesh(solid)
	if err != nil {
		return nil, err
	}
	mesh.PartName = fmt.Sprintf("%s#%d", p.Name(), p.ID)
	return mesh, nil
}

// axisAngle decomposes the rotation of tr. It reports false for a rotation
// too small to matter.
func axisAngle(tr frame.Transform) ([3]float64, float64, bool) {
	q := tr.Rotation.Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	s := math.Sqrt(1 - math.Min(1, q.W*q.W))
	if s < 1e-9 {
		return [3]float64{}, 0, false
	}
	angle := 2 * math.Acos(math.Min(1, q.W))
	return [3]float64{q.V[0] / s, q.V[1] / s, q.V[2] / s}, angle, true
}
