package world

import (
	"github.com/chazu/trellis/pkg/part"
)

// RevealCloseParts returns the placed parts in the 3x3x3 cell neighbourhood
// of part id, excluding id itself.
func (w *World) RevealCloseParts(id part.ID) ([]part.ID, error) {
	p, err := w.Part(id)
	if err != nil {
		return nil, err
	}
	return w.closeTo(p), nil
}

func (w *World) closeTo(p *part.Part) []part.ID {
	var out []part.ID
	for _, id := range w.bodies.RevealClose(p.ID, p.Body.Transform().Position) {
		if id != p.ID {
			out = append(out, id)
		}
	}
	return out
}

// collides reports whether p, in its current pose, overlaps any placed
// neighbour. It always reports false unless collision checks are enabled.
func (w *World) collides(p *part.Part) (bool, part.ID) {
	if !w.cfg.CheckCollisions {
		return false, part.None
	}
	for _, id := range w.closeTo(p) {
		o, ok := w.parts[id]
		if !ok {
			continue
		}
		if overlaps(p, o, w.cfg.CollisionTolerance) || overlaps(o, p, w.cfg.CollisionTolerance) {
			return true, id
		}
	}
	return false, part.None
}

// overlaps tests a's sample points against b's solid.
func overlaps(a, b *part.Part, tolerance float64) bool {
	ta, tb := a.Body.Transform(), b.Body.Transform()
	for _, s := range a.Template.Samples {
		local := tb.InversePoint(ta.Point(s))
		if b.Template.Solid.Evaluate([3]float64(local)) < -tolerance {
			return true
		}
	}
	return false
}
