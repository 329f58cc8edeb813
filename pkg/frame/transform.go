package frame

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a rigid pose: rotation followed by translation.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// At returns an unrotated transform placed at p.
func At(p mgl64.Vec3) Transform {
	return Transform{Position: p, Rotation: mgl64.QuatIdent()}
}

// Point maps a local point into world space.
func (t Transform) Point(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(p).Add(t.Position)
}

// Direction maps a local direction into world space (no translation).
func (t Transform) Direction(v mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(v)
}

// InversePoint maps a world point into the local space of t.
func (t Transform) InversePoint(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Inverse().Rotate(p.Sub(t.Position))
}

// ApproxEqual reports whether two transforms place every point within eps.
// Quaternions q and -q describe the same rotation and compare equal.
func (t Transform) ApproxEqual(o Transform, eps float64) bool {
	if !t.Position.ApproxEqualThreshold(o.Position, eps) {
		return false
	}
	d := t.Rotation.Dot(o.Rotation)
	if d < 0 {
		d = -d
	}
	return 1-d < eps
}

func (t Transform) String() string {
	q := t.Rotation
	return fmt.Sprintf("pos(%.4f %.4f %.4f) rot(%.4f %.4f %.4f %.4f)",
		t.Position[0], t.Position[1], t.Position[2], q.W, q.V[0], q.V[1], q.V[2])
}

// Body is the rigid body a Frame hangs off. Frames read the body's current
// transform on every world-space query, so moving the body moves its frames.
type Body struct {
	t         Transform
	destroyed bool
}

// NewBody creates a live body at t.
func NewBody(t Transform) *Body {
	return &Body{t: t}
}

// Transform returns the body's current pose.
func (b *Body) Transform() Transform {
	return b.t
}

// SetTransform moves the body.
func (b *Body) SetTransform(t Transform) {
	b.t = t
}

// Destroy marks the body as gone. Frames attached to it stop resolving.
func (b *Body) Destroy() {
	b.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (b *Body) Destroyed() bool {
	return b.destroyed
}
