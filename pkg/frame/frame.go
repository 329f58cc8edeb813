package frame

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrDetached is returned when a frame is resolved after its body is gone.
var ErrDetached = errors.New("frame: parent body missing or destroyed")

// Frame is an oriented local coordinate system: an origin and two basis
// vectors expressed in the space of its parent body. The third axis is
// always derived as X cross Y.
type Frame struct {
	Origin mgl64.Vec3
	X      mgl64.Vec3
	Y      mgl64.Vec3
	body   *Body
}

// New creates a frame attached to body.
func New(origin, x, y mgl64.Vec3, body *Body) *Frame {
	return &Frame{Origin: origin, X: x, Y: y, body: body}
}

// Z returns the derived local normal axis.
func (f *Frame) Z() mgl64.Vec3 {
	return f.X.Cross(f.Y)
}

// Body returns the parent body.
func (f *Frame) Body() *Body {
	return f.body
}

// Clone returns an independent copy that shares the parent body.
func (f *Frame) Clone() *Frame {
	c := *f
	return &c
}

// Attach rebinds the frame to another body and returns it.
func (f *Frame) Attach(b *Body) *Frame {
	f.body = b
	return f
}

// Flip negates the Y basis, which also reverses the derived Z.
func (f *Frame) Flip() {
	f.Y = f.Y.Mul(-1)
}

// World holds a frame's values expressed in world space.
type World struct {
	Origin mgl64.Vec3
	X      mgl64.Vec3
	Y      mgl64.Vec3
	Z      mgl64.Vec3
}

// Resolve composes the parent body's transform with the local values.
func (f *Frame) Resolve() (World, error) {
	if f.body == nil || f.body.Destroyed() {
		return World{}, ErrDetached
	}
	t := f.body.Transform()
	return World{
		Origin: t.Point(f.Origin),
		X:      t.Direction(f.X),
		Y:      t.Direction(f.Y),
		Z:      t.Direction(f.Z()),
	}, nil
}

// AngleBetween returns the angle in degrees between v1 and v2, using v2
// negated when flipSecond is set. Zero-length input yields 0.
func AngleBetween(v1, v2 mgl64.Vec3, flipSecond bool) float64 {
	if flipSecond {
		v2 = v2.Mul(-1)
	}
	l := v1.Len() * v2.Len()
	if l == 0 {
		return 0
	}
	c := mgl64.Clamp(v1.Dot(v2)/l, -1, 1)
	return mgl64.RadToDeg(math.Acos(c))
}
