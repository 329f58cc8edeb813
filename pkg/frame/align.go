package frame

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AlignEpsilon bounds the residual accepted by Align, in world units for
// origins and degrees for axes.
const AlignEpsilon = 1e-3

// Align moves body so that from, read through the body's new pose, coincides
// with to: same world origin, same X and same Z direction. The orientation
// pass runs twice; the second pass starts from the first one's result and
// removes whatever residual the first left behind.
//
// Align returns false when the frames still differ by more than AlignEpsilon
// or either frame cannot be resolved. It never restores the previous pose;
// that is up to the caller.
func Align(from, to *Frame, body *Body) bool {
	if body == nil || body.Destroyed() {
		return false
	}
	// TODO: derive the rotation in closed form and drop the second pass once
	// the antiparallel branch is covered by a dedicated test corpus.
	if !tryOrient(from, to, body) {
		return false
	}
	if !tryOrient(from, to, body) {
		return false
	}
	return converged(from, to)
}

// tryOrient rotates body so from's Z matches to's Z, then twists around that
// axis so the X axes agree, then translates the origins together.
func tryOrient(from, to *Frame, body *Body) bool {
	target, err := to.Resolve()
	if err != nil {
		return false
	}
	tz := target.Z.Normalize()
	if tz.Len() == 0 || from.Z().Len() == 0 {
		return false
	}

	t := body.Transform()
	z := t.Direction(from.Z()).Normalize()
	rot := rotationBetween(z, tz).Mul(t.Rotation)

	x := planar(rot.Rotate(from.X), tz)
	tx := planar(target.X, tz)
	if x.Len() > 1e-12 && tx.Len() > 1e-12 {
		rot = mgl64.QuatRotate(signedAngle(x, tx, tz), tz).Mul(rot)
	}
	rot = rot.Normalize()

	body.SetTransform(Transform{
		Position: target.Origin.Sub(rot.Rotate(from.Origin)),
		Rotation: rot,
	})
	return true
}

func converged(from, to *Frame) bool {
	a, err := from.Resolve()
	if err != nil {
		return false
	}
	b, err := to.Resolve()
	if err != nil {
		return false
	}
	if a.Origin.Sub(b.Origin).Len() > AlignEpsilon {
		return false
	}
	if AngleBetween(a.X, b.X, false) > AlignEpsilon {
		return false
	}
	return AngleBetween(a.Z, b.Z, false) <= AlignEpsilon
}

// rotationBetween returns the shortest rotation taking unit vector a onto b.
func rotationBetween(a, b mgl64.Vec3) mgl64.Quat {
	axis := a.Cross(b)
	s := axis.Len()
	c := a.Dot(b)
	if s < 1e-12 {
		if c > 0 {
			return mgl64.QuatIdent()
		}
		// Antiparallel: half turn about any perpendicular.
		perp := a.Cross(mgl64.Vec3{1, 0, 0})
		if perp.Len() < 1e-6 {
			perp = a.Cross(mgl64.Vec3{0, 1, 0})
		}
		return mgl64.QuatRotate(math.Pi, perp.Normalize())
	}
	return mgl64.QuatRotate(math.Atan2(s, c), axis.Mul(1/s))
}

// planar projects v onto the plane orthogonal to unit vector n.
func planar(v, n mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(n.Mul(v.Dot(n)))
}

// signedAngle is the angle in radians from a to b, measured around n.
func signedAngle(a, b, n mgl64.Vec3) float64 {
	return math.Atan2(a.Cross(b).Dot(n), a.Dot(b))
}
