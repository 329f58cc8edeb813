package frame

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vecNear(t *testing.T, want, got mgl64.Vec3, eps float64, msg string) {
	t.Helper()
	if want.Sub(got).Len() > eps {
		t.Errorf("%s: want %v, got %v", msg, want, got)
	}
}

func TestFrameZIsCrossProduct(t *testing.T) {
	f := New(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, NewBody(Identity()))
	vecNear(t, mgl64.Vec3{0, 0, 1}, f.Z(), 1e-12, "Z")
}

func TestFlipNegatesYAndZ(t *testing.T) {
	f := New(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, nil)
	f.Flip()
	vecNear(t, mgl64.Vec3{0, -1, 0}, f.Y, 1e-12, "Y")
	vecNear(t, mgl64.Vec3{0, 0, -1}, f.Z(), 1e-12, "Z")
	vecNear(t, mgl64.Vec3{1, 0, 0}, f.X, 1e-12, "X unchanged")
}

func TestCloneIsIndependentButSharesBody(t *testing.T) {
	b := NewBody(Identity())
	f := New(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, b)
	c := f.Clone()
	c.Flip()
	c.Origin = mgl64.Vec3{}

	assert.Same(t, b, c.Body())
	vecNear(t, mgl64.Vec3{0, 1, 0}, f.Y, 1e-12, "original Y")
	vecNear(t, mgl64.Vec3{1, 2, 3}, f.Origin, 1e-12, "original origin")

	other := NewBody(At(mgl64.Vec3{5, 0, 0}))
	c.Attach(other)
	assert.Same(t, b, f.Body())
	w, err := c.Resolve()
	require.NoError(t, err)
	vecNear(t, mgl64.Vec3{5, 0, 0}, w.Origin, 1e-12, "attached origin")
}

func TestResolveComposesBodyTransform(t *testing.T) {
	rot := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
	b := NewBody(Transform{Position: mgl64.Vec3{10, 0, 0}, Rotation: rot})
	f := New(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, b)

	w, err := f.Resolve()
	require.NoError(t, err)
	vecNear(t, mgl64.Vec3{10, 1, 0}, w.Origin, 1e-9, "origin")
	vecNear(t, mgl64.Vec3{0, 1, 0}, w.X, 1e-9, "X")
	vecNear(t, mgl64.Vec3{-1, 0, 0}, w.Y, 1e-9, "Y")
	vecNear(t, mgl64.Vec3{0, 0, 1}, w.Z, 1e-9, "Z")
}

func TestResolveAfterDestroy(t *testing.T) {
	b := NewBody(Identity())
	f := New(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, b)
	b.Destroy()
	_, err := f.Resolve()
	assert.ErrorIs(t, err, ErrDetached)

	_, err = New(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, nil).Resolve()
	assert.ErrorIs(t, err, ErrDetached)
}

func TestAngleBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b mgl64.Vec3
		flip bool
		want float64
	}{
		{"parallel", mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 0}, false, 0},
		{"orthogonal", mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 3, 0}, false, 90},
		{"opposite", mgl64.Vec3{0, 0, 1}, mgl64.Vec3{0, 0, -1}, false, 180},
		{"opposite flipped", mgl64.Vec3{0, 0, 1}, mgl64.Vec3{0, 0, -1}, true, 0},
		{"diagonal", mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 1, 0}, false, 45},
		{"zero", mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AngleBetween(tt.a, tt.b, tt.flip), 1e-9)
		})
	}
}

func TestAlignCoincidentFramesIsNoOp(t *testing.T) {
	start := Transform{
		Position: mgl64.Vec3{1, 2, 3},
		Rotation: mgl64.QuatRotate(0.7, mgl64.Vec3{1, 1, 0}.Normalize()),
	}
	b := NewBody(start)
	from := New(mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, b)
	to := from.Clone().Attach(NewBody(start))

	require.True(t, Align(from, to, b))
	assert.True(t, b.Transform().ApproxEqual(start, 1e-9), "got %s", b.Transform())
}

func TestAlignSimpleTranslation(t *testing.T) {
	b := NewBody(At(mgl64.Vec3{0, 3, 0}))
	from := New(mgl64.Vec3{0, -0.5, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, 1}, b)
	to := New(mgl64.Vec3{0, 0.5, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, 1}, NewBody(Identity()))

	require.True(t, Align(from, to, b))
	vecNear(t, mgl64.Vec3{0, 1, 0}, b.Transform().Position, 1e-9, "position")
}

func TestAlignAntiparallelNormals(t *testing.T) {
	b := NewBody(Identity())
	from := New(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, b)
	// Same X, reversed Z: needs a half turn about X.
	to := New(mgl64.Vec3{0, 0, 2}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, -1, 0}, NewBody(Identity()))

	require.True(t, Align(from, to, b))
	w, err := from.Resolve()
	require.NoError(t, err)
	vecNear(t, mgl64.Vec3{0, 0, 2}, w.Origin, 1e-6, "origin")
	vecNear(t, mgl64.Vec3{0, 0, -1}, w.Z, 1e-6, "Z")
	vecNear(t, mgl64.Vec3{1, 0, 0}, w.X, 1e-6, "X")
}

func randomUnit(r *rand.Rand) mgl64.Vec3 {
	for {
		v := mgl64.Vec3{r.Float64()*2 - 1, r.Float64()*2 - 1, r.Float64()*2 - 1}
		if l := v.Len(); l > 0.1 && l <= 1 {
			return v.Normalize()
		}
	}
}

func randomFrame(r *rand.Rand, b *Body) *Frame {
	x := randomUnit(r)
	// Orthonormal-ish: a perpendicular Y with a small skew.
	y := x.Cross(randomUnit(r)).Normalize().Add(x.Mul(0.05 * (r.Float64() - 0.5)))
	o := mgl64.Vec3{r.Float64()*4 - 2, r.Float64()*4 - 2, r.Float64()*4 - 2}
	return New(o, x, y, b)
}

func randomTransform(r *rand.Rand) Transform {
	return Transform{
		Position: mgl64.Vec3{r.Float64()*20 - 10, r.Float64()*20 - 10, r.Float64()*20 - 10},
		Rotation: mgl64.QuatRotate(r.Float64()*2*math.Pi, randomUnit(r)),
	}
}

func TestAlignRandomizedFramePairs(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		b := NewBody(randomTransform(r))
		from := randomFrame(r, b)
		to := randomFrame(r, NewBody(randomTransform(r)))

		require.True(t, Align(from, to, b), "iteration %d did not converge", i)

		a, err := from.Resolve()
		require.NoError(t, err)
		w, err := to.Resolve()
		require.NoError(t, err)
		assert.LessOrEqual(t, a.Origin.Sub(w.Origin).Len(), AlignEpsilon, "iteration %d origin", i)
		assert.LessOrEqual(t, AngleBetween(a.X, w.X, false), AlignEpsilon, "iteration %d X", i)
		assert.LessOrEqual(t, AngleBetween(a.Z, w.Z, false), AlignEpsilon, "iteration %d Z", i)
	}
}

func TestAlignFailsOnDetachedTarget(t *testing.T) {
	b := NewBody(Identity())
	from := New(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, b)
	gone := NewBody(Identity())
	to := New(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, gone)
	gone.Destroy()

	assert.False(t, Align(from, to, b))
}

func TestAlignFailsOnDegenerateFrame(t *testing.T) {
	b := NewBody(Identity())
	from := New(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 0}, b)
	to := New(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, NewBody(Identity()))

	assert.False(t, Align(from, to, b))
}
