package world

import (
	"io"
	"math"
	"testing"

	"github.com/chazu/trellis/pkg/catalog"
	"github.com/chazu/trellis/pkg/config"
	"github.com/chazu/trellis/pkg/frame"
	"github.com/chazu/trellis/pkg/kernel/sdfx"
	"github.com/chazu/trellis/pkg/part"
	"github.com/chazu/trellis/pkg/voxel"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var unitBox = catalog.GeometryDef{Kind: catalog.GeometryBox, Size: mgl64.Vec3{1, 1, 1}}

// top and bottom are face connections of a unit box, normals pointing out.
func top(id int) catalog.ConnectionDef {
	return catalog.ConnectionDef{ID: id, Type: "A", Origin: mgl64.Vec3{0, 0, 0.5}, X: mgl64.Vec3{1, 0, 0}, Y: mgl64.Vec3{0, 1, 0}}
}

func bottom(id int) catalog.ConnectionDef {
	return catalog.ConnectionDef{ID: id, Type: "A", Origin: mgl64.Vec3{0, 0, -0.5}, X: mgl64.Vec3{1, 0, 0}, Y: mgl64.Vec3{0, -1, 0}}
}

// scenarioCatalog has a "base" with one upward connection and a "cube"
// with one downward connection, plus a rule base:0 -> cube:0.
func scenarioCatalog(active bool) *catalog.Catalog {
	c := catalog.New()
	c.AddTemplate(catalog.TemplateDef{Name: "base", Geometry: unitBox, Connections: []catalog.ConnectionDef{top(0)}})
	c.AddTemplate(catalog.TemplateDef{Name: "cube", Geometry: unitBox, Connections: []catalog.ConnectionDef{bottom(0)}})
	c.AddRule(catalog.RuleDef{
		A:      catalog.ConnKey{Part: "base", ID: 0},
		B:      catalog.ConnKey{Part: "cube", ID: 0},
		Active: active,
		Group:  "stack",
	})
	return c
}

func newWorld(t *testing.T, cat *catalog.Catalog, mutate ...func(*config.Config)) *World {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(&cfg)
	}
	w, err := New(cfg, cat, sdfx.New(), quietLogger())
	require.NoError(t, err)
	return w
}

func spawnRoot(t *testing.T, w *World, name string, tr frame.Transform) *part.Part {
	t.Helper()
	id, err := w.Spawn(Root(name, tr))
	require.NoError(t, err)
	p, err := w.Part(id)
	require.NoError(t, err)
	return p
}

func spawnFree(t *testing.T, w *World, name string, tr frame.Transform) *part.Part {
	t.Helper()
	id, err := w.Spawn(TokenPlain{Template: name, Transform: tr})
	require.NoError(t, err)
	p, err := w.Part(id)
	require.NoError(t, err)
	return p
}

func rotZ(deg float64, pos mgl64.Vec3) frame.Transform {
	return frame.Transform{Position: pos, Rotation: mgl64.QuatRotate(mgl64.DegToRad(deg), mgl64.Vec3{0, 0, 1})}
}

func TestNew(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	assert.Len(t, w.Templates(), 2)
	assert.Equal(t, "base", w.Templates()[0].Name)
	assert.Len(t, w.Rules(), 1)
	assert.Equal(t, []string{"stack"}, w.RuleGroups())
	assert.True(t, w.Scanning())
	assert.Empty(t, w.OpenConnections())

	_, err := w.Template("wedge")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(config.Default(), catalog.New(), sdfx.New(), quietLogger())
	assert.ErrorIs(t, err, catalog.ErrEmptyCatalog)

	cat := scenarioCatalog(true)
	cat.AddRule(catalog.RuleDef{A: catalog.ConnKey{Part: "base", ID: 4}, B: catalog.ConnKey{Part: "cube", ID: 0}})
	_, err = New(config.Default(), cat, sdfx.New(), quietLogger())
	assert.ErrorContains(t, err, "invalid catalog")

	cfg := config.Default()
	cfg.ConnectionThreshold = 0
	_, err = New(cfg, scenarioCatalog(true), sdfx.New(), quietLogger())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewDefaultConfigFitsCellBudget(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	assert.LessOrEqual(t, w.conns.Grid().Cells(), voxel.MaxCells)
	assert.LessOrEqual(t, w.bodies.Grid().Cells(), voxel.MaxCells)

	cfg := config.Default()
	cfg.Region.Min = [3]float64{-50, -50, -50}
	cfg.Region.Max = [3]float64{50, 50, 50}
	_, err := New(cfg, scenarioCatalog(true), sdfx.New(), quietLogger())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestSpawnRootWithoutConnections(t *testing.T) {
	cat := scenarioCatalog(true)
	cat.AddTemplate(catalog.TemplateDef{Name: "ballast", Geometry: unitBox})
	w := newWorld(t, cat)

	id, err := w.Spawn(Root("ballast", frame.At(mgl64.Vec3{4, 0, 0})))
	require.NoError(t, err)
	p, err := w.Part(id)
	require.NoError(t, err)
	assert.True(t, p.Frozen)
	assert.Empty(t, p.Connections)
	assert.Empty(t, w.OpenConnections())
	assert.Equal(t, []*part.Part{p}, w.PlacedParts())
}

func TestSpawnRootIndexesOpenConnections(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	base := spawnRoot(t, w, "base", frame.Identity())

	assert.True(t, base.Frozen)
	assert.Equal(t, part.None, base.Parent)
	assert.True(t, w.IsOpen(base.Connections[0]))
	assert.Len(t, w.OpenConnections(), 1)

	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{3, 0, 0}))
	assert.False(t, cube.Frozen)
	assert.False(t, w.IsOpen(cube.Connections[0]), "free parts are not indexed")
	assert.Equal(t, []*part.Part{cube}, w.FreeParts())
	assert.Equal(t, []*part.Part{base}, w.PlacedParts())
}

func TestSpawnErrors(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	_, err := w.Spawn(TokenPlain{Template: "wedge"})
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	_, err = w.Spawn(TokenParented{Template: "cube", Parent: 42})
	assert.ErrorIs(t, err, ErrUnknownPart)

	free := spawnFree(t, w, "base", frame.Identity())
	_, err = w.Spawn(TokenParented{Template: "cube", Parent: free.ID})
	assert.ErrorContains(t, err, "not placed")

	base := spawnRoot(t, w, "base", frame.Identity())
	_, err = w.Spawn(TokenParented{Template: "cube", Parent: base.ID, ParentConn: 3})
	assert.ErrorContains(t, err, "out of range")
	_, err = w.Spawn(TokenParented{Template: "cube", Parent: base.ID, Conn: 3})
	assert.ErrorContains(t, err, "out of range")
}

func TestSpawnParented(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	base := spawnRoot(t, w, "base", frame.Identity())

	id, err := w.Spawn(TokenParented{
		Template:  "cube",
		Transform: frame.At(mgl64.Vec3{0, 0, 1}),
		Parent:    base.ID,
	})
	require.NoError(t, err)
	cube, err := w.Part(id)
	require.NoError(t, err)

	assert.True(t, cube.Frozen)
	assert.Equal(t, base.ID, cube.Parent)
	assert.Equal(t, []part.ID{cube.ID}, base.Children)
	assert.False(t, base.IsActive(0))
	assert.False(t, cube.IsActive(0))
	assert.Empty(t, w.OpenConnections())

	// The parent connection is now taken.
	_, err = w.Spawn(TokenParented{Template: "cube", Parent: base.ID})
	assert.ErrorContains(t, err, "not open")
}

func TestActivateDeactivate(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	base := spawnRoot(t, w, "base", frame.Identity())
	c := base.Connections[0]

	require.NoError(t, w.Deactivate(c))
	assert.False(t, base.IsActive(0))
	assert.False(t, w.IsOpen(c))

	require.NoError(t, w.Activate(c))
	assert.True(t, base.IsActive(0))
	assert.True(t, w.IsOpen(c))

	free := spawnFree(t, w, "cube", frame.Identity())
	require.NoError(t, w.Deactivate(free.Connections[0]))
	require.NoError(t, w.Activate(free.Connections[0]))
	assert.True(t, free.IsActive(0))
	assert.False(t, w.IsOpen(free.Connections[0]))

	tpl, err := w.Template("cube")
	require.NoError(t, err)
	assert.ErrorIs(t, w.Activate(tpl.Connections[0]), ErrUnknownPart)
}

func TestCubeSnapsOntoBaseInOneTick(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	base := spawnRoot(t, w, "base", frame.Identity())
	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0.02, 0, 1.03}))

	assert.Equal(t, 1, w.Tick())

	assert.True(t, cube.Frozen)
	assert.Equal(t, base.ID, cube.Parent)
	assert.Equal(t, []part.ID{cube.ID}, base.Children)
	assert.Equal(t, []part.Joint{{Conn: 0, Other: base.ID, OtherConn: 0}}, cube.JointsWith(base.ID))
	assert.False(t, w.IsOpen(base.Connections[0]))
	assert.False(t, w.IsOpen(cube.Connections[0]))
	assert.Empty(t, w.OpenConnections())
	assert.True(t, cube.Body.Transform().ApproxEqual(frame.At(mgl64.Vec3{0, 0, 1}), 1e-6),
		"cube at %v", cube.Body.Transform())

	// Placed parts are no longer scanned.
	_, err := w.TryFindAndRealizeConnection(cube.ID)
	assert.ErrorIs(t, err, ErrPartFrozen)
	assert.Zero(t, w.Tick())
}

func TestInactiveRuleNeverMatches(t *testing.T) {
	w := newWorld(t, scenarioCatalog(false))
	base := spawnRoot(t, w, "base", frame.Identity())
	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0, 0, 1}))

	for i := 0; i < 3; i++ {
		assert.Zero(t, w.Tick())
	}
	out, err := w.TryFindAndRealizeConnection(cube.ID)
	require.NoError(t, err)
	assert.Equal(t, NotMatched, out)
	assert.False(t, cube.Frozen)
	assert.True(t, w.IsOpen(base.Connections[0]))

	require.NoError(t, w.SetRuleActive(0, true))
	out, err = w.TryFindAndRealizeConnection(cube.ID)
	require.NoError(t, err)
	assert.Equal(t, Matched, out)
}

func TestOutOfThresholdNeverMatches(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	spawnRoot(t, w, "base", frame.Identity())
	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0, 0, 1.15}))

	assert.Zero(t, w.Tick())
	assert.False(t, cube.Frozen)
}

func TestSteepAngleIsRejected(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	spawnRoot(t, w, "base", frame.Identity())

	// Tilted 60 degrees about X around the connection point: the origins
	// coincide but the angular penalty alone exceeds the threshold.
	rot := mgl64.QuatRotate(mgl64.DegToRad(60), mgl64.Vec3{1, 0, 0})
	pos := mgl64.Vec3{0, 0, 0.5}.Sub(rot.Rotate(mgl64.Vec3{0, 0, -0.5}))
	cube := spawnFree(t, w, "cube", frame.Transform{Position: pos, Rotation: rot})

	assert.Zero(t, w.Tick())
	assert.False(t, cube.Frozen)
}

func TestMatrixGateOverridesProximity(t *testing.T) {
	cat := scenarioCatalog(true)
	cat.AddTemplate(catalog.TemplateDef{Name: "slab", Geometry: unitBox, Connections: []catalog.ConnectionDef{top(0)}})
	cat.AddRule(catalog.RuleDef{
		A:      catalog.ConnKey{Part: "slab", ID: 0},
		B:      catalog.ConnKey{Part: "cube", ID: 0},
		Active: true,
	})
	w := newWorld(t, cat)
	base := spawnRoot(t, w, "base", frame.Identity())
	slab := spawnRoot(t, w, "slab", frame.At(mgl64.Vec3{0.05, 0, 0}))
	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0.01, 0, 1.02}))

	// Clear the base -> cube cell while leaving the rule itself active, so
	// only the matrix stands between the cube and the nearer base.
	w.rules.Matrix.Set(base.Connections[0].MatrixID, cube.Connections[0].MatrixID, false)

	assert.Equal(t, 1, w.Tick())
	assert.Equal(t, slab.ID, cube.Parent)
	assert.True(t, w.IsOpen(base.Connections[0]))
}

func TestTwistBreaksTies(t *testing.T) {
	for _, lowFirst := range []bool{true, false} {
		w := newWorld(t, scenarioCatalog(true))
		var low, high *part.Part
		if lowFirst {
			low = spawnRoot(t, w, "base", rotZ(10, mgl64.Vec3{0.04, 0, 0}))
			high = spawnRoot(t, w, "base", rotZ(30, mgl64.Vec3{-0.04, 0, 0}))
		} else {
			high = spawnRoot(t, w, "base", rotZ(30, mgl64.Vec3{-0.04, 0, 0}))
			low = spawnRoot(t, w, "base", rotZ(10, mgl64.Vec3{0.04, 0, 0}))
		}
		cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0, 0, 1.02}))

		m, ok := w.search(cube)
		require.True(t, ok)
		assert.Equal(t, low.ID, m.target.Owner, "lowFirst=%v", lowFirst)

		assert.Equal(t, 1, w.Tick())
		assert.Equal(t, low.ID, cube.Parent)
		assert.True(t, w.IsOpen(high.Connections[0]))
		got := frame.AngleBetween(cube.Body.Transform().Direction(mgl64.Vec3{1, 0, 0}), mgl64.Vec3{1, 0, 0}, false)
		assert.InDelta(t, 10, got, 1e-3)
	}
}

func TestSearchScoreOrdering(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	spawnRoot(t, w, "base", rotZ(20, mgl64.Vec3{}))
	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0.03, 0, 1}))

	m, ok := w.search(cube)
	require.True(t, ok)
	cfg := w.Config()
	want := 0.03 +
		cfg.AnglePenaltyScale*math.Pow(cfg.AngleBase, 0-cfg.AngleOffset) +
		20*10*cfg.ConnectionThreshold/1000*cfg.ConnectionThreshold
	assert.InDelta(t, want, m.score, 1e-9)
}

func TestTickTwoPhaseSharesTarget(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	base := spawnRoot(t, w, "base", frame.Identity())
	a := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0.01, 0, 1}))
	b := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{-0.01, 0, 1}))

	// Both find the single base connection; only the first realizes.
	assert.Equal(t, 1, w.Tick())
	assert.True(t, a.Frozen)
	assert.False(t, b.Frozen)
	assert.Equal(t, []part.ID{a.ID}, base.Children)
	assert.Zero(t, w.Tick())
}

func TestScanningDisabled(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true), func(c *config.Config) { c.Scanning = false })
	spawnRoot(t, w, "base", frame.Identity())
	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0, 0, 1}))

	assert.Zero(t, w.Tick())
	out, err := w.TryFindAndRealizeConnection(cube.ID)
	require.NoError(t, err)
	assert.Equal(t, NotMatched, out)

	w.SetScanning(true)
	assert.Equal(t, 1, w.Tick())
}

func TestTryFindUnknownPart(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	_, err := w.TryFindAndRealizeConnection(9)
	assert.ErrorIs(t, err, ErrUnknownPart)
}

func TestDeleteParentReopensChildConnections(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	base := spawnRoot(t, w, "base", frame.Identity())
	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0, 0, 1.01}))
	require.Equal(t, 1, w.Tick())
	require.False(t, w.IsOpen(cube.Connections[0]))

	require.NoError(t, w.Delete(base.ID))

	assert.True(t, cube.Frozen, "children stay placed")
	assert.Equal(t, part.None, cube.Parent)
	assert.True(t, cube.IsActive(0))
	assert.True(t, w.IsOpen(cube.Connections[0]))
	assert.Empty(t, cube.Joints)
	assert.True(t, base.Body.Destroyed())
	assert.False(t, w.IsOpen(base.Connections[0]))
	_, err := w.Part(base.ID)
	assert.ErrorIs(t, err, ErrUnknownPart)
	assert.ErrorIs(t, w.Delete(base.ID), ErrUnknownPart)
}

func TestDeleteChildReopensParentConnection(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	base := spawnRoot(t, w, "base", frame.Identity())
	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0, 0, 1.01}))
	require.Equal(t, 1, w.Tick())

	require.NoError(t, w.Delete(cube.ID))
	assert.Empty(t, base.Children)
	assert.True(t, w.IsOpen(base.Connections[0]))

	// The freed connection accepts a new cube.
	again := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0, 0.02, 1}))
	assert.Equal(t, 1, w.Tick())
	assert.Equal(t, base.ID, again.Parent)
}

func TestDeleteFreePart(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	cube := spawnFree(t, w, "cube", frame.Identity())
	require.NoError(t, w.Delete(cube.ID))
	assert.Empty(t, w.Parts())
}

func TestRevealCloseParts(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	a := spawnRoot(t, w, "base", frame.Identity())
	b := spawnRoot(t, w, "base", frame.At(mgl64.Vec3{1, 0, 0}))
	spawnRoot(t, w, "base", frame.At(mgl64.Vec3{20, 0, 0}))

	near, err := w.RevealCloseParts(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []part.ID{b.ID}, near)

	_, err = w.RevealCloseParts(99)
	assert.ErrorIs(t, err, ErrUnknownPart)
}

func TestCollisionRejectsOverlappingPlacement(t *testing.T) {
	cat := scenarioCatalog(true)
	cat.AddTemplate(catalog.TemplateDef{Name: "block", Geometry: unitBox})

	setup := func(check bool) (*World, *part.Part) {
		w := newWorld(t, cat, func(c *config.Config) { c.CheckCollisions = check })
		spawnRoot(t, w, "base", frame.Identity())
		spawnRoot(t, w, "block", frame.At(mgl64.Vec3{0.3, 0, 1}))
		return w, spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0, 0, 1.02}))
	}

	w, cube := setup(true)
	assert.Zero(t, w.Tick())
	assert.False(t, cube.Frozen)
	assert.True(t, cube.Body.Transform().ApproxEqual(frame.At(mgl64.Vec3{0, 0, 1.02}), 1e-12),
		"pose rolled back")

	w, cube = setup(false)
	assert.Equal(t, 1, w.Tick())
	assert.True(t, cube.Frozen)
}

func TestCollisionIgnoresTouchingFaces(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true), func(c *config.Config) { c.CheckCollisions = true })
	spawnRoot(t, w, "base", frame.Identity())
	spawnRoot(t, w, "base", frame.At(mgl64.Vec3{1, 0, 1}))
	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0, 0, 1.02}))

	assert.Equal(t, 1, w.Tick())
	assert.True(t, cube.Frozen)
}

func TestRuleGroupsAndReload(t *testing.T) {
	w := newWorld(t, scenarioCatalog(true))
	base := spawnRoot(t, w, "base", frame.Identity())
	cube := spawnFree(t, w, "cube", frame.At(mgl64.Vec3{0, 0, 1}))

	assert.Equal(t, 1, w.SetRuleGroupActive("stack", false))
	assert.Zero(t, w.Tick())
	assert.Zero(t, w.SetRuleGroupActive("nope", true))

	require.NoError(t, w.ReloadRules([]catalog.RuleDef{{
		A:      catalog.ConnKey{Part: "base", ID: 0},
		B:      catalog.ConnKey{Part: "cube", ID: 0},
		Active: true,
	}}))
	assert.Equal(t, []int{0}, base.Connections[0].RuleTable())
	assert.Equal(t, 1, w.Tick())
	assert.True(t, cube.Frozen)

	err := w.ReloadRules([]catalog.RuleDef{{A: catalog.ConnKey{Part: "ghost"}, B: catalog.ConnKey{Part: "cube"}}})
	assert.Error(t, err)
	assert.Len(t, w.Rules(), 1, "failed reload keeps the old rules")
	assert.ErrorContains(t, w.SetRuleActive(5, true), "out of range")
}
