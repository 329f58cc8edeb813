// Package voxel provides uniform 3D bucket grids for proximity queries:
// one for connection points with boundary replication, one for whole
// bodies with clamped placement.
package voxel

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidGrid is returned for a non-positive step, an empty region or
// a region too large for the cell budget.
var ErrInvalidGrid = errors.New("voxel: invalid grid")

// MaxCells bounds the bucket array of a single grid.
const MaxCells = 1 << 23

// Grid maps world coordinates to cell indices:
// index = floor(coord / Step) - Offset, valid in [0, Size).
type Grid struct {
	Step   float64
	Offset [3]int
	Size   [3]int
}

// NewGrid returns the grid of the given step covering [min, max].
func NewGrid(step float64, min, max mgl64.Vec3) (Grid, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return Grid{}, fmt.Errorf("%w: step %v", ErrInvalidGrid, step)
	}
	var lo, n [3]float64
	for a := 0; a < 3; a++ {
		if !(max[a] >= min[a]) {
			return Grid{}, fmt.Errorf("%w: region max %v below min %v", ErrInvalidGrid, max, min)
		}
		lo[a] = math.Floor(min[a] / step)
		n[a] = math.Floor(max[a]/step) - lo[a] + 1
	}
	if err := checkBudget(n[0], n[1], n[2]); err != nil {
		return Grid{}, err
	}
	g := Grid{Step: step}
	for a := 0; a < 3; a++ {
		g.Offset[a] = int(lo[a])
		g.Size[a] = int(n[a])
	}
	return g, nil
}

// CellsFor returns how many cells a grid of step over [min, max] would
// have, without allocating or bounds-checking it.
func CellsFor(step float64, min, max mgl64.Vec3) float64 {
	n := 1.0
	for a := 0; a < 3; a++ {
		n *= math.Floor(max[a]/step) - math.Floor(min[a]/step) + 1
	}
	return n
}

func checkBudget(sx, sy, sz float64) error {
	if n := sx * sy * sz; !(n <= MaxCells) {
		return fmt.Errorf("%w: %.0f cells exceed budget %d", ErrInvalidGrid, n, MaxCells)
	}
	return nil
}

// Cells returns the total number of cells.
func (g Grid) Cells() int {
	return g.Size[0] * g.Size[1] * g.Size[2]
}

// Valid reports whether the grid has been sized.
func (g Grid) Valid() bool {
	return g.Step > 0 && g.Size[0] > 0 && g.Size[1] > 0 && g.Size[2] > 0
}

// axis returns the unclamped cell index of v along axis a.
func (g Grid) axis(v float64, a int) int {
	return int(math.Floor(v/g.Step)) - g.Offset[a]
}

// Cell returns the cell containing pos. Each component is -1 when pos lies
// outside the grid along that axis.
func (g Grid) Cell(pos mgl64.Vec3) (x, y, z int) {
	var c [3]int
	for a := 0; a < 3; a++ {
		i := g.axis(pos[a], a)
		if i < 0 || i >= g.Size[a] {
			i = -1
		}
		c[a] = i
	}
	return c[0], c[1], c[2]
}

// Clamp returns the cell containing pos, pulled to the nearest valid cell.
func (g Grid) Clamp(pos mgl64.Vec3) [3]int {
	var c [3]int
	for a := 0; a < 3; a++ {
		c[a] = clampInt(g.axis(pos[a], a), 0, g.Size[a]-1)
	}
	return c
}

// Contains reports whether cell coordinates are inside the grid.
func (g Grid) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < g.Size[0] && y < g.Size[1] && z < g.Size[2]
}

// CellBounds returns the world-space corners of a cell.
func (g Grid) CellBounds(x, y, z int) (min, max mgl64.Vec3) {
	c := [3]int{x, y, z}
	for a := 0; a < 3; a++ {
		min[a] = float64(c[a]+g.Offset[a]) * g.Step
		max[a] = min[a] + g.Step
	}
	return min, max
}

// addr flattens cell coordinates: x + (y + z*sy) * sx.
func (g Grid) addr(x, y, z int) int {
	return x + (y+z*g.Size[1])*g.Size[0]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roster keeps the stored members of an index in insertion order so that
// enumeration and clearing cost O(members) rather than O(cells).
type roster[T comparable] struct {
	order []T
	slot  map[T]int
}

func newRoster[T comparable]() roster[T] {
	return roster[T]{slot: make(map[T]int)}
}

func (r *roster[T]) add(item T) {
	r.slot[item] = len(r.order)
	r.order = append(r.order, item)
}

func (r *roster[T]) remove(item T) {
	i, ok := r.slot[item]
	if !ok {
		return
	}
	delete(r.slot, item)
	r.order = slices.Delete(r.order, i, i+1)
	for j := i; j < len(r.order); j++ {
		r.slot[r.order[j]] = j
	}
}

func (r *roster[T]) all() []T {
	return slices.Clone(r.order)
}

func (r *roster[T]) reset() {
	clear(r.order)
	r.order = r.order[:0]
	clear(r.slot)
}

// removeFrom swap-removes every occurrence of item and reports whether any
// were found.
func removeFrom[T comparable](bucket []T, item T) ([]T, bool) {
	found := false
	for i := 0; i < len(bucket); {
		if bucket[i] == item {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			var zero T
			bucket[last] = zero
			bucket = bucket[:last]
			found = true
			continue
		}
		i++
	}
	return bucket, found
}

func contains[T comparable](bucket []T, item T) bool {
	for _, b := range bucket {
		if b == item {
			return true
		}
	}
	return false
}
