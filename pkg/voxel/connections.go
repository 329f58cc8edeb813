package voxel

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ConnectionIndex buckets point-like items (connection origins) by cell.
// An item lying within Threshold of a cell face is also stored in the
// neighbour across that face, and in the edge and corner neighbours formed
// by every combination of faces that fired. A query against the single
// cell holding a probe point therefore sees every stored item that can be
// within Threshold of it.
type ConnectionIndex[T comparable] struct {
	grid      Grid
	threshold float64
	cells     [][]T
	members   map[T]mgl64.Vec3 // item -> position it was stored at
	roster    roster[T]
}

// NewConnectionIndex creates an index over grid, replicating items that
// sit within threshold of a cell boundary.
func NewConnectionIndex[T comparable](grid Grid, threshold float64) (*ConnectionIndex[T], error) {
	idx := &ConnectionIndex[T]{grid: grid, threshold: threshold}
	if err := idx.Initialize(grid.Size[0], grid.Size[1], grid.Size[2],
		grid.Offset[0], grid.Offset[1], grid.Offset[2]); err != nil {
		return nil, err
	}
	return idx, nil
}

// Initialize (re)allocates the bucket array. Any stored items are dropped.
func (idx *ConnectionIndex[T]) Initialize(sizeX, sizeY, sizeZ, offsetX, offsetY, offsetZ int) error {
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return fmt.Errorf("%w: size %dx%dx%d", ErrInvalidGrid, sizeX, sizeY, sizeZ)
	}
	if err := checkBudget(float64(sizeX), float64(sizeY), float64(sizeZ)); err != nil {
		return err
	}
	if !(idx.grid.Step > 0) {
		return fmt.Errorf("%w: step %v", ErrInvalidGrid, idx.grid.Step)
	}
	idx.grid.Size = [3]int{sizeX, sizeY, sizeZ}
	idx.grid.Offset = [3]int{offsetX, offsetY, offsetZ}
	idx.cells = make([][]T, idx.grid.Cells())
	idx.members = make(map[T]mgl64.Vec3)
	idx.roster = newRoster[T]()
	return nil
}

// Grid returns the index's grid.
func (idx *ConnectionIndex[T]) Grid() Grid {
	return idx.grid
}

// Store inserts item at pos into its cell and every neighbour it is within
// threshold of. It is a no-op returning false when pos is outside the grid.
// Storing an item that is already present moves it.
func (idx *ConnectionIndex[T]) Store(item T, pos mgl64.Vec3) bool {
	x, y, z := idx.grid.Cell(pos)
	if x < 0 || y < 0 || z < 0 {
		return false
	}
	if _, ok := idx.members[item]; ok {
		idx.Remove(item)
	}

	min, max := idx.grid.CellBounds(x, y, z)
	var offs [3][]int
	for a := 0; a < 3; a++ {
		offs[a] = []int{0}
		if pos[a]-min[a] < idx.threshold {
			offs[a] = append(offs[a], -1)
		}
		if max[a]-pos[a] < idx.threshold {
			offs[a] = append(offs[a], 1)
		}
	}

	for _, dx := range offs[0] {
		for _, dy := range offs[1] {
			for _, dz := range offs[2] {
				nx, ny, nz := x+dx, y+dy, z+dz
				if !idx.grid.Contains(nx, ny, nz) {
					continue
				}
				a := idx.grid.addr(nx, ny, nz)
				if !contains(idx.cells[a], item) {
					idx.cells[a] = append(idx.cells[a], item)
				}
			}
		}
	}
	idx.members[item] = pos
	idx.roster.add(item)
	return true
}

// Remove deletes item from every cell of the 3x3x3 block around the cell
// it was stored in, whether or not it was replicated there.
func (idx *ConnectionIndex[T]) Remove(item T) bool {
	pos, ok := idx.members[item]
	if !ok {
		return false
	}
	delete(idx.members, item)
	idx.roster.remove(item)

	idx.around(pos, func(a int) {
		idx.cells[a], _ = removeFrom(idx.cells[a], item)
	})
	return true
}

// around calls fn with the address of every in-grid cell of the 3x3x3
// block centred on the cell holding pos.
func (idx *ConnectionIndex[T]) around(pos mgl64.Vec3, fn func(addr int)) {
	x, y, z := idx.grid.Cell(pos)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				nx, ny, nz := x+dx, y+dy, z+dz
				if idx.grid.Contains(nx, ny, nz) {
					fn(idx.grid.addr(nx, ny, nz))
				}
			}
		}
	}
}

// RevealAtCell returns the bucket of exactly the cell containing pos, or
// nil outside the grid. The slice is the live bucket: callers must not
// modify it or hold it across Store/Remove.
func (idx *ConnectionIndex[T]) RevealAtCell(pos mgl64.Vec3) []T {
	x, y, z := idx.grid.Cell(pos)
	if x < 0 || y < 0 || z < 0 {
		return nil
	}
	return idx.cells[idx.grid.addr(x, y, z)]
}

// RevealAll returns every stored item once, in the order they were stored.
func (idx *ConnectionIndex[T]) RevealAll() []T {
	return idx.roster.all()
}

// RemoveAll empties the index without reallocating it. Only the cells
// around stored items are touched.
func (idx *ConnectionIndex[T]) RemoveAll() {
	for _, item := range idx.roster.order {
		idx.around(idx.members[item], func(a int) {
			clear(idx.cells[a])
			idx.cells[a] = idx.cells[a][:0]
		})
	}
	clear(idx.members)
	idx.roster.reset()
}

// Count returns the number of distinct stored items.
func (idx *ConnectionIndex[T]) Count() int {
	return len(idx.members)
}

// Contains reports whether item is currently stored.
func (idx *ConnectionIndex[T]) Contains(item T) bool {
	_, ok := idx.members[item]
	return ok
}
