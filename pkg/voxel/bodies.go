package voxel

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyIndex buckets whole bodies by the cell of their position. Positions
// outside the grid are clamped to the nearest cell, and the cell used is
// remembered so removal hits the same bucket even after the body moved.
type BodyIndex[T comparable] struct {
	grid   Grid
	cells  [][]T
	placed map[T][3]int
	roster roster[T]
}

// NewBodyIndex creates a body index over grid.
func NewBodyIndex[T comparable](grid Grid) (*BodyIndex[T], error) {
	idx := &BodyIndex[T]{grid: grid}
	if err := idx.Initialize(grid.Size[0], grid.Size[1], grid.Size[2],
		grid.Offset[0], grid.Offset[1], grid.Offset[2]); err != nil {
		return nil, err
	}
	return idx, nil
}

// Initialize (re)allocates the bucket array. Any stored bodies are dropped.
func (idx *BodyIndex[T]) Initialize(sizeX, sizeY, sizeZ, offsetX, offsetY, offsetZ int) error {
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
	idx.placed = make(map[T][3]int)
	idx.roster = newRoster[T]()
	return nil
}

// Grid returns the index's grid.
func (idx *BodyIndex[T]) Grid() Grid {
	return idx.grid
}

// Store files item under the (clamped) cell of pos. Storing an item that
// is already present moves it.
func (idx *BodyIndex[T]) Store(item T, pos mgl64.Vec3) {
	if _, ok := idx.placed[item]; ok {
		idx.Remove(item)
	}
	c := idx.grid.Clamp(pos)
	a := idx.grid.addr(c[0], c[1], c[2])
	idx.cells[a] = append(idx.cells[a], item)
	idx.placed[item] = c
	idx.roster.add(item)
}

// Remove deletes item from the cell it was stored in.
func (idx *BodyIndex[T]) Remove(item T) bool {
	c, ok := idx.placed[item]
	if !ok {
		return false
	}
	delete(idx.placed, item)
	idx.roster.remove(item)
	a := idx.grid.addr(c[0], c[1], c[2])
	idx.cells[a], _ = removeFrom(idx.cells[a], item)
	return true
}

// CellOf returns the cached cell of a stored item.
func (idx *BodyIndex[T]) CellOf(item T) ([3]int, bool) {
	c, ok := idx.placed[item]
	return c, ok
}

// RevealClose returns every body in the 3x3x3 block around item's cell.
// A stored item uses its cached cell; otherwise pos is clamped. The result
// includes item itself when it is stored.
func (idx *BodyIndex[T]) RevealClose(item T, pos mgl64.Vec3) []T {
	c, ok := idx.placed[item]
	if !ok {
		c = idx.grid.Clamp(pos)
	}
	var out []T
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				nx, ny, nz := c[0]+dx, c[1]+dy, c[2]+dz
				if !idx.grid.Contains(nx, ny, nz) {
					continue
				}
				out = append(out, idx.cells[idx.grid.addr(nx, ny, nz)]...)
			}
		}
	}
	return out
}

// RevealAll returns every stored body in the order they were stored.
func (idx *BodyIndex[T]) RevealAll() []T {
	return idx.roster.all()
}

// RemoveAll empties the index without reallocating it. Only the cells
// holding stored bodies are touched.
func (idx *BodyIndex[T]) RemoveAll() {
	for _, c := range idx.placed {
		a := idx.grid.addr(c[0], c[1], c[2])
		clear(idx.cells[a])
		idx.cells[a] = idx.cells[a][:0]
	}
	clear(idx.placed)
	idx.roster.reset()
}

// Count returns the number of stored bodies.
func (idx *BodyIndex[T]) Count() int {
	return len(idx.placed)
}
