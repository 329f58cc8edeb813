// Package rules holds the directed compatibility rules between connections
// and the dense boolean matrix used for constant-time coarse checks.
package rules

// Matrix is a square, dense, directed boolean matrix. Allowed(row, col)
// means a placed connection with matrix id row may receive an incoming
// connection with matrix id col. It is not symmetric.
type Matrix struct {
	n     int
	cells []bool
}

// NewMatrix allocates an n x n matrix with every cell false.
func NewMatrix(n int) *Matrix {
	if n < 0 {
		n = 0
	}
	return &Matrix{n: n, cells: make([]bool, n*n)}
}

// Size returns the matrix dimension.
func (m *Matrix) Size() int {
	return m.n
}

// Allowed reports the cell value. Out-of-range ids are never allowed.
func (m *Matrix) Allowed(row, col int) bool {
	if row < 0 || col < 0 || row >= m.n || col >= m.n {
		return false
	}
	return m.cells[row*m.n+col]
}

// Set writes a cell. Out-of-range ids are ignored.
func (m *Matrix) Set(row, col int, v bool) {
	if row < 0 || col < 0 || row >= m.n || col >= m.n {
		return
	}
	m.cells[row*m.n+col] = v
}

// Clear resets every cell to false.
func (m *Matrix) Clear() {
	for i := range m.cells {
		m.cells[i] = false
	}
}

// Count returns the number of true cells.
func (m *Matrix) Count() int {
	n := 0
	for _, c := range m.cells {
		if c {
			n++
		}
	}
	return n
}
