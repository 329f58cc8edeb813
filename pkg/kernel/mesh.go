package kernel

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Mesh is an indexed triangle mesh of one placed part. Vertices and Normals
// hold 3 floats per vertex, Indices 3 entries per triangle. Vertices shared
// by neighbouring triangles appear once.
type Mesh struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty reports whether the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Bounds returns the axis-aligned extent of the vertices. An empty mesh
// yields zero vectors.
func (m *Mesh) Bounds() (lo, hi mgl64.Vec3) {
	if m.IsEmpty() {
		return lo, hi
	}
	for a := 0; a < 3; a++ {
		lo[a], hi[a] = math.Inf(1), math.Inf(-1)
	}
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		for a := 0; a < 3; a++ {
			v := float64(m.Vertices[i+a])
			lo[a] = math.Min(lo[a], v)
			hi[a] = math.Max(hi[a], v)
		}
	}
	return lo, hi
}

// weldScale quantizes positions before welding; points closer than about
// 1/weldScale on every axis become one vertex.
const weldScale = 1e6

// MeshBuilder assembles a Mesh from loose triangles, welding coincident
// corners and averaging the face normals around each welded vertex.
type MeshBuilder struct {
	index   map[[3]int64]uint32
	pos     []mgl64.Vec3
	normals []mgl64.Vec3
	indices []uint32
}

// NewMeshBuilder returns an empty builder sized for about n triangles.
func NewMeshBuilder(n int) *MeshBuilder {
	return &MeshBuilder{
		index:   make(map[[3]int64]uint32, n),
		pos:     make([]mgl64.Vec3, 0, n),
		normals: make([]mgl64.Vec3, 0, n),
		indices: make([]uint32, 0, 3*n),
	}
}

// AddTriangle appends triangle a, b, c with face normal n.
func (mb *MeshBuilder) AddTriangle(a, b, c, n mgl64.Vec3) {
	for _, p := range [3]mgl64.Vec3{a, b, c} {
		mb.indices = append(mb.indices, mb.vertex(p, n))
	}
}

func (mb *MeshBuilder) vertex(p, n mgl64.Vec3) uint32 {
	key := [3]int64{
		int64(math.Round(p[0] * weldScale)),
		int64(math.Round(p[1] * weldScale)),
		int64(math.Round(p[2] * weldScale)),
	}
	if i, ok := mb.index[key]; ok {
		mb.normals[i] = mb.normals[i].Add(n)
		return i
	}
	i := uint32(len(mb.pos))
	mb.index[key] = i
	mb.pos = append(mb.pos, p)
	mb.normals = append(mb.normals, n)
	return i
}

// Mesh returns the assembled mesh.
func (mb *MeshBuilder) Mesh() *Mesh {
	m := &Mesh{
		Vertices: make([]float32, 0, 3*len(mb.pos)),
		Normals:  make([]float32, 0, 3*len(mb.pos)),
		Indices:  mb.indices,
	}
	for i, p := range mb.pos {
		n := mb.normals[i]
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		m.Vertices = append(m.Vertices, float32(p[0]), float32(p[1]), float32(p[2]))
		m.Normals = append(m.Normals, float32(n[0]), float32(n[1]), float32(n[2]))
	}
	return m
}
