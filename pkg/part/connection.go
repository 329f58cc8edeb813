package part

import (
	"github.com/chazu/trellis/pkg/catalog"
	"github.com/chazu/trellis/pkg/frame"
	"github.com/chazu/trellis/pkg/rules"
	"github.com/chazu/trellis/pkg/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// Connection is a typed, oriented attachment point on a template or part.
type Connection struct {
	Key      catalog.ConnKey
	Type     string
	MatrixID int
	Frame    *frame.Frame
	Owner    ID  // None on template connections
	Index    int // position in the owner's connection list

	ruleTable []int
}

// GenerateRuleTable caches the indices of every rule in all whose first
// side is this connection, active or not.
func (c *Connection) GenerateRuleTable(all []rules.Rule) {
	c.ruleTable = c.ruleTable[:0]
	for i, r := range all {
		if r.A == c.Key {
			c.ruleTable = append(c.ruleTable, i)
		}
	}
}

// RuleTable returns the cached rule indices.
func (c *Connection) RuleTable() []int {
	return c.ruleTable
}

// MatchesRule returns the first active rule in the table whose second side
// is other.
func (c *Connection) MatchesRule(other *Connection, all []rules.Rule) (int, bool) {
	for _, i := range c.ruleTable {
		if i >= len(all) {
			continue
		}
		r := all[i]
		if r.Active && r.B == other.Key {
			return i, true
		}
	}
	return -1, false
}

// Position returns the world origin of the connection.
func (c *Connection) Position() (mgl64.Vec3, error) {
	w, err := c.Frame.Resolve()
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return w.Origin, nil
}

// Cell returns the grid cell of the world origin, -1 on every axis that is
// outside the grid or when the frame cannot be resolved.
func (c *Connection) Cell(g voxel.Grid) (x, y, z int) {
	p, err := c.Position()
	if err != nil {
		return -1, -1, -1
	}
	return g.Cell(p)
}

// Clone copies the connection onto owner, attaching its frame to body.
func (c *Connection) Clone(owner ID, body *frame.Body) *Connection {
	n := *c
	n.Owner = owner
	n.Frame = c.Frame.Clone().Attach(body)
	n.ruleTable = append([]int(nil), c.ruleTable...)
	return &n
}
