package part

import (
	"fmt"
	"slices"

	"github.com/chazu/trellis/pkg/frame"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ID indexes a part in the world arena.
type ID int

// None is the absent part: no parent, or a template connection's owner.
const None ID = -1

func newUID() uuid.UUID {
	return uuid.New()
}

// Joint records that connection Conn of a part is joined to connection
// OtherConn of part Other.
type Joint struct {
	Conn      int
	Other     ID
	OtherConn int
}

// Part is an instance of a template.
type Part struct {
	ID          ID
	UID         uuid.UUID
	Template    *Template
	Body        *frame.Body
	Connections []*Connection
	Frozen      bool
	Parent      ID
	Children    []ID
	Joints      map[int]Joint

	active []bool
}

func (p *Part) String() string {
	state := "free"
	if p.Frozen {
		state = "placed"
	}
	return fmt.Sprintf("%s#%d(%s)", p.Template.Name, p.ID, state)
}

// Name returns the template name.
func (p *Part) Name() string {
	return p.Template.Name
}

// Placed reports whether the part is frozen into the aggregation.
func (p *Part) Placed() bool {
	return p.Frozen
}

// IsActive reports whether connection i is open for pairing.
func (p *Part) IsActive(i int) bool {
	return i >= 0 && i < len(p.active) && p.active[i]
}

// SetActive opens or closes connection i.
func (p *Part) SetActive(i int, active bool) {
	if i >= 0 && i < len(p.active) {
		p.active[i] = active
	}
}

// ActiveConnections returns the open connections in index order.
func (p *Part) ActiveConnections() []*Connection {
	return lo.Filter(p.Connections, func(c *Connection, i int) bool {
		return p.active[i]
	})
}

// Join records a joint on connection conn.
func (p *Part) Join(conn int, other ID, otherConn int) {
	p.Joints[conn] = Joint{Conn: conn, Other: other, OtherConn: otherConn}
}

// Unjoin forgets the joint on connection conn.
func (p *Part) Unjoin(conn int) (Joint, bool) {
	j, ok := p.Joints[conn]
	delete(p.Joints, conn)
	return j, ok
}

// JointsWith returns the joints between p and other, by connection index.
func (p *Part) JointsWith(other ID) []Joint {
	var out []Joint
	for _, j := range p.Joints {
		if j.Other == other {
			out = append(out, j)
		}
	}
	slices.SortFunc(out, func(a, b Joint) int { return a.Conn - b.Conn })
	return out
}

// AddChild records child unless it is already present.
func (p *Part) AddChild(child ID) {
	if !lo.Contains(p.Children, child) {
		p.Children = append(p.Children, child)
	}
}

// RemoveChild drops child.
func (p *Part) RemoveChild(child ID) {
	p.Children = lo.Without(p.Children, child)
}
