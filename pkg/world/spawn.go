package world

import (
	"fmt"

	"github.com/chazu/trellis/pkg/frame"
	"github.com/chazu/trellis/pkg/part"
	"github.com/sirupsen/logrus"
)

// SpawnToken describes a part to create. It is either a TokenPlain or a
// TokenParented.
type SpawnToken interface {
	template() string
	transform() frame.Transform
}

// TokenPlain spawns a free part that searches for a connection.
type TokenPlain struct {
	Template  string
	Transform frame.Transform
}

func (t TokenPlain) template() string           { return t.Template }
func (t TokenPlain) transform() frame.Transform { return t.Transform }

// TokenParented spawns a part directly into the aggregation. Connection
// Conn of the new part is joined to connection ParentConn of Parent. With
// Parent set to part.None the part is placed as a root.
type TokenParented struct {
	Template   string
	Transform  frame.Transform
	Parent     part.ID
	ParentConn int
	Conn       int
}

func (t TokenParented) template() string           { return t.Template }
func (t TokenParented) transform() frame.Transform { return t.Transform }

// Root returns a token placing template at tr with no parent.
func Root(template string, tr frame.Transform) TokenParented {
	return TokenParented{Template: template, Transform: tr, Parent: part.None}
}

// Spawn creates a part from tok and returns its id.
func (w *World) Spawn(tok SpawnToken) (part.ID, error) {
	t, err := w.Template(tok.template())
	if err != nil {
		return part.None, err
	}

	var parent *part.Part
	if pt, ok := tok.(TokenParented); ok {
		if pt.Parent != part.None {
			if pt.Conn < 0 || pt.Conn >= len(t.Connections) {
				return part.None, fmt.Errorf("world: spawn %s: connection %d out of range", t.Name, pt.Conn)
			}
			if parent, err = w.Part(pt.Parent); err != nil {
				return part.None, err
			}
			if !parent.Frozen {
				return part.None, fmt.Errorf("world: spawn %s: parent %s is not placed", t.Name, parent)
			}
			if pt.ParentConn < 0 || pt.ParentConn >= len(parent.Connections) {
				return part.None, fmt.Errorf("world: spawn %s: parent connection %d out of range", t.Name, pt.ParentConn)
			}
			if !parent.IsActive(pt.ParentConn) {
				return part.None, fmt.Errorf("world: spawn %s: parent connection %s is not open",
					t.Name, parent.Connections[pt.ParentConn].Key)
			}
		}
	}

	p := t.Instantiate(w.nextID, tok.transform())
	w.nextID++
	w.parts[p.ID] = p

	if pt, ok := tok.(TokenParented); ok {
		if parent != nil {
			w.join(p, pt.Conn, parent, pt.ParentConn)
		}
		w.freeze(p)
	}

	w.log.WithFields(logrus.Fields{"part": p.ID, "template": t.Name, "placed": p.Frozen}).Debug("spawned")
	return p.ID, nil
}

// join closes connection conn of child against connection parentConn of
// parent and links the two.
func (w *World) join(child *part.Part, conn int, parent *part.Part, parentConn int) {
	w.deactivate(parent, parentConn)
	w.deactivate(child, conn)
	child.Join(conn, parent.ID, parentConn)
	parent.Join(parentConn, child.ID, conn)
	child.Parent = parent.ID
	parent.AddChild(child.ID)
}

// freeze places p: its open connections and its body enter the indices.
func (w *World) freeze(p *part.Part) {
	p.Frozen = true
	for _, c := range p.ActiveConnections() {
		w.store(c)
	}
	w.bodies.Store(p.ID, p.Body.Transform().Position)
}

func (w *World) store(c *part.Connection) {
	pos, err := c.Position()
	if err != nil {
		w.log.WithField("conn", c.Key).Warn("cannot index detached connection")
		return
	}
	if !w.conns.Store(c, pos) {
		w.log.WithFields(logrus.Fields{"conn": c.Key, "part": c.Owner}).Debug("connection outside play region, not indexed")
	}
}

// Activate opens connection c on its part. Connections of placed parts
// also enter the open index.
func (w *World) Activate(c *part.Connection) error {
	p, err := w.owner(c)
	if err != nil {
		return err
	}
	p.SetActive(c.Index, true)
	if p.Frozen {
		w.store(c)
	}
	return nil
}

// Deactivate closes connection c on its part and drops it from the open
// index.
func (w *World) Deactivate(c *part.Connection) error {
	p, err := w.owner(c)
	if err != nil {
		return err
	}
	w.deactivate(p, c.Index)
	return nil
}

func (w *World) deactivate(p *part.Part, i int) {
	p.SetActive(i, false)
	w.conns.Remove(p.Connections[i])
}

func (w *World) owner(c *part.Connection) (*part.Part, error) {
	p, err := w.Part(c.Owner)
	if err != nil {
		return nil, err
	}
	if c.Index < 0 || c.Index >= len(p.Connections) || p.Connections[c.Index] != c {
		return nil, fmt.Errorf("world: connection %s does not belong to %s", c.Key, p)
	}
	return p, nil
}
