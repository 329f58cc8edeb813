package world

import (
	"github.com/chazu/trellis/pkg/part"
	"github.com/sirupsen/logrus"
)

// Delete removes part id. Every connection it was joined to is reopened,
// and its children stay placed as roots of their own.
func (w *World) Delete(id part.ID) error {
	p, err := w.Part(id)
	if err != nil {
		return err
	}

	for conn := range p.Joints {
		j, _ := p.Unjoin(conn)
		other, ok := w.parts[j.Other]
		if !ok {
			w.log.WithFields(logrus.Fields{"part": id, "other": j.Other}).Warn("joint to missing part")
			continue
		}
		other.Unjoin(j.OtherConn)
		if err := w.Activate(other.Connections[j.OtherConn]); err != nil {
			w.log.WithError(err).Warn("reopen connection")
		}
		if other.Parent == id {
			other.Parent = part.None
		}
		other.RemoveChild(id)
	}
	for _, cid := range p.Children {
		if c, ok := w.parts[cid]; ok && c.Parent == id {
			c.Parent = part.None
		}
	}
	if parent, ok := w.parts[p.Parent]; ok {
		parent.RemoveChild(id)
	}

	for _, c := range p.Connections {
		w.conns.Remove(c)
	}
	w.bodies.Remove(id)
	p.Body.Destroy()
	delete(w.parts, id)

	w.log.WithFields(logrus.Fields{"part": id, "template": p.Name()}).Info("part deleted")
	return nil
}
