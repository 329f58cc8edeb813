package world

import (
	"fmt"
	"slices"

	"github.com/chazu/trellis/pkg/frame"
	"github.com/chazu/trellis/pkg/part"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// JointState is a serialized part.Joint.
type JointState struct {
	Conn      int `codec:"conn"`
	Other     int `codec:"other"`
	OtherConn int `codec:"other_conn"`
}

// PartState is the authoritative state of one part.
type PartState struct {
	ID       int          `codec:"id"`
	UID      string       `codec:"uid"`
	Template string       `codec:"template"`
	Position [3]float64   `codec:"position"`
	Rotation [4]float64   `codec:"rotation"` // w, x, y, z
	Frozen   bool         `codec:"frozen"`
	Parent   int          `codec:"parent"`
	Children []int        `codec:"children,omitempty"`
	Active   []bool       `codec:"active"`
	Joints   []JointState `codec:"joints,omitempty"`
}

// Snapshot is the authoritative state of a world. Index membership is not
// part of it; Restore derives it from the parts.
type Snapshot struct {
	NextID     int         `codec:"next_id"`
	Scanning   bool        `codec:"scanning"`
	RuleActive []bool      `codec:"rule_active"`
	Parts      []PartState `codec:"parts"`
}

// Snapshot captures the current state.
func (w *World) Snapshot() Snapshot {
	s := Snapshot{
		NextID:     int(w.nextID),
		Scanning:   w.scanning,
		RuleActive: make([]bool, len(w.rules.Rules)),
	}
	for i, r := range w.rules.Rules {
		s.RuleActive[i] = r.Active
	}
	for _, p := range w.Parts() {
		t := p.Body.Transform()
		ps := PartState{
			ID:       int(p.ID),
			UID:      p.UID.String(),
			Template: p.Name(),
			Position: [3]float64(t.Position),
			Rotation: [4]float64{t.Rotation.W, t.Rotation.V[0], t.Rotation.V[1], t.Rotation.V[2]},
			Frozen:   p.Frozen,
			Parent:   int(p.Parent),
			Active:   make([]bool, len(p.Connections)),
		}
		for _, c := range p.Children {
			ps.Children = append(ps.Children, int(c))
		}
		for i := range p.Connections {
			ps.Active[i] = p.IsActive(i)
		}
		for _, j := range p.Joints {
			ps.Joints = append(ps.Joints, JointState{Conn: j.Conn, Other: int(j.Other), OtherConn: j.OtherConn})
		}
		slices.SortFunc(ps.Joints, func(a, b JointState) int { return a.Conn - b.Conn })
		s.Parts = append(s.Parts, ps)
	}
	return s
}

// Restore replaces the world state with s. Both indices are rebuilt from
// the restored parts. On error the world is left unchanged.
func (w *World) Restore(s Snapshot) error {
	if len(s.RuleActive) != 0 && len(s.RuleActive) != len(w.rules.Rules) {
		return fmt.Errorf("world: restore: snapshot has %d rules, world has %d", len(s.RuleActive), len(w.rules.Rules))
	}

	parts := make(map[part.ID]*part.Part, len(s.Parts))
	for _, ps := range s.Parts {
		t, err := w.Template(ps.Template)
		if err != nil {
			return fmt.Errorf("world: restore part %d: %w", ps.ID, err)
		}
		if len(ps.Active) != len(t.Connections) {
			return fmt.Errorf("world: restore part %d: %d connection states for %d connections",
				ps.ID, len(ps.Active), len(t.Connections))
		}
		id := part.ID(ps.ID)
		if _, dup := parts[id]; dup || id < 0 || ps.ID >= s.NextID {
			return fmt.Errorf("world: restore: bad part id %d", ps.ID)
		}
		uid, err := uuid.Parse(ps.UID)
		if err != nil {
			return fmt.Errorf("world: restore part %d: %w", ps.ID, err)
		}

		tr := frame.Transform{
			Position: mgl64.Vec3(ps.Position),
			Rotation: mgl64.Quat{W: ps.Rotation[0], V: mgl64.Vec3{ps.Rotation[1], ps.Rotation[2], ps.Rotation[3]}}.Normalize(),
		}
		p := t.Instantiate(id, tr)
		p.UID = uid
		p.Frozen = ps.Frozen
		p.Parent = part.ID(ps.Parent)
		for _, c := range ps.Children {
			p.Children = append(p.Children, part.ID(c))
		}
		for i, a := range ps.Active {
			p.SetActive(i, a)
		}
		for _, j := range ps.Joints {
			if j.Conn < 0 || j.Conn >= len(p.Connections) {
				return fmt.Errorf("world: restore part %d: joint on connection %d", ps.ID, j.Conn)
			}
			p.Join(j.Conn, part.ID(j.Other), j.OtherConn)
		}
		parts[id] = p
	}
	for _, p := range parts {
		if _, ok := parts[p.Parent]; p.Parent != part.None && !ok {
			return fmt.Errorf("world: restore part %d: unknown parent %d", p.ID, p.Parent)
		}
		for _, j := range p.Joints {
			o, ok := parts[j.Other]
			if !ok || j.OtherConn < 0 || j.OtherConn >= len(o.Connections) {
				return fmt.Errorf("world: restore part %d: joint to unknown %d/%d", p.ID, j.Other, j.OtherConn)
			}
		}
	}

	for _, p := range w.parts {
		p.Body.Destroy()
	}
	w.conns.RemoveAll()
	w.bodies.RemoveAll()
	w.parts = parts
	w.nextID = part.ID(s.NextID)
	w.scanning = s.Scanning
	for i, a := range s.RuleActive {
		w.rules.Rules[i].Active = a
	}
	w.rules.Rebuild()

	for _, p := range w.Parts() {
		if p.Frozen {
			for _, c := range p.ActiveConnections() {
				w.store(c)
			}
			w.bodies.Store(p.ID, p.Body.Transform().Position)
		}
	}
	w.log.WithFields(logrus.Fields{"parts": len(parts), "open": w.conns.Count()}).Info("snapshot restored")
	return nil
}

var msgpack = &codec.MsgpackHandle{}

// EncodeSnapshot serializes s as msgpack.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	var b []byte
	if err := codec.NewEncoderBytes(&b, msgpack).Encode(s); err != nil {
		return nil, fmt.Errorf("world: encode snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot parses msgpack produced by EncodeSnapshot.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := codec.NewDecoderBytes(b, msgpack).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("world: decode snapshot: %w", err)
	}
	return s, nil
}
