package catalog

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrEmptyCatalog is returned when a catalog has no templates.
var ErrEmptyCatalog = errors.New("catalog: no part templates")

// ConnKey identifies a connection across the catalog: the owning template
// name plus the connection's local id.
type ConnKey struct {
	Part string `json:"part" toml:"part"`
	ID   int    `json:"id" toml:"id"`
}

func (k ConnKey) String() string {
	return fmt.Sprintf("%s:%d", k.Part, k.ID)
}

// ConnectionDef describes one attachment point of a template, in the
// template's local space.
type ConnectionDef struct {
	ID     int        `json:"id"`
	Type   string     `json:"type"`
	Origin mgl64.Vec3 `json:"origin"`
	X      mgl64.Vec3 `json:"x"`
	Y      mgl64.Vec3 `json:"y"`
}

// GeometryKind distinguishes template solids.
type GeometryKind int

const (
	GeometryBox      GeometryKind = iota // axis-aligned box centred on the origin
	GeometryCylinder                     // Z-aligned cylinder centred on the origin
	GeometryUnion                        // union of Parts
)

func (k GeometryKind) String() string {
	switch k {
	case GeometryBox:
		return "box"
	case GeometryCylinder:
		return "cylinder"
	case GeometryUnion:
		return "union"
	default:
		return "unknown"
	}
}

// GeometryDef is the solid a template is made of. Offset moves the solid
// away from the origin, which is how the parts of a union are laid out.
type GeometryDef struct {
	Kind   GeometryKind  `json:"kind"`
	Size   mgl64.Vec3    `json:"size,omitempty"`   // box
	Radius float64       `json:"radius,omitempty"` // cylinder
	Height float64       `json:"height,omitempty"` // cylinder
	Parts  []GeometryDef `json:"parts,omitempty"`  // union
	Offset mgl64.Vec3    `json:"offset,omitempty"`
}

// TemplateDef is one part type.
type TemplateDef struct {
	Name        string          `json:"name"`
	Geometry    GeometryDef     `json:"geometry"`
	Connections []ConnectionDef `json:"connections"`
}

// RuleDef states that connection A (on an already placed part) may receive
// connection B (on the incoming part). Direction matters.
type RuleDef struct {
	A      ConnKey `json:"a"`
	B      ConnKey `json:"b"`
	Active bool    `json:"active"`
	Group  string  `json:"group,omitempty"`
}

func (r RuleDef) String() string {
	return fmt.Sprintf("%s -> %s", r.A, r.B)
}

// Catalog is the complete set of templates and rules for a session.
type Catalog struct {
	Templates []TemplateDef `json:"templates"`
	Rules     []RuleDef     `json:"rules"`
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{}
}

// AddTemplate appends a template. It does not check for duplicates.
func (c *Catalog) AddTemplate(t TemplateDef) {
	c.Templates = append(c.Templates, t)
}

// AddRule appends a rule.
func (c *Catalog) AddRule(r RuleDef) {
	c.Rules = append(c.Rules, r)
}

// Template returns the template with the given name, or nil.
func (c *Catalog) Template(name string) *TemplateDef {
	for i := range c.Templates {
		if c.Templates[i].Name == name {
			return &c.Templates[i]
		}
	}
	return nil
}

// Connection returns the connection definition for key, or nil.
func (c *Catalog) Connection(key ConnKey) *ConnectionDef {
	t := c.Template(key.Part)
	if t == nil {
		return nil
	}
	for i := range t.Connections {
		if t.Connections[i].ID == key.ID {
			return &t.Connections[i]
		}
	}
	return nil
}

// ConnectionCount returns the number of (template, connection) pairs.
func (c *Catalog) ConnectionCount() int {
	n := 0
	for _, t := range c.Templates {
		n += len(t.Connections)
	}
	return n
}
