package part

import (
	"fmt"

	"github.com/chazu/trellis/pkg/catalog"
	"github.com/chazu/trellis/pkg/frame"
	"github.com/chazu/trellis/pkg/kernel"
	"github.com/chazu/trellis/pkg/rules"
	"github.com/go-gl/mathgl/mgl64"
)

// sampleShrink pulls collision samples towards the centre so that parts
// touching face to face do not register as overlapping.
const sampleShrink = 0.9

// Template is an instantiable part type.
type Template struct {
	Name        string
	Def         catalog.TemplateDef
	Solid       kernel.Solid
	Diagonal    float64
	Samples     []mgl64.Vec3 // local points used for overlap tests
	Connections []*Connection

	body *frame.Body
}

// NewTemplate builds the solid and the template connections of def.
func NewTemplate(def catalog.TemplateDef, k kernel.Kernel, ids catalog.MatrixIDs) (*Template, error) {
	solid, err := buildSolid(def.Geometry, k)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", def.Name, err)
	}
	t := &Template{
		Name:     def.Name,
		Def:      def,
		Solid:    solid,
		Diagonal: kernel.Diagonal(solid),
		Samples:  samplePoints(solid),
		body:     frame.NewBody(frame.Identity()),
	}
	for i, cd := range def.Connections {
		key := catalog.ConnKey{Part: def.Name, ID: cd.ID}
		mid, ok := ids.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("template %q: connection %d has no matrix id", def.Name, cd.ID)
		}
		t.Connections = append(t.Connections, &Connection{
			Key:      key,
			Type:     cd.Type,
			MatrixID: mid,
			Frame:    frame.New(cd.Origin, cd.X.Normalize(), cd.Y.Normalize(), t.body),
			Owner:    None,
			Index:    i,
		})
	}
	return t, nil
}

func buildSolid(g catalog.GeometryDef, k kernel.Kernel) (kernel.Solid, error) {
	var (
		s   kernel.Solid
		err error
	)
	switch g.Kind {
	case catalog.GeometryBox:
		s, err = k.Box(g.Size[0], g.Size[1], g.Size[2])
	case catalog.GeometryCylinder:
		s, err = k.Cylinder(g.Height, g.Radius)
	case catalog.GeometryUnion:
		if len(g.Parts) == 0 {
			return nil, fmt.Errorf("union has no parts")
		}
		for i, pg := range g.Parts {
			ps, perr := buildSolid(pg, k)
			if perr != nil {
				return nil, fmt.Errorf("union part %d: %w", i, perr)
			}
			if s == nil {
				s = ps
			} else {
				s = k.Union(s, ps)
			}
		}
	default:
		return nil, fmt.Errorf("unknown geometry kind %d", g.Kind)
	}
	if err != nil {
		return nil, err
	}
	if g.Offset != (mgl64.Vec3{}) {
		s = k.Translate(s, g.Offset[0], g.Offset[1], g.Offset[2])
	}
	return s, nil
}

// samplePoints returns the bounding box corners, face centres and centre,
// shrunk towards the centre.
func samplePoints(s kernel.Solid) []mgl64.Vec3 {
	lo, hi := s.BoundingBox()
	min, max := mgl64.Vec3(lo), mgl64.Vec3(hi)
	c := min.Add(max).Mul(0.5)
	h := max.Sub(min).Mul(0.5 * sampleShrink)

	pts := make([]mgl64.Vec3, 0, 15)
	pts = append(pts, c)
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				pts = append(pts, c.Add(mgl64.Vec3{sx * h[0], sy * h[1], sz * h[2]}))
			}
		}
	}
	for a := 0; a < 3; a++ {
		for _, s := range []float64{-1, 1} {
			var d mgl64.Vec3
			d[a] = s * h[a]
			pts = append(pts, c.Add(d))
		}
	}
	return pts
}

// GenerateRuleTables refreshes the rule table of every template connection.
func (t *Template) GenerateRuleTables(all []rules.Rule) {
	for _, c := range t.Connections {
		c.GenerateRuleTable(all)
	}
}

// Connection returns the template connection with the given local id.
func (t *Template) Connection(id int) *Connection {
	for _, c := range t.Connections {
		if c.Key.ID == id {
			return c
		}
	}
	return nil
}

// Instantiate creates part id at pose tr with every connection active.
func (t *Template) Instantiate(id ID, tr frame.Transform) *Part {
	body := frame.NewBody(tr)
	p := &Part{
		ID:       id,
		UID:      newUID(),
		Template: t,
		Body:     body,
		Parent:   None,
		Joints:   make(map[int]Joint),
	}
	p.Connections = make([]*Connection, len(t.Connections))
	p.active = make([]bool, len(t.Connections))
	for i, c := range t.Connections {
		p.Connections[i] = c.Clone(id, body)
		p.active[i] = true
	}
	return p
}
