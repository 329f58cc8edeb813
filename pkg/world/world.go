// Package world is the aggregation session. It owns the part arena, the
// loaded templates and rules, and the two spatial indices, and runs the
// connection scan that snaps free parts onto the placed aggregation.
//
// A World is not safe for concurrent use. Callers drive it from a single
// update loop.
package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chazu/trellis/pkg/catalog"
	"github.com/chazu/trellis/pkg/config"
	"github.com/chazu/trellis/pkg/kernel"
	"github.com/chazu/trellis/pkg/part"
	"github.com/chazu/trellis/pkg/rules"
	"github.com/chazu/trellis/pkg/voxel"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownPart     = errors.New("world: unknown part")
	ErrUnknownTemplate = errors.New("world: unknown template")
	ErrPartFrozen      = errors.New("world: part already placed")
)

// World is an aggregation session.
type World struct {
	cfg     config.Config
	log     logrus.FieldLogger
	kernel  kernel.Kernel
	catalog *catalog.Catalog
	ids     catalog.MatrixIDs
	rules   *rules.Set

	templates map[string]*part.Template
	order     []string // template names in catalog order

	parts  map[part.ID]*part.Part
	nextID part.ID

	// conns holds the open connections of placed parts. Free parts are
	// never indexed: they are the ones searching.
	conns  *voxel.ConnectionIndex[*part.Connection]
	bodies *voxel.BodyIndex[part.ID]

	scanning bool
}

// New builds a world from a validated configuration and catalog.
func New(cfg config.Config, cat *catalog.Catalog, k kernel.Kernel, log logrus.FieldLogger) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "world")

	if cat == nil || len(cat.Templates) == 0 {
		return nil, fmt.Errorf("world: %w", catalog.ErrEmptyCatalog)
	}
	findings := cat.Validate()
	for _, f := range findings {
		if f.Severity == catalog.SeverityWarning {
			log.WithField("subject", f.Subject).Warn(f.Message)
		}
	}
	if errs := catalog.Errors(findings); len(errs) > 0 {
		return nil, fmt.Errorf("world: invalid catalog: %w",
			errors.Join(lo.Map(errs, func(e catalog.ValidationError, _ int) error { return e })...))
	}

	ids := catalog.AssignMatrixIDs(cat.Templates)
	set, err := rules.Build(cat.Rules, ids)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}

	w := &World{
		cfg:       cfg,
		log:       log,
		kernel:    k,
		catalog:   cat,
		ids:       ids,
		rules:     set,
		templates: make(map[string]*part.Template, len(cat.Templates)),
		parts:     make(map[part.ID]*part.Part),
		scanning:  cfg.Scanning,
	}

	maxDiag := 0.0
	for _, def := range cat.Templates {
		t, err := part.NewTemplate(def, k, ids)
		if err != nil {
			return nil, fmt.Errorf("world: %w", err)
		}
		t.GenerateRuleTables(set.Rules)
		w.templates[def.Name] = t
		w.order = append(w.order, def.Name)
		maxDiag = max(maxDiag, t.Diagonal)
	}

	rmin, rmax := cfg.Region.MinVec(), cfg.Region.MaxVec()
	cg, err := voxel.NewGrid(cfg.ConnectionStep(), rmin, rmax)
	if err != nil {
		return nil, fmt.Errorf("world: connection grid: %w", err)
	}
	if w.conns, err = voxel.NewConnectionIndex[*part.Connection](cg, cfg.ConnectionThreshold); err != nil {
		return nil, fmt.Errorf("world: connection grid: %w", err)
	}
	bg, err := voxel.NewGrid(cfg.CollisionStep(maxDiag), rmin, rmax)
	if err != nil {
		return nil, fmt.Errorf("world: collision grid: %w", err)
	}
	if w.bodies, err = voxel.NewBodyIndex[part.ID](bg); err != nil {
		return nil, fmt.Errorf("world: collision grid: %w", err)
	}

	log.WithFields(logrus.Fields{
		"templates":   len(cat.Templates),
		"connections": ids.Len(),
		"rules":       len(set.Rules),
	}).Info("catalog loaded")
	return w, nil
}

// Config returns the configuration the world was built with.
func (w *World) Config() config.Config {
	return w.cfg
}

// Kernel returns the geometry kernel templates were built with.
func (w *World) Kernel() kernel.Kernel {
	return w.kernel
}

// Catalog returns the catalog the world was built from.
func (w *World) Catalog() *catalog.Catalog {
	return w.catalog
}

// Template returns the template with the given name.
func (w *World) Template(name string) (*part.Template, error) {
	t, ok := w.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return t, nil
}

// Templates returns the templates in catalog order.
func (w *World) Templates() []*part.Template {
	return lo.Map(w.order, func(n string, _ int) *part.Template { return w.templates[n] })
}

// Part returns the part with the given id.
func (w *World) Part(id part.ID) (*part.Part, error) {
	p, ok := w.parts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPart, id)
	}
	return p, nil
}

// Parts returns every part in id order.
func (w *World) Parts() []*part.Part {
	ps := lo.Values(w.parts)
	slices.SortFunc(ps, func(a, b *part.Part) int { return int(a.ID - b.ID) })
	return ps
}

// PlacedParts returns the frozen parts in id order.
func (w *World) PlacedParts() []*part.Part {
	return lo.Filter(w.Parts(), func(p *part.Part, _ int) bool { return p.Frozen })
}

// FreeParts returns the parts still searching, in id order.
func (w *World) FreeParts() []*part.Part {
	return lo.Filter(w.Parts(), func(p *part.Part, _ int) bool { return !p.Frozen })
}

// OpenConnections returns the open connections of placed parts.
func (w *World) OpenConnections() []*part.Connection {
	return w.conns.RevealAll()
}

// IsOpen reports whether c is currently in the open connection index.
func (w *World) IsOpen(c *part.Connection) bool {
	return w.conns.Contains(c)
}

// SetScanning enables or disables connection scanning globally.
func (w *World) SetScanning(on bool) {
	w.scanning = on
}

// Scanning reports whether connection scanning is enabled.
func (w *World) Scanning() bool {
	return w.scanning
}
