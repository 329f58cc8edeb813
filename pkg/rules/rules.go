package rules

import (
	"fmt"

	"github.com/chazu/trellis/pkg/catalog"
	"github.com/samber/lo"
)

// Rule is a directed statement that connection A may receive connection B,
// together with the matrix cell it is registered under.
type Rule struct {
	A      catalog.ConnKey
	B      catalog.ConnKey
	Active bool
	Group  string
	Row    int // matrix id of A
	Col    int // matrix id of B
}

func (r Rule) String() string {
	state := "off"
	if r.Active {
		state = "on"
	}
	return fmt.Sprintf("%s -> %s [%s]", r.A, r.B, state)
}

// Set is the ordered rule list plus the matrix derived from it. Rule
// indices are stable for the lifetime of the Set.
type Set struct {
	Rules  []Rule
	Matrix *Matrix
}

// Build registers defs against the catalog's matrix ids.
func Build(defs []catalog.RuleDef, ids catalog.MatrixIDs) (*Set, error) {
	s := &Set{
		Rules:  make([]Rule, 0, len(defs)),
		Matrix: NewMatrix(ids.Len()),
	}
	for i, d := range defs {
		row, ok := ids.Lookup(d.A)
		if !ok {
			return nil, fmt.Errorf("rules: rule %d: unknown connection %s", i, d.A)
		}
		col, ok := ids.Lookup(d.B)
		if !ok {
			return nil, fmt.Errorf("rules: rule %d: unknown connection %s", i, d.B)
		}
		s.Rules = append(s.Rules, Rule{
			A:      d.A,
			B:      d.B,
			Active: d.Active,
			Group:  d.Group,
			Row:    row,
			Col:    col,
		})
	}
	s.Rebuild()
	return s, nil
}

// Rebuild recomputes the whole matrix from the rule list.
func (s *Set) Rebuild() {
	s.Matrix.Clear()
	for _, r := range s.Rules {
		if r.Active {
			s.Matrix.Set(r.Row, r.Col, true)
		}
	}
}

// SetActive toggles rule i and writes the new state straight into its cell.
func (s *Set) SetActive(i int, active bool) error {
	if i < 0 || i >= len(s.Rules) {
		return fmt.Errorf("rules: index %d out of range [0,%d)", i, len(s.Rules))
	}
	r := &s.Rules[i]
	r.Active = active
	s.Matrix.Set(r.Row, r.Col, active)
	return nil
}

// SetGroupActive toggles every rule in a filter group and rebuilds the
// matrix. It returns how many rules the group holds.
func (s *Set) SetGroupActive(group string, active bool) int {
	n := 0
	for i := range s.Rules {
		if s.Rules[i].Group == group {
			s.Rules[i].Active = active
			n++
		}
	}
	if n > 0 {
		s.Rebuild()
	}
	return n
}

// Groups returns the distinct group names in rule order.
func (s *Set) Groups() []string {
	return lo.Uniq(lo.FilterMap(s.Rules, func(r Rule, _ int) (string, bool) {
		return r.Group, r.Group != ""
	}))
}

// From returns the indices of active rules whose first side is key.
func (s *Set) From(key catalog.ConnKey) []int {
	var out []int
	for i, r := range s.Rules {
		if r.Active && r.A == key {
			out = append(out, i)
		}
	}
	return out
}

// ActiveCount returns the number of active rules.
func (s *Set) ActiveCount() int {
	return lo.CountBy(s.Rules, func(r Rule) bool { return r.Active })
}
