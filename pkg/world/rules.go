package world

import (
	"fmt"

	"github.com/chazu/trellis/pkg/catalog"
	"github.com/chazu/trellis/pkg/rules"
	"github.com/sirupsen/logrus"
)

// Rules returns the loaded rule list. Indices are those SetRuleActive takes.
func (w *World) Rules() []rules.Rule {
	return w.rules.Rules
}

// RuleGroups returns the named filter groups.
func (w *World) RuleGroups() []string {
	return w.rules.Groups()
}

// SetRuleActive toggles rule i, updating its matrix cell in place.
func (w *World) SetRuleActive(i int, active bool) error {
	if err := w.rules.SetActive(i, active); err != nil {
		return fmt.Errorf("world: %w", err)
	}
	return nil
}

// SetRuleGroupActive toggles every rule in group and rebuilds the matrix.
// It returns the number of rules in the group.
func (w *World) SetRuleGroupActive(group string, active bool) int {
	n := w.rules.SetGroupActive(group, active)
	w.log.WithFields(logrus.Fields{"group": group, "active": active, "rules": n}).Info("rule group toggled")
	return n
}

// ReloadRules replaces the rule list. Rules must refer to connections of
// the loaded catalog. Rule tables of templates and parts are regenerated.
func (w *World) ReloadRules(defs []catalog.RuleDef) error {
	set, err := rules.Build(defs, w.ids)
	if err != nil {
		return fmt.Errorf("world: reload rules: %w", err)
	}
	w.rules = set
	w.catalog.Rules = defs
	for _, t := range w.templates {
		t.GenerateRuleTables(set.Rules)
	}
	for _, p := range w.parts {
		for _, c := range p.Connections {
			c.GenerateRuleTable(set.Rules)
		}
	}
	w.log.WithFields(logrus.Fields{"rules": len(set.Rules), "active": set.ActiveCount()}).Info("rules reloaded")
	return nil
}

// RulesFrom returns the indices of active rules that let key receive
// another connection.
func (w *World) RulesFrom(key catalog.ConnKey) []int {
	return w.rules.From(key)
}
