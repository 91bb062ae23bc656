package engine

import (
	"errors"
	"fmt"
)

// RulePack is a versioned set of rules as shipped in a rule file.
type RulePack struct {
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []Rule `json:"rules" yaml:"rules"`
}

// Validate checks every rule's shape, that named functions exist and that each
// rules_fields_id is registered. All problems are reported together.
func (p RulePack) Validate(functions FunctionRegistry, schemas *SchemaRegistry) error {
	var errs []error
	seen := make(map[string]bool)
	for _, r := range p.Rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[r.Ref()] {
			errs = append(errs, fmt.Errorf("rule %s: duplicate version", r.Ref()))
		}
		seen[r.Ref()] = true
		if r.RulesFieldsID != "" && schemas != nil && !schemas.Has(r.RulesFieldsID) {
			errs = append(errs, fmt.Errorf("rule %s: unknown rules_fields_id %q", r.Ref(), r.RulesFieldsID))
		}
		if functions == nil {
			continue
		}
		for _, a := range r.Actions {
			if a.Type != ActionCallFunction {
				continue
			}
			if _, ok := functions.Lookup(a.Name); !ok {
				errs = append(errs, fmt.Errorf("rule %s: %w %q", r.Ref(), ErrUnknownFunction, a.Name))
			}
		}
	}
	return errors.Join(errs...)
}
