package engine

import (
	"context"
	"fmt"
	"sort"
)

type ActionType string

const (
	ActionCallFunction ActionType = "call_function"
	ActionSetValue     ActionType = "set_value"
	ActionUpdateItem   ActionType = "update_item"
	ActionHalt         ActionType = "halt"
)

// Action is a tagged variant; only the fields of its Type are meaningful.
type Action struct {
	Type ActionType `json:"type" yaml:"type"`

	// call_function
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	OutputKey string         `json:"output_key,omitempty" yaml:"output_key,omitempty"`

	// set_value
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`

	// update_item
	ItemPath string         `json:"item_path,omitempty" yaml:"item_path,omitempty"`
	ItemID   any            `json:"item_id,omitempty" yaml:"item_id,omitempty"`
	Patch    map[string]any `json:"patch,omitempty" yaml:"patch,omitempty"`

	// halt
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func (a Action) Validate() error {
	switch a.Type {
	case ActionCallFunction:
		if a.Name == "" || a.OutputKey == "" {
			return fmt.Errorf("call_function requires name and output_key")
		}
	case ActionSetValue:
		if a.Path == "" {
			return fmt.Errorf("set_value requires path")
		}
	case ActionUpdateItem:
		if a.ItemPath == "" || len(a.Patch) == 0 {
			return fmt.Errorf("update_item requires item_path and patch")
		}
	case ActionHalt:
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

// Rule is a versioned bundle of a JSONLogic condition and ordered actions.
type Rule struct {
	RuleID         string   `json:"rule_id" yaml:"rule_id"`
	Version        int      `json:"version" yaml:"version"`
	EntryPoint     string   `json:"entry_point" yaml:"entry_point"`
	Priority       int      `json:"priority" yaml:"priority"`
	Active         bool     `json:"active" yaml:"active"`
	Condition      any      `json:"condition,omitempty" yaml:"condition,omitempty"`
	Actions        []Action `json:"actions" yaml:"actions"`
	StopProcessing bool     `json:"stop_processing" yaml:"stop_processing"`
	RulesFieldsID  string   `json:"rules_fields_id,omitempty" yaml:"rules_fields_id,omitempty"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Ref renders "<rule_id>:v<version>".
func (r Rule) Ref() string { return fmt.Sprintf("%s:v%d", r.RuleID, r.Version) }

func (r Rule) Validate() error {
	if r.RuleID == "" {
		return fmt.Errorf("rule_id is required")
	}
	if r.Version < 1 {
		return fmt.Errorf("rule %s: version must be >= 1", r.RuleID)
	}
	if r.EntryPoint == "" {
		return fmt.Errorf("rule %s: entry_point is required", r.RuleID)
	}
	for i, a := range r.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("rule %s action %d: %w", r.Ref(), i, err)
		}
	}
	return nil
}

// SelectRules keeps active rules at entryPoint, picks the highest version of each
// rule_id and orders them by (priority, rule_id).
func SelectRules(rules []Rule, entryPoint string) []Rule {
	latest := make(map[string]Rule)
	for _, r := range rules {
		if !r.Active || r.EntryPoint != entryPoint {
			continue
		}
		if cur, ok := latest[r.RuleID]; !ok || r.Version > cur.Version {
			latest[r.RuleID] = r
		}
	}
	out := make([]Rule, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}

// StaticRules serves a fixed rule set; the orchestrator uses it to pin one
// consistent snapshot for the whole calculation.
type StaticRules []Rule

func (s StaticRules) ListRules(_ context.Context, entryPoint string) ([]Rule, error) {
	return SelectRules(s, entryPoint), nil
}
