package yaml

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Victor-armando18/service-vat/internal/domain/engine"
)

func LoadRulePack(path string) (engine.RulePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.RulePack{}, fmt.Errorf("failed to read rule file %s: %w", path, err)
	}
	pack, err := DecodeRulePack(data)
	if err != nil {
		return engine.RulePack{}, fmt.Errorf("rule file %s: %w", path, err)
	}
	return pack, nil
}

// DecodeRulePack decodes YAML and normalizes nested maps so conditions and
// params have the same shapes as JSON-decoded packs.
func DecodeRulePack(data []byte) (engine.RulePack, error) {
	var pack engine.RulePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return engine.RulePack{}, err
	}
	for i := range pack.Rules {
		r := &pack.Rules[i]
		r.Condition = normalize(r.Condition)
		for j := range r.Actions {
			a := &r.Actions[j]
			a.Value = normalize(a.Value)
			a.ItemID = normalize(a.ItemID)
			if a.Params != nil {
				a.Params = normalize(a.Params).(map[string]any)
			}
			if a.Patch != nil {
				a.Patch = normalize(a.Patch).(map[string]any)
			}
		}
	}
	return pack, nil
}

// normalize converts ints to float64 and map[any]any to map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
