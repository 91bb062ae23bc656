package diff

import (
	"reflect"
	"sort"
)

// Differ computes flattened deltas between two contexts. Keys are dotted paths;
// removed leaves map to nil.
type Differ struct{}

func (d *Differ) Diff(before, after map[string]any) map[string]any {
	delta := map[string]any{}
	walk("", before, after, delta)
	return delta
}

// Paths returns the changed paths in sorted order.
func (d *Differ) Paths(before, after map[string]any) []string {
	delta := d.Diff(before, after)
	out := make([]string, 0, len(delta))
	for k := range delta {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func walk(prefix string, before, after map[string]any, delta map[string]any) {
	for k, av := range after {
		key := join(prefix, k)
		bv, existed := before[k]
		am, aIsMap := av.(map[string]any)
		bm, bIsMap := bv.(map[string]any)
		switch {
		case aIsMap && bIsMap:
			walk(key, bm, am, delta)
		case aIsMap && !existed:
			walk(key, map[string]any{}, am, delta)
		case !existed || !reflect.DeepEqual(av, bv):
			delta[key] = av
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			delta[join(prefix, k)] = nil
		}
	}
}

func join(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}
