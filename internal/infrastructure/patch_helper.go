package infrastructure

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// MergePatcher applies update_item patches as RFC 7386 merge patches.
type MergePatcher struct{}

func NewMergePatcher() *MergePatcher { return &MergePatcher{} }

func (MergePatcher) PatchItem(item, patch map[string]any) (map[string]any, error) {
	original, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	delta, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	merged, err := jsonpatch.MergePatch(original, delta)
	if err != nil {
		return nil, fmt.Errorf("apply patch: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, fmt.Errorf("decode patched item: %w", err)
	}
	return out, nil
}

// ItemDelta returns the merge patch that turns before into after; an empty
// object means nothing changed.
func ItemDelta(before, after map[string]any) (map[string]any, error) {
	a, err := json.Marshal(before)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(after)
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(patch, &out); err != nil {
		return nil, err
	}
	return out, nil
}
