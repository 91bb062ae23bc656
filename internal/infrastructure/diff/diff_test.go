package diff

import (
	"reflect"
	"testing"
)

func TestDiffer_Diff(t *testing.T) {
	before := map[string]any{
		"user": map[string]any{"region": "UK"},
		"item": map[string]any{"item_id": "1", "net_amount": "100.00"},
		"vat":  map[string]any{},
		"tmp":  "gone",
	}
	after := map[string]any{
		"user": map[string]any{"region": "UK"},
		"item": map[string]any{"item_id": "1", "net_amount": "100.00", "vat_amount": "20.00"},
		"vat":  map[string]any{"region": "UK", "rate": "0.2000"},
	}

	d := &Differ{}
	got := d.Diff(before, after)
	want := map[string]any{
		"item.vat_amount": "20.00",
		"vat.region":      "UK",
		"vat.rate":        "0.2000",
		"tmp":             nil,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Diff = %#v, want %#v", got, want)
	}

	paths := d.Paths(before, after)
	if len(paths) != 4 || paths[0] != "item.vat_amount" || paths[3] != "vat.region" {
		t.Errorf("Paths = %v", paths)
	}
}

func TestDiffer_NoChange(t *testing.T) {
	ctx := map[string]any{"a": []any{1.0, 2.0}, "b": map[string]any{"c": true}}
	if got := (&Differ{}).Diff(ctx, ctx); len(got) != 0 {
		t.Errorf("expected empty delta, got %v", got)
	}
}
