package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

type FieldKind string

const (
	KindObject FieldKind = "object"
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindArray  FieldKind = "array"
	KindAny    FieldKind = "any"
)

type FieldSpec struct {
	Path     string
	Kind     FieldKind
	Optional bool
}

// Schema describes the subset of a context a rule reads (its rules_fields_id).
type Schema struct {
	ID     string
	Fields []FieldSpec
}

type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

func NewSchemaRegistry(schemas ...Schema) *SchemaRegistry {
	r := &SchemaRegistry{schemas: make(map[string]Schema)}
	for _, s := range schemas {
		r.Register(s)
	}
	return r
}

const (
	SchemaVATItemContext = "vat_item_context_v1"
	SchemaVATCartContext = "vat_cart_context_v1"
)

// DefaultSchemas registers the context shapes produced by the VAT context builder.
func DefaultSchemas() *SchemaRegistry {
	return NewSchemaRegistry(
		Schema{ID: SchemaVATItemContext, Fields: []FieldSpec{
			{Path: "user", Kind: KindObject},
			{Path: "user.region", Kind: KindString},
			{Path: "user.address", Kind: KindObject, Optional: true},
			{Path: "item", Kind: KindObject},
			{Path: "item.item_id", Kind: KindString},
			{Path: "item.net_amount", Kind: KindString},
			{Path: "item.quantity", Kind: KindNumber},
			{Path: "item.classification", Kind: KindObject},
			{Path: "vat", Kind: KindObject},
			{Path: "settings.effective_date", Kind: KindString},
		}},
		Schema{ID: SchemaVATCartContext, Fields: []FieldSpec{
			{Path: "user", Kind: KindObject},
			{Path: "cart", Kind: KindObject},
			{Path: "cart.items", Kind: KindArray},
			{Path: "cart.total_net", Kind: KindString},
			{Path: "settings.effective_date", Kind: KindString},
			{Path: "vat", Kind: KindObject},
		}},
	)
}

func (r *SchemaRegistry) Register(s Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.ID] = s
}

func (r *SchemaRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[id]
	return ok
}

func (r *SchemaRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.schemas))
	for id := range r.schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks ctx against the schema named id. Unknown ids are errors.
func (r *SchemaRegistry) Validate(id string, ctx map[string]any) error {
	r.mu.RLock()
	s, ok := r.schemas[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown rules_fields_id %q", id)
	}
	for _, f := range s.Fields {
		v, found := GetPath(ctx, f.Path)
		if !found || v == nil {
			if f.Optional {
				continue
			}
			return fmt.Errorf("schema %s: field %s is missing", id, f.Path)
		}
		if !kindMatches(f.Kind, v) {
			return fmt.Errorf("schema %s: field %s must be %s, got %T", id, f.Path, f.Kind, v)
		}
	}
	return nil
}

func kindMatches(kind FieldKind, v any) bool {
	switch kind {
	case KindObject:
		_, ok := v.(map[string]any)
		return ok
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		switch v.(type) {
		case float64, int, int64, json.Number:
			return true
		}
		return false
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindArray:
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
