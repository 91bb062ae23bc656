package classify

import (
	"strings"
)

type ProductType string

const (
	TypeEbook          ProductType = "ebook"
	TypeMaterial       ProductType = "material"
	TypeMarking        ProductType = "marking"
	TypeLiveTutorial   ProductType = "live_tutorial"
	TypeOnlineTutorial ProductType = "online_tutorial"
	TypeFlashcard      ProductType = "flashcard"
	TypeOther          ProductType = "other"
)

// Classification holds the tax-relevant flags of a product. Every flag is always set.
type Classification struct {
	IsEbook        bool        `json:"is_ebook"`
	IsDigital      bool        `json:"is_digital"`
	IsMaterial     bool        `json:"is_material"`
	IsMarking      bool        `json:"is_marking"`
	IsLiveTutorial bool        `json:"is_live_tutorial"`
	IsFlashcard    bool        `json:"is_flashcard"`
	IsPBOR         bool        `json:"is_pbor"`
	ProductType    ProductType `json:"product_type"`
}

// Hints are optional metadata supplied with a cart item. Only "product_type"
// (or its alias "type") is consulted.
type Hints map[string]any

func (h Hints) productType() ProductType {
	for _, key := range []string{"product_type", "type"} {
		if v, ok := h[key].(string); ok && v != "" {
			return ProductType(strings.ToLower(strings.TrimSpace(v)))
		}
	}
	return ""
}

// Classify derives a Classification from product inputs. It is total and
// deterministic: ambiguous products resolve through a fixed priority order.
func Classify(productCode, variationName *string, hints Hints) Classification {
	code := upper(productCode)
	variation := upper(variationName)
	hinted := hints.productType()

	var c Classification
	c.IsEbook = strings.Contains(code, "EBOOK") ||
		strings.Contains(variation, "EBOOK") ||
		strings.Contains(variation, "VITALSOURCE") ||
		hinted == TypeEbook
	c.IsMaterial = strings.Contains(code, "MAT-PRINT") ||
		strings.Contains(code, "PRINT") ||
		hinted == TypeMaterial
	c.IsMarking = strings.HasPrefix(code, "MARK-") ||
		strings.Contains(code, "MARK") ||
		hinted == TypeMarking
	c.IsLiveTutorial = strings.Contains(code, "TUT-LIVE") || hinted == TypeLiveTutorial
	c.IsFlashcard = strings.Contains(code, "FLASH") || hinted == TypeFlashcard
	c.IsPBOR = strings.Contains(code, "PBOR")
	c.IsDigital = c.IsEbook ||
		strings.Contains(variation, "ONLINE") ||
		strings.Contains(variation, "DIGITAL") ||
		strings.Contains(variation, "HUB")

	onlineTutorial := hinted == TypeOnlineTutorial ||
		strings.Contains(code, "TUT-ONLINE") ||
		(strings.Contains(code, "TUT") && !c.IsLiveTutorial && c.IsDigital)

	switch {
	case c.IsEbook:
		c.ProductType = TypeEbook
	case c.IsLiveTutorial:
		c.ProductType = TypeLiveTutorial
	case onlineTutorial:
		c.ProductType = TypeOnlineTutorial
	case c.IsMarking:
		c.ProductType = TypeMarking
	case c.IsFlashcard:
		c.ProductType = TypeFlashcard
	case c.IsMaterial:
		c.ProductType = TypeMaterial
	default:
		c.ProductType = TypeOther
	}
	return c
}

// ToMap renders the classification as a JSONLogic-friendly object.
func (c Classification) ToMap() map[string]any {
	return map[string]any{
		"is_ebook":         c.IsEbook,
		"is_digital":       c.IsDigital,
		"is_material":      c.IsMaterial,
		"is_marking":       c.IsMarking,
		"is_live_tutorial": c.IsLiveTutorial,
		"is_flashcard":     c.IsFlashcard,
		"is_pbor":          c.IsPBOR,
		"product_type":     string(c.ProductType),
	}
}

// FromMap reads a classification back from a context object. Missing keys are false.
func FromMap(m map[string]any) Classification {
	flag := func(key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	c := Classification{
		IsEbook:        flag("is_ebook"),
		IsDigital:      flag("is_digital"),
		IsMaterial:     flag("is_material"),
		IsMarking:      flag("is_marking"),
		IsLiveTutorial: flag("is_live_tutorial"),
		IsFlashcard:    flag("is_flashcard"),
		IsPBOR:         flag("is_pbor"),
		ProductType:    TypeOther,
	}
	if pt, ok := m["product_type"].(string); ok && pt != "" {
		c.ProductType = ProductType(pt)
	}
	return c
}

func upper(s *string) string {
	if s == nil {
		return ""
	}
	return strings.ToUpper(*s)
}
