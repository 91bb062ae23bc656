package functions

import (
	"fmt"
	"time"

	"github.com/Victor-armando18/service-vat/internal/domain/classify"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/money"
	"github.com/Victor-armando18/service-vat/internal/domain/rates"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
)

const (
	LookupRegion           = "lookup_region"
	LookupVATRate          = "lookup_vat_rate"
	GetVATRate             = "get_vat_rate"
	CalculateVATAmount     = "calculate_vat_amount"
	AddMoney               = "add_money"
	ClassifyProduct        = "classify_product"
	CalculateVATForContext = "calculate_vat_for_context"
)

// Bindings pin the data a calculation reads, so every call within it sees the
// same snapshot and date.
type Bindings struct {
	Regions       *region.Snapshot
	Rates         *rates.Table
	EffectiveDate time.Time
}

// Builtins returns a registry holding the VAT functions bound to b.
func Builtins(b Bindings) *Registry {
	r := NewRegistry()
	RegisterBuiltins(r, b)
	return r
}

func RegisterBuiltins(r *Registry, b Bindings) {
	if b.Rates == nil {
		b.Rates = rates.DefaultTable()
	}
	if b.EffectiveDate.IsZero() {
		b.EffectiveDate = time.Now().UTC()
	}
	r.MustRegister(LookupRegion, b.lookupRegion)
	r.MustRegister(LookupVATRate, b.lookupVATRate)
	r.MustRegister(GetVATRate, b.getVATRate)
	r.MustRegister(CalculateVATAmount, calculateVATAmount)
	r.MustRegister(AddMoney, addMoney)
	r.MustRegister(ClassifyProduct, classifyProduct)
	r.MustRegister(CalculateVATForContext, b.calculateVATForContext)
}

// lookup_region(country_code, effective_date?) -> region code, never fails.
func (b Bindings) lookupRegion(call engine.Call) any {
	country := stringParam(call.Params, "country_code")
	date := stringParam(call.Params, "effective_date")
	return b.Regions.LookupString(country, date, b.EffectiveDate)
}

// lookup_vat_rate(country_code) -> region default rate on the effective date.
func (b Bindings) lookupVATRate(call engine.Call) any {
	country := stringParam(call.Params, "country_code")
	code := b.Regions.Lookup(country, b.EffectiveDate)
	return b.Rates.Rate(code, nil, b.EffectiveDate).String()
}

// get_vat_rate(region, classification?) -> rate as a 4dp string.
func (b Bindings) getVATRate(call engine.Call) any {
	code := stringParam(call.Params, "region")
	if code == "" {
		return Errorf("get_vat_rate: region is required")
	}
	var c *classify.Classification
	if m, ok := call.Params["classification"].(map[string]any); ok && len(m) > 0 {
		cl := classify.FromMap(m)
		c = &cl
	}
	return b.Rates.Rate(code, c, b.EffectiveDate).String()
}

// calculate_vat_amount(net_amount, vat_rate) -> quantize(net * rate).
func calculateVATAmount(call engine.Call) any {
	net, err := moneyParam(call.Params, "net_amount")
	if err != nil {
		return Errorf("calculate_vat_amount: %v", err)
	}
	rate, err := rateParam(call.Params, "vat_rate")
	if err != nil {
		return Errorf("calculate_vat_amount: %v", err)
	}
	return money.CalculateVATAmount(net, rate).String()
}

// add_money(amounts) -> sum of the amounts.
func addMoney(call engine.Call) any {
	list, ok := call.Params["amounts"].([]any)
	if !ok {
		return Errorf("add_money: amounts must be a list")
	}
	total := money.Zero
	for i, v := range list {
		m, err := toMoney(v)
		if err != nil {
			return Errorf("add_money: amounts[%d]: %v", i, err)
		}
		total = total.Add(m)
	}
	return total.String()
}

// classify_product(product_code, variation_name, metadata?) -> classification object.
func classifyProduct(call engine.Call) any {
	code := optionalString(call.Params, "product_code")
	variation := optionalString(call.Params, "variation_name")
	hints, _ := call.Params["metadata"].(map[string]any)
	return classify.Classify(code, variation, hints).ToMap()
}

// calculate_vat_for_context reads the item from the working context and returns
// the whole computation in one value.
func (b Bindings) calculateVATForContext(call engine.Call) any {
	netRaw, ok := engine.GetPath(call.Context, "item.net_amount")
	if !ok {
		return Errorf("calculate_vat_for_context: item.net_amount is missing")
	}
	net, err := toMoney(netRaw)
	if err != nil {
		return Errorf("calculate_vat_for_context: item.net_amount: %v", err)
	}

	code := stringParam(call.Params, "region")
	if code == "" {
		if v, ok := engine.GetPath(call.Context, "vat.region"); ok {
			code, _ = v.(string)
		}
	}
	if code == "" {
		if v, ok := engine.GetPath(call.Context, "user.region"); ok {
			code, _ = v.(string)
		}
	}
	if code == "" {
		return Errorf("calculate_vat_for_context: region is missing")
	}

	var c *classify.Classification
	if m, ok := engine.GetPath(call.Context, "item.classification"); ok {
		if cm, ok := m.(map[string]any); ok {
			cl := classify.FromMap(cm)
			c = &cl
		}
	}
	rate := b.Rates.Rate(code, c, b.EffectiveDate)
	vat := money.CalculateVATAmount(net, rate)
	return map[string]any{
		"region":       region.Normalize(code),
		"vat_rate":     rate.String(),
		"net_amount":   net.String(),
		"vat_amount":   vat.String(),
		"gross_amount": net.Add(vat).String(),
	}
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func optionalString(params map[string]any, key string) *string {
	s, ok := params[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func moneyParam(params map[string]any, key string) (money.Money, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return money.Zero, fmt.Errorf("%s is required", key)
	}
	return toMoney(v)
}

func rateParam(params map[string]any, key string) (money.Rate, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return money.ZeroRate, fmt.Errorf("%s is required", key)
	}
	switch t := v.(type) {
	case string:
		return money.ParseRate(t)
	case float64:
		return money.ParseRate(fmt.Sprintf("%v", t))
	}
	return money.ZeroRate, fmt.Errorf("%s: unsupported type %T", key, v)
}

func toMoney(v any) (money.Money, error) {
	switch t := v.(type) {
	case string:
		return money.Parse(t)
	case float64:
		return money.Parse(fmt.Sprintf("%v", t))
	case money.Money:
		return t, nil
	}
	return money.Zero, fmt.Errorf("unsupported amount type %T", v)
}
