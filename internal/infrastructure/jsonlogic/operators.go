package jsonlogic

import (
	"fmt"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/shopspring/decimal"

	"github.com/Victor-armando18/service-vat/internal/domain/money"
)

// customOperators are decimal-safe helpers usable inside conditions and action
// params. Amounts come back as 2dp strings so they never pass through float64.
var customOperators = map[string]func(values, data any) any{
	"money":      opMoney,
	"money_add":  opMoneyAdd,
	"vat_amount": opVATAmount,
	"round":      opRound,
}

func registerOperators() {
	for name, fn := range customOperators {
		jsonlogic.AddOperator(name, fn)
	}
}

func args(values any) []any {
	if list, ok := values.([]any); ok {
		return list
	}
	return []any{values}
}

// ToDecimal accepts strings and JSON numbers.
func ToDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(t)
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case nil:
		return decimal.Zero, fmt.Errorf("missing value")
	}
	return decimal.Zero, fmt.Errorf("not a number: %T", v)
}

// {"money": [x]} quantizes x to 2dp.
func opMoney(values, _ any) any {
	a := args(values)
	if len(a) == 0 {
		return nil
	}
	d, err := ToDecimal(a[0])
	if err != nil {
		return nil
	}
	return money.FromDecimal(d).String()
}

// {"money_add": [a, b, ...]} sums amounts.
func opMoneyAdd(values, _ any) any {
	total := money.Zero
	for _, v := range args(values) {
		d, err := ToDecimal(v)
		if err != nil {
			return nil
		}
		total = total.Add(money.FromDecimal(d))
	}
	return total.String()
}

// {"vat_amount": [net, rate]} computes quantize(net * rate).
func opVATAmount(values, _ any) any {
	a := args(values)
	if len(a) < 2 {
		return nil
	}
	net, err := ToDecimal(a[0])
	if err != nil {
		return nil
	}
	rate, err := ToDecimal(a[1])
	if err != nil {
		return nil
	}
	return money.CalculateVATAmount(money.FromDecimal(net), money.RateFromDecimal(rate)).String()
}

// {"round": [x, places]} rounds half up; places defaults to 0.
func opRound(values, _ any) any {
	a := args(values)
	if len(a) == 0 {
		return nil
	}
	d, err := ToDecimal(a[0])
	if err != nil {
		return nil
	}
	places := int32(0)
	if len(a) > 1 {
		if p, err := ToDecimal(a[1]); err == nil {
			places = int32(p.IntPart())
		}
	}
	return d.Round(places).StringFixed(places)
}
