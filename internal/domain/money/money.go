package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	AmountPlaces = 2
	RatePlaces   = 4
)

var hundred = decimal.NewFromInt(100)

// Money is a fixed-point amount held at 2 decimal places. Every constructor and
// arithmetic result is quantized with ROUND_HALF_UP.
type Money struct {
	d decimal.Decimal
}

// Rate is a ratio (0.2000 = 20%) held at 4 decimal places.
type Rate struct {
	d decimal.Decimal
}

var (
	Zero     = Money{d: decimal.Zero}
	ZeroRate = Rate{d: decimal.Zero}
)

// quantize rounds half away from zero, which matches ROUND_HALF_UP for both signs.
func quantize(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

func FromDecimal(d decimal.Decimal) Money { return Money{d: quantize(d, AmountPlaces)} }

func FromInt(units int64) Money { return Money{d: decimal.NewFromInt(units)} }

// FromCents builds an amount from minor units.
func FromCents(cents int64) Money { return Money{d: decimal.New(cents, -AmountPlaces)} }

// Parse reads a decimal string such as "100", "99.99" or "33.335".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) MulInt(n int64) Money {
	return Money{d: quantize(m.d.Mul(decimal.NewFromInt(n)), AmountPlaces)}
}

func (m Money) Mul(o Money) Money {
	return Money{d: quantize(m.d.Mul(o.d), AmountPlaces)}
}

// MulRate multiplies by a rate and quantizes immediately.
func (m Money) MulRate(r Rate) Money {
	return Money{d: quantize(m.d.Mul(r.d), AmountPlaces)}
}

func (m Money) Quantize() Money { return Money{d: quantize(m.d, AmountPlaces)} }

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) String() string { return m.d.StringFixed(AmountPlaces) }

func (m Money) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	parsed, err := Parse(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// CalculateVATAmount returns quantize(net * rate).
func CalculateVATAmount(net Money, rate Rate) Money {
	return net.MulRate(rate)
}

// Sum adds amounts left to right.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

func RateFromDecimal(d decimal.Decimal) Rate { return Rate{d: quantize(d, RatePlaces)} }

// ParseRate accepts ratio strings with at most 4 decimal places ("0.2", "0.2000").
// Percentage shapes ("20%") are rejected.
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		return ZeroRate, fmt.Errorf("invalid rate %q: percentage strings are not accepted", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroRate, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	if d.Exponent() < -RatePlaces && !d.Equal(d.Round(RatePlaces)) {
		return ZeroRate, fmt.Errorf("invalid rate %q: more than %d decimal places", s, RatePlaces)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return ZeroRate, fmt.Errorf("invalid rate %q: must be between 0 and 1", s)
	}
	return Rate{d: d.Round(RatePlaces)}, nil
}

func MustParseRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rate) Decimal() decimal.Decimal { return r.d }

func (r Rate) IsZero() bool { return r.d.IsZero() }

func (r Rate) Equal(o Rate) bool { return r.d.Equal(o.d) }

func (r Rate) String() string { return r.d.StringFixed(RatePlaces) }

// Percent renders the rate as a percentage string: 0.2000 -> "20%", 0.1350 -> "13.5%".
func (r Rate) Percent() string {
	return r.d.Mul(hundred).String() + "%"
}

func (r Rate) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }

func (r *Rate) UnmarshalJSON(data []byte) error {
	raw := bytes.Trim(bytes.TrimSpace(data), `"`)
	parsed, err := ParseRate(string(raw))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
