package rates

import (
	"time"

	"github.com/Victor-armando18/service-vat/internal/domain/classify"
	"github.com/Victor-armando18/service-vat/internal/domain/money"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
)

// Predicate selects the classifications a carve-out applies to.
type Predicate func(c classify.Classification) bool

// CarveOut is a region-specific rate for a class of goods, in force from EffectiveFrom.
type CarveOut struct {
	Name          string
	Region        string
	Applies       Predicate
	Rate          money.Rate
	EffectiveFrom time.Time
}

// Table resolves rates by region and classification. A Table is immutable once built.
type Table struct {
	defaults  map[string]money.Rate
	carveOuts []CarveOut
}

var defaultRates = map[string]string{
	region.UK:  "0.20",
	region.IE:  "0.23",
	region.SA:  "0.15",
	region.ROW: "0.00",
	region.CH:  "0.00",
	region.GG:  "0.00",
}

func isEbook(c classify.Classification) bool        { return c.IsEbook }
func isDigital(c classify.Classification) bool      { return c.IsDigital }
func isLiveTutorial(c classify.Classification) bool { return c.IsLiveTutorial }

// DefaultCarveOuts are checked in order before the region default.
func DefaultCarveOuts() []CarveOut {
	return []CarveOut{
		{
			Name:          "uk_ebook_zero_rate",
			Region:        region.UK,
			Applies:       isEbook,
			Rate:          money.MustParseRate("0.00"),
			EffectiveFrom: time.Date(2020, time.May, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Name:    "sa_live_tutorial",
			Region:  region.SA,
			Applies: isLiveTutorial,
			Rate:    money.MustParseRate("0.15"),
		},
		{
			Name:    "row_digital_zero_rate",
			Region:  region.ROW,
			Applies: isDigital,
			Rate:    money.MustParseRate("0.00"),
		},
	}
}

func DefaultTable() *Table {
	defaults := make(map[string]money.Rate, len(defaultRates))
	for code, r := range defaultRates {
		defaults[code] = money.MustParseRate(r)
	}
	return NewTable(defaults, DefaultCarveOuts())
}

func NewTable(defaults map[string]money.Rate, carveOuts []CarveOut) *Table {
	d := make(map[string]money.Rate, len(defaults))
	for code, r := range defaults {
		d[region.Normalize(code)] = r
	}
	c := make([]CarveOut, len(carveOuts))
	copy(c, carveOuts)
	for i := range c {
		c[i].Region = region.Normalize(c[i].Region)
	}
	return &Table{defaults: d, carveOuts: c}
}

// WithRegionDefaults returns a copy where regions missing from the default
// dictionary take the supplied rate. Existing defaults are kept.
func (t *Table) WithRegionDefaults(extra map[string]money.Rate) *Table {
	merged := make(map[string]money.Rate, len(t.defaults)+len(extra))
	for code, r := range extra {
		merged[region.Normalize(code)] = r
	}
	for code, r := range t.defaults {
		merged[code] = r
	}
	return &Table{defaults: merged, carveOuts: t.carveOuts}
}

// Rate resolves the rate for a region and classification on date. A nil
// classification yields the region default.
func (t *Table) Rate(regionCode string, c *classify.Classification, on time.Time) money.Rate {
	code := region.Normalize(regionCode)
	if c != nil {
		for _, co := range t.carveOuts {
			if co.Region != code || !co.Applies(*c) {
				continue
			}
			if !co.EffectiveFrom.IsZero() && on.Before(co.EffectiveFrom) {
				continue
			}
			return co.Rate
		}
	}
	return t.Default(code)
}

// Default returns the region default, or 0.00 for unknown regions.
func (t *Table) Default(regionCode string) money.Rate {
	if r, ok := t.defaults[region.Normalize(regionCode)]; ok {
		return r
	}
	return money.ZeroRate
}
