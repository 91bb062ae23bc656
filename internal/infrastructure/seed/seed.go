package seed

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/yaml"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// DefaultRulePack returns the built-in per-item VAT rules.
func DefaultRulePack() (engine.RulePack, error) {
	pack, err := yaml.DecodeRulePack(defaultRulesYAML)
	if err != nil {
		return engine.RulePack{}, fmt.Errorf("decode default rule pack: %w", err)
	}
	return pack, nil
}

func MustDefaultRules() []engine.Rule {
	pack, err := DefaultRulePack()
	if err != nil {
		panic(err)
	}
	return pack.Rules
}

// Regions returns the seeded taxation regions.
func Regions() []model.Region {
	return []model.Region{
		{Code: region.UK, Name: "United Kingdom", Active: true},
		{Code: region.IE, Name: "Ireland", Active: true},
		{Code: region.EC, Name: "European Community", Active: true},
		{Code: region.SA, Name: "South Africa", Active: true},
		{Code: region.CH, Name: "Switzerland", Active: true},
		{Code: region.GG, Name: "Guernsey", Active: true},
		{Code: region.ROW, Name: "Rest of World", Active: true},
	}
}

type countrySeed struct {
	iso, name, rate string
}

var euCountries = []countrySeed{
	{"AT", "Austria", "0.20"}, {"BE", "Belgium", "0.21"}, {"BG", "Bulgaria", "0.20"},
	{"HR", "Croatia", "0.25"}, {"CY", "Cyprus", "0.19"}, {"CZ", "Czechia", "0.21"},
	{"DK", "Denmark", "0.25"}, {"EE", "Estonia", "0.22"}, {"FI", "Finland", "0.255"},
	{"FR", "France", "0.20"}, {"DE", "Germany", "0.19"}, {"GR", "Greece", "0.24"},
	{"HU", "Hungary", "0.27"}, {"IT", "Italy", "0.22"}, {"LV", "Latvia", "0.21"},
	{"LT", "Lithuania", "0.21"}, {"LU", "Luxembourg", "0.17"}, {"MT", "Malta", "0.18"},
	{"NL", "Netherlands", "0.21"}, {"PL", "Poland", "0.23"}, {"PT", "Portugal", "0.23"},
	{"RO", "Romania", "0.19"}, {"SK", "Slovakia", "0.20"}, {"SI", "Slovenia", "0.22"},
	{"ES", "Spain", "0.21"}, {"SE", "Sweden", "0.25"},
}

var otherCountries = []countrySeed{
	{"GB", "United Kingdom", "0.20"},
	{"IE", "Ireland", "0.23"},
	{"ZA", "South Africa", "0.15"},
	{"CH", "Switzerland", "0.00"},
	{"GG", "Guernsey", "0.00"},
}

// Countries returns the seeded countries with their default rates.
func Countries() []model.Country {
	out := make([]model.Country, 0, len(euCountries)+len(otherCountries))
	for _, c := range append(append([]countrySeed{}, euCountries...), otherCountries...) {
		out = append(out, model.Country{
			ISOCode:        c.iso,
			Name:           c.name,
			DefaultVATRate: decimal.RequireFromString(c.rate),
			Active:         true,
		})
	}
	return out
}

var (
	epoch  = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	brexit = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Mappings links seeded countries to regions. Country and Region are populated
// by value; stores resolve the ids on insert. GB moved from EC to UK on 2021-01-01.
func Mappings() []model.CountryRegionMapping {
	countries := make(map[string]model.Country)
	for _, c := range Countries() {
		countries[c.ISOCode] = c
	}
	regions := make(map[string]model.Region)
	for _, r := range Regions() {
		regions[r.Code] = r
	}

	link := func(iso, code string, from time.Time, to *time.Time) model.CountryRegionMapping {
		return model.CountryRegionMapping{
			Country:       countries[iso],
			Region:        regions[code],
			EffectiveFrom: from,
			EffectiveTo:   to,
		}
	}

	var out []model.CountryRegionMapping
	for _, c := range euCountries {
		out = append(out, link(c.iso, region.EC, epoch, nil))
	}
	brexitEnd := brexit
	out = append(out,
		link("GB", region.EC, epoch, &brexitEnd),
		link("GB", region.UK, brexit, nil),
		link("IE", region.IE, epoch, nil),
		link("ZA", region.SA, epoch, nil),
		link("CH", region.CH, epoch, nil),
		link("GG", region.GG, epoch, nil),
	)
	return out
}
