package region

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

func date(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func mapping(iso, region, from string, to *time.Time) model.CountryRegionMapping {
	return model.CountryRegionMapping{
		Country:       model.Country{ISOCode: iso, Active: true},
		Region:        model.Region{Code: region, Active: true},
		EffectiveFrom: date(from),
		EffectiveTo:   to,
	}
}

type stubSource struct {
	calls    int
	mappings []model.CountryRegionMapping
	err      error
}

func (s *stubSource) ListMappings(ctx context.Context) ([]model.CountryRegionMapping, error) {
	s.calls++
	return s.mappings, s.err
}

func TestSnapshot_Lookup(t *testing.T) {
	snap := NewSnapshot([]model.CountryRegionMapping{
		mapping("GB", "EU", "2000-01-01", datePtr("2021-01-01")),
		mapping("GB", "UK", "2021-01-01", nil),
		mapping("ZA", "SA", "2000-01-01", nil),
		mapping("DE", "EC", "2000-01-01", nil),
	}, time.Now())

	tests := []struct {
		name    string
		country string
		on      time.Time
		want    string
	}{
		{"before transition uses old region normalized to EC", "GB", date("2020-12-31"), "EC"},
		{"transition day uses new region", "GB", date("2021-01-01"), "UK"},
		{"one millisecond before transition", "GB", date("2021-01-01").Add(-time.Millisecond), "EC"},
		{"lowercase input", "za", date("2025-01-30"), "SA"},
		{"unknown country", "XX", date("2025-01-30"), "ROW"},
		{"empty country", "", date("2025-01-30"), "ROW"},
		{"before any mapping", "DE", date("1999-12-31"), "ROW"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := snap.Lookup(tt.country, tt.on)
			if got != tt.want {
				t.Errorf("Lookup(%q, %s) = %s, want %s", tt.country, tt.on, got, tt.want)
			}
			if again := snap.Lookup(tt.country, tt.on); again != got {
				t.Errorf("Lookup not idempotent: %s then %s", got, again)
			}
		})
	}
}

func TestSnapshot_LatestEffectiveFromWinsOverlap(t *testing.T) {
	snap := NewSnapshot([]model.CountryRegionMapping{
		mapping("CH", "ROW", "2000-01-01", nil),
		mapping("CH", "CH", "2010-06-01", nil),
	}, time.Now())

	if got := snap.Lookup("CH", date("2015-01-01")); got != "CH" {
		t.Errorf("expected latest effective_from to win, got %s", got)
	}
	if got := snap.Lookup("CH", date("2005-01-01")); got != "ROW" {
		t.Errorf("expected older mapping before 2010, got %s", got)
	}
}

func TestSnapshot_SkipsInactiveRegions(t *testing.T) {
	m := mapping("GG", "GG", "2000-01-01", nil)
	m.Region.Active = false
	snap := NewSnapshot([]model.CountryRegionMapping{m}, time.Now())
	if got := snap.Lookup("GG", date("2024-01-01")); got != "ROW" {
		t.Errorf("inactive region should not resolve, got %s", got)
	}
}

func TestRegistry_CachesUntilInvalidated(t *testing.T) {
	src := &stubSource{mappings: []model.CountryRegionMapping{mapping("IE", "IE", "2000-01-01", nil)}}
	reg := NewRegistry(src, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if got := reg.LookupRegion(ctx, "IE", date("2024-01-01")); got != "IE" {
			t.Fatalf("LookupRegion = %s, want IE", got)
		}
	}
	if src.calls != 1 {
		t.Errorf("expected 1 load, got %d", src.calls)
	}

	reg.Invalidate()
	reg.LookupRegion(ctx, "IE", date("2024-01-01"))
	if src.calls != 2 {
		t.Errorf("expected reload after invalidate, got %d loads", src.calls)
	}
}

func TestRegistry_LoadFailureFallsBackToROW(t *testing.T) {
	reg := NewRegistry(&stubSource{err: errors.New("db down")}, nil)
	if got := reg.LookupRegion(context.Background(), "GB", time.Now()); got != ROW {
		t.Errorf("expected ROW on load failure, got %s", got)
	}
}

func TestNormalize(t *testing.T) {
	for in, want := range map[string]string{"eu": "EC", "EC": "EC", " uk ": "UK", "row": "ROW"} {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnapshot_RegionDefaultRates(t *testing.T) {
	withRate := func(m model.CountryRegionMapping, rate string) model.CountryRegionMapping {
		m.Country.DefaultVATRate = decimal.RequireFromString(rate)
		return m
	}
	snap := NewSnapshot([]model.CountryRegionMapping{
		withRate(mapping("DE", EC, "2000-01-01", nil), "0.19"),
		withRate(mapping("FR", EC, "2000-01-01", nil), "0.20"),
		withRate(mapping("GB", UK, "2021-01-01", nil), "0.20"),
		withRate(mapping("ZA", SA, "2000-01-01", nil), "0.15"),
	}, time.Now())

	got := snap.RegionDefaultRates(date("2025-01-01"))
	if _, ok := got[EC]; ok {
		t.Errorf("EC countries disagree, expected no default, got %s", got[EC])
	}
	if r := got[UK]; !r.Equal(decimal.RequireFromString("0.20")) {
		t.Errorf("UK default = %s", r)
	}
	if r := got[SA]; !r.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("SA default = %s", r)
	}
	if _, ok := snap.RegionDefaultRates(date("2020-01-01"))[UK]; ok {
		t.Error("UK mapping is not in force in 2020")
	}
}
