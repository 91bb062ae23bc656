package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

// RegionStore keeps regions, countries and mappings in memory. Ids are
// assigned on insert, as a database would.
type RegionStore struct {
	mu        sync.RWMutex
	regions   []model.Region
	countries []model.Country
	mappings  []model.CountryRegionMapping
	nextID    uint
}

func NewRegionStore() *RegionStore { return &RegionStore{} }

// Seed inserts regions and countries, then mappings whose Country and Region
// are matched by ISO code and region code.
func (s *RegionStore) Seed(regions []model.Region, countries []model.Country, mappings []model.CountryRegionMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, r := range regions {
		s.nextID++
		r.ID, r.CreatedAt, r.UpdatedAt = s.nextID, now, now
		s.regions = append(s.regions, r)
	}
	for _, c := range countries {
		s.nextID++
		c.ID, c.CreatedAt, c.UpdatedAt = s.nextID, now, now
		s.countries = append(s.countries, c)
	}
	for _, m := range mappings {
		c := s.country(m.Country.ISOCode)
		r := s.region(m.Region.Code)
		if c == nil || r == nil {
			return fmt.Errorf("seed mapping %s -> %s: unknown country or region", m.Country.ISOCode, m.Region.Code)
		}
		s.nextID++
		m.ID, m.CountryID, m.RegionID, m.CreatedAt = s.nextID, c.ID, r.ID, now
		s.mappings = append(s.mappings, m)
	}
	return nil
}

func (s *RegionStore) country(iso string) *model.Country {
	for i := range s.countries {
		if strings.EqualFold(s.countries[i].ISOCode, iso) {
			return &s.countries[i]
		}
	}
	return nil
}

func (s *RegionStore) region(code string) *model.Region {
	for i := range s.regions {
		if strings.EqualFold(s.regions[i].Code, code) {
			return &s.regions[i]
		}
	}
	return nil
}

func (s *RegionStore) byID(countryID, regionID uint) (model.Country, model.Region) {
	var c model.Country
	var r model.Region
	for _, x := range s.countries {
		if x.ID == countryID {
			c = x
		}
	}
	for _, x := range s.regions {
		if x.ID == regionID {
			r = x
		}
	}
	return c, r
}

func (s *RegionStore) ListMappings(_ context.Context) ([]model.CountryRegionMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CountryRegionMapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		m.Country, m.Region = s.byID(m.CountryID, m.RegionID)
		out = append(out, m)
	}
	return out, nil
}

func (s *RegionStore) ListRegions(_ context.Context) ([]model.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Region(nil), s.regions...), nil
}

func (s *RegionStore) FindRegion(_ context.Context, code string) (*model.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.region(code)
	if r == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRegion, code)
	}
	cp := *r
	return &cp, nil
}

func (s *RegionStore) FindCountry(_ context.Context, iso string) (*model.Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.country(iso)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCountry, iso)
	}
	cp := *c
	return &cp, nil
}

func (s *RegionStore) MappingsForCountry(_ context.Context, countryID uint) ([]model.CountryRegionMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CountryRegionMapping
	for _, m := range s.mappings {
		if m.CountryID == countryID {
			m.Country, m.Region = s.byID(m.CountryID, m.RegionID)
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *RegionStore) CreateMapping(_ context.Context, m *model.CountryRegionMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	m.CreatedAt = time.Now().UTC()
	stored := *m
	stored.Country, stored.Region = model.Country{}, model.Region{}
	s.mappings = append(s.mappings, stored)
	return nil
}

func (s *RegionStore) UpdateCountryRate(_ context.Context, iso string, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.country(iso)
	if c == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnknownCountry, iso)
	}
	c.DefaultVATRate = rate
	c.UpdatedAt = time.Now().UTC()
	return nil
}
