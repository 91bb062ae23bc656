package region

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

const dateLayout = "2006-01-02"

// Region codes. EC is the canonical symbol for the European Community region;
// EU is accepted on input and folded to EC by Normalize.
const (
	UK  = "UK"
	IE  = "IE"
	EC  = "EC"
	SA  = "SA"
	CH  = "CH"
	GG  = "GG"
	ROW = domain.DefaultRegion
)

var aliases = map[string]string{
	"EU": EC,
}

// Normalize uppercases a region code and resolves aliases.
func Normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if canonical, ok := aliases[code]; ok {
		return canonical
	}
	return code
}

// MappingSource loads every country→region mapping with Country and Region populated.
type MappingSource interface {
	ListMappings(ctx context.Context) ([]model.CountryRegionMapping, error)
}

type span struct {
	region string
	from   time.Time
	to     *time.Time
	rate   decimal.Decimal
}

// Snapshot is an immutable view of the mapping table. Lookups never fail.
type Snapshot struct {
	byCountry map[string][]span
	loadedAt  time.Time
}

// NewSnapshot indexes mappings by ISO code; spans are kept newest effective_from first
// so the first covering span wins the tie-break.
func NewSnapshot(mappings []model.CountryRegionMapping, loadedAt time.Time) *Snapshot {
	idx := make(map[string][]span)
	for _, m := range mappings {
		if !m.Region.Active {
			continue
		}
		iso := strings.ToUpper(m.Country.ISOCode)
		idx[iso] = append(idx[iso], span{
			region: Normalize(m.Region.Code),
			from:   truncate(m.EffectiveFrom),
			to:     truncatePtr(m.EffectiveTo),
			rate:   m.Country.DefaultVATRate,
		})
	}
	for iso := range idx {
		spans := idx[iso]
		sort.SliceStable(spans, func(i, j int) bool { return spans[i].from.After(spans[j].from) })
	}
	return &Snapshot{byCountry: idx, loadedAt: loadedAt}
}

// Lookup returns the region in force for countryCode on date, or ROW.
func (s *Snapshot) Lookup(countryCode string, date time.Time) string {
	if s == nil {
		return ROW
	}
	date = truncate(date)
	for _, sp := range s.byCountry[strings.ToUpper(strings.TrimSpace(countryCode))] {
		if date.Before(sp.from) {
			continue
		}
		if sp.to == nil || date.Before(*sp.to) {
			return sp.region
		}
	}
	return ROW
}

// LookupString accepts an ISO date; an empty or invalid date means fallback.
func (s *Snapshot) LookupString(countryCode, date string, fallback time.Time) string {
	d := fallback
	if date != "" {
		if parsed, err := ParseDate(date); err == nil {
			d = parsed
		}
	}
	return s.Lookup(countryCode, d)
}

// RegionDefaultRates returns, for each region, the country default rate shared by
// every country mapped to it on date. Regions whose countries disagree are omitted.
func (s *Snapshot) RegionDefaultRates(date time.Time) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	if s == nil {
		return out
	}
	date = truncate(date)
	conflicting := make(map[string]bool)
	for _, spans := range s.byCountry {
		for _, sp := range spans {
			if date.Before(sp.from) || (sp.to != nil && !date.Before(*sp.to)) {
				continue
			}
			if prev, seen := out[sp.region]; seen && !prev.Equal(sp.rate) {
				conflicting[sp.region] = true
			}
			out[sp.region] = sp.rate
			break
		}
	}
	for code := range conflicting {
		delete(out, code)
	}
	return out
}

func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

func (s *Snapshot) Countries() []string {
	out := make([]string, 0, len(s.byCountry))
	for iso := range s.byCountry {
		out = append(out, iso)
	}
	sort.Strings(out)
	return out
}

// Registry is a read-through cache over a MappingSource. Calculations take a
// Snapshot at start; admin mutations call Invalidate so that only calculations
// started afterwards observe the change.
type Registry struct {
	source MappingSource
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	snapshot *Snapshot
}

func NewRegistry(source MappingSource, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{source: source, logger: logger, now: time.Now}
}

func (r *Registry) Snapshot(ctx context.Context) (*Snapshot, error) {
	r.mu.RLock()
	snap := r.snapshot
	r.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot != nil {
		return r.snapshot, nil
	}
	mappings, err := r.source.ListMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading country region mappings: %w", err)
	}
	r.snapshot = NewSnapshot(mappings, r.now())
	r.logger.Debug("region registry loaded", "mappings", len(mappings))
	return r.snapshot, nil
}

// LookupRegion resolves a country on date. Load failures degrade to ROW.
func (r *Registry) LookupRegion(ctx context.Context, countryCode string, date time.Time) string {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		r.logger.Warn("region lookup fell back to ROW", "country", countryCode, "error", err)
		return ROW
	}
	return snap.Lookup(countryCode, date)
}

func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.snapshot = nil
	r.mu.Unlock()
	r.logger.Info("region registry invalidated")
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string { return t.Format(dateLayout) }

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func truncatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := truncate(*t)
	return &v
}
