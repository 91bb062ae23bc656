package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
	"github.com/Victor-armando18/service-vat/internal/domain/money"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
	"github.com/Victor-armando18/service-vat/internal/interfaces"
	"github.com/Victor-armando18/service-vat/internal/usecase/audit"
)

// CountryRateAuditRule is the audit rule_id of country default rate changes.
const CountryRateAuditRule = "admin.country_rate"

// Regions manages country→region mappings and country default rates. Every
// mutation invalidates the region registry so only later calculations see it.
type Regions struct {
	store    interfaces.RegionStore
	tx       interfaces.TxManager
	registry *region.Registry
	audit    audit.Recorder
	strict   bool
	logger   *slog.Logger
}

func NewRegions(store interfaces.RegionStore, tx interfaces.TxManager, registry *region.Registry, recorder audit.Recorder, strict bool, logger *slog.Logger) *Regions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Regions{store: store, tx: tx, registry: registry, audit: recorder, strict: strict, logger: logger}
}

type MappingRequest struct {
	CountryISO    string     `json:"country_iso"`
	RegionCode    string     `json:"region"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to"`
}

// CreateMapping inserts a mapping. Overlaps with existing ranges are returned
// as warnings, or rejected with domain.ErrMappingOverlap in strict mode.
func (a *Regions) CreateMapping(ctx context.Context, req MappingRequest) (*model.CountryRegionMapping, []string, error) {
	if req.EffectiveFrom.IsZero() {
		return nil, nil, errors.New("effective_from is required")
	}
	if req.EffectiveTo != nil && !req.EffectiveTo.After(req.EffectiveFrom) {
		return nil, nil, errors.New("effective_to must be after effective_from")
	}

	var (
		created  *model.CountryRegionMapping
		warnings []string
	)
	err := a.tx.RunInTx(ctx, func(ctx context.Context) error {
		country, err := a.store.FindCountry(ctx, strings.ToUpper(req.CountryISO))
		if err != nil {
			return err
		}
		reg, err := a.store.FindRegion(ctx, region.Normalize(req.RegionCode))
		if err != nil {
			return err
		}
		existing, err := a.store.MappingsForCountry(ctx, country.ID)
		if err != nil {
			return err
		}
		for _, m := range existing {
			if !m.Overlaps(req.EffectiveFrom, req.EffectiveTo) {
				continue
			}
			msg := fmt.Sprintf("%s: new range from %s overlaps mapping %d (%s from %s)",
				country.ISOCode, region.FormatDate(req.EffectiveFrom), m.ID, m.Region.Code, region.FormatDate(m.EffectiveFrom))
			if a.strict {
				return fmt.Errorf("%w: %s", domain.ErrMappingOverlap, msg)
			}
			warnings = append(warnings, msg)
			a.logger.Warn("country region mapping overlaps", "country", country.ISOCode, "existing_mapping", m.ID)
		}

		m := &model.CountryRegionMapping{
			CountryID:     country.ID,
			RegionID:      reg.ID,
			EffectiveFrom: req.EffectiveFrom.UTC(),
			EffectiveTo:   req.EffectiveTo,
		}
		if err := a.store.CreateMapping(ctx, m); err != nil {
			return err
		}
		m.Country, m.Region = *country, *reg
		created = m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	a.registry.Invalidate()
	a.logger.Info("country region mapping created",
		"country", created.Country.ISOCode, "region", created.Region.Code, "effective_from", region.FormatDate(created.EffectiveFrom))
	return created, warnings, nil
}

// UpdateCountryRate changes a country's default rate and records the change
// in the audit log.
func (a *Regions) UpdateCountryRate(ctx context.Context, isoCode, rate, actor string) error {
	parsed, err := money.ParseRate(rate)
	if err != nil {
		return err
	}
	iso := strings.ToUpper(strings.TrimSpace(isoCode))

	var previous string
	err = a.tx.RunInTx(ctx, func(ctx context.Context) error {
		country, err := a.store.FindCountry(ctx, iso)
		if err != nil {
			return err
		}
		previous = money.RateFromDecimal(country.DefaultVATRate).String()
		return a.store.UpdateCountryRate(ctx, iso, parsed.Decimal())
	})
	if err != nil {
		return err
	}

	a.registry.Invalidate()
	a.audit.Record(ctx, audit.Entry{
		ExecutionID:  "admin_" + uuid.NewString(),
		RuleID:       CountryRateAuditRule,
		InputContext: map[string]any{"country": iso, "previous_rate": previous, "actor": actor},
		OutputData:   map[string]any{"country": iso, "default_vat_rate": parsed.String()},
	})
	a.logger.Info("country default rate updated", "country", iso, "from", previous, "to", parsed.String(), "actor", actor)
	return nil
}
