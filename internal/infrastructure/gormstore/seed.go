package gormstore

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

// Seed inserts regions, countries, mappings and rules into empty tables.
// Tables that already hold rows are left untouched.
func Seed(ctx context.Context, db *gorm.DB, regions []model.Region, countries []model.Country, mappings []model.CountryRegionMapping, rules []engine.Rule, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	return NewTxManager(db).RunInTx(ctx, func(ctx context.Context) error {
		tx := GetDB(ctx, db)

		var count int64
		if err := tx.Model(&model.Region{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := seedRegions(tx, regions, countries, mappings); err != nil {
				return err
			}
			logger.Info("seeded regions", "regions", len(regions), "countries", len(countries), "mappings", len(mappings))
		}

		if err := tx.Model(&model.RuleRecord{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			for _, r := range rules {
				rec, err := ToRecord(r)
				if err != nil {
					return err
				}
				if err := tx.Create(rec).Error; err != nil {
					return fmt.Errorf("seeding rule %s: %w", r.Ref(), err)
				}
			}
			logger.Info("seeded rules", "rules", len(rules))
		}
		return nil
	})
}

func seedRegions(tx *gorm.DB, regions []model.Region, countries []model.Country, mappings []model.CountryRegionMapping) error {
	regionIDs := make(map[string]uint, len(regions))
	for _, r := range regions {
		if err := tx.Create(&r).Error; err != nil {
			return fmt.Errorf("seeding region %s: %w", r.Code, err)
		}
		regionIDs[r.Code] = r.ID
	}
	countryIDs := make(map[string]uint, len(countries))
	for _, c := range countries {
		if err := tx.Create(&c).Error; err != nil {
			return fmt.Errorf("seeding country %s: %w", c.ISOCode, err)
		}
		countryIDs[c.ISOCode] = c.ID
	}
	for _, m := range mappings {
		countryID, okC := countryIDs[m.Country.ISOCode]
		regionID, okR := regionIDs[m.Region.Code]
		if !okC || !okR {
			return fmt.Errorf("seed mapping %s -> %s: unknown country or region", m.Country.ISOCode, m.Region.Code)
		}
		row := model.CountryRegionMapping{
			CountryID:     countryID,
			RegionID:      regionID,
			EffectiveFrom: m.EffectiveFrom,
			EffectiveTo:   m.EffectiveTo,
		}
		if err := tx.Omit("Country", "Region").Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
