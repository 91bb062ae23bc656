package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

type RegionStore struct {
	db *gorm.DB
}

func NewRegionStore(db *gorm.DB) *RegionStore {
	return &RegionStore{db: db}
}

func (s *RegionStore) ListMappings(ctx context.Context) ([]model.CountryRegionMapping, error) {
	var mappings []model.CountryRegionMapping
	err := GetDB(ctx, s.db).Preload("Country").Preload("Region").
		Order("country_id, effective_from").Find(&mappings).Error
	return mappings, err
}

func (s *RegionStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	var regions []model.Region
	err := GetDB(ctx, s.db).Order("code").Find(&regions).Error
	return regions, err
}

func (s *RegionStore) FindRegion(ctx context.Context, code string) (*model.Region, error) {
	var r model.Region
	if err := GetDB(ctx, s.db).First(&r, "code = ?", strings.ToUpper(code)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRegion, code)
		}
		return nil, err
	}
	return &r, nil
}

func (s *RegionStore) FindCountry(ctx context.Context, isoCode string) (*model.Country, error) {
	var c model.Country
	if err := GetDB(ctx, s.db).First(&c, "iso_code = ?", strings.ToUpper(isoCode)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCountry, isoCode)
		}
		return nil, err
	}
	return &c, nil
}

func (s *RegionStore) MappingsForCountry(ctx context.Context, countryID uint) ([]model.CountryRegionMapping, error) {
	var mappings []model.CountryRegionMapping
	err := GetDB(ctx, s.db).Preload("Country").Preload("Region").
		Where("country_id = ?", countryID).Order("effective_from").Find(&mappings).Error
	return mappings, err
}

func (s *RegionStore) CreateMapping(ctx context.Context, m *model.CountryRegionMapping) error {
	return GetDB(ctx, s.db).Omit("Country", "Region").Create(m).Error
}

func (s *RegionStore) UpdateCountryRate(ctx context.Context, isoCode string, rate decimal.Decimal) error {
	res := GetDB(ctx, s.db).Model(&model.Country{}).
		Where("iso_code = ?", strings.ToUpper(isoCode)).
		Update("default_vat_rate", rate)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrUnknownCountry, isoCode)
	}
	return nil
}
