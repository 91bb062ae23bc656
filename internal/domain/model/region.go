package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Region is a taxation zone (UK, IE, EC, SA, CH, GG, ROW).
type Region struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(10);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Country struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ISOCode        string          `gorm:"type:char(2);uniqueIndex;not null" json:"iso_code"`
	Name           string          `gorm:"type:varchar(100);not null" json:"name"`
	DefaultVATRate decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0" json:"default_vat_rate"`
	Active         bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CountryRegionMapping assigns a country to a region for [EffectiveFrom, EffectiveTo).
// A nil EffectiveTo is open-ended. Rows are never mutated; a regulation change
// supersedes a mapping with a new row.
type CountryRegionMapping struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CountryID     uint       `gorm:"not null;index:idx_mapping_country_from,priority:1" json:"country_id"`
	Country       Country    `gorm:"foreignKey:CountryID" json:"country"`
	RegionID      uint       `gorm:"not null;index" json:"region_id"`
	Region        Region     `gorm:"foreignKey:RegionID" json:"region"`
	EffectiveFrom time.Time  `gorm:"type:date;not null;index:idx_mapping_country_from,priority:2" json:"effective_from"`
	EffectiveTo   *time.Time `gorm:"type:date" json:"effective_to"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Covers reports whether the mapping is in force on date.
func (m CountryRegionMapping) Covers(date time.Time) bool {
	if date.Before(m.EffectiveFrom) {
		return false
	}
	return m.EffectiveTo == nil || date.Before(*m.EffectiveTo)
}

// Overlaps reports whether [from, to) intersects the mapping's range.
func (m CountryRegionMapping) Overlaps(from time.Time, to *time.Time) bool {
	if to != nil && !m.EffectiveFrom.Before(*to) {
		return false
	}
	return m.EffectiveTo == nil || from.Before(*m.EffectiveTo)
}
