package model

import (
	"time"

	"gorm.io/datatypes"
)

// RuleRecord is the persisted form of a versioned rule. Condition holds a JSONLogic
// tree and Actions an ordered list of tagged action objects.
type RuleRecord struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	RuleID         string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_rule_version,priority:1" json:"rule_id"`
	Version        int            `gorm:"not null;uniqueIndex:idx_rule_version,priority:2" json:"version"`
	EntryPoint     string         `gorm:"type:varchar(100);not null;index:idx_rule_entry_active,priority:1" json:"entry_point"`
	Priority       int            `gorm:"not null;default:100" json:"priority"`
	Active         bool           `gorm:"not null;default:true;index:idx_rule_entry_active,priority:2" json:"active"`
	Condition      datatypes.JSON `gorm:"type:jsonb" json:"condition"`
	Actions        datatypes.JSON `gorm:"type:jsonb;not null" json:"actions"`
	StopProcessing bool           `gorm:"not null;default:false" json:"stop_processing"`
	RulesFieldsID  string         `gorm:"type:varchar(100)" json:"rules_fields_id"`
	Description    string         `gorm:"type:text" json:"description"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (RuleRecord) TableName() string { return "rules" }
