package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditRecord is an append-only row capturing one rule execution.
type AuditRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ExecutionID  string         `gorm:"type:varchar(64);not null;index" json:"execution_id"`
	CartID       *string        `gorm:"type:varchar(64);index" json:"cart_id"`
	OrderID      *string        `gorm:"type:varchar(64);index" json:"order_id"`
	RuleID       string         `gorm:"type:varchar(100);not null;index:idx_audit_rule_created,priority:1" json:"rule_id"`
	RuleVersion  int            `gorm:"not null" json:"rule_version"`
	InputContext datatypes.JSON `gorm:"type:jsonb" json:"input_context"`
	OutputData   datatypes.JSON `gorm:"type:jsonb" json:"output_data"`
	DurationMs   *int64         `json:"duration_ms"`
	CreatedAt    time.Time      `gorm:"index:idx_audit_rule_created,priority:2;index:idx_audit_created,sort:desc" json:"created_at"`
}

func (AuditRecord) TableName() string { return "vat_audit_records" }
