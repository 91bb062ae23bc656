package domain

import (
	"errors"
	"time"

	"github.com/Victor-armando18/service-vat/internal/domain/money"
)

// --- Entry points and constants ---

const (
	EntryPointCartCalculateVAT = "cart_calculate_vat"
	ContextVersion             = "1.0"
	DefaultRegion              = "ROW"
)

type Status string

const (
	StatusCalculated    Status = "calculated"
	StatusError         Status = "error"
	StatusNotCalculated Status = "not_calculated"
)

// --- Result shapes ---

type Totals struct {
	Net   money.Money `json:"net"`
	VAT   money.Money `json:"vat"`
	Gross money.Money `json:"gross"`
}

type ItemResult struct {
	ID          string      `json:"id"`
	NetAmount   money.Money `json:"net_amount"`
	VATRate     money.Rate  `json:"vat_rate"`
	VATAmount   money.Money `json:"vat_amount"`
	VATRegion   string      `json:"vat_region"`
	GrossAmount money.Money `json:"gross_amount"`
	RuleApplied string      `json:"rule_applied"`
}

// BreakdownRow aggregates items sharing (region, rate). Rate is a percentage string.
type BreakdownRow struct {
	Region    string      `json:"region"`
	Rate      string      `json:"rate"`
	ItemCount int         `json:"item_count"`
	Net       money.Money `json:"net"`
	VAT       money.Money `json:"vat"`
	Gross     money.Money `json:"gross"`
}

// VATResult is the orchestrator's return value and the JSON shape consumers depend on.
type VATResult struct {
	Status         Status         `json:"status"`
	Region         string         `json:"region"`
	Totals         Totals         `json:"totals"`
	Items          []ItemResult   `json:"items"`
	Breakdown      []BreakdownRow `json:"breakdown"`
	ExecutionID    string         `json:"execution_id"`
	Timestamp      time.Time      `json:"timestamp"`
	ContextVersion string         `json:"context_version"`
	Error          string         `json:"error,omitempty"`
}

func ZeroTotals() Totals {
	return Totals{Net: money.Zero, VAT: money.Zero, Gross: money.Zero}
}

// --- Error kinds ---

var (
	ErrInputMissing      = errors.New("input missing")
	ErrRuleConfiguration = errors.New("rule configuration error")
	ErrRuleCondition     = errors.New("rule condition error")
	ErrAuditWrite        = errors.New("audit write failed")
	ErrMappingOverlap    = errors.New("country region mapping overlaps an existing range")
	ErrUnknownRegion     = errors.New("unknown region")
	ErrUnknownCountry    = errors.New("unknown country")
	ErrRuleNotFound      = errors.New("rule not found")
	ErrCartStateNotFound = errors.New("cart vat state not found")
)
