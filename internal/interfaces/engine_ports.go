package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

// RulePackLoader reads rule packs from disk, network or embedded files.
type RulePackLoader interface {
	Load(ctx context.Context, name string) (*engine.RulePack, error)
}

// RuleStore holds versioned rules. ListRules returns only the highest active
// version of each rule, ordered by (priority, rule_id).
type RuleStore interface {
	engine.RuleSource
	ListVersions(ctx context.Context, ruleID string) ([]engine.Rule, error)
	// PublishRule stores r as the next version of its rule_id and deactivates
	// the older versions in the same transaction.
	PublishRule(ctx context.Context, r engine.Rule) (engine.Rule, error)
	DeactivateRule(ctx context.Context, ruleID string, version int) error
}

// RegionStore holds regions, countries and their effective-dated mappings.
type RegionStore interface {
	ListMappings(ctx context.Context) ([]model.CountryRegionMapping, error)
	ListRegions(ctx context.Context) ([]model.Region, error)
	FindRegion(ctx context.Context, code string) (*model.Region, error)
	FindCountry(ctx context.Context, isoCode string) (*model.Country, error)
	MappingsForCountry(ctx context.Context, countryID uint) ([]model.CountryRegionMapping, error)
	CreateMapping(ctx context.Context, m *model.CountryRegionMapping) error
	UpdateCountryRate(ctx context.Context, isoCode string, rate decimal.Decimal) error
}

// AuditSink accepts append-only audit records.
type AuditSink interface {
	Append(ctx context.Context, rec *model.AuditRecord) error
}

// AuditStore is an AuditSink that can be queried, newest first.
type AuditStore interface {
	AuditSink
	ListByCart(ctx context.Context, cartID string) ([]model.AuditRecord, error)
	ListByExecution(ctx context.Context, executionID string) ([]model.AuditRecord, error)
	ListByRule(ctx context.Context, ruleID string, limit int) ([]model.AuditRecord, error)
}

// CartResultStore keeps the latest VAT result per cart.
type CartResultStore interface {
	SaveCartVATState(ctx context.Context, state *model.CartVATState) error
	GetCartVATState(ctx context.Context, cartID string) (*model.CartVATState, error)
}

// TxManager runs fn in a transaction carried by ctx.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// VATCalculator is the entry point collaborators call.
type VATCalculator interface {
	CalculateVAT(ctx context.Context, user *model.User, cart model.CartSnapshot, effectiveDate time.Time) domain.VATResult
}

// Differ computes the flattened delta between two contexts.
type Differ interface {
	Diff(before, after map[string]any) map[string]any
}
