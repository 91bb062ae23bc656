package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ruleengine "github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/functions"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
	"github.com/Victor-armando18/service-vat/internal/infrastructure"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/diff"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/memory"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/seed"
	"github.com/Victor-armando18/service-vat/internal/interfaces"
	"github.com/Victor-armando18/service-vat/internal/usecase"
	"github.com/Victor-armando18/service-vat/internal/usecase/audit"
)

// Calculator is a self-contained VAT calculator over the built-in region seed,
// with an in-memory audit log.
type Calculator struct {
	calculator interfaces.VATCalculator
	rules      *memory.RuleStore
	registry   *region.Registry
	audit      *memory.AuditStore
}

type Option func(*options)

type options struct {
	pack   *RulePack
	logger *slog.Logger
}

// WithRulePack replaces the built-in rules.
func WithRulePack(p RulePack) Option { return func(o *options) { o.pack = &p } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func NewCalculator(opts ...Option) (*Calculator, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	pack, err := seed.DefaultRulePack()
	if err != nil {
		return nil, err
	}
	if o.pack != nil {
		pack = *o.pack
	}
	if err := pack.Validate(functions.Builtins(functions.Bindings{}), ruleengine.DefaultSchemas()); err != nil {
		return nil, fmt.Errorf("invalid rule pack: %w", err)
	}

	regions := memory.NewRegionStore()
	if err := regions.Seed(seed.Regions(), seed.Countries(), seed.Mappings()); err != nil {
		return nil, err
	}
	c := &Calculator{
		rules:    memory.NewRuleStore(pack.Rules...),
		registry: region.NewRegistry(regions, o.logger),
		audit:    memory.NewAuditStore(),
	}
	eng := interfaces.NewEngine(nil, nil, ruleengine.WithLogger(o.logger))
	c.calculator = usecase.NewVATService(c.rules, c.registry, eng, audit.NewWriter(c.audit, o.logger),
		usecase.WithDiffer(&diff.Differ{}),
		usecase.WithLogger(o.logger),
	)
	return c, nil
}

// CalculateVAT computes VAT for cart; a zero effectiveDate means today.
func (c *Calculator) CalculateVAT(ctx context.Context, user *User, cart CartSnapshot, effectiveDate time.Time) VATResult {
	return c.calculator.CalculateVAT(ctx, user, cart, effectiveDate)
}

// LookupRegion resolves the VAT region of a country on date.
func (c *Calculator) LookupRegion(ctx context.Context, countryCode string, date time.Time) string {
	return c.registry.LookupRegion(ctx, countryCode, date)
}

func (c *Calculator) Rules(ctx context.Context) ([]Rule, error) {
	return c.rules.ListRules(ctx, EntryPointCartCalculateVAT)
}

// AuditTrail returns the audit rows of one calculation, newest first.
func (c *Calculator) AuditTrail(ctx context.Context, executionID string) ([]AuditRecord, error) {
	return c.audit.ListByExecution(ctx, executionID)
}

// NewFileLoader reads YAML or JSON rule packs relative to baseDir.
func NewFileLoader(baseDir string) RulePackLoader {
	return infrastructure.NewFileRuleLoader(baseDir)
}
