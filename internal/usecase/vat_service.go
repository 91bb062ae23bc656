package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/functions"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
	"github.com/Victor-armando18/service-vat/internal/domain/money"
	"github.com/Victor-armando18/service-vat/internal/domain/rates"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
	"github.com/Victor-armando18/service-vat/internal/interfaces"
	"github.com/Victor-armando18/service-vat/internal/usecase/audit"
	"github.com/Victor-armando18/service-vat/internal/usecase/vatcontext"
)

// VATService computes cart VAT by running the cart_calculate_vat rules once per item.
type VATService struct {
	rules   engine.RuleSource
	regions *region.Registry
	rates   *rates.Table
	engine  *engine.Engine
	audit   audit.Recorder
	results interfaces.CartResultStore
	differ  interfaces.Differ
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

type Option func(*VATService)

func WithRateTable(t *rates.Table) Option { return func(s *VATService) { s.rates = t } }

func WithCartResults(store interfaces.CartResultStore) Option {
	return func(s *VATService) { s.results = store }
}

func WithDiffer(d interfaces.Differ) Option { return func(s *VATService) { s.differ = d } }

func WithLogger(l *slog.Logger) Option { return func(s *VATService) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *VATService) { s.now = now } }

func WithIDGenerator(gen func() string) Option { return func(s *VATService) { s.newID = gen } }

// NewVATService wires the orchestrator. eng supplies the evaluator, patcher and
// schemas; its rules and functions are replaced per calculation.
func NewVATService(rules engine.RuleSource, regions *region.Registry, eng *engine.Engine, recorder audit.Recorder, opts ...Option) interfaces.VATCalculator {
	return newVATService(rules, regions, eng, recorder, opts...)
}

func newVATService(rules engine.RuleSource, regions *region.Registry, eng *engine.Engine, recorder audit.Recorder, opts ...Option) *VATService {
	s := &VATService{
		rules:   rules,
		regions: regions,
		rates:   rates.DefaultTable(),
		engine:  eng,
		audit:   recorder,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   func() string { return "exec_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type calculation struct {
	result    domain.VATResult
	cart      model.CartSnapshot
	versions  int
	executed  int
	breakdown map[string]int
}

// CalculateVAT never returns an error: failures are reported in the result's
// status and error fields. A zero effectiveDate means today.
func (s *VATService) CalculateVAT(ctx context.Context, user *model.User, cart model.CartSnapshot, effectiveDate time.Time) domain.VATResult {
	started := s.now().UTC()
	date := effectiveDate
	if date.IsZero() {
		date = started
	}

	calc := &calculation{
		cart:      cart,
		breakdown: make(map[string]int),
		result: domain.VATResult{
			Status:         domain.StatusCalculated,
			Region:         region.ROW,
			Totals:         domain.ZeroTotals(),
			Items:          []domain.ItemResult{},
			Breakdown:      []domain.BreakdownRow{},
			ExecutionID:    s.newID(),
			Timestamp:      started,
			ContextVersion: domain.ContextVersion,
		},
	}

	snap, err := s.regions.Snapshot(ctx)
	if err != nil {
		return s.finish(ctx, calc, nil, started, err)
	}
	rules, err := s.rules.ListRules(ctx, domain.EntryPointCartCalculateVAT)
	if err != nil {
		return s.finish(ctx, calc, nil, started, fmt.Errorf("%w: %v", domain.ErrRuleConfiguration, err))
	}

	vctx, err := vatcontext.Build(user, cart, snap, date)
	if err != nil {
		return s.finish(ctx, calc, nil, started, err)
	}
	calc.result.Region = vctx.User.Region
	cartInput, err := vctx.ToMap()
	if err != nil {
		return s.finish(ctx, calc, nil, started, err)
	}

	table := s.rates.WithRegionDefaults(regionRates(snap.RegionDefaultRates(date)))
	eng := s.engine.
		WithRules(engine.StaticRules(rules)).
		WithFunctions(functions.Builtins(functions.Bindings{Regions: snap, Rates: table, EffectiveDate: date}))

	for i, item := range vctx.Cart.Items {
		input, err := vctx.ItemContext(i)
		if err != nil {
			return s.finish(ctx, calc, cartInput, started, err)
		}
		itemStarted := time.Now()
		out := eng.Execute(ctx, domain.EntryPointCartCalculateVAT, input)
		elapsed := time.Since(itemStarted).Milliseconds()

		line, foldErr := foldItem(item, out)
		s.recordItem(ctx, calc, input, out, elapsed)
		if err := out.Err(); err != nil {
			return s.finish(ctx, calc, cartInput, started, fmt.Errorf("item %s: %w", item.ItemID, err))
		}
		if foldErr != nil {
			return s.finish(ctx, calc, cartInput, started, fmt.Errorf("item %s: %w", item.ItemID, foldErr))
		}
		calc.add(line, item.Quantity)
	}
	return s.finish(ctx, calc, cartInput, started, nil)
}

func regionRates(in map[string]decimal.Decimal) map[string]money.Rate {
	out := make(map[string]money.Rate, len(in))
	for code, d := range in {
		out[code] = money.RateFromDecimal(d)
	}
	return out
}

// foldItem reads the rule outputs of one item execution. Net comes from the
// context builder; gross is always net + vat.
func foldItem(item vatcontext.Item, out engine.ExecutionResult) (domain.ItemResult, error) {
	outItem, _ := out.Context["item"].(map[string]any)
	vatNS, _ := out.Context["vat"].(map[string]any)

	rawVAT, ok := outItem["vat_amount"]
	if !ok {
		return domain.ItemResult{}, fmt.Errorf("%w: rules produced no item.vat_amount", domain.ErrRuleConfiguration)
	}
	if msg, isErr := functions.IsError(rawVAT); isErr {
		return domain.ItemResult{}, fmt.Errorf("%w: %s", domain.ErrInputMissing, msg)
	}
	vatStr, _ := rawVAT.(string)
	vat, err := money.Parse(vatStr)
	if err != nil {
		return domain.ItemResult{}, fmt.Errorf("%w: item.vat_amount: %v", domain.ErrRuleConfiguration, err)
	}

	rateStr := firstString(outItem["vat_rate"], vatNS["rate"])
	rate, err := money.ParseRate(rateStr)
	if err != nil {
		return domain.ItemResult{}, fmt.Errorf("%w: vat rate: %v", domain.ErrRuleConfiguration, err)
	}

	ruleApplied := firstString(outItem["rule_applied"])
	if ruleApplied == "" {
		if last := out.LastApplied(); last != nil {
			ruleApplied = fmt.Sprintf("%s:v%d", last.RuleID, last.Version)
		}
	}

	return domain.ItemResult{
		ID:          item.ItemID,
		NetAmount:   item.NetAmount,
		VATRate:     rate,
		VATAmount:   vat,
		VATRegion:   region.Normalize(firstString(outItem["vat_region"], vatNS["region"], region.ROW)),
		GrossAmount: item.NetAmount.Add(vat),
		RuleApplied: ruleApplied,
	}, nil
}

func firstString(vals ...any) string {
	for _, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (c *calculation) add(line domain.ItemResult, quantity int64) {
	r := &c.result
	r.Items = append(r.Items, line)
	r.Totals.Net = r.Totals.Net.Add(line.NetAmount)
	r.Totals.VAT = r.Totals.VAT.Add(line.VATAmount)
	r.Totals.Gross = r.Totals.Net.Add(r.Totals.VAT)

	key := line.VATRegion + "|" + line.VATRate.String()
	idx, ok := c.breakdown[key]
	if !ok {
		r.Breakdown = append(r.Breakdown, domain.BreakdownRow{
			Region: line.VATRegion,
			Rate:   line.VATRate.Percent(),
			Net:    money.Zero,
			VAT:    money.Zero,
			Gross:  money.Zero,
		})
		idx = len(r.Breakdown) - 1
		c.breakdown[key] = idx
	}
	row := &r.Breakdown[idx]
	row.ItemCount += int(quantity)
	row.Net = row.Net.Add(line.NetAmount)
	row.VAT = row.VAT.Add(line.VATAmount)
	row.Gross = row.Net.Add(row.VAT)
}

func (s *VATService) recordItem(ctx context.Context, calc *calculation, input map[string]any, out engine.ExecutionResult, elapsed int64) {
	ruleID, version := domain.EntryPointCartCalculateVAT, 0
	if last := out.LastApplied(); last != nil {
		ruleID, version = last.RuleID, last.Version
	}
	for _, e := range out.RulesExecuted {
		if e.Version > calc.versions {
			calc.versions = e.Version
		}
	}

	output := map[string]any{
		"item":           out.Context["item"],
		"vat":            out.Context["vat"],
		"rules_executed": out.RulesExecuted,
		"messages":       out.Messages,
		"ok":             out.OK,
		"errors":         out.Errors,
	}
	if s.differ != nil {
		output["delta"] = s.differ.Diff(input, out.Context)
	}
	calc.executed++

	s.audit.Record(ctx, audit.Entry{
		ExecutionID:  calc.result.ExecutionID,
		CartID:       cartID(calc.cart),
		OrderID:      calc.cart.OrderID,
		RuleID:       ruleID,
		RuleVersion:  version,
		InputContext: input,
		OutputData:   output,
		DurationMs:   &elapsed,
	})
}

// finish writes the cart-level audit row, stores the cart state and returns the
// result. On failure the returned result carries no partial totals; the audit
// row keeps them.
func (s *VATService) finish(ctx context.Context, calc *calculation, input map[string]any, started time.Time, failure error) domain.VATResult {
	partial := calc.result
	result := calc.result
	if failure != nil {
		result.Status = domain.StatusError
		result.Error = failure.Error()
		result.Totals = domain.ZeroTotals()
		result.Items = []domain.ItemResult{}
		result.Breakdown = []domain.BreakdownRow{}
		partial.Status = domain.StatusError
		partial.Error = failure.Error()
	}

	elapsed := s.now().UTC().Sub(started).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	s.audit.Record(ctx, audit.Entry{
		ExecutionID:  result.ExecutionID,
		CartID:       cartID(calc.cart),
		OrderID:      calc.cart.OrderID,
		RuleID:       domain.EntryPointCartCalculateVAT,
		RuleVersion:  calc.versions,
		InputContext: input,
		OutputData:   map[string]any{"result": partial, "item_executions": calc.executed},
		DurationMs:   &elapsed,
	})

	s.saveState(ctx, calc.cart.ID, result)

	if failure != nil {
		s.logger.Warn("vat calculation failed",
			"execution_id", result.ExecutionID, "cart_id", calc.cart.ID, "error", failure)
	} else {
		s.logger.Info("vat calculated",
			"execution_id", result.ExecutionID, "cart_id", calc.cart.ID,
			"region", result.Region, "items", len(result.Items), "vat", result.Totals.VAT.String())
	}
	return result
}

func (s *VATService) saveState(ctx context.Context, id string, result domain.VATResult) {
	if s.results == nil || id == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("encode cart vat state", "cart_id", id, "error", err)
		return
	}
	at := result.Timestamp
	state := &model.CartVATState{
		CartID:              id,
		VATResult:           payload,
		VATLastCalculatedAt: &at,
		VATCalculationError: result.Status == domain.StatusError,
	}
	if state.VATCalculationError {
		state.VATCalculationErrorMessage = result.Error
	}
	if err := s.results.SaveCartVATState(ctx, state); err != nil {
		s.logger.Error("save cart vat state failed", "cart_id", id, "error", err)
	}
}

func cartID(c model.CartSnapshot) *string {
	if c.ID == "" {
		return nil
	}
	id := c.ID
	return &id
}
