package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
	"github.com/Victor-armando18/service-vat/internal/domain/money"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
	"github.com/Victor-armando18/service-vat/internal/infrastructure"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/diff"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/jsonlogic"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/memory"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/seed"
	"github.com/Victor-armando18/service-vat/internal/interfaces"
	"github.com/Victor-armando18/service-vat/internal/usecase/audit"
)

var effective = time.Date(2025, 1, 30, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *VATService
	audit   *memory.AuditStore
	results *memory.CartResultStore
}

func newFixture(t *testing.T, rules engine.RuleSource, sink interfaces.AuditSink) fixture {
	t.Helper()
	regions := memory.NewRegionStore()
	if err := regions.Seed(seed.Regions(), seed.Countries(), seed.Mappings()); err != nil {
		t.Fatalf("seed regions: %v", err)
	}
	if rules == nil {
		rules = memory.NewRuleStore(seed.MustDefaultRules()...)
	}
	auditStore := memory.NewAuditStore()
	if sink == nil {
		sink = auditStore
	}
	results := memory.NewCartResultStore()
	eng := engine.New(nil, jsonlogic.NewEvaluator(), nil, infrastructure.NewMergePatcher())

	seq := 0
	svc := newVATService(rules, region.NewRegistry(regions, nil), eng, audit.NewWriter(sink, nil),
		WithCartResults(results),
		WithDiffer(&diff.Differ{}),
		WithClock(func() time.Time { return effective }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("exec_%d", seq) }),
	)
	return fixture{svc: svc, audit: auditStore, results: results}
}

func str(s string) *string { return &s }

func item(id, code, price string, qty int64) model.CartItem {
	p := money.MustParse(price)
	return model.CartItem{ItemID: id, ProductCode: str(code), Quantity: qty, ActualPrice: &p}
}

func userIn(country string) *model.User {
	return &model.User{ID: str("user-1"), Address: &model.Address{Country: country}}
}

func TestCalculateVAT_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		country string
		items   []model.CartItem
		region  string
		rate    string
		vat     string
		gross   string
	}{
		{"UK eBook", "GB", []model.CartItem{item("1", "MAT-EBOOK-CS2", "50.00", 1)}, "UK", "0.0000", "0.00", "50.00"},
		{"UK printed material", "GB", []model.CartItem{item("1", "MAT-PRINT-CS2", "100.00", 1)}, "UK", "0.2000", "20.00", "120.00"},
		{"SA live tutorial", "ZA", []model.CartItem{item("1", "TUT-LIVE-CS2", "500.00", 1)}, "SA", "0.1500", "75.00", "575.00"},
		{"ROW digital", "US", []model.CartItem{item("1", "MAT-EBOOK-CS2", "100.00", 1)}, "ROW", "0.0000", "0.00", "100.00"},
		{"unknown country", "XX", []model.CartItem{item("1", "MAT-PRINT-CS2", "100.00", 1)}, "ROW", "0.0000", "0.00", "100.00"},
		{"Ireland", "IE", []model.CartItem{item("1", "MAT-PRINT-CS2", "10.00", 1)}, "IE", "0.2300", "2.30", "12.30"},
		{"rounding", "GB", []model.CartItem{item("1", "MAT-PRINT-CS2", "33.33", 3)}, "UK", "0.2000", "20.00", "119.99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			res := f.svc.CalculateVAT(context.Background(), userIn(tt.country), model.CartSnapshot{ID: "cart-1", Items: tt.items}, effective)
			if res.Status != domain.StatusCalculated {
				t.Fatalf("status = %s (%s)", res.Status, res.Error)
			}
			if res.Region != tt.region {
				t.Errorf("region = %s, want %s", res.Region, tt.region)
			}
			line := res.Items[0]
			if line.VATRegion != tt.region || line.VATRate.String() != tt.rate || line.VATAmount.String() != tt.vat || line.GrossAmount.String() != tt.gross {
				t.Errorf("item = region %s rate %s vat %s gross %s, want %s %s %s %s",
					line.VATRegion, line.VATRate, line.VATAmount, line.GrossAmount, tt.region, tt.rate, tt.vat, tt.gross)
			}
			if line.RuleApplied != "vat_calculate_amount:v1" {
				t.Errorf("rule_applied = %s", line.RuleApplied)
			}
		})
	}
}

func TestCalculateVAT_MixedCart(t *testing.T) {
	f := newFixture(t, nil, nil)
	cart := model.CartSnapshot{ID: "cart-mixed", Items: []model.CartItem{
		item("ebook", "MAT-EBOOK-CS2", "50.00", 1),
		item("print", "MAT-PRINT-CS2", "100.00", 2),
	}}
	res := f.svc.CalculateVAT(context.Background(), userIn("GB"), cart, effective)
	if res.Status != domain.StatusCalculated {
		t.Fatalf("status = %s (%s)", res.Status, res.Error)
	}
	if res.Items[0].VATAmount.String() != "0.00" || res.Items[1].VATAmount.String() != "40.00" {
		t.Errorf("item vat = %s, %s", res.Items[0].VATAmount, res.Items[1].VATAmount)
	}
	if res.Totals.Net.String() != "250.00" || res.Totals.VAT.String() != "40.00" || res.Totals.Gross.String() != "290.00" {
		t.Errorf("totals = %+v", res.Totals)
	}
	if len(res.Breakdown) != 2 {
		t.Fatalf("breakdown = %+v", res.Breakdown)
	}
	zero, standard := res.Breakdown[0], res.Breakdown[1]
	if zero.Region != "UK" || zero.Rate != "0%" || zero.ItemCount != 1 || zero.Net.String() != "50.00" {
		t.Errorf("zero-rated row = %+v", zero)
	}
	if standard.Region != "UK" || standard.Rate != "20%" || standard.ItemCount != 2 || standard.Gross.String() != "240.00" {
		t.Errorf("standard row = %+v", standard)
	}

	records := f.audit.Records()
	if len(records) != 3 {
		t.Fatalf("expected 2 item records and 1 cart record, got %d", len(records))
	}
	for _, rec := range records[:2] {
		if rec.RuleID != "vat_calculate_amount" || rec.RuleVersion != 1 || rec.ExecutionID != res.ExecutionID {
			t.Errorf("item audit = %+v", rec)
		}
		if !strings.Contains(string(rec.OutputData), `"item.vat_amount"`) {
			t.Errorf("item audit output lacks delta: %s", rec.OutputData)
		}
	}
	cartRec := records[2]
	if cartRec.RuleID != domain.EntryPointCartCalculateVAT || *cartRec.CartID != "cart-mixed" || cartRec.RuleVersion != 1 {
		t.Errorf("cart audit = %+v", cartRec)
	}

	state, err := f.results.GetCartVATState(context.Background(), "cart-mixed")
	if err != nil {
		t.Fatalf("cart state not saved: %v", err)
	}
	if state.VATCalculationError || state.VATLastCalculatedAt == nil {
		t.Errorf("state = %+v", state)
	}
}

func TestCalculateVAT_EmptyCart(t *testing.T) {
	f := newFixture(t, nil, nil)
	res := f.svc.CalculateVAT(context.Background(), userIn("GB"), model.CartSnapshot{ID: "empty"}, effective)
	if res.Status != domain.StatusCalculated || res.Region != "UK" {
		t.Fatalf("result = %+v", res)
	}
	if !res.Totals.Net.IsZero() || !res.Totals.VAT.IsZero() || !res.Totals.Gross.IsZero() {
		t.Errorf("totals = %+v", res.Totals)
	}
	if len(res.Items) != 0 || len(res.Breakdown) != 0 {
		t.Errorf("items = %v breakdown = %v", res.Items, res.Breakdown)
	}
}

func TestCalculateVAT_InputMissing(t *testing.T) {
	f := newFixture(t, nil, nil)
	cart := model.CartSnapshot{ID: "bad", Items: []model.CartItem{{ItemID: "1", Quantity: 1}}}
	res := f.svc.CalculateVAT(context.Background(), userIn("GB"), cart, effective)
	if res.Status != domain.StatusError || !strings.Contains(res.Error, "actual_price") {
		t.Fatalf("result = %+v", res)
	}
	records := f.audit.Records()
	if len(records) != 1 || records[0].RuleID != domain.EntryPointCartCalculateVAT {
		t.Errorf("expected only the cart-level audit row, got %+v", records)
	}
	state, err := f.results.GetCartVATState(context.Background(), "bad")
	if err != nil || !state.VATCalculationError || state.VATCalculationErrorMessage == "" {
		t.Errorf("state = %+v, err = %v", state, err)
	}
}

func TestCalculateVAT_RuleConfigurationError(t *testing.T) {
	rules := append(seed.MustDefaultRules(), engine.Rule{
		RuleID: "vat_broken", Version: 1, EntryPoint: domain.EntryPointCartCalculateVAT, Priority: 15, Active: true,
		Actions: []engine.Action{{Type: engine.ActionCallFunction, Name: "no_such_function", OutputKey: "vat.x"}},
	})
	f := newFixture(t, memory.NewRuleStore(rules...), nil)
	cart := model.CartSnapshot{ID: "c", Items: []model.CartItem{item("1", "MAT-PRINT-CS2", "100.00", 1)}}

	res := f.svc.CalculateVAT(context.Background(), userIn("GB"), cart, effective)
	if res.Status != domain.StatusError || !strings.Contains(res.Error, "no_such_function") {
		t.Fatalf("result = %+v", res)
	}
	if !res.Totals.Gross.IsZero() || len(res.Items) != 0 {
		t.Errorf("error result must not carry partial totals: %+v", res)
	}
	records := f.audit.Records()
	if len(records) != 2 {
		t.Fatalf("expected item and cart audit rows, got %d", len(records))
	}
	if !strings.Contains(string(records[1].OutputData), `"status":"error"`) {
		t.Errorf("cart audit output = %s", records[1].OutputData)
	}
}

type brokenSink struct{ calls int }

func (b *brokenSink) Append(context.Context, *model.AuditRecord) error {
	b.calls++
	return errors.New("audit table unavailable")
}

func TestCalculateVAT_AuditFailureIsSwallowed(t *testing.T) {
	sink := &brokenSink{}
	f := newFixture(t, nil, sink)
	cart := model.CartSnapshot{ID: "c", Items: []model.CartItem{item("1", "MAT-PRINT-CS2", "100.00", 1)}}

	res := f.svc.CalculateVAT(context.Background(), userIn("GB"), cart, effective)
	if res.Status != domain.StatusCalculated || res.Totals.Gross.String() != "120.00" {
		t.Fatalf("result = %+v", res)
	}
	if sink.calls != 2 {
		t.Errorf("expected one attempt per record without retries, got %d", sink.calls)
	}
}

func TestCalculateVAT_JSONShape(t *testing.T) {
	f := newFixture(t, nil, nil)
	cart := model.CartSnapshot{ID: "c", Items: []model.CartItem{item("1", "MAT-PRINT-CS2", "100.00", 1)}}
	res := f.svc.CalculateVAT(context.Background(), userIn("GB"), cart, effective)

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	for _, fragment := range []string{
		`"status":"calculated"`,
		`"totals":{"net":"100.00","vat":"20.00","gross":"120.00"}`,
		`"vat_rate":"0.2000"`,
		`"rate":"20%"`,
		`"execution_id":"exec_1"`,
		`"timestamp":"2025-01-30T10:00:00Z"`,
		`"context_version":"1.0"`,
	} {
		if !strings.Contains(string(data), fragment) {
			t.Errorf("JSON lacks %s: %s", fragment, data)
		}
	}
	if strings.Contains(string(data), `"error"`) {
		t.Errorf("successful result must omit error: %s", data)
	}
}

func TestCalculateVAT_Invariants(t *testing.T) {
	f := newFixture(t, nil, nil)
	rng := rand.New(rand.NewSource(7))
	codes := []string{"MAT-EBOOK-CS2", "MAT-PRINT-CS2", "TUT-LIVE-CS2", "MARK-CS2", "FLASH-CS2", "X"}
	countries := []string{"GB", "IE", "ZA", "DE", "US", "CH"}

	for n := 0; n < 40; n++ {
		var items []model.CartItem
		for i := 0; i < 1+rng.Intn(5); i++ {
			price := money.FromCents(int64(1 + rng.Intn(100000)))
			items = append(items, item(fmt.Sprint(i), codes[rng.Intn(len(codes))], price.String(), int64(1+rng.Intn(4))))
		}
		res := f.svc.CalculateVAT(context.Background(), userIn(countries[rng.Intn(len(countries))]),
			model.CartSnapshot{ID: fmt.Sprint("cart-", n), Items: items}, effective)
		if res.Status != domain.StatusCalculated {
			t.Fatalf("cart %d: %s", n, res.Error)
		}

		net, vat := money.Zero, money.Zero
		for _, line := range res.Items {
			if !line.VATAmount.Equal(money.CalculateVATAmount(line.NetAmount, line.VATRate)) {
				t.Errorf("cart %d item %s: vat %s != quantize(%s x %s)", n, line.ID, line.VATAmount, line.NetAmount, line.VATRate)
			}
			if line.VATRate.Decimal().IsNegative() || line.VATRate.Decimal().GreaterThan(money.MustParseRate("1").Decimal()) {
				t.Errorf("rate out of range: %s", line.VATRate)
			}
			net = net.Add(line.NetAmount)
			vat = vat.Add(line.VATAmount)
		}
		if !res.Totals.Net.Equal(net) || !res.Totals.VAT.Equal(vat) {
			t.Errorf("cart %d: totals %+v do not match item sums net %s vat %s", n, res.Totals, net, vat)
		}
		if !res.Totals.Gross.Equal(res.Totals.Net.Add(res.Totals.VAT)) {
			t.Errorf("cart %d: gross %s != net + vat", n, res.Totals.Gross)
		}
	}
}
