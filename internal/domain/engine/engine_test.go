package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/functions"
	"github.com/Victor-armando18/service-vat/internal/domain/rates"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
	"github.com/Victor-armando18/service-vat/internal/infrastructure"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/jsonlogic"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/seed"
)

const ep = "cart_calculate_vat"

func itemContext(country, code, net string, classification map[string]any) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":      nil,
			"region":  "ROW",
			"address": map[string]any{"country": country},
		},
		"item": map[string]any{
			"item_id":        "line-1",
			"product_code":   code,
			"net_amount":     net,
			"quantity":       1.0,
			"classification": classification,
		},
		"vat":      map[string]any{},
		"settings": map[string]any{"effective_date": "2025-01-30", "context_version": "1.0"},
	}
}

func newEngine(rules engine.RuleSource, opts ...engine.Option) *engine.Engine {
	fns := functions.Builtins(functions.Bindings{
		Regions:       region.NewSnapshot(seed.Mappings(), time.Now()),
		Rates:         rates.DefaultTable(),
		EffectiveDate: time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC),
	})
	return engine.New(rules, jsonlogic.NewEvaluator(), fns, infrastructure.NewMergePatcher(), opts...)
}

func TestEngine_DefaultRules(t *testing.T) {
	e := newEngine(engine.StaticRules(seed.MustDefaultRules()))
	input := itemContext("GB", "MAT-PRINT-CS2", "100.00", map[string]any{"is_material": true, "product_type": "material"})

	res := e.Execute(context.Background(), ep, input)
	if !res.OK {
		t.Fatalf("execution failed: %v", res.Errors)
	}

	item := res.Context["item"].(map[string]any)
	want := map[string]any{
		"vat_amount":   "20.00",
		"gross_amount": "120.00",
		"vat_region":   "UK",
		"vat_rate":     "0.2000",
		"rule_applied": "vat_calculate_amount:v1",
	}
	for k, v := range want {
		if item[k] != v {
			t.Errorf("item.%s = %v, want %v", k, item[k], v)
		}
	}

	if len(res.RulesExecuted) != 3 {
		t.Fatalf("expected 3 rule executions, got %d", len(res.RulesExecuted))
	}
	for i, id := range []string{"vat_region_resolution", "vat_rate_selection", "vat_calculate_amount"} {
		got := res.RulesExecuted[i]
		if got.RuleID != id || got.Status != engine.StatusApplied || got.ConditionResult != engine.ConditionTrue {
			t.Errorf("execution %d = %+v, want %s applied", i, got, id)
		}
	}
	if last := res.LastApplied(); last == nil || last.RuleID != "vat_calculate_amount" {
		t.Errorf("LastApplied = %+v", last)
	}

	if _, touched := input["item"].(map[string]any)["vat_amount"]; touched {
		t.Error("input context was mutated")
	}
}

func TestEngine_OrderAndStopProcessing(t *testing.T) {
	rules := engine.StaticRules{
		{RuleID: "b", Version: 1, EntryPoint: ep, Priority: 1, Active: true,
			Actions: []engine.Action{{Type: engine.ActionSetValue, Path: "vat.trace.b", Value: true}}},
		{RuleID: "a", Version: 1, EntryPoint: ep, Priority: 1, Active: true,
			Actions: []engine.Action{{Type: engine.ActionSetValue, Path: "vat.trace.a", Value: true}}},
		{RuleID: "a", Version: 2, EntryPoint: ep, Priority: 1, Active: true, StopProcessing: true,
			Actions: []engine.Action{{Type: engine.ActionSetValue, Path: "vat.trace.a2", Value: true}}},
		{RuleID: "c", Version: 1, EntryPoint: ep, Priority: 0, Active: false,
			Actions: []engine.Action{{Type: engine.ActionSetValue, Path: "vat.trace.c", Value: true}}},
	}
	res := newEngine(rules).Execute(context.Background(), ep, map[string]any{"vat": map[string]any{}})
	if !res.OK {
		t.Fatalf("unexpected errors %v", res.Errors)
	}
	if len(res.RulesExecuted) != 1 || res.RulesExecuted[0].RuleID != "a" || res.RulesExecuted[0].Version != 2 {
		t.Fatalf("expected only a:v2 to run, got %+v", res.RulesExecuted)
	}
	trace := res.Context["vat"].(map[string]any)["trace"].(map[string]any)
	if trace["a2"] != true || trace["a"] != nil || trace["b"] != nil {
		t.Errorf("trace = %v", trace)
	}
}

type failingEvaluator struct {
	engine.ConditionEvaluator
	failOn string
}

func (f failingEvaluator) Evaluate(ctx context.Context, logic any, data map[string]any) (any, error) {
	if m, ok := logic.(map[string]any); ok {
		if _, bad := m[f.failOn]; bad {
			return nil, errors.New("boom")
		}
	}
	return f.ConditionEvaluator.Evaluate(ctx, logic, data)
}

func TestEngine_ConditionErrorSkipsRule(t *testing.T) {
	rules := engine.StaticRules{
		{RuleID: "broken", Version: 1, EntryPoint: ep, Priority: 1, Active: true,
			Condition: map[string]any{"explode": []any{}},
			Actions:   []engine.Action{{Type: engine.ActionSetValue, Path: "vat.broken", Value: true}}},
		{RuleID: "healthy", Version: 1, EntryPoint: ep, Priority: 2, Active: true,
			Condition: map[string]any{"==": []any{1.0, 1.0}},
			Actions:   []engine.Action{{Type: engine.ActionSetValue, Path: "vat.healthy", Value: true}}},
	}
	ev := failingEvaluator{ConditionEvaluator: jsonlogic.NewEvaluator(), failOn: "explode"}
	e := engine.New(rules, ev, functions.NewRegistry(), infrastructure.NewMergePatcher())

	res := e.Execute(context.Background(), ep, map[string]any{"vat": map[string]any{}})
	if !res.OK {
		t.Fatalf("condition errors must not fail the execution: %v", res.Errors)
	}
	if got := res.RulesExecuted[0]; got.ConditionResult != engine.ConditionError || got.Status != engine.StatusSkipped {
		t.Errorf("broken rule logged as %+v", got)
	}
	vat := res.Context["vat"].(map[string]any)
	if vat["broken"] != nil || vat["healthy"] != true {
		t.Errorf("vat = %v", vat)
	}
	if len(res.Messages) != 1 {
		t.Errorf("expected one message, got %v", res.Messages)
	}
}

func TestEngine_UnknownFunctionIsFatal(t *testing.T) {
	rules := engine.StaticRules{
		{RuleID: "r1", Version: 3, EntryPoint: ep, Priority: 1, Active: true,
			Actions: []engine.Action{
				{Type: engine.ActionSetValue, Path: "vat.before", Value: "kept"},
				{Type: engine.ActionCallFunction, Name: "does_not_exist", OutputKey: "vat.x"},
				{Type: engine.ActionSetValue, Path: "vat.after", Value: "never"},
			}},
		{RuleID: "r2", Version: 1, EntryPoint: ep, Priority: 2, Active: true,
			Actions: []engine.Action{{Type: engine.ActionSetValue, Path: "vat.r2", Value: true}}},
	}
	res := newEngine(rules).Execute(context.Background(), ep, map[string]any{"vat": map[string]any{}})
	if res.OK || len(res.Errors) != 1 {
		t.Fatalf("expected a single fatal error, got ok=%v errors=%v", res.OK, res.Errors)
	}
	if !errors.Is(res.Err(), domain.ErrRuleConfiguration) {
		t.Errorf("Err() = %v, want rule configuration error", res.Err())
	}
	vat := res.Context["vat"].(map[string]any)
	if vat["before"] != "kept" || vat["after"] != nil || vat["r2"] != nil {
		t.Errorf("context mutated past the failure: %v", vat)
	}
	if got := res.RulesExecuted[len(res.RulesExecuted)-1]; got.Status != engine.StatusFailed {
		t.Errorf("last execution = %+v", got)
	}
}

func TestEngine_SchemaMismatchIsFatal(t *testing.T) {
	e := newEngine(engine.StaticRules(seed.MustDefaultRules()))
	input := itemContext("GB", "MAT-PRINT-CS2", "100.00", map[string]any{})
	delete(input["item"].(map[string]any), "net_amount")

	res := e.Execute(context.Background(), ep, input)
	if res.OK {
		t.Fatal("expected schema failure")
	}
	if len(res.RulesExecuted) != 0 {
		t.Errorf("no rule should run, got %d", len(res.RulesExecuted))
	}
}

func TestEngine_HaltAndUpdateItemByID(t *testing.T) {
	rules := engine.StaticRules{
		{RuleID: "patch", Version: 1, EntryPoint: ep, Priority: 1, Active: true,
			Actions: []engine.Action{
				{Type: engine.ActionUpdateItem, ItemPath: "cart.items", ItemID: map[string]any{"var": "target"},
					Patch: map[string]any{"flagged": true, "by": map[string]any{"var": "rule.ref"}}},
				{Type: engine.ActionHalt, Reason: "done"},
				{Type: engine.ActionSetValue, Path: "after_halt", Value: true},
			}},
		{RuleID: "later", Version: 1, EntryPoint: ep, Priority: 2, Active: true,
			Actions: []engine.Action{{Type: engine.ActionSetValue, Path: "later", Value: true}}},
	}
	input := map[string]any{
		"target": "b",
		"cart": map[string]any{"items": []any{
			map[string]any{"item_id": "a"},
			map[string]any{"item_id": "b"},
		}},
	}
	res := newEngine(rules).Execute(context.Background(), ep, input)
	if !res.OK || !res.Halted || res.HaltReason != "done" {
		t.Fatalf("unexpected result ok=%v halted=%v reason=%q errors=%v", res.OK, res.Halted, res.HaltReason, res.Errors)
	}
	items := res.Context["cart"].(map[string]any)["items"].([]any)
	if items[0].(map[string]any)["flagged"] != nil {
		t.Error("item a should not be patched")
	}
	b := items[1].(map[string]any)
	if b["flagged"] != true || b["by"] != "patch:v1" {
		t.Errorf("item b = %v", b)
	}
	if res.Context["after_halt"] != nil || res.Context["later"] != nil {
		t.Error("execution continued after halt")
	}
	if len(res.RulesExecuted) != 1 || len(res.RulesExecuted[0].ActionsApplied) != 2 {
		t.Errorf("rules executed = %+v", res.RulesExecuted)
	}
}

func TestEngine_FunctionErrorValueBecomesMessage(t *testing.T) {
	rules := engine.StaticRules{
		{RuleID: "amount", Version: 1, EntryPoint: ep, Priority: 1, Active: true,
			Actions: []engine.Action{{
				Type:      engine.ActionCallFunction,
				Name:      functions.CalculateVATAmount,
				Params:    map[string]any{"net_amount": map[string]any{"var": "missing"}, "vat_rate": "0.20"},
				OutputKey: "vat.amount",
			}}},
	}
	res := newEngine(rules).Execute(context.Background(), ep, map[string]any{})
	if !res.OK {
		t.Fatalf("function error values are not fatal: %v", res.Errors)
	}
	if _, isErr := functions.IsError(res.Context["vat"].(map[string]any)["amount"]); !isErr {
		t.Errorf("expected error value at vat.amount, got %v", res.Context["vat"])
	}
	if len(res.Messages) != 1 {
		t.Errorf("messages = %v", res.Messages)
	}
}
