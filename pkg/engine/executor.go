package engine

import (
	"context"
	"time"

	"github.com/Victor-armando18/service-vat/internal/domain/functions"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/jsonlogic"
	"github.com/Victor-armando18/service-vat/internal/interfaces"
)

// Evaluate applies a JSONLogic expression to data. The money, money_add,
// vat_amount and round operators are available alongside the standard ones.
func Evaluate(ctx context.Context, logic any, data map[string]any) (any, error) {
	return jsonlogic.NewEvaluator().Evaluate(ctx, logic, data)
}

// Run executes pack's rules at entryPoint against input with the VAT functions
// bound to the calculator's region snapshot and date.
func (c *Calculator) Run(ctx context.Context, entryPoint string, input map[string]any, pack RulePack, date time.Time) (RunResult, error) {
	snap, err := c.registry.Snapshot(ctx)
	if err != nil {
		return RunResult{}, err
	}
	fns := functions.Builtins(functions.Bindings{Regions: snap, EffectiveDate: date})
	return interfaces.RunEngine(ctx, entryPoint, input, pack, fns)
}
