package interfaces

import (
	"context"

	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/infrastructure"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/diff"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/jsonlogic"
	"github.com/Victor-armando18/service-vat/internal/usecase/runengine"
)

// NewEngine builds a rule engine over the JSONLogic evaluator and merge-patch
// item updates.
func NewEngine(rules engine.RuleSource, functions engine.FunctionRegistry, opts ...engine.Option) *engine.Engine {
	return engine.New(rules, jsonlogic.NewEvaluator(), functions, infrastructure.NewMergePatcher(), opts...)
}

// RunEngine runs pack's rules at entryPoint against input.
func RunEngine(ctx context.Context, entryPoint string, input map[string]any, pack engine.RulePack, functions engine.FunctionRegistry) (runengine.Result, error) {
	uc := &runengine.UseCase{
		Engine: NewEngine(engine.StaticRules(nil), functions),
		Differ: &diff.Differ{},
	}
	return uc.Run(ctx, entryPoint, input, &pack)
}
