package runengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Victor-armando18/service-vat/internal/domain/engine"
)

// UseCase runs one entry point against an arbitrary context and reports what
// the rules changed. It backs the diagnostic CLI and HTTP endpoints.
type UseCase struct {
	Engine *engine.Engine
	Differ Differ
}

type Differ interface {
	Diff(before, after map[string]any) map[string]any
}

type Result struct {
	engine.ExecutionResult
	Delta        map[string]any `json:"delta"`
	RulesVersion string         `json:"rules_version,omitempty"`
}

// Run executes entryPoint. When pack is set its rules replace the engine's rule source.
func (u *UseCase) Run(ctx context.Context, entryPoint string, input map[string]any, pack *engine.RulePack) (Result, error) {
	if entryPoint == "" {
		return Result{}, errors.New("entry point is required")
	}
	if input == nil {
		return Result{}, errors.New("context is required")
	}

	e := u.Engine
	version := ""
	if pack != nil {
		e = e.WithRules(engine.StaticRules(pack.Rules))
		version = pack.Version
	}

	before := engine.CopyContext(input)
	res := e.Execute(ctx, entryPoint, input)
	if !res.OK && len(res.RulesExecuted) == 0 && len(res.Errors) > 0 {
		return Result{ExecutionResult: res}, fmt.Errorf("run %s: %w", entryPoint, res.Err())
	}

	delta := map[string]any{}
	if u.Differ != nil {
		delta = u.Differ.Diff(before, res.Context)
	}
	return Result{ExecutionResult: res, Delta: delta, RulesVersion: version}, nil
}
