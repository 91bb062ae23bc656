package admin

import (
	"context"
	"log/slog"

	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/interfaces"
)

// Rules publishes and retires rule versions. Rules are validated against the
// known functions and context schemas before they reach the store.
type Rules struct {
	store     interfaces.RuleStore
	functions engine.FunctionRegistry
	schemas   *engine.SchemaRegistry
	logger    *slog.Logger
}

func NewRules(store interfaces.RuleStore, functions engine.FunctionRegistry, schemas *engine.SchemaRegistry, logger *slog.Logger) *Rules {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rules{store: store, functions: functions, schemas: schemas, logger: logger}
}

// Publish stores r as the next version of its rule_id; older versions are deactivated.
func (a *Rules) Publish(ctx context.Context, r engine.Rule) (engine.Rule, error) {
	if err := a.Validate(engine.RulePack{Rules: []engine.Rule{r}}); err != nil {
		return engine.Rule{}, err
	}
	published, err := a.store.PublishRule(ctx, r)
	if err != nil {
		return engine.Rule{}, err
	}
	a.logger.Info("rule published", "rule", published.Ref(), "entry_point", published.EntryPoint)
	return published, nil
}

// PublishPack validates the whole pack before publishing any rule of it.
func (a *Rules) PublishPack(ctx context.Context, pack engine.RulePack) ([]engine.Rule, error) {
	if err := a.Validate(pack); err != nil {
		return nil, err
	}
	out := make([]engine.Rule, 0, len(pack.Rules))
	for _, r := range pack.Rules {
		published, err := a.Publish(ctx, r)
		if err != nil {
			return out, err
		}
		out = append(out, published)
	}
	return out, nil
}

// Deactivate retires one version; rows are never deleted.
func (a *Rules) Deactivate(ctx context.Context, ruleID string, version int) error {
	if err := a.store.DeactivateRule(ctx, ruleID, version); err != nil {
		return err
	}
	a.logger.Info("rule deactivated", "rule_id", ruleID, "version", version)
	return nil
}

// Validate checks a pack; versions are assigned on publish so missing ones are accepted.
func (a *Rules) Validate(pack engine.RulePack) error {
	check := engine.RulePack{Version: pack.Version, Rules: make([]engine.Rule, len(pack.Rules))}
	for i, r := range pack.Rules {
		if r.Version < 1 {
			r.Version = 1
		}
		check.Rules[i] = r
	}
	return check.Validate(a.functions, a.schemas)
}
