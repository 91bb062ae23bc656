package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Victor-armando18/service-vat/internal/domain"
)

// Engine evaluates the rules of an entry point against a context. An Engine holds
// no per-execution state and may be shared between goroutines as long as its
// collaborators are.
type Engine struct {
	rules     RuleSource
	evaluator ConditionEvaluator
	functions FunctionRegistry
	patcher   ItemPatcher
	schemas   *SchemaRegistry
	logger    *slog.Logger
}

type Option func(*Engine)

func WithSchemas(s *SchemaRegistry) Option { return func(e *Engine) { e.schemas = s } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func New(rules RuleSource, evaluator ConditionEvaluator, functions FunctionRegistry, patcher ItemPatcher, opts ...Option) *Engine {
	e := &Engine{
		rules:     rules,
		evaluator: evaluator,
		functions: functions,
		patcher:   patcher,
		schemas:   DefaultSchemas(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// WithFunctions returns a copy of the engine bound to another function registry.
func (e *Engine) WithFunctions(functions FunctionRegistry) *Engine {
	cp := *e
	cp.functions = functions
	return &cp
}

// WithRules returns a copy of the engine reading rules from src.
func (e *Engine) WithRules(src RuleSource) *Engine {
	cp := *e
	cp.rules = src
	return &cp
}

var ErrUnknownFunction = errors.New("unknown function")

// Execute runs entryPoint against a copy of input. It never mutates input and
// never returns a Go error: failures are reported through OK and Errors.
func (e *Engine) Execute(ctx context.Context, entryPoint string, input map[string]any) ExecutionResult {
	res := ExecutionResult{
		EntryPoint:    entryPoint,
		Context:       CopyContext(input),
		RulesExecuted: []RuleExecution{},
		Messages:      []string{},
		Errors:        []string{},
		OK:            true,
	}

	rules, err := e.rules.ListRules(ctx, entryPoint)
	if err != nil {
		res.fail(fmt.Sprintf("load rules for %s: %v", entryPoint, err))
		return res
	}

	for _, r := range rules {
		if r.RulesFieldsID == "" {
			continue
		}
		if e.schemas == nil {
			res.fail(fmt.Sprintf("rule %s: no schema registry for rules_fields_id %q", r.Ref(), r.RulesFieldsID))
			return res
		}
		if err := e.schemas.Validate(r.RulesFieldsID, res.Context); err != nil {
			res.fail(fmt.Sprintf("rule %s: %v", r.Ref(), err))
			return res
		}
	}

	for _, r := range rules {
		started := time.Now()
		exec := RuleExecution{
			RuleID:         r.RuleID,
			Version:        r.Version,
			ActionsApplied: []ActionLog{},
		}

		matched, err := e.evaluateCondition(ctx, r, res.Context)
		if err != nil {
			exec.ConditionResult = ConditionError
			exec.Status = StatusSkipped
			exec.Error = err.Error()
			exec.DurationMs = time.Since(started).Milliseconds()
			res.RulesExecuted = append(res.RulesExecuted, exec)
			res.Messages = append(res.Messages, fmt.Sprintf("rule %s: condition error: %v", r.Ref(), err))
			e.logger.Warn("rule condition failed", "rule", r.Ref(), "entry_point", entryPoint, "error", err)
			continue
		}
		if !matched {
			exec.ConditionResult = ConditionFalse
			exec.Status = StatusNotApplied
			exec.DurationMs = time.Since(started).Milliseconds()
			res.RulesExecuted = append(res.RulesExecuted, exec)
			continue
		}

		exec.ConditionResult = ConditionTrue
		halted := false
		for i, a := range r.Actions {
			entry, stop, err := e.runAction(ctx, r, a, &res)
			if err != nil {
				msg := fmt.Sprintf("rule %s action %d (%s): %v", r.Ref(), i, a.Type, err)
				exec.Status = StatusFailed
				exec.Error = msg
				exec.DurationMs = time.Since(started).Milliseconds()
				res.RulesExecuted = append(res.RulesExecuted, exec)
				res.fail(msg)
				e.logger.Error("rule action failed", "rule", r.Ref(), "entry_point", entryPoint, "error", err)
				return res
			}
			exec.ActionsApplied = append(exec.ActionsApplied, entry)
			if stop {
				halted = true
				break
			}
		}
		exec.Status = StatusApplied
		exec.DurationMs = time.Since(started).Milliseconds()
		res.RulesExecuted = append(res.RulesExecuted, exec)

		if halted || r.StopProcessing {
			break
		}
	}
	return res
}

func (r *ExecutionResult) fail(msg string) {
	r.OK = false
	r.Errors = append(r.Errors, msg)
}

// Err returns nil for successful executions and a rule configuration error otherwise.
func (r ExecutionResult) Err() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrRuleConfiguration, strings.Join(r.Errors, "; "))
}

func (e *Engine) evaluateCondition(ctx context.Context, r Rule, data map[string]any) (bool, error) {
	if r.Condition == nil {
		return true, nil
	}
	if b, ok := r.Condition.(bool); ok {
		return b, nil
	}
	out, err := e.evaluator.Evaluate(ctx, r.Condition, data)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrRuleCondition, err)
	}
	return Truthy(out), nil
}

func (e *Engine) runAction(ctx context.Context, r Rule, a Action, res *ExecutionResult) (ActionLog, bool, error) {
	scope := withKey(res.Context, "rule", map[string]any{
		"id":      r.RuleID,
		"version": r.Version,
		"ref":     r.Ref(),
	})

	switch a.Type {
	case ActionCallFunction:
		fn, ok := e.lookup(a.Name)
		if !ok {
			return ActionLog{}, false, fmt.Errorf("%w %q", ErrUnknownFunction, a.Name)
		}
		params := make(map[string]any, len(a.Params))
		for k, v := range a.Params {
			resolved, err := e.resolve(ctx, v, scope)
			if err != nil {
				return ActionLog{}, false, fmt.Errorf("param %s: %w", k, err)
			}
			params[k] = resolved
		}
		out, err := ToJSONValue(fn(Call{Params: params, Context: CopyContext(res.Context)}))
		if err != nil {
			return ActionLog{}, false, fmt.Errorf("function %s: %w", a.Name, err)
		}
		if m, ok := out.(map[string]any); ok {
			if msg, failed := m["error"]; failed && len(m) == 1 {
				res.Messages = append(res.Messages, fmt.Sprintf("rule %s: %s: %v", r.Ref(), a.Name, msg))
			}
		}
		if err := SetPath(res.Context, a.OutputKey, out); err != nil {
			return ActionLog{}, false, err
		}
		return ActionLog{Type: a.Type, Target: a.OutputKey, Function: a.Name}, false, nil

	case ActionSetValue:
		val, err := ToJSONValue(DeepCopy(a.Value))
		if err != nil {
			return ActionLog{}, false, err
		}
		if err := SetPath(res.Context, a.Path, val); err != nil {
			return ActionLog{}, false, err
		}
		return ActionLog{Type: a.Type, Target: a.Path}, false, nil

	case ActionUpdateItem:
		resolved, err := e.resolve(ctx, a.Patch, scope)
		if err != nil {
			return ActionLog{}, false, fmt.Errorf("patch: %w", err)
		}
		patch, _ := resolved.(map[string]any)
		target, err := e.updateItem(ctx, a, patch, res.Context, scope)
		if err != nil {
			return ActionLog{}, false, err
		}
		return ActionLog{Type: a.Type, Target: target}, false, nil

	case ActionHalt:
		res.Halted = true
		res.HaltReason = a.Reason
		return ActionLog{Type: a.Type}, true, nil
	}
	return ActionLog{}, false, fmt.Errorf("unknown action type %q", a.Type)
}

func (e *Engine) lookup(name string) (Function, bool) {
	if e.functions == nil {
		return nil, false
	}
	return e.functions.Lookup(name)
}

func (e *Engine) updateItem(ctx context.Context, a Action, patch map[string]any, working, scope map[string]any) (string, error) {
	if e.patcher == nil {
		return "", errors.New("no item patcher configured")
	}
	node, ok := GetPath(working, a.ItemPath)
	if !ok {
		return "", fmt.Errorf("item_path %q not found", a.ItemPath)
	}

	switch target := node.(type) {
	case map[string]any:
		patched, err := e.patcher.PatchItem(target, patch)
		if err != nil {
			return "", err
		}
		return a.ItemPath, SetPath(working, a.ItemPath, patched)

	case []any:
		id, err := e.resolve(ctx, a.ItemID, scope)
		if err != nil {
			return "", fmt.Errorf("item_id: %w", err)
		}
		want := fmt.Sprint(id)
		for i, el := range target {
			item, ok := el.(map[string]any)
			if !ok || fmt.Sprint(item["item_id"]) != want {
				continue
			}
			patched, err := e.patcher.PatchItem(item, patch)
			if err != nil {
				return "", err
			}
			target[i] = patched
			return fmt.Sprintf("%s.%d", a.ItemPath, i), nil
		}
		return "", fmt.Errorf("item %q not found at %s", want, a.ItemPath)
	}
	return "", fmt.Errorf("item_path %q is neither an object nor a list", a.ItemPath)
}

// resolve turns action params into values: {"var": path} reads the scope, other
// single-operator objects are evaluated as JSONLogic, everything else is literal.
func (e *Engine) resolve(ctx context.Context, v any, scope map[string]any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			for op, arg := range t {
				if op == "var" {
					return resolveVar(arg, scope), nil
				}
				if e.evaluator != nil && e.evaluator.IsOperator(op) {
					return e.evaluator.Evaluate(ctx, t, scope)
				}
			}
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			r, err := e.resolve(ctx, val, scope)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			r, err := e.resolve(ctx, val, scope)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveVar(arg any, scope map[string]any) any {
	var (
		path     string
		fallback any
	)
	switch a := arg.(type) {
	case string:
		path = a
	case []any:
		if len(a) > 0 {
			path, _ = a[0].(string)
		}
		if len(a) > 1 {
			fallback = a[1]
		}
	}
	v, ok := GetPath(scope, path)
	if !ok || v == nil {
		return fallback
	}
	return DeepCopy(v)
}
