package engine

import "context"

// ConditionEvaluator evaluates a JSONLogic tree against a context.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, logic any, data map[string]any) (any, error)
	// IsOperator reports whether name is a JSONLogic operator the evaluator knows.
	IsOperator(name string) bool
}

// Call carries resolved params and a read-only copy of the working context.
type Call struct {
	Params  map[string]any
	Context map[string]any
}

// Function is a named pure function callable from call_function actions. It must
// not fail: errors are reported inside the returned value.
type Function func(call Call) any

type FunctionRegistry interface {
	Lookup(name string) (Function, bool)
}

// RuleSource returns the rules to run at an entry point, already selected and ordered.
type RuleSource interface {
	ListRules(ctx context.Context, entryPoint string) ([]Rule, error)
}

// ItemPatcher applies an update_item patch to one item object.
type ItemPatcher interface {
	PatchItem(item map[string]any, patch map[string]any) (map[string]any, error)
}
