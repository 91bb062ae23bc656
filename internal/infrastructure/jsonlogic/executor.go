package jsonlogic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/diegoholiveira/jsonlogic/v3"
)

var standardOperators = []string{
	"var", "missing", "missing_some",
	"if", "?:", "==", "===", "!=", "!==", "!", "!!", "or", "and",
	">", ">=", "<", "<=", "max", "min",
	"+", "-", "*", "/", "%",
	"map", "filter", "reduce", "all", "none", "some", "merge", "in",
	"cat", "substr", "set",
}

var registerOnce sync.Once

// Evaluator runs JSONLogic trees through diegoholiveira/jsonlogic with the
// money operators registered.
type Evaluator struct {
	operators map[string]bool
}

func NewEvaluator() *Evaluator {
	registerOnce.Do(registerOperators)
	ops := make(map[string]bool, len(standardOperators)+len(customOperators))
	for _, op := range standardOperators {
		ops[op] = true
	}
	for name := range customOperators {
		ops[name] = true
	}
	return &Evaluator{operators: ops}
}

func (e *Evaluator) IsOperator(name string) bool { return e.operators[name] }

// Evaluate applies logic to data. Panics raised by malformed trees are returned as errors.
func (e *Evaluator) Evaluate(_ context.Context, logic any, data map[string]any) (out any, err error) {
	ruleJSON, err := json.Marshal(logic)
	if err != nil {
		return nil, fmt.Errorf("encode logic: %w", err)
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("jsonlogic: %v", r)
		}
	}()

	var buf bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(ruleJSON), bytes.NewReader(dataJSON), &buf); err != nil {
		return nil, fmt.Errorf("jsonlogic: %w", err)
	}
	raw := strings.TrimSpace(buf.String())
	if raw == "" || raw == "null" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
