package engine

type ConditionResult string

const (
	ConditionTrue  ConditionResult = "true"
	ConditionFalse ConditionResult = "false"
	ConditionError ConditionResult = "error"
)

type RuleStatus string

const (
	StatusApplied    RuleStatus = "applied"
	StatusNotApplied RuleStatus = "not_applied"
	StatusSkipped    RuleStatus = "skipped"
	StatusFailed     RuleStatus = "failed"
)

type ActionLog struct {
	Type     ActionType `json:"type"`
	Target   string     `json:"target,omitempty"`
	Function string     `json:"function,omitempty"`
}

type RuleExecution struct {
	RuleID          string          `json:"rule_id"`
	Version         int             `json:"version"`
	ConditionResult ConditionResult `json:"condition_result"`
	Status          RuleStatus      `json:"status"`
	ActionsApplied  []ActionLog     `json:"actions_applied"`
	DurationMs      int64           `json:"duration_ms"`
	Error           string          `json:"error,omitempty"`
}

// ExecutionResult is the value returned by Engine.Execute: the final context plus the log.
type ExecutionResult struct {
	EntryPoint    string          `json:"entry_point"`
	Context       map[string]any  `json:"context"`
	RulesExecuted []RuleExecution `json:"rules_executed"`
	Messages      []string        `json:"messages"`
	OK            bool            `json:"ok"`
	Errors        []string        `json:"errors"`
	Halted        bool            `json:"halted"`
	HaltReason    string          `json:"halt_reason,omitempty"`
}

// LastApplied returns the last rule whose actions ran, or nil.
func (r ExecutionResult) LastApplied() *RuleExecution {
	for i := len(r.RulesExecuted) - 1; i >= 0; i-- {
		if r.RulesExecuted[i].Status == StatusApplied {
			return &r.RulesExecuted[i]
		}
	}
	return nil
}

func (r ExecutionResult) Applied() []RuleExecution {
	var out []RuleExecution
	for _, e := range r.RulesExecuted {
		if e.Status == StatusApplied {
			out = append(out, e)
		}
	}
	return out
}
