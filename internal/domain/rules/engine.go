package rules

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Verdict is the engine's answer for one request. RuleID and
// RuleVersion are nil when no rule matched and the default applied.
type Verdict struct {
	Action       Action
	PartialRatio decimal.Decimal
	RuleID       *uuid.UUID
	RuleVersion  *int
	RuleName     string
	Matched      bool
}

// Engine applies an effective rule set to a request snapshot. Rules are
// checked in ascending priority order; the first match wins. When
// nothing matches the request is held for review rather than silently
// allocated.
type Engine struct{}

// NewEngine creates a rule engine
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate returns the verdict for the snapshot. The input set must be
// the effective set (one active version per rule); the engine does not
// touch storage, so one snapshot of rules evaluates identically no
// matter how often it is retried.
func (e *Engine) Evaluate(effective []BusinessRule, ectx EvalContext) Verdict {
	ordered := make([]BusinessRule, len(effective))
	copy(ordered, effective)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		// Equal priorities resolve by creation time so the order is
		// stable across replicas.
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	for i := range ordered {
		rule := &ordered[i]
		if !rule.Active {
			continue
		}
		if rule.Matches(ectx) {
			ruleID := rule.RuleID
			ruleVersion := rule.Version
			return Verdict{
				Action:       rule.Action,
				PartialRatio: rule.PartialRatio,
				RuleID:       &ruleID,
				RuleVersion:  &ruleVersion,
				RuleName:     rule.Name,
				Matched:      true,
			}
		}
	}

	return Verdict{Action: ActionHold}
}
