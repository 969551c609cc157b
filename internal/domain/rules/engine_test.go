package rules

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRule(t *testing.T, name string, priority int, cond Condition, action Action, ratio decimal.Decimal) BusinessRule {
	t.Helper()
	rule, err := NewBusinessRule(name, priority, cond, action, ratio, time.Now())
	require.NoError(t, err)
	return *rule
}

func TestEngineEvaluate(t *testing.T) {
	engine := NewEngine()

	strategic := Condition{Cmp: &Comparison{Attribute: AttrCustomerSegment, Operator: OpEq, Value: "STRATEGIC"}}
	lowStock := Condition{Cmp: &Comparison{Attribute: AttrInventoryAvailable, Operator: OpLt, Value: "50"}}

	t.Run("first match by ascending priority wins", func(t *testing.T) {
		ruleset := []BusinessRule{
			mustRule(t, "ration everyone", 20, lowStock, ActionAllocatePartial, decimal.NewFromFloat(0.5)),
			mustRule(t, "strategic full", 10, strategic, ActionAllocateFull, decimal.Zero),
		}

		verdict := engine.Evaluate(ruleset, EvalContext{
			CustomerSegment:   "STRATEGIC",
			AvailableQuantity: decimal.NewFromInt(10),
		})
		require.True(t, verdict.Matched)
		assert.Equal(t, ActionAllocateFull, verdict.Action)
		assert.Equal(t, "strategic full", verdict.RuleName)
		require.NotNil(t, verdict.RuleVersion)
		assert.Equal(t, 1, *verdict.RuleVersion)
	})

	t.Run("later priority matches when earlier does not", func(t *testing.T) {
		ruleset := []BusinessRule{
			mustRule(t, "strategic full", 10, strategic, ActionAllocateFull, decimal.Zero),
			mustRule(t, "ration everyone", 20, lowStock, ActionAllocatePartial, decimal.NewFromFloat(0.5)),
		}

		verdict := engine.Evaluate(ruleset, EvalContext{
			CustomerSegment:   "STANDARD",
			AvailableQuantity: decimal.NewFromInt(10),
		})
		require.True(t, verdict.Matched)
		assert.Equal(t, ActionAllocatePartial, verdict.Action)
		assert.True(t, verdict.PartialRatio.Equal(decimal.NewFromFloat(0.5)))
	})

	t.Run("no match defaults to hold", func(t *testing.T) {
		ruleset := []BusinessRule{
			mustRule(t, "strategic full", 10, strategic, ActionAllocateFull, decimal.Zero),
		}

		verdict := engine.Evaluate(ruleset, EvalContext{CustomerSegment: "STANDARD"})
		assert.False(t, verdict.Matched)
		assert.Equal(t, ActionHold, verdict.Action)
		assert.Nil(t, verdict.RuleID)
	})

	t.Run("empty rule set defaults to hold", func(t *testing.T) {
		verdict := engine.Evaluate(nil, EvalContext{})
		assert.Equal(t, ActionHold, verdict.Action)
		assert.False(t, verdict.Matched)
	})

	t.Run("inactive rules are skipped", func(t *testing.T) {
		active := mustRule(t, "strategic full", 10, strategic, ActionAllocateFull, decimal.Zero)
		inactive := active
		inactive.Active = false
		inactive.Priority = 5
		inactive.Action = ActionReject

		verdict := engine.Evaluate([]BusinessRule{inactive, active}, EvalContext{CustomerSegment: "STRATEGIC"})
		require.True(t, verdict.Matched)
		assert.Equal(t, ActionAllocateFull, verdict.Action)
	})

	t.Run("input slice is not reordered", func(t *testing.T) {
		ruleset := []BusinessRule{
			mustRule(t, "b", 20, lowStock, ActionReject, decimal.Zero),
			mustRule(t, "a", 10, strategic, ActionAllocateFull, decimal.Zero),
		}
		engine.Evaluate(ruleset, EvalContext{})
		assert.Equal(t, "b", ruleset[0].Name)
	})
}
