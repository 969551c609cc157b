package rules

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Action is what a matched rule does to the request
type Action string

const (
	ActionAllocateFull    Action = "ALLOCATE_FULL"
	ActionAllocatePartial Action = "ALLOCATE_PARTIAL"
	ActionHold            Action = "HOLD"
	ActionReject          Action = "REJECT"
	ActionEscalate        Action = "ESCALATE"
)

// IsValid returns true if the action is a known value
func (a Action) IsValid() bool {
	switch a {
	case ActionAllocateFull, ActionAllocatePartial, ActionHold, ActionReject, ActionEscalate:
		return true
	}
	return false
}

// BusinessRule is one immutable version of an allocation rule. The rule
// store is append-only: editing a rule writes a new row with the same
// RuleID and Version+1, so every past decision can name the exact rule
// version it was made under.
type BusinessRule struct {
	shared.BaseEntity
	RuleID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_rules_rule_id_version,unique,priority:1"`
	Version       int             `gorm:"not null;default:1;index:idx_rules_rule_id_version,unique,priority:2"`
	Name          string          `gorm:"type:varchar(255);not null"`
	Priority      int             `gorm:"not null;index"`
	Condition     Condition       `gorm:"type:jsonb;serializer:json;not null"`
	Action        Action          `gorm:"type:varchar(20);not null"`
	PartialRatio  decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0"` // ALLOCATE_PARTIAL only
	Active        bool            `gorm:"not null;default:true"`
	EffectiveFrom time.Time       `gorm:"type:timestamp;not null;index"`
}

// TableName returns the table name for GORM
func (BusinessRule) TableName() string {
	return "business_rules"
}

// NewBusinessRule creates version 1 of a rule. The condition and action
// are validated here so nothing malformed ever reaches the engine.
func NewBusinessRule(name string, priority int, condition Condition, action Action, partialRatio decimal.Decimal, effectiveFrom time.Time) (*BusinessRule, error) {
	rule := &BusinessRule{
		BaseEntity:    shared.NewBaseEntity(),
		RuleID:        uuid.New(),
		Version:       1,
		Name:          name,
		Priority:      priority,
		Condition:     condition,
		Action:        action,
		PartialRatio:  partialRatio,
		Active:        true,
		EffectiveFrom: effectiveFrom,
	}
	if err := rule.validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// NewRuleVersion creates the successor version of an existing rule. The
// previous row is left untouched.
func NewRuleVersion(prev *BusinessRule, name string, priority int, condition Condition, action Action, partialRatio decimal.Decimal, effectiveFrom time.Time) (*BusinessRule, error) {
	rule := &BusinessRule{
		BaseEntity:    shared.NewBaseEntity(),
		RuleID:        prev.RuleID,
		Version:       prev.Version + 1,
		Name:          name,
		Priority:      priority,
		Condition:     condition,
		Action:        action,
		PartialRatio:  partialRatio,
		Active:        true,
		EffectiveFrom: effectiveFrom,
	}
	if err := rule.validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// Deactivated creates a successor version that is inactive. Used
// instead of deleting, so the history stays complete.
func (r *BusinessRule) Deactivated(effectiveFrom time.Time) *BusinessRule {
	next := *r
	next.BaseEntity = shared.NewBaseEntity()
	next.Version = r.Version + 1
	next.Active = false
	next.EffectiveFrom = effectiveFrom
	return &next
}

func (r *BusinessRule) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Rule name cannot be empty")
	}
	if r.Priority < 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Rule priority cannot be negative")
	}
	if !r.Action.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Unknown rule action")
	}
	if r.Action == ActionAllocatePartial {
		if !r.PartialRatio.IsPositive() || r.PartialRatio.GreaterThan(decimal.NewFromInt(1)) {
			return shared.NewDomainError("VALIDATION_ERROR", "Partial ratio must be in (0, 1]")
		}
	} else if !r.PartialRatio.IsZero() {
		return shared.NewDomainError("VALIDATION_ERROR", "Partial ratio is only valid with ALLOCATE_PARTIAL")
	}
	if r.EffectiveFrom.IsZero() {
		return shared.NewDomainError("VALIDATION_ERROR", "Rule effective time cannot be zero")
	}
	return r.Condition.Validate()
}

// Matches evaluates the rule condition against the request snapshot
func (r *BusinessRule) Matches(ectx EvalContext) bool {
	return r.Condition.Evaluate(ectx)
}
