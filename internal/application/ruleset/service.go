package ruleset

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/rules"
	"github.com/supplyai/backend/internal/domain/shared"
)

// SaveRuleRequest carries the inputs for a new rule or rule version
type SaveRuleRequest struct {
	Name          string
	Priority      int
	Condition     rules.Condition
	Action        rules.Action
	PartialRatio  decimal.Decimal
	EffectiveFrom *time.Time // defaults to now
}

// Service manages the append-only rule store. Every change is a new
// version; nothing is ever rewritten, so any past decision can still
// name the exact rule text it ran under.
type Service struct {
	store  rules.RuleRepository
	logger *zap.Logger
}

// NewService creates a rule administration service
func NewService(store rules.RuleRepository, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create writes version 1 of a new rule
func (s *Service) Create(ctx context.Context, req SaveRuleRequest) (*rules.BusinessRule, error) {
	effectiveFrom := time.Now()
	if req.EffectiveFrom != nil {
		effectiveFrom = *req.EffectiveFrom
	}

	rule, err := rules.NewBusinessRule(req.Name, req.Priority, req.Condition, req.Action, req.PartialRatio, effectiveFrom)
	if err != nil {
		return nil, err
	}
	if err := s.store.Append(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("rule created",
		zap.String("rule_id", rule.RuleID.String()),
		zap.String("name", rule.Name),
		zap.Int("priority", rule.Priority),
		zap.String("action", string(rule.Action)))
	return rule, nil
}

// Update appends a new version of an existing rule
func (s *Service) Update(ctx context.Context, ruleID uuid.UUID, req SaveRuleRequest) (*rules.BusinessRule, error) {
	prev, err := s.store.FindLatest(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	effectiveFrom := time.Now()
	if req.EffectiveFrom != nil {
		effectiveFrom = *req.EffectiveFrom
	}

	next, err := rules.NewRuleVersion(prev, req.Name, req.Priority, req.Condition, req.Action, req.PartialRatio, effectiveFrom)
	if err != nil {
		return nil, err
	}
	if err := s.store.Append(ctx, next); err != nil {
		return nil, err
	}

	s.logger.Info("rule version appended",
		zap.String("rule_id", ruleID.String()),
		zap.Int("version", next.Version))
	return next, nil
}

// Deactivate appends an inactive version of a rule
func (s *Service) Deactivate(ctx context.Context, ruleID uuid.UUID) (*rules.BusinessRule, error) {
	prev, err := s.store.FindLatest(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if !prev.Active {
		return nil, shared.NewDomainError("INVALID_STATE", "Rule is already inactive")
	}

	next := prev.Deactivated(time.Now())
	if err := s.store.Append(ctx, next); err != nil {
		return nil, err
	}

	s.logger.Info("rule deactivated", zap.String("rule_id", ruleID.String()))
	return next, nil
}

// Get returns the latest version of a rule
func (s *Service) Get(ctx context.Context, ruleID uuid.UUID) (*rules.BusinessRule, error) {
	return s.store.FindLatest(ctx, ruleID)
}

// Versions returns the full history of a rule, oldest first
func (s *Service) Versions(ctx context.Context, ruleID uuid.UUID) ([]rules.BusinessRule, error) {
	return s.store.FindVersions(ctx, ruleID)
}

// List returns current rule versions matching the filter
func (s *Service) List(ctx context.Context, filter shared.Filter) ([]rules.BusinessRule, error) {
	return s.store.FindAll(ctx, filter)
}

// EffectiveAsOf returns the rule set the engine would apply at a point
// in time
func (s *Service) EffectiveAsOf(ctx context.Context, at time.Time) ([]rules.BusinessRule, error) {
	return s.store.FindEffectiveAsOf(ctx, at)
}
