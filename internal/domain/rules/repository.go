package rules

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/supplyai/backend/internal/domain/shared"
)

// RuleRepository defines the interface for rule persistence. The store
// is append-only; there is no update or delete.
type RuleRepository interface {
	// FindByID finds a single rule row (one version) by its row ID
	FindByID(ctx context.Context, id uuid.UUID) (*BusinessRule, error)

	// FindLatest finds the highest version of a rule
	FindLatest(ctx context.Context, ruleID uuid.UUID) (*BusinessRule, error)

	// FindVersions lists all versions of a rule, oldest first
	FindVersions(ctx context.Context, ruleID uuid.UUID) ([]BusinessRule, error)

	// FindEffectiveAsOf returns the effective rule set at a point in
	// time: for each rule, the highest version with effective_from <= at,
	// excluding rules whose effective version is inactive
	FindEffectiveAsOf(ctx context.Context, at time.Time) ([]BusinessRule, error)

	// FindAll lists current rule versions matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]BusinessRule, error)

	// Append inserts a new rule version. Never updates in place.
	Append(ctx context.Context, rule *BusinessRule) error

	// Count counts distinct rules
	Count(ctx context.Context) (int64, error)
}
