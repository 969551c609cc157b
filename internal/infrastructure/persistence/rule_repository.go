package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supplyai/backend/internal/domain/rules"
	"github.com/supplyai/backend/internal/domain/shared"
)

// GormRuleRepository implements rules.RuleRepository using GORM. Rows
// are only ever inserted; the (rule_id, version) unique index backs the
// append-only guarantee.
type GormRuleRepository struct {
	db *gorm.DB
}

// NewGormRuleRepository creates a new GORM rule repository
func NewGormRuleRepository(db *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: db}
}

// FindByID finds a single rule row (one version) by its row ID
func (r *GormRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*rules.BusinessRule, error) {
	var rule rules.BusinessRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &rule, nil
}

// FindLatest finds the highest version of a rule
func (r *GormRuleRepository) FindLatest(ctx context.Context, ruleID uuid.UUID) (*rules.BusinessRule, error) {
	var rule rules.BusinessRule
	err := r.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("version desc").
		First(&rule).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &rule, nil
}

// FindVersions lists all versions of a rule, oldest first
func (r *GormRuleRepository) FindVersions(ctx context.Context, ruleID uuid.UUID) ([]rules.BusinessRule, error) {
	var out []rules.BusinessRule
	err := r.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("version asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindEffectiveAsOf returns the rule set in force at a point in time:
// for each rule, the highest version with effective_from <= at. Rules
// whose effective version is inactive are excluded after the version
// pick so a deactivation row hides earlier versions instead of
// resurrecting them.
func (r *GormRuleRepository) FindEffectiveAsOf(ctx context.Context, at time.Time) ([]rules.BusinessRule, error) {
	latest := r.db.WithContext(ctx).
		Model(&rules.BusinessRule{}).
		Select("rule_id, MAX(version) AS version").
		Where("effective_from <= ?", at).
		Group("rule_id")

	var out []rules.BusinessRule
	err := r.db.WithContext(ctx).
		Joins("JOIN (?) AS latest ON latest.rule_id = business_rules.rule_id AND latest.version = business_rules.version", latest).
		Where("business_rules.active = ?", true).
		Order("business_rules.priority asc, business_rules.created_at asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindAll lists the current version of every rule matching the filter
func (r *GormRuleRepository) FindAll(ctx context.Context, filter shared.Filter) ([]rules.BusinessRule, error) {
	latest := r.db.WithContext(ctx).
		Model(&rules.BusinessRule{}).
		Select("rule_id, MAX(version) AS version").
		Group("rule_id")

	var out []rules.BusinessRule
	db := r.db.WithContext(ctx).
		Joins("JOIN (?) AS latest ON latest.rule_id = business_rules.rule_id AND latest.version = business_rules.version", latest)
	if err := applyFilter(db, filter).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Append inserts a new rule version. Never updates in place.
func (r *GormRuleRepository) Append(ctx context.Context, rule *rules.BusinessRule) error {
	return mapDuplicate(r.db.WithContext(ctx).Create(rule).Error)
}

// Count counts distinct rules
func (r *GormRuleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&rules.BusinessRule{}).
		Distinct("rule_id").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
