package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supplyai/backend/internal/domain/allocation"
	"github.com/supplyai/backend/internal/domain/shared"
)

// GormRequestRepository implements allocation.RequestRepository using GORM
type GormRequestRepository struct {
	db *gorm.DB
}

// NewGormRequestRepository creates a new GORM request repository
func NewGormRequestRepository(db *gorm.DB) *GormRequestRepository {
	return &GormRequestRepository{db: db}
}

// FindByID finds a request by its ID
func (r *GormRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*allocation.AllocationRequest, error) {
	var request allocation.AllocationRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &request, nil
}

// FindByCustomer lists a customer's requests
func (r *GormRequestRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]allocation.AllocationRequest, error) {
	var out []allocation.AllocationRequest
	db := r.db.WithContext(ctx).Where("customer_id = ?", customerID)
	if err := applyFilter(db, filter).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindAll lists requests matching the filter
func (r *GormRequestRepository) FindAll(ctx context.Context, filter shared.Filter) ([]allocation.AllocationRequest, error) {
	var out []allocation.AllocationRequest
	if err := applyFilter(r.db.WithContext(ctx), filter).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Save creates or updates a request
func (r *GormRequestRepository) Save(ctx context.Context, request *allocation.AllocationRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

// SaveWithLock saves with optimistic locking. A request can advance
// through several statuses in one unit of work, so the guard is
// version < new rather than version = new - 1.
func (r *GormRequestRepository) SaveWithLock(ctx context.Context, request *allocation.AllocationRequest) error {
	result := r.db.WithContext(ctx).
		Model(request).
		Where("id = ? AND version < ?", request.ID, request.Version).
		Updates(map[string]interface{}{
			"status":       request.Status,
			"tier":         request.Tier,
			"tier_version": request.TierVersion,
			"failure_code": request.FailureCode,
			"version":      request.Version,
			"updated_at":   request.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GormDecisionRepository implements allocation.DecisionRepository using
// GORM. The log is append-only; the (request_id, correction_of) unique
// index rejects a second effective decision for the same request.
type GormDecisionRepository struct {
	db *gorm.DB
}

// NewGormDecisionRepository creates a new GORM decision repository
func NewGormDecisionRepository(db *gorm.DB) *GormDecisionRepository {
	return &GormDecisionRepository{db: db}
}

// FindByID finds a decision by its ID
func (r *GormDecisionRepository) FindByID(ctx context.Context, id uuid.UUID) (*allocation.AllocationDecision, error) {
	var decision allocation.AllocationDecision
	if err := r.db.WithContext(ctx).First(&decision, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &decision, nil
}

// FindByRequest lists all decisions for a request, oldest first
func (r *GormDecisionRepository) FindByRequest(ctx context.Context, requestID uuid.UUID) ([]allocation.AllocationDecision, error) {
	var out []allocation.AllocationDecision
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("decided_at asc, created_at asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindLatestByRequest finds the effective decision for a request
func (r *GormDecisionRepository) FindLatestByRequest(ctx context.Context, requestID uuid.UUID) (*allocation.AllocationDecision, error) {
	var decision allocation.AllocationDecision
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("decided_at desc, created_at desc").
		First(&decision).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &decision, nil
}

// Append inserts a decision row
func (r *GormDecisionRepository) Append(ctx context.Context, decision *allocation.AllocationDecision) error {
	return appendDecision(r.db.WithContext(ctx), decision)
}

func appendDecision(db *gorm.DB, decision *allocation.AllocationDecision) error {
	return mapDuplicate(db.Create(decision).Error)
}
