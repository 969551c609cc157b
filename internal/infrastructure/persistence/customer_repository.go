package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supplyai/backend/internal/domain/partner"
	"github.com/supplyai/backend/internal/domain/shared"
)

// GormCustomerRepository implements partner.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GORM customer repository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	var customer partner.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &customer, nil
}

// FindByCode finds a customer by its external code
func (r *GormCustomerRepository) FindByCode(ctx context.Context, code string) (*partner.Customer, error) {
	var customer partner.Customer
	if err := r.db.WithContext(ctx).First(&customer, "code = ?", code).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &customer, nil
}

// FindAll lists customers matching the filter
func (r *GormCustomerRepository) FindAll(ctx context.Context, filter shared.Filter) ([]partner.Customer, error) {
	var customers []partner.Customer
	if err := applyFilter(r.db.WithContext(ctx), filter).Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

// Save creates or updates a customer
func (r *GormCustomerRepository) Save(ctx context.Context, customer *partner.Customer) error {
	return mapDuplicate(r.db.WithContext(ctx).Save(customer).Error)
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormCustomerRepository) SaveWithLock(ctx context.Context, customer *partner.Customer) error {
	result := r.db.WithContext(ctx).
		Model(customer).
		Where("id = ? AND version < ?", customer.ID, customer.Version).
		Updates(map[string]interface{}{
			"segment":      customer.Segment,
			"tier":         customer.Tier,
			"tier_version": customer.TierVersion,
			"credit_limit": customer.CreditLimit,
			"version":      customer.Version,
			"updated_at":   customer.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Count counts customers matching the filter
func (r *GormCustomerRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	db := r.db.WithContext(ctx).Model(&partner.Customer{})
	for field, value := range filter.Filters {
		db = db.Where(field+" = ?", value)
	}
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GormOrderHistoryRepository implements partner.OrderHistoryRepository
// using GORM
type GormOrderHistoryRepository struct {
	db *gorm.DB
}

// NewGormOrderHistoryRepository creates a new GORM order history repository
func NewGormOrderHistoryRepository(db *gorm.DB) *GormOrderHistoryRepository {
	return &GormOrderHistoryRepository{db: db}
}

// FindByCustomer finds the history roll-up for a customer
func (r *GormOrderHistoryRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*partner.OrderHistory, error) {
	var history partner.OrderHistory
	if err := r.db.WithContext(ctx).First(&history, "customer_id = ?", customerID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &history, nil
}

// Save creates or updates a history roll-up
func (r *GormOrderHistoryRepository) Save(ctx context.Context, history *partner.OrderHistory) error {
	return r.db.WithContext(ctx).Save(history).Error
}
