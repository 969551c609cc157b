package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supplyai/backend/internal/domain/inventory"
	"github.com/supplyai/backend/internal/domain/shared"
)

// GormInventoryRepository implements inventory.InventoryRepository using GORM
type GormInventoryRepository struct {
	db *gorm.DB
}

// NewGormInventoryRepository creates a new GORM inventory repository
func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// FindByID finds a ledger row by its ID
func (r *GormInventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.InventoryRecord, error) {
	var record inventory.InventoryRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &record, nil
}

// FindByProductLocation finds the ledger row for a product at a location
func (r *GormInventoryRepository) FindByProductLocation(ctx context.Context, productID, locationID uuid.UUID) (*inventory.InventoryRecord, error) {
	var record inventory.InventoryRecord
	err := r.db.WithContext(ctx).
		First(&record, "product_id = ? AND location_id = ?", productID, locationID).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &record, nil
}

// FindAll lists ledger rows matching the filter
func (r *GormInventoryRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.InventoryRecord, error) {
	var records []inventory.InventoryRecord
	if err := applyFilter(r.db.WithContext(ctx), filter).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Save creates or updates a ledger row
func (r *GormInventoryRepository) Save(ctx context.Context, record *inventory.InventoryRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// SaveWithLock saves with optimistic locking. A domain method may bump
// the version more than once per unit of work, so the guard is
// version < new rather than version = new - 1.
func (r *GormInventoryRepository) SaveWithLock(ctx context.Context, record *inventory.InventoryRecord) error {
	return recordSaveWithLock(r.db.WithContext(ctx), record)
}

func recordSaveWithLock(db *gorm.DB, record *inventory.InventoryRecord) error {
	result := db.
		Model(record).
		Where("id = ? AND version < ?", record.ID, record.Version).
		Updates(map[string]interface{}{
			"on_hand":       record.OnHand,
			"allocated":     record.Allocated,
			"reserved":      record.Reserved,
			"reorder_point": record.ReorderPoint,
			"version":       record.Version,
			"updated_at":    record.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GormReservationRepository implements inventory.ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GORM reservation repository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	var res inventory.Reservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &res, nil
}

// FindActiveByCustomerProduct finds the customer's active reservations
// for a product at a location
func (r *GormReservationRepository) FindActiveByCustomerProduct(ctx context.Context, customerID, productID, locationID uuid.UUID) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND product_id = ? AND location_id = ? AND status = ?",
			customerID, productID, locationID, inventory.ReservationStatusActive).
		Order("expires_at asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindActiveByProductLocation finds all active reservations holding
// stock at a location
func (r *GormReservationRepository) FindActiveByProductLocation(ctx context.Context, productID, locationID uuid.UUID) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND location_id = ? AND status = ?",
			productID, locationID, inventory.ReservationStatusActive).
		Order("expires_at asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindExpired finds active reservations whose expiry has passed
func (r *GormReservationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", inventory.ReservationStatusActive, now).
		Order("expires_at asc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindAll lists reservations matching the filter
func (r *GormReservationRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	if err := applyFilter(r.db.WithContext(ctx), filter).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Save creates or updates a reservation
func (r *GormReservationRepository) Save(ctx context.Context, res *inventory.Reservation) error {
	return r.db.WithContext(ctx).Save(res).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormReservationRepository) SaveWithLock(ctx context.Context, res *inventory.Reservation) error {
	return reservationSaveWithLock(r.db.WithContext(ctx), res)
}

func reservationSaveWithLock(db *gorm.DB, res *inventory.Reservation) error {
	result := db.
		Model(res).
		Where("id = ? AND version < ?", res.ID, res.Version).
		Updates(map[string]interface{}{
			"status":     res.Status,
			"closed_at":  res.ClosedAt,
			"version":    res.Version,
			"updated_at": res.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
