package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// InventoryRecord is the ledger row for one product at one location.
// All movements go through the methods below, which hold the invariant
// allocated + reserved <= on_hand; writes are guarded by the aggregate
// version, so two concurrent movements can never both commit against
// the same snapshot.
type InventoryRecord struct {
	shared.BaseAggregateRoot
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_inventory_product_location,unique,priority:1"`
	LocationID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_inventory_product_location,unique,priority:2"`
	OnHand       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Allocated    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Reserved     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReorderPoint decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (InventoryRecord) TableName() string {
	return "inventory_records"
}

// NewInventoryRecord creates a ledger row for a product at a location
func NewInventoryRecord(productID, locationID uuid.UUID, onHand, reorderPoint decimal.Decimal) (*InventoryRecord, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Location ID cannot be empty")
	}
	if onHand.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "On-hand quantity cannot be negative")
	}
	if reorderPoint.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Reorder point cannot be negative")
	}

	return &InventoryRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		LocationID:        locationID,
		OnHand:            onHand,
		Allocated:         decimal.Zero,
		Reserved:          decimal.Zero,
		ReorderPoint:      reorderPoint,
	}, nil
}

// Available returns the open capacity: on_hand - allocated - reserved
func (r *InventoryRecord) Available() decimal.Decimal {
	return r.OnHand.Sub(r.Allocated).Sub(r.Reserved)
}

// Allocate moves quantity from open capacity into allocated
func (r *InventoryRecord) Allocate(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError("VALIDATION_ERROR", "Allocation quantity must be positive")
	}
	if quantity.GreaterThan(r.Available()) {
		return shared.ErrInsufficientStock
	}

	r.Allocated = r.Allocated.Add(quantity)
	r.Touch()
	r.IncrementVersion()
	r.raiseReorderAlertIfNeeded()
	return nil
}

// Reserve moves quantity from open capacity into reserved
func (r *InventoryRecord) Reserve(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError("VALIDATION_ERROR", "Reservation quantity must be positive")
	}
	if quantity.GreaterThan(r.Available()) {
		return shared.ErrInsufficientStock
	}

	r.Reserved = r.Reserved.Add(quantity)
	r.Touch()
	r.IncrementVersion()
	return nil
}

// ReleaseReservation returns reserved quantity to open capacity.
// Used when a reservation expires or is cancelled.
func (r *InventoryRecord) ReleaseReservation(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError("VALIDATION_ERROR", "Release quantity must be positive")
	}
	if quantity.GreaterThan(r.Reserved) {
		return shared.NewDomainError("INVALID_STATE", "Release exceeds reserved quantity")
	}

	r.Reserved = r.Reserved.Sub(quantity)
	r.Touch()
	r.IncrementVersion()
	return nil
}

// ConsumeReservation converts reserved quantity into allocated when a
// reservation is consumed by an allocation. The total committed stock
// does not change, only its bucket.
func (r *InventoryRecord) ConsumeReservation(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError("VALIDATION_ERROR", "Consume quantity must be positive")
	}
	if quantity.GreaterThan(r.Reserved) {
		return shared.NewDomainError("INVALID_STATE", "Consume exceeds reserved quantity")
	}

	r.Reserved = r.Reserved.Sub(quantity)
	r.Allocated = r.Allocated.Add(quantity)
	r.Touch()
	r.IncrementVersion()
	return nil
}

// Receive adds received stock to on_hand
func (r *InventoryRecord) Receive(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError("VALIDATION_ERROR", "Receipt quantity must be positive")
	}

	r.OnHand = r.OnHand.Add(quantity)
	r.Touch()
	r.IncrementVersion()
	return nil
}

// Ship removes allocated stock that has left the building
func (r *InventoryRecord) Ship(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewDomainError("VALIDATION_ERROR", "Shipment quantity must be positive")
	}
	if quantity.GreaterThan(r.Allocated) {
		return shared.NewDomainError("INVALID_STATE", "Shipment exceeds allocated quantity")
	}

	r.Allocated = r.Allocated.Sub(quantity)
	r.OnHand = r.OnHand.Sub(quantity)
	r.Touch()
	r.IncrementVersion()
	return nil
}

func (r *InventoryRecord) raiseReorderAlertIfNeeded() {
	if r.ReorderPoint.IsPositive() && r.Available().LessThanOrEqual(r.ReorderPoint) {
		r.AddDomainEvent(NewReorderPointReachedEvent(r))
	}
}
