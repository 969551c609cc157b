package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Event types for the inventory domain
const (
	EventTypeReorderPointReached = "inventory.reorder_point.reached"
	EventTypeReservationConsumed = "inventory.reservation.consumed"
	EventTypeReservationReleased = "inventory.reservation.released"
)

// ReorderPointReachedEvent is emitted when open capacity falls to or
// below the reorder point
type ReorderPointReachedEvent struct {
	shared.BaseDomainEvent
	ProductID    uuid.UUID       `json:"product_id"`
	LocationID   uuid.UUID       `json:"location_id"`
	Available    decimal.Decimal `json:"available"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
}

// NewReorderPointReachedEvent creates a new ReorderPointReachedEvent
func NewReorderPointReachedEvent(r *InventoryRecord) *ReorderPointReachedEvent {
	return &ReorderPointReachedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReorderPointReached, "InventoryRecord", r.ID),
		ProductID:       r.ProductID,
		LocationID:      r.LocationID,
		Available:       r.Available(),
		ReorderPoint:    r.ReorderPoint,
	}
}

// ReservationConsumedEvent is emitted when an allocation consumes a
// reservation's hold
type ReservationConsumedEvent struct {
	shared.BaseDomainEvent
	CustomerID   uuid.UUID       `json:"customer_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	LocationID   uuid.UUID       `json:"location_id"`
	HeldQuantity decimal.Decimal `json:"held_quantity"`
}

// NewReservationConsumedEvent creates a new ReservationConsumedEvent
func NewReservationConsumedEvent(r *Reservation) *ReservationConsumedEvent {
	return &ReservationConsumedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationConsumed, "Reservation", r.ID),
		CustomerID:      r.CustomerID,
		ProductID:       r.ProductID,
		LocationID:      r.LocationID,
		HeldQuantity:    r.HeldQuantity,
	}
}

// ReservationReleasedEvent is emitted when a hold returns to open
// capacity through expiry or cancellation
type ReservationReleasedEvent struct {
	shared.BaseDomainEvent
	CustomerID   uuid.UUID         `json:"customer_id"`
	ProductID    uuid.UUID         `json:"product_id"`
	LocationID   uuid.UUID         `json:"location_id"`
	HeldQuantity decimal.Decimal   `json:"held_quantity"`
	Reason       ReservationStatus `json:"reason"`
}

// NewReservationReleasedEvent creates a new ReservationReleasedEvent
func NewReservationReleasedEvent(r *Reservation, reason ReservationStatus) *ReservationReleasedEvent {
	return &ReservationReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationReleased, "Reservation", r.ID),
		CustomerID:      r.CustomerID,
		ProductID:       r.ProductID,
		LocationID:      r.LocationID,
		HeldQuantity:    r.HeldQuantity,
		Reason:          reason,
	}
}
