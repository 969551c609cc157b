package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/supplyai/backend/internal/domain/shared"
)

// InventoryRepository defines the interface for ledger persistence
type InventoryRepository interface {
	// FindByID finds a ledger row by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryRecord, error)

	// FindByProductLocation finds the ledger row for a product at a location
	FindByProductLocation(ctx context.Context, productID, locationID uuid.UUID) (*InventoryRecord, error)

	// FindAll lists ledger rows matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]InventoryRecord, error)

	// Save creates or updates a ledger row
	Save(ctx context.Context, record *InventoryRecord) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, record *InventoryRecord) error
}

// ReservationRepository defines the interface for reservation persistence
type ReservationRepository interface {
	// FindByID finds a reservation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// FindActiveByCustomerProduct finds the customer's active
	// reservations for a product at a location
	FindActiveByCustomerProduct(ctx context.Context, customerID, productID, locationID uuid.UUID) ([]Reservation, error)

	// FindActiveByProductLocation finds all active reservations holding
	// stock at a location
	FindActiveByProductLocation(ctx context.Context, productID, locationID uuid.UUID) ([]Reservation, error)

	// FindExpired finds active reservations whose expiry has passed
	FindExpired(ctx context.Context, now time.Time, limit int) ([]Reservation, error)

	// FindAll lists reservations matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]Reservation, error)

	// Save creates or updates a reservation
	Save(ctx context.Context, reservation *Reservation) error

	// SaveWithLock saves with optimistic locking (checks version).
	// The version guard is what keeps expiry and consumption mutually
	// exclusive when they race.
	SaveWithLock(ctx context.Context, reservation *Reservation) error
}
