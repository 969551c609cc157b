package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusConsumed  ReservationStatus = "CONSUMED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// Reservation is a probabilistic soft hold of stock against a customer
// forecast. The held quantity is the floor of probability times the
// forecast, so a 0.6 probability on 100 units holds exactly 60. Held
// stock comes out of open capacity until the reservation is consumed,
// expires, or is cancelled; each of those is a terminal state and they
// are mutually exclusive.
type Reservation struct {
	shared.BaseAggregateRoot
	CustomerID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	ProductID        uuid.UUID         `gorm:"type:uuid;not null;index:idx_reservations_product_location,priority:1"`
	LocationID       uuid.UUID         `gorm:"type:uuid;not null;index:idx_reservations_product_location,priority:2"`
	ForecastQuantity decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Probability      decimal.Decimal   `gorm:"type:decimal(5,4);not null"`
	HeldQuantity     decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Status           ReservationStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	ExpiresAt        time.Time         `gorm:"type:timestamp;not null;index"`
	ClosedAt         *time.Time        `gorm:"type:timestamp"`
}

// TableName returns the table name for GORM
func (Reservation) TableName() string {
	return "reservations"
}

// HeldQuantityFor computes the hold for a forecast: floor(probability * forecast)
func HeldQuantityFor(forecast, probability decimal.Decimal) decimal.Decimal {
	return probability.Mul(forecast).Floor()
}

// NewReservation creates an active reservation
func NewReservation(customerID, productID, locationID uuid.UUID, forecast, probability decimal.Decimal, expiresAt time.Time) (*Reservation, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Customer ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Location ID cannot be empty")
	}
	if !forecast.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Forecast quantity must be positive")
	}
	if probability.LessThanOrEqual(decimal.Zero) || probability.GreaterThan(decimal.NewFromInt(1)) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Probability must be in (0, 1]")
	}
	if expiresAt.IsZero() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Expiry time cannot be zero")
	}

	held := HeldQuantityFor(forecast, probability)
	if !held.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Reservation rounds down to zero units")
	}

	return &Reservation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		ProductID:         productID,
		LocationID:        locationID,
		ForecastQuantity:  forecast,
		Probability:       probability,
		HeldQuantity:      held,
		Status:            ReservationStatusActive,
		ExpiresAt:         expiresAt,
	}, nil
}

// IsActive returns true if the reservation still holds stock
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusActive
}

// IsExpired returns true if the reservation has passed its expiry but
// has not been closed yet
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationStatusActive && now.After(r.ExpiresAt)
}

// Consume marks the reservation consumed by an allocation. A
// reservation past its expiry cannot be consumed even if the sweeper
// has not released it yet.
func (r *Reservation) Consume(now time.Time) error {
	if r.Status != ReservationStatusActive {
		return shared.NewDomainError("INVALID_STATE", "Reservation is not active")
	}
	if now.After(r.ExpiresAt) {
		return shared.ErrReservationExpired
	}

	r.Status = ReservationStatusConsumed
	r.ClosedAt = &now
	r.Touch()
	r.IncrementVersion()
	r.AddDomainEvent(NewReservationConsumedEvent(r))
	return nil
}

// Expire releases the hold after the expiry time has passed
func (r *Reservation) Expire(now time.Time) error {
	if r.Status != ReservationStatusActive {
		return shared.NewDomainError("INVALID_STATE", "Reservation is not active")
	}
	if !now.After(r.ExpiresAt) {
		return shared.NewDomainError("INVALID_STATE", "Reservation has not expired yet")
	}

	r.Status = ReservationStatusExpired
	r.ClosedAt = &now
	r.Touch()
	r.IncrementVersion()
	r.AddDomainEvent(NewReservationReleasedEvent(r, ReservationStatusExpired))
	return nil
}

// Cancel releases the hold before expiry at the caller's request
func (r *Reservation) Cancel(now time.Time) error {
	if r.Status != ReservationStatusActive {
		return shared.NewDomainError("INVALID_STATE", "Reservation is not active")
	}

	r.Status = ReservationStatusCancelled
	r.ClosedAt = &now
	r.Touch()
	r.IncrementVersion()
	r.AddDomainEvent(NewReservationReleasedEvent(r, ReservationStatusCancelled))
	return nil
}
