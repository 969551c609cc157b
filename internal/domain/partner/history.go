package partner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// OrderHistory holds the rolled-up behavioral metrics the classifier
// scores a customer on. The rows are produced by the upstream order
// pipeline; the engine only reads them.
type OrderHistory struct {
	shared.BaseEntity
	CustomerID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	OrderVolume        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Trailing 12-month units ordered
	MarginContribution decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Trailing 12-month margin
	PaymentRisk        float64         `gorm:"not null;default:0"`                    // 0 (reliable) .. 1 (delinquent)
	LastOrderAt        *time.Time      `gorm:"type:timestamp"`
}

// TableName returns the table name for GORM
func (OrderHistory) TableName() string {
	return "order_histories"
}

// OrderHistoryRepository reads classification inputs from the upstream
// order data source.
type OrderHistoryRepository interface {
	// FindByCustomer finds the history roll-up for a customer.
	// Returns shared.ErrNotFound when the customer has no history yet.
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*OrderHistory, error)

	// Save creates or updates a history roll-up
	Save(ctx context.Context, history *OrderHistory) error
}
