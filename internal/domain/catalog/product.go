package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Product is immutable reference data describing an allocatable SKU.
// The allocation engine only reads products; lifecycle management lives
// in the upstream catalog system.
type Product struct {
	shared.BaseEntity
	SKU          string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name         string          `gorm:"type:varchar(255);not null"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LeadTimeDays int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new product
func NewProduct(sku, name string, unitCost decimal.Decimal, leadTimeDays int) (*Product, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product SKU cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product name cannot be empty")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unit cost cannot be negative")
	}
	if leadTimeDays < 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Lead time cannot be negative")
	}

	return &Product{
		BaseEntity:   shared.NewBaseEntity(),
		SKU:          sku,
		Name:         name,
		UnitCost:     unitCost,
		LeadTimeDays: leadTimeDays,
	}, nil
}
