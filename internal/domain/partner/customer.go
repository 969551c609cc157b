package partner

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Segment is the coarse commercial bucket a customer belongs to
type Segment string

const (
	SegmentStrategic     Segment = "STRATEGIC"
	SegmentStandard      Segment = "STANDARD"
	SegmentOpportunistic Segment = "OPPORTUNISTIC"
)

// IsValid returns true if the segment is a known value
func (s Segment) IsValid() bool {
	switch s {
	case SegmentStrategic, SegmentStandard, SegmentOpportunistic:
		return true
	}
	return false
}

// Tier bounds. Lower tier value means higher allocation priority.
const (
	MinTier = 1
	MaxTier = 4
)

// Customer is the allocation engine's view of a customer. Segment and
// tier are owned by the classifier; everything else is read-only here.
// Tier changes bump TierVersion so in-flight requests can pin the tier
// they were classified with.
type Customer struct {
	shared.BaseAggregateRoot
	Code        string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name        string          `gorm:"type:varchar(255);not null"`
	Segment     Segment         `gorm:"type:varchar(20);not null;default:'STANDARD'"`
	Tier        int             `gorm:"not null;default:3"`
	TierVersion int             `gorm:"not null;default:1"`
	CreditLimit decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer creates a new customer with the default classification
func NewCustomer(code, name string, creditLimit decimal.Decimal) (*Customer, error) {
	if strings.TrimSpace(code) == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Customer code cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Customer name cannot be empty")
	}
	if creditLimit.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Credit limit cannot be negative")
	}

	return &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		Segment:           SegmentStandard,
		Tier:              3,
		TierVersion:       1,
		CreditLimit:       creditLimit,
	}, nil
}

// Reclassify updates the customer's segment and tier. A no-op when the
// classification is unchanged; otherwise the tier version is bumped and
// a CustomerReclassified event is emitted.
func (c *Customer) Reclassify(segment Segment, tier int) error {
	if !segment.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", "Unknown customer segment")
	}
	if tier < MinTier || tier > MaxTier {
		return shared.NewDomainError("VALIDATION_ERROR", "Tier out of range")
	}
	if c.Segment == segment && c.Tier == tier {
		return nil
	}

	oldSegment, oldTier := c.Segment, c.Tier
	c.Segment = segment
	c.Tier = tier
	c.TierVersion++
	c.Touch()
	c.IncrementVersion()

	c.AddDomainEvent(NewCustomerReclassifiedEvent(c, oldSegment, oldTier))
	return nil
}
