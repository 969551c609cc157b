package partner

import (
	"github.com/supplyai/backend/internal/domain/shared"
)

// Event types for the partner domain
const (
	EventTypeCustomerReclassified = "partner.customer.reclassified"
)

// CustomerReclassifiedEvent is emitted when the classifier moves a
// customer to a new segment or tier
type CustomerReclassifiedEvent struct {
	shared.BaseDomainEvent
	CustomerCode string  `json:"customer_code"`
	OldSegment   Segment `json:"old_segment"`
	NewSegment   Segment `json:"new_segment"`
	OldTier      int     `json:"old_tier"`
	NewTier      int     `json:"new_tier"`
	TierVersion  int     `json:"tier_version"`
}

// NewCustomerReclassifiedEvent creates a new CustomerReclassifiedEvent
func NewCustomerReclassifiedEvent(c *Customer, oldSegment Segment, oldTier int) *CustomerReclassifiedEvent {
	return &CustomerReclassifiedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerReclassified, "Customer", c.ID),
		CustomerCode:    c.Code,
		OldSegment:      oldSegment,
		NewSegment:      c.Segment,
		OldTier:         oldTier,
		NewTier:         c.Tier,
		TierVersion:     c.TierVersion,
	}
}
