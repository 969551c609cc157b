package allocation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Event types for the allocation domain
const (
	EventTypeDecisionCommitted  = "allocation.decision.committed"
	EventTypeBackorderRaised    = "allocation.backorder.raised"
	EventTypeEscalationRaised   = "allocation.escalation.raised"
	EventTypeCapacityContention = "allocation.capacity.contention"
)

// DecisionCommittedEvent is emitted once a decision's ledger write has
// stuck
type DecisionCommittedEvent struct {
	shared.BaseDomainEvent
	RequestID       uuid.UUID       `json:"request_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	LocationID      uuid.UUID       `json:"location_id"`
	Outcome         Outcome         `json:"outcome"`
	GrantedQuantity decimal.Decimal `json:"granted_quantity"`
	Solver          Solver          `json:"solver"`
}

// NewDecisionCommittedEvent creates a new DecisionCommittedEvent
func NewDecisionCommittedEvent(d *AllocationDecision, req *AllocationRequest) *DecisionCommittedEvent {
	return &DecisionCommittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDecisionCommitted, "AllocationDecision", d.ID),
		RequestID:       d.RequestID,
		CustomerID:      req.CustomerID,
		ProductID:       req.ProductID,
		LocationID:      req.LocationID,
		Outcome:         d.Outcome,
		GrantedQuantity: d.GrantedQuantity,
		Solver:          d.Solver,
	}
}

// BackorderRaisedEvent is emitted when a request is held or a rule
// parks it for later supply
type BackorderRaisedEvent struct {
	shared.BaseDomainEvent
	RequestID         uuid.UUID       `json:"request_id"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	LocationID        uuid.UUID       `json:"location_id"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
}

// NewBackorderRaisedEvent creates a new BackorderRaisedEvent
func NewBackorderRaisedEvent(req *AllocationRequest) *BackorderRaisedEvent {
	return &BackorderRaisedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeBackorderRaised, "AllocationRequest", req.ID),
		RequestID:         req.ID,
		CustomerID:        req.CustomerID,
		ProductID:         req.ProductID,
		LocationID:        req.LocationID,
		RequestedQuantity: req.Quantity,
	}
}

// EscalationRaisedEvent is emitted when a rule routes a request to a
// human instead of deciding it
type EscalationRaisedEvent struct {
	shared.BaseDomainEvent
	RequestID  uuid.UUID  `json:"request_id"`
	CustomerID uuid.UUID  `json:"customer_id"`
	RuleID     *uuid.UUID `json:"rule_id,omitempty"`
	RuleName   string     `json:"rule_name,omitempty"`
}

// NewEscalationRaisedEvent creates a new EscalationRaisedEvent
func NewEscalationRaisedEvent(req *AllocationRequest, ruleID *uuid.UUID, ruleName string) *EscalationRaisedEvent {
	return &EscalationRaisedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEscalationRaised, "AllocationRequest", req.ID),
		RequestID:       req.ID,
		CustomerID:      req.CustomerID,
		RuleID:          ruleID,
		RuleName:        ruleName,
	}
}

// CapacityContentionEvent is emitted when a request exhausts its commit
// retry budget against concurrent ledger writers
type CapacityContentionEvent struct {
	shared.BaseDomainEvent
	RequestID  uuid.UUID `json:"request_id"`
	ProductID  uuid.UUID `json:"product_id"`
	LocationID uuid.UUID `json:"location_id"`
	Attempts   int       `json:"attempts"`
}

// NewCapacityContentionEvent creates a new CapacityContentionEvent
func NewCapacityContentionEvent(req *AllocationRequest, attempts int) *CapacityContentionEvent {
	return &CapacityContentionEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCapacityContention, "AllocationRequest", req.ID),
		RequestID:       req.ID,
		ProductID:       req.ProductID,
		LocationID:      req.LocationID,
		Attempts:        attempts,
	}
}
