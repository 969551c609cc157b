package allocation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Outcome is the final answer for a request
type Outcome string

const (
	OutcomeAllocated   Outcome = "ALLOCATED"
	OutcomePartial     Outcome = "PARTIAL"
	OutcomeBackordered Outcome = "BACKORDERED"
	OutcomeRejected    Outcome = "REJECTED"
)

// IsValid returns true if the outcome is a known value
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeAllocated, OutcomePartial, OutcomeBackordered, OutcomeRejected:
		return true
	}
	return false
}

// Solver names which optimizer strategy produced a decision
type Solver string

const (
	SolverExact  Solver = "EXACT"
	SolverGreedy Solver = "GREEDY"
	SolverNone   Solver = "NONE" // rule verdict alone decided, no optimization ran
)

// AllocationDecision is one append-only row in the decision log. A
// decision is never edited; a correction is a new decision pointing at
// the one it supersedes via CorrectionOf.
type AllocationDecision struct {
	shared.BaseEntity
	RequestID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_decisions_request_correction,priority:1"`
	Outcome           Outcome         `gorm:"type:varchar(20);not null"`
	RequestedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	GrantedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Solver            Solver          `gorm:"type:varchar(10);not null;default:'NONE'"`
	RuleID            *uuid.UUID      `gorm:"type:uuid"`
	RuleVersion       *int            `gorm:""`
	ReservationID     *uuid.UUID      `gorm:"type:uuid"`
	ReservedQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // portion satisfied from a consumed hold
	CorrectionOf      *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_decisions_request_correction,priority:2"`
	DecidedAt         time.Time       `gorm:"type:timestamp;not null"`
	Reason            string          `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (AllocationDecision) TableName() string {
	return "allocation_decisions"
}

// NewAllocationDecision creates a decision log row
func NewAllocationDecision(requestID uuid.UUID, outcome Outcome, requested, granted decimal.Decimal, solver Solver, decidedAt time.Time) (*AllocationDecision, error) {
	if requestID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Request ID cannot be empty")
	}
	if !outcome.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unknown decision outcome")
	}
	if granted.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Granted quantity cannot be negative")
	}
	if granted.GreaterThan(requested) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Granted quantity cannot exceed requested quantity")
	}
	switch outcome {
	case OutcomeAllocated:
		if !granted.Equal(requested) {
			return nil, shared.NewDomainError("VALIDATION_ERROR", "Full allocation must grant the requested quantity")
		}
	case OutcomePartial:
		if !granted.IsPositive() || granted.GreaterThanOrEqual(requested) {
			return nil, shared.NewDomainError("VALIDATION_ERROR", "Partial allocation must grant between zero and the requested quantity")
		}
	case OutcomeBackordered, OutcomeRejected:
		if !granted.IsZero() {
			return nil, shared.NewDomainError("VALIDATION_ERROR", "Backordered and rejected decisions grant nothing")
		}
	}

	return &AllocationDecision{
		BaseEntity:        shared.NewBaseEntity(),
		RequestID:         requestID,
		Outcome:           outcome,
		RequestedQuantity: requested,
		GrantedQuantity:   granted,
		Solver:            solver,
		ReservedQuantity:  decimal.Zero,
		DecidedAt:         decidedAt,
	}, nil
}

// Correct creates a superseding decision for the same request
func (d *AllocationDecision) Correct(outcome Outcome, granted decimal.Decimal, solver Solver, decidedAt time.Time, reason string) (*AllocationDecision, error) {
	next, err := NewAllocationDecision(d.RequestID, outcome, d.RequestedQuantity, granted, solver, decidedAt)
	if err != nil {
		return nil, err
	}
	prevID := d.ID
	next.CorrectionOf = &prevID
	next.Reason = reason
	return next, nil
}
