package allocation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// RequestStatus tracks how far a request has moved through the
// pipeline. Transitions only move forward; a failed request records why
// in FailureCode and never re-enters the pipeline.
type RequestStatus string

const (
	RequestStatusSubmitted          RequestStatus = "SUBMITTED"
	RequestStatusClassified         RequestStatus = "CLASSIFIED"
	RequestStatusRuleEvaluated      RequestStatus = "RULE_EVALUATED"
	RequestStatusReservationChecked RequestStatus = "RESERVATION_CHECKED"
	RequestStatusDecided            RequestStatus = "DECIDED"
	RequestStatusCommitted          RequestStatus = "COMMITTED"
	RequestStatusFailed             RequestStatus = "FAILED"
)

var requestTransitions = map[RequestStatus]RequestStatus{
	RequestStatusSubmitted:          RequestStatusClassified,
	RequestStatusClassified:         RequestStatusRuleEvaluated,
	RequestStatusRuleEvaluated:      RequestStatusReservationChecked,
	RequestStatusReservationChecked: RequestStatusDecided,
	RequestStatusDecided:            RequestStatusCommitted,
}

// AllocationRequest is one customer demand for stock at a location.
// Tier and TierVersion are pinned at classification time so a
// reclassification mid-flight does not change the outcome.
type AllocationRequest struct {
	shared.BaseAggregateRoot
	CustomerID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_requests_product_location,priority:1"`
	LocationID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_requests_product_location,priority:2"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SubmittedAt time.Time       `gorm:"type:timestamp;not null;index"`
	Deadline    *time.Time      `gorm:"type:timestamp"`
	Status      RequestStatus   `gorm:"type:varchar(25);not null;default:'SUBMITTED';index"`
	Tier        *int            `gorm:""`
	TierVersion *int            `gorm:""`
	FailureCode string          `gorm:"type:varchar(40)"`
}

// TableName returns the table name for GORM
func (AllocationRequest) TableName() string {
	return "allocation_requests"
}

// NewAllocationRequest creates a submitted request
func NewAllocationRequest(customerID, productID, locationID uuid.UUID, quantity decimal.Decimal, submittedAt time.Time, deadline *time.Time) (*AllocationRequest, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Customer ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Product ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Location ID cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Requested quantity must be positive")
	}
	if deadline != nil && !deadline.After(submittedAt) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Deadline must be after submission time")
	}

	return &AllocationRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		ProductID:         productID,
		LocationID:        locationID,
		Quantity:          quantity,
		SubmittedAt:       submittedAt,
		Deadline:          deadline,
		Status:            RequestStatusSubmitted,
	}, nil
}

// MarkClassified pins the tier snapshot the request was classified with
func (r *AllocationRequest) MarkClassified(tier, tierVersion int) error {
	if err := r.advance(RequestStatusClassified); err != nil {
		return err
	}
	r.Tier = &tier
	r.TierVersion = &tierVersion
	return nil
}

// MarkRuleEvaluated records that the rule engine produced a verdict
func (r *AllocationRequest) MarkRuleEvaluated() error {
	return r.advance(RequestStatusRuleEvaluated)
}

// MarkReservationChecked records that reservations were resolved
func (r *AllocationRequest) MarkReservationChecked() error {
	return r.advance(RequestStatusReservationChecked)
}

// MarkDecided records that the optimizer produced a decision
func (r *AllocationRequest) MarkDecided() error {
	return r.advance(RequestStatusDecided)
}

// MarkCommitted records that the decision was written to the ledger
func (r *AllocationRequest) MarkCommitted() error {
	return r.advance(RequestStatusCommitted)
}

// Fail moves the request to the terminal failed state with a cause.
// A committed request can no longer fail.
func (r *AllocationRequest) Fail(code string) error {
	if r.Status == RequestStatusCommitted || r.Status == RequestStatusFailed {
		return shared.NewDomainError("INVALID_STATE", "Request is already terminal")
	}
	r.Status = RequestStatusFailed
	r.FailureCode = code
	r.Touch()
	r.IncrementVersion()
	return nil
}

// IsTerminal returns true once the request can no longer change
func (r *AllocationRequest) IsTerminal() bool {
	return r.Status == RequestStatusCommitted || r.Status == RequestStatusFailed
}

// DeadlineElapsed returns true if the request carried a deadline and it
// has passed
func (r *AllocationRequest) DeadlineElapsed(now time.Time) bool {
	return r.Deadline != nil && now.After(*r.Deadline)
}

func (r *AllocationRequest) advance(next RequestStatus) error {
	if requestTransitions[r.Status] != next {
		return shared.NewDomainError("INVALID_STATE", "Invalid request status transition")
	}
	r.Status = next
	r.Touch()
	r.IncrementVersion()
	return nil
}
