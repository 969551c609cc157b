package allocation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supplyai/backend/internal/domain/allocation"
)

// ProcessInput is one demand handed to the allocation pipeline
type ProcessInput struct {
	CustomerID uuid.UUID
	ProductID  uuid.UUID
	LocationID uuid.UUID
	Quantity   decimal.Decimal
	Deadline   *time.Time
}

// ProcessResult is the pipeline's answer for one request
type ProcessResult struct {
	RequestID         uuid.UUID          `json:"request_id"`
	Outcome           allocation.Outcome `json:"outcome"`
	RequestedQuantity decimal.Decimal    `json:"requested_quantity"`
	GrantedQuantity   decimal.Decimal    `json:"granted_quantity"`
	FromReservation   decimal.Decimal    `json:"from_reservation"`
	Solver            allocation.Solver  `json:"solver"`
	RuleID            *uuid.UUID         `json:"rule_id,omitempty"`
	RuleVersion       *int               `json:"rule_version,omitempty"`
	RuleName          string             `json:"rule_name,omitempty"`
	ReservationID     *uuid.UUID         `json:"reservation_id,omitempty"`
	Tier              int                `json:"tier"`
	TierVersion       int                `json:"tier_version"`
	DecidedAt         time.Time          `json:"decided_at"`
}

// BatchResult is the answer for a batch submission
type BatchResult struct {
	Results []ProcessResult `json:"results"`
	Failed  []BatchFailure  `json:"failed,omitempty"`
}

// BatchFailure records a request that could not be decided
type BatchFailure struct {
	Index     int       `json:"index"`
	RequestID uuid.UUID `json:"request_id,omitempty"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
}
