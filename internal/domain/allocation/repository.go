package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/supplyai/backend/internal/domain/shared"
)

// RequestRepository defines the interface for request persistence
type RequestRepository interface {
	// FindByID finds a request by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*AllocationRequest, error)

	// FindByCustomer lists a customer's requests
	FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]AllocationRequest, error)

	// FindAll lists requests matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]AllocationRequest, error)

	// Save creates or updates a request
	Save(ctx context.Context, request *AllocationRequest) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, request *AllocationRequest) error
}

// DecisionRepository defines the interface for the append-only decision
// log. Decisions are never updated or deleted.
type DecisionRepository interface {
	// FindByID finds a decision by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*AllocationDecision, error)

	// FindByRequest lists all decisions for a request, oldest first.
	// More than one row means later rows are corrections.
	FindByRequest(ctx context.Context, requestID uuid.UUID) ([]AllocationDecision, error)

	// FindLatestByRequest finds the effective decision for a request
	FindLatestByRequest(ctx context.Context, requestID uuid.UUID) (*AllocationDecision, error)

	// Append inserts a decision row
	Append(ctx context.Context, decision *AllocationDecision) error
}
