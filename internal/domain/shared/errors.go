package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors. The allocation flow distinguishes retriable
// contention errors from terminal ones; see IsRetriable.
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrValidation          = NewDomainError("VALIDATION_ERROR", "Invalid input provided")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrReservationExpired  = NewDomainError("RESERVATION_EXPIRED", "Reservation has already expired")
	ErrDeadlineExceeded    = NewDomainError("DEADLINE_EXCEEDED", "Request deadline elapsed before commit")
	ErrCapacityContention  = NewDomainError("CAPACITY_CONTENTION", "Commit retry budget exhausted under contention")
	ErrOptimizerInfeasible = NewDomainError("OPTIMIZER_INFEASIBLE", "Exact optimization infeasible within budget")
)

// IsRetriable reports whether the error is a transient conflict that the
// caller may retry with a fresh snapshot. Only optimistic-lock conflicts
// qualify; everything else is terminal for the current attempt.
func IsRetriable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == ErrConcurrencyConflict.Code
	}
	return false
}

// ErrorCode extracts the domain error code from err, or UNKNOWN if err is
// not a DomainError.
func ErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN"
}
