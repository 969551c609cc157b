package allocation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/allocation"
	"github.com/supplyai/backend/internal/domain/inventory"
	"github.com/supplyai/backend/internal/domain/shared"
)

// CommitStore persists one decision's rows as a unit: the
// version-guarded ledger record update, the consumed hold update, and
// the decision append either all stick or none do.
type CommitStore interface {
	Apply(ctx context.Context, record *inventory.InventoryRecord, hold *inventory.Reservation, decision *allocation.AllocationDecision) error
}

// Ledger couples decision log appends with the stock movements they
// imply. A commit is atomic: either every row of it sticks and the
// decision is appended, or nothing changed and the caller may retry
// against a fresh snapshot. Re-delivered commits for an
// already-committed request apply once.
type Ledger struct {
	records   inventory.InventoryRepository
	decisions allocation.DecisionRepository
	commits   CommitStore
	idem      shared.IdempotencyStore
	idemTTL   time.Duration
	logger    *zap.Logger
}

// NewLedger creates an allocation ledger
func NewLedger(
	records inventory.InventoryRepository,
	decisions allocation.DecisionRepository,
	commits CommitStore,
	idem shared.IdempotencyStore,
	idemTTL time.Duration,
	logger *zap.Logger,
) *Ledger {
	return &Ledger{
		records:   records,
		decisions: decisions,
		commits:   commits,
		idem:      idem,
		idemTTL:   idemTTL,
		logger:    logger,
	}
}

// Snapshot returns the current ledger row for a product at a location
func (l *Ledger) Snapshot(ctx context.Context, productID, locationID uuid.UUID) (*inventory.InventoryRecord, error) {
	return l.records.FindByProductLocation(ctx, productID, locationID)
}

func commitKey(requestID uuid.UUID) string {
	return "allocation:commit:" + requestID.String()
}

// Committed reports whether a commit for the request already applied
func (l *Ledger) Committed(ctx context.Context, requestID uuid.UUID) (bool, error) {
	return l.idem.IsProcessed(ctx, commitKey(requestID))
}

// Commit applies one decision. openQuantity comes out of open capacity,
// reservedQuantity out of the request's consumed hold, and
// releasedQuantity is the unused remainder of that hold going back to
// open capacity; any of them may be zero. hold, when not nil, is the
// consumed reservation whose row is written in the same unit as the
// record. A CONCURRENCY_CONFLICT or INSUFFICIENT_STOCK return means
// nothing was written and the caller should re-snapshot and re-decide.
func (l *Ledger) Commit(ctx context.Context, decision *allocation.AllocationDecision, productID, locationID uuid.UUID, openQuantity, reservedQuantity, releasedQuantity decimal.Decimal, hold *inventory.Reservation) error {
	processed, err := l.idem.IsProcessed(ctx, commitKey(decision.RequestID))
	if err != nil {
		l.logger.Warn("idempotency check failed, falling back to the decision log",
			zap.String("request_id", decision.RequestID.String()),
			zap.Error(err))
	} else if processed {
		return nil
	}

	// The decision log is the durable duplicate check. It must run
	// before any stock movement so a replay after a restart or a lost
	// idempotency store cannot deduct twice.
	logged, err := l.alreadyLogged(ctx, decision)
	if err != nil {
		return err
	}
	if logged {
		l.markProcessed(ctx, decision.RequestID)
		return nil
	}

	var record *inventory.InventoryRecord
	if openQuantity.IsPositive() || reservedQuantity.IsPositive() || releasedQuantity.IsPositive() {
		record, err = l.records.FindByProductLocation(ctx, productID, locationID)
		if err != nil {
			return err
		}
		if reservedQuantity.IsPositive() {
			if err := record.ConsumeReservation(reservedQuantity); err != nil {
				return err
			}
		}
		if releasedQuantity.IsPositive() {
			if err := record.ReleaseReservation(releasedQuantity); err != nil {
				return err
			}
		}
		if openQuantity.IsPositive() {
			if err := record.Allocate(openQuantity); err != nil {
				return err
			}
		}
	}

	if err := l.commits.Apply(ctx, record, hold, decision); err != nil {
		// The unique index on (request_id, correction_of) catches a
		// concurrent replay that raced past the log check.
		if shared.ErrorCode(err) == shared.ErrAlreadyExists.Code {
			l.markProcessed(ctx, decision.RequestID)
			return nil
		}
		return err
	}

	l.markProcessed(ctx, decision.RequestID)
	return nil
}

func (l *Ledger) alreadyLogged(ctx context.Context, decision *allocation.AllocationDecision) (bool, error) {
	rows, err := l.decisions.FindByRequest(ctx, decision.RequestID)
	if err != nil {
		return false, err
	}
	for i := range rows {
		if sameCorrection(rows[i].CorrectionOf, decision.CorrectionOf) {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) markProcessed(ctx context.Context, requestID uuid.UUID) {
	if _, err := l.idem.MarkProcessed(ctx, commitKey(requestID), l.idemTTL); err != nil {
		l.logger.Warn("failed to mark commit processed",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
	}
}

func sameCorrection(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
