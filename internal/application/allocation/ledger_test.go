package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/allocation"
	"github.com/supplyai/backend/internal/domain/inventory"
	"github.com/supplyai/backend/internal/domain/shared"
)

type ledgerEnv struct {
	ledger    *Ledger
	records   *memInventoryRepo
	holds     *memReservationRepo
	decisions *memDecisionRepo

	productID  uuid.UUID
	locationID uuid.UUID
}

func newLedgerEnv(t *testing.T, onHand int64) *ledgerEnv {
	t.Helper()
	e := &ledgerEnv{
		records:    newMemInventoryRepo(),
		holds:      newMemReservationRepo(),
		decisions:  newMemDecisionRepo(),
		productID:  uuid.New(),
		locationID: uuid.New(),
	}

	record, err := inventory.NewInventoryRecord(e.productID, e.locationID, decimal.NewFromInt(onHand), decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, e.records.Save(context.Background(), record))

	e.ledger = NewLedger(e.records, e.decisions,
		newMemCommitStore(e.records, e.holds, e.decisions),
		newMemIdempotencyStore(), time.Hour, zap.NewNop())
	return e
}

func fullDecision(t *testing.T, quantity int64) *allocation.AllocationDecision {
	t.Helper()
	q := decimal.NewFromInt(quantity)
	d, err := allocation.NewAllocationDecision(uuid.New(), allocation.OutcomeAllocated, q, q, allocation.SolverExact, time.Now())
	require.NoError(t, err)
	return d
}

func TestLedgerCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("commit moves stock and appends the decision", func(t *testing.T) {
		e := newLedgerEnv(t, 100)
		decision := fullDecision(t, 60)

		require.NoError(t, e.ledger.Commit(ctx, decision, e.productID, e.locationID,
			decimal.NewFromInt(60), decimal.Zero, decimal.Zero, nil))

		record, err := e.records.FindByProductLocation(ctx, e.productID, e.locationID)
		require.NoError(t, err)
		assert.True(t, record.Allocated.Equal(decimal.NewFromInt(60)))

		stored, err := e.decisions.FindLatestByRequest(ctx, decision.RequestID)
		require.NoError(t, err)
		assert.Equal(t, allocation.OutcomeAllocated, stored.Outcome)

		committed, err := e.ledger.Committed(ctx, decision.RequestID)
		require.NoError(t, err)
		assert.True(t, committed)
	})

	t.Run("re-delivered commit applies once", func(t *testing.T) {
		e := newLedgerEnv(t, 100)
		decision := fullDecision(t, 60)

		require.NoError(t, e.ledger.Commit(ctx, decision, e.productID, e.locationID,
			decimal.NewFromInt(60), decimal.Zero, decimal.Zero, nil))
		require.NoError(t, e.ledger.Commit(ctx, decision, e.productID, e.locationID,
			decimal.NewFromInt(60), decimal.Zero, decimal.Zero, nil))

		record, err := e.records.FindByProductLocation(ctx, e.productID, e.locationID)
		require.NoError(t, err)
		assert.True(t, record.Allocated.Equal(decimal.NewFromInt(60)), "double apply would read 120")

		rows, err := e.decisions.FindByRequest(ctx, decision.RequestID)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("replay with a rebuilt idempotency store applies once", func(t *testing.T) {
		e := newLedgerEnv(t, 100)
		decision := fullDecision(t, 60)

		require.NoError(t, e.ledger.Commit(ctx, decision, e.productID, e.locationID,
			decimal.NewFromInt(60), decimal.Zero, decimal.Zero, nil))

		// A restart loses the in-process store; the decision log alone
		// must stop the replayed delivery from deducting again.
		rebuilt := NewLedger(e.records, e.decisions,
			newMemCommitStore(e.records, e.holds, e.decisions),
			newMemIdempotencyStore(), time.Hour, zap.NewNop())
		require.NoError(t, rebuilt.Commit(ctx, decision, e.productID, e.locationID,
			decimal.NewFromInt(60), decimal.Zero, decimal.Zero, nil))

		record, err := e.records.FindByProductLocation(ctx, e.productID, e.locationID)
		require.NoError(t, err)
		assert.True(t, record.Allocated.Equal(decimal.NewFromInt(60)),
			"replay after a restart must not deduct twice, got allocated=%s", record.Allocated)

		rows, err := e.decisions.FindByRequest(ctx, decision.RequestID)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("insufficient capacity leaves nothing behind", func(t *testing.T) {
		e := newLedgerEnv(t, 10)
		decision := fullDecision(t, 60)

		err := e.ledger.Commit(ctx, decision, e.productID, e.locationID,
			decimal.NewFromInt(60), decimal.Zero, decimal.Zero, nil)
		require.Error(t, err)
		assert.Equal(t, shared.ErrInsufficientStock.Code, shared.ErrorCode(err))

		record, err := e.records.FindByProductLocation(ctx, e.productID, e.locationID)
		require.NoError(t, err)
		assert.True(t, record.Allocated.IsZero())

		_, err = e.decisions.FindLatestByRequest(ctx, decision.RequestID)
		assert.Error(t, err, "no decision row without a ledger write")
	})

	t.Run("version conflict surfaces as retriable", func(t *testing.T) {
		e := newLedgerEnv(t, 100)
		e.records.conflicts = 1
		decision := fullDecision(t, 10)

		err := e.ledger.Commit(ctx, decision, e.productID, e.locationID,
			decimal.NewFromInt(10), decimal.Zero, decimal.Zero, nil)
		require.Error(t, err)
		assert.True(t, shared.IsRetriable(err))
	})

	t.Run("losing the hold race rolls the whole commit back", func(t *testing.T) {
		e := newLedgerEnv(t, 100)

		hold, err := inventory.NewReservation(uuid.New(), e.productID, e.locationID,
			decimal.NewFromInt(30), decimal.NewFromInt(1), time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, e.holds.Save(ctx, hold))
		record, err := e.records.FindByProductLocation(ctx, e.productID, e.locationID)
		require.NoError(t, err)
		require.NoError(t, record.Reserve(decimal.NewFromInt(30)))
		require.NoError(t, e.records.Save(ctx, record))

		consumed, err := e.holds.FindByID(ctx, hold.ID)
		require.NoError(t, err)
		require.NoError(t, consumed.Consume(time.Now()))

		// Another writer closes the hold between the read and the
		// commit, so the version write on the reservation must lose.
		raced, err := e.holds.FindByID(ctx, hold.ID)
		require.NoError(t, err)
		require.NoError(t, raced.Cancel(time.Now()))
		require.NoError(t, e.holds.SaveWithLock(ctx, raced))

		q := decimal.NewFromInt(30)
		decision, err := allocation.NewAllocationDecision(uuid.New(), allocation.OutcomeAllocated, q, q, allocation.SolverExact, time.Now())
		require.NoError(t, err)

		err = e.ledger.Commit(ctx, decision, e.productID, e.locationID,
			decimal.Zero, decimal.NewFromInt(30), decimal.Zero, consumed)
		require.Error(t, err)
		assert.True(t, shared.IsRetriable(err))

		after, err := e.records.FindByProductLocation(ctx, e.productID, e.locationID)
		require.NoError(t, err)
		assert.True(t, after.Allocated.IsZero(), "record movement must roll back with the hold")
		assert.True(t, after.Reserved.Equal(decimal.NewFromInt(30)))

		_, err = e.decisions.FindLatestByRequest(ctx, decision.RequestID)
		assert.Error(t, err)
	})

	t.Run("zero-movement commit only appends the decision", func(t *testing.T) {
		e := newLedgerEnv(t, 100)
		q := decimal.NewFromInt(60)
		decision, err := allocation.NewAllocationDecision(uuid.New(), allocation.OutcomeBackordered, q, decimal.Zero, allocation.SolverNone, time.Now())
		require.NoError(t, err)

		require.NoError(t, e.ledger.Commit(ctx, decision, e.productID, e.locationID,
			decimal.Zero, decimal.Zero, decimal.Zero, nil))

		record, err := e.records.FindByProductLocation(ctx, e.productID, e.locationID)
		require.NoError(t, err)
		assert.Equal(t, 1, record.GetVersion(), "record must not be touched")

		rows, err := e.decisions.FindByRequest(ctx, decision.RequestID)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}
