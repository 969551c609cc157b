package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supplyai/backend/internal/domain/shared"
)

func newRecord(t *testing.T, onHand int64) *InventoryRecord {
	t.Helper()
	record, err := NewInventoryRecord(uuid.New(), uuid.New(), decimal.NewFromInt(onHand), decimal.Zero)
	require.NoError(t, err)
	return record
}

func TestNewInventoryRecord(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		record := newRecord(t, 100)
		assert.True(t, record.Available().Equal(decimal.NewFromInt(100)))
		assert.Equal(t, 1, record.GetVersion())
	})

	t.Run("negative on hand", func(t *testing.T) {
		_, err := NewInventoryRecord(uuid.New(), uuid.New(), decimal.NewFromInt(-1), decimal.Zero)
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", shared.ErrorCode(err))
	})

	t.Run("nil product", func(t *testing.T) {
		_, err := NewInventoryRecord(uuid.Nil, uuid.New(), decimal.NewFromInt(1), decimal.Zero)
		assert.Error(t, err)
	})
}

func TestInventoryRecordAllocate(t *testing.T) {
	t.Run("allocate within capacity", func(t *testing.T) {
		record := newRecord(t, 100)
		require.NoError(t, record.Allocate(decimal.NewFromInt(60)))
		assert.True(t, record.Allocated.Equal(decimal.NewFromInt(60)))
		assert.True(t, record.Available().Equal(decimal.NewFromInt(40)))
		assert.Equal(t, 2, record.GetVersion())
	})

	t.Run("allocate beyond open capacity", func(t *testing.T) {
		record := newRecord(t, 100)
		require.NoError(t, record.Reserve(decimal.NewFromInt(50)))

		err := record.Allocate(decimal.NewFromInt(60))
		require.Error(t, err)
		assert.Equal(t, shared.ErrInsufficientStock.Code, shared.ErrorCode(err))
		assert.True(t, record.Allocated.IsZero(), "failed allocation must not move stock")
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		record := newRecord(t, 100)
		assert.Error(t, record.Allocate(decimal.Zero))
		assert.Error(t, record.Allocate(decimal.NewFromInt(-5)))
	})
}

func TestInventoryRecordReserveAndRelease(t *testing.T) {
	record := newRecord(t, 100)

	require.NoError(t, record.Reserve(decimal.NewFromInt(30)))
	assert.True(t, record.Available().Equal(decimal.NewFromInt(70)))

	t.Run("release more than reserved", func(t *testing.T) {
		err := record.ReleaseReservation(decimal.NewFromInt(31))
		require.Error(t, err)
		assert.Equal(t, "INVALID_STATE", shared.ErrorCode(err))
	})

	require.NoError(t, record.ReleaseReservation(decimal.NewFromInt(30)))
	assert.True(t, record.Reserved.IsZero())
	assert.True(t, record.Available().Equal(decimal.NewFromInt(100)))
}

func TestInventoryRecordConsumeReservation(t *testing.T) {
	record := newRecord(t, 100)
	require.NoError(t, record.Reserve(decimal.NewFromInt(40)))

	require.NoError(t, record.ConsumeReservation(decimal.NewFromInt(40)))
	assert.True(t, record.Reserved.IsZero())
	assert.True(t, record.Allocated.Equal(decimal.NewFromInt(40)))
	assert.True(t, record.OnHand.Equal(decimal.NewFromInt(100)), "consuming a hold must not change on hand")

	err := record.ConsumeReservation(decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestInventoryRecordReceiveAndShip(t *testing.T) {
	record := newRecord(t, 10)
	require.NoError(t, record.Receive(decimal.NewFromInt(90)))
	assert.True(t, record.OnHand.Equal(decimal.NewFromInt(100)))

	require.NoError(t, record.Allocate(decimal.NewFromInt(25)))
	require.NoError(t, record.Ship(decimal.NewFromInt(25)))
	assert.True(t, record.OnHand.Equal(decimal.NewFromInt(75)))
	assert.True(t, record.Allocated.IsZero())

	err := record.Ship(decimal.NewFromInt(1))
	assert.Error(t, err, "cannot ship more than allocated")
}

func TestInventoryRecordInvariant(t *testing.T) {
	// allocated + reserved never exceeds on_hand through any sequence
	// of movements
	record := newRecord(t, 50)
	require.NoError(t, record.Allocate(decimal.NewFromInt(20)))
	require.NoError(t, record.Reserve(decimal.NewFromInt(30)))

	assert.Error(t, record.Allocate(decimal.NewFromInt(1)))
	assert.Error(t, record.Reserve(decimal.NewFromInt(1)))
	assert.True(t, record.Allocated.Add(record.Reserved).LessThanOrEqual(record.OnHand))
	assert.True(t, record.Available().IsZero())
}

func TestReorderPointEvent(t *testing.T) {
	record, err := NewInventoryRecord(uuid.New(), uuid.New(), decimal.NewFromInt(100), decimal.NewFromInt(20))
	require.NoError(t, err)

	require.NoError(t, record.Allocate(decimal.NewFromInt(70)))
	assert.Empty(t, record.GetDomainEvents())

	require.NoError(t, record.Allocate(decimal.NewFromInt(15)))
	events := record.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeReorderPointReached, events[0].EventType())
}
