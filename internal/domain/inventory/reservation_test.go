package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supplyai/backend/internal/domain/shared"
)

func newReservation(t *testing.T, forecast int64, probability float64, expiresAt time.Time) *Reservation {
	t.Helper()
	res, err := NewReservation(uuid.New(), uuid.New(), uuid.New(),
		decimal.NewFromInt(forecast), decimal.NewFromFloat(probability), expiresAt)
	require.NoError(t, err)
	return res
}

func TestHeldQuantityFor(t *testing.T) {
	cases := []struct {
		forecast    int64
		probability float64
		want        int64
	}{
		{100, 0.6, 60},
		{100, 1.0, 100},
		{7, 0.5, 3},  // floor, never round
		{10, 0.99, 9},
		{1, 0.999, 0},
	}
	for _, tc := range cases {
		got := HeldQuantityFor(decimal.NewFromInt(tc.forecast), decimal.NewFromFloat(tc.probability))
		assert.True(t, got.Equal(decimal.NewFromInt(tc.want)),
			"forecast=%d p=%v: got %s", tc.forecast, tc.probability, got)
	}
}

func TestNewReservation(t *testing.T) {
	expiresAt := time.Now().Add(24 * time.Hour)

	t.Run("valid reservation", func(t *testing.T) {
		res := newReservation(t, 100, 0.6, expiresAt)
		assert.True(t, res.HeldQuantity.Equal(decimal.NewFromInt(60)))
		assert.Equal(t, ReservationStatusActive, res.Status)
	})

	t.Run("probability out of range", func(t *testing.T) {
		_, err := NewReservation(uuid.New(), uuid.New(), uuid.New(),
			decimal.NewFromInt(100), decimal.NewFromFloat(1.2), expiresAt)
		assert.Error(t, err)

		_, err = NewReservation(uuid.New(), uuid.New(), uuid.New(),
			decimal.NewFromInt(100), decimal.Zero, expiresAt)
		assert.Error(t, err)
	})

	t.Run("hold that floors to zero is rejected", func(t *testing.T) {
		_, err := NewReservation(uuid.New(), uuid.New(), uuid.New(),
			decimal.NewFromInt(1), decimal.NewFromFloat(0.4), expiresAt)
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", shared.ErrorCode(err))
	})
}

func TestReservationConsume(t *testing.T) {
	now := time.Now()

	t.Run("consume active reservation", func(t *testing.T) {
		res := newReservation(t, 100, 0.6, now.Add(time.Hour))
		require.NoError(t, res.Consume(now))
		assert.Equal(t, ReservationStatusConsumed, res.Status)
		require.NotNil(t, res.ClosedAt)

		events := res.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeReservationConsumed, events[0].EventType())
	})

	t.Run("consume after expiry", func(t *testing.T) {
		res := newReservation(t, 100, 0.6, now.Add(-time.Minute))
		err := res.Consume(now)
		require.Error(t, err)
		assert.Equal(t, shared.ErrReservationExpired.Code, shared.ErrorCode(err))
		assert.Equal(t, ReservationStatusActive, res.Status, "failed consume must not change state")
	})

	t.Run("consume twice", func(t *testing.T) {
		res := newReservation(t, 100, 0.6, now.Add(time.Hour))
		require.NoError(t, res.Consume(now))
		err := res.Consume(now)
		require.Error(t, err)
		assert.Equal(t, "INVALID_STATE", shared.ErrorCode(err))
	})
}

func TestReservationExpire(t *testing.T) {
	now := time.Now()

	t.Run("expire past expiry", func(t *testing.T) {
		res := newReservation(t, 100, 0.6, now.Add(-time.Minute))
		assert.True(t, res.IsExpired(now))
		require.NoError(t, res.Expire(now))
		assert.Equal(t, ReservationStatusExpired, res.Status)
	})

	t.Run("expire before expiry", func(t *testing.T) {
		res := newReservation(t, 100, 0.6, now.Add(time.Hour))
		assert.Error(t, res.Expire(now))
	})

	t.Run("expire a consumed reservation", func(t *testing.T) {
		res := newReservation(t, 100, 0.6, now.Add(time.Hour))
		require.NoError(t, res.Consume(now))
		err := res.Expire(now.Add(2 * time.Hour))
		require.Error(t, err)
		assert.Equal(t, "INVALID_STATE", shared.ErrorCode(err))
	})
}

func TestReservationCancel(t *testing.T) {
	now := time.Now()

	res := newReservation(t, 100, 0.6, now.Add(time.Hour))
	require.NoError(t, res.Cancel(now))
	assert.Equal(t, ReservationStatusCancelled, res.Status)

	assert.Error(t, res.Cancel(now))
	assert.Error(t, res.Consume(now))
}
