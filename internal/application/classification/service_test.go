package classification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/partner"
	"github.com/supplyai/backend/internal/domain/shared"
)

type fakeCustomerRepo struct {
	customers map[uuid.UUID]*partner.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uuid.UUID]*partner.Customer)}
}

func (r *fakeCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*partner.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCustomerRepo) FindByCode(_ context.Context, code string) (*partner.Customer, error) {
	for _, c := range r.customers {
		if c.Code == code {
			copied := *c
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeCustomerRepo) FindAll(_ context.Context, filter shared.Filter) ([]partner.Customer, error) {
	if filter.Page > 1 {
		return nil, nil
	}
	out := make([]partner.Customer, 0, len(r.customers))
	for _, c := range r.customers {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeCustomerRepo) Save(_ context.Context, c *partner.Customer) error {
	copied := *c
	r.customers[c.ID] = &copied
	return nil
}

func (r *fakeCustomerRepo) SaveWithLock(_ context.Context, c *partner.Customer) error {
	current, ok := r.customers[c.ID]
	if ok && current.GetVersion() != c.GetVersion()-1 {
		return shared.ErrConcurrencyConflict
	}
	copied := *c
	r.customers[c.ID] = &copied
	return nil
}

func (r *fakeCustomerRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	return int64(len(r.customers)), nil
}

type fakeHistoryRepo struct {
	histories map[uuid.UUID]*partner.OrderHistory
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{histories: make(map[uuid.UUID]*partner.OrderHistory)}
}

func (r *fakeHistoryRepo) FindByCustomer(_ context.Context, customerID uuid.UUID) (*partner.OrderHistory, error) {
	h, ok := r.histories[customerID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return h, nil
}

func (r *fakeHistoryRepo) Save(_ context.Context, h *partner.OrderHistory) error {
	r.histories[h.CustomerID] = h
	return nil
}

func setup(t *testing.T) (*Service, *fakeCustomerRepo, *fakeHistoryRepo) {
	t.Helper()
	customers := newFakeCustomerRepo()
	histories := newFakeHistoryRepo()
	svc := NewService(customers, histories, nil, DefaultWeights(), zap.NewNop())
	return svc, customers, histories
}

func seedCustomer(t *testing.T, repo *fakeCustomerRepo) *partner.Customer {
	t.Helper()
	c, err := partner.NewCustomer("CUST-001", "Acme", decimal.NewFromInt(100000))
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), c))
	return c
}

func history(customerID uuid.UUID, volume, margin int64, risk float64) *partner.OrderHistory {
	return &partner.OrderHistory{
		BaseEntity:         shared.NewBaseEntity(),
		CustomerID:         customerID,
		OrderVolume:        decimal.NewFromInt(volume),
		MarginContribution: decimal.NewFromInt(margin),
		PaymentRisk:        risk,
	}
}

func TestScore(t *testing.T) {
	svc, _, _ := setup(t)

	t.Run("nil history scores zero", func(t *testing.T) {
		assert.Zero(t, svc.Score(nil))
	})

	t.Run("perfect customer scores one", func(t *testing.T) {
		h := history(uuid.New(), 10000, 500000, 0)
		assert.InDelta(t, 1.0, svc.Score(h), 1e-9)
	})

	t.Run("volume and margin saturate at the scale", func(t *testing.T) {
		h := history(uuid.New(), 1000000, 99000000, 0)
		assert.InDelta(t, 1.0, svc.Score(h), 1e-9)
	})

	t.Run("payment risk pulls the score down", func(t *testing.T) {
		reliable := history(uuid.New(), 5000, 250000, 0)
		risky := history(uuid.New(), 5000, 250000, 1)
		assert.Greater(t, svc.Score(reliable), svc.Score(risky))
	})
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	t.Run("strategic customer promoted to tier 1", func(t *testing.T) {
		svc, customers, histories := setup(t)
		c := seedCustomer(t, customers)
		require.NoError(t, histories.Save(ctx, history(c.ID, 10000, 500000, 0)))

		result, err := svc.Classify(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, partner.SegmentStrategic, result.Segment)
		assert.Equal(t, 1, result.Tier)
		assert.True(t, result.Changed)
		assert.Equal(t, 2, result.TierVersion, "tier change bumps the tier version")

		stored, err := customers.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Tier)
	})

	t.Run("no history lands in bottom tier", func(t *testing.T) {
		svc, customers, _ := setup(t)
		c := seedCustomer(t, customers)

		result, err := svc.Classify(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, partner.SegmentOpportunistic, result.Segment)
		assert.Equal(t, 4, result.Tier)
	})

	t.Run("unchanged classification does not bump tier version", func(t *testing.T) {
		svc, customers, histories := setup(t)
		c := seedCustomer(t, customers)
		require.NoError(t, histories.Save(ctx, history(c.ID, 5000, 200000, 0.2)))

		first, err := svc.Classify(ctx, c.ID)
		require.NoError(t, err)

		second, err := svc.Classify(ctx, c.ID)
		require.NoError(t, err)
		assert.False(t, second.Changed)
		assert.Equal(t, first.TierVersion, second.TierVersion)
	})

	t.Run("unknown customer", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.Classify(ctx, uuid.New())
		require.Error(t, err)
		assert.Equal(t, shared.ErrNotFound.Code, shared.ErrorCode(err))
	})
}

func TestGetClassification(t *testing.T) {
	ctx := context.Background()
	svc, customers, histories := setup(t)
	c := seedCustomer(t, customers)
	require.NoError(t, histories.Save(ctx, history(c.ID, 10000, 500000, 0)))

	// read path must not persist
	result, err := svc.GetClassification(ctx, c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.Equal(t, 3, result.Tier, "stored tier unchanged until Classify runs")

	stored, err := customers.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TierVersion)
}

func TestReclassifyAll(t *testing.T) {
	ctx := context.Background()
	svc, customers, histories := setup(t)

	strategic := seedCustomer(t, customers)
	require.NoError(t, histories.Save(ctx, history(strategic.ID, 10000, 500000, 0)))

	idle, err := partner.NewCustomer("CUST-002", "Idle Co", decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, customers.Save(ctx, idle))

	changed, err := svc.ReclassifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed, "both customers move off the default tier")
}
