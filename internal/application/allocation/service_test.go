package allocation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	reservationapp "github.com/supplyai/backend/internal/application/reservation"
	"github.com/supplyai/backend/internal/domain/allocation"
	"github.com/supplyai/backend/internal/domain/inventory"
	"github.com/supplyai/backend/internal/domain/partner"
	"github.com/supplyai/backend/internal/domain/rules"
	"github.com/supplyai/backend/internal/domain/shared"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturingPublisher) byType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type env struct {
	svc          *Service
	requests     *memRequestRepo
	customers    *memCustomerRepo
	ruleRepo     *memRuleRepo
	reservations *memReservationRepo
	records      *memInventoryRepo
	decisions    *memDecisionRepo
	publisher    *capturingPublisher
	ledger       *Ledger

	customerID uuid.UUID
	productID  uuid.UUID
	locationID uuid.UUID
}

func newEnv(t *testing.T, onHand int64, allowPartial bool) *env {
	t.Helper()

	e := &env{
		requests:     newMemRequestRepo(),
		customers:    newMemCustomerRepo(),
		ruleRepo:     newMemRuleRepo(),
		reservations: newMemReservationRepo(),
		records:      newMemInventoryRepo(),
		decisions:    newMemDecisionRepo(),
		publisher:    &capturingPublisher{},
		productID:    uuid.New(),
		locationID:   uuid.New(),
	}

	customer, err := partner.NewCustomer("CUST-100", "Acme", decimal.NewFromInt(100000))
	require.NoError(t, err)
	require.NoError(t, e.customers.Save(context.Background(), customer))
	e.customerID = customer.ID

	record, err := inventory.NewInventoryRecord(e.productID, e.locationID, decimal.NewFromInt(onHand), decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, e.records.Save(context.Background(), record))

	e.ledger = NewLedger(e.records, e.decisions,
		newMemCommitStore(e.records, e.reservations, e.decisions),
		newMemIdempotencyStore(), time.Hour, zap.NewNop())
	e.svc = NewService(e.requests, e.customers, e.ruleRepo, rules.NewEngine(),
		e.reservations, e.ledger, allocation.NewOptimizer(100, time.Second),
		e.publisher, allowPartial, 3, zap.NewNop())
	return e
}

func (e *env) addRule(t *testing.T, priority int, cond rules.Condition, action rules.Action, ratio decimal.Decimal) *rules.BusinessRule {
	t.Helper()
	rule, err := rules.NewBusinessRule("test rule", priority, cond, action, ratio, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, e.ruleRepo.Append(context.Background(), rule))
	return rule
}

func (e *env) addCustomer(t *testing.T, code string, segment partner.Segment, tier int) uuid.UUID {
	t.Helper()
	c, err := partner.NewCustomer(code, code, decimal.NewFromInt(10000))
	require.NoError(t, err)
	require.NoError(t, c.Reclassify(segment, tier))
	c.ClearDomainEvents()
	require.NoError(t, e.customers.Save(context.Background(), c))
	return c.ID
}

func (e *env) record(t *testing.T) *inventory.InventoryRecord {
	t.Helper()
	record, err := e.records.FindByProductLocation(context.Background(), e.productID, e.locationID)
	require.NoError(t, err)
	return record
}

func allowAll() rules.Condition {
	return rules.Condition{Cmp: &rules.Comparison{
		Attribute: rules.AttrCustomerTier, Operator: rules.OpLte, Value: "4",
	}}
}

func (e *env) input(quantity int64) ProcessInput {
	return ProcessInput{
		CustomerID: e.customerID,
		ProductID:  e.productID,
		LocationID: e.locationID,
		Quantity:   decimal.NewFromInt(quantity),
	}
}

func TestProcessFullAllocation(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	result, err := e.svc.Process(context.Background(), e.input(60))
	require.NoError(t, err)

	assert.Equal(t, allocation.OutcomeAllocated, result.Outcome)
	assert.True(t, result.GrantedQuantity.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, allocation.SolverExact, result.Solver)
	require.NotNil(t, result.RuleID)

	record := e.record(t)
	assert.True(t, record.Allocated.Equal(decimal.NewFromInt(60)))
	assert.True(t, record.Available().Equal(decimal.NewFromInt(40)))

	req, err := e.requests.FindByID(context.Background(), result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, allocation.RequestStatusCommitted, req.Status)
	assert.Len(t, e.publisher.byType(allocation.EventTypeDecisionCommitted), 1)
}

func TestProcessPartialWhenStockShort(t *testing.T) {
	e := newEnv(t, 40, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	result, err := e.svc.Process(context.Background(), e.input(100))
	require.NoError(t, err)

	assert.Equal(t, allocation.OutcomePartial, result.Outcome)
	assert.True(t, result.GrantedQuantity.Equal(decimal.NewFromInt(40)))

	record := e.record(t)
	assert.True(t, record.Available().IsZero())
}

func TestProcessPartialDisabled(t *testing.T) {
	e := newEnv(t, 40, false)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	result, err := e.svc.Process(context.Background(), e.input(100))
	require.NoError(t, err)

	assert.Equal(t, allocation.OutcomeBackordered, result.Outcome)
	assert.True(t, result.GrantedQuantity.IsZero())

	record := e.record(t)
	assert.True(t, record.Allocated.IsZero(), "backorder must not move stock")
	assert.Len(t, e.publisher.byType(allocation.EventTypeBackorderRaised), 1)
}

func TestProcessPartialRatioRule(t *testing.T) {
	e := newEnv(t, 1000, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocatePartial, decimal.NewFromFloat(0.5))

	result, err := e.svc.Process(context.Background(), e.input(100))
	require.NoError(t, err)

	assert.Equal(t, allocation.OutcomePartial, result.Outcome)
	assert.True(t, result.GrantedQuantity.Equal(decimal.NewFromInt(50)))
}

func TestProcessDefaultHold(t *testing.T) {
	e := newEnv(t, 100, true)
	// no rules at all

	result, err := e.svc.Process(context.Background(), e.input(10))
	require.NoError(t, err)

	assert.Equal(t, allocation.OutcomeBackordered, result.Outcome)
	assert.Nil(t, result.RuleID)
	assert.Equal(t, allocation.SolverNone, result.Solver)
	assert.True(t, e.record(t).Allocated.IsZero())
	assert.Len(t, e.publisher.byType(allocation.EventTypeBackorderRaised), 1)
}

func TestProcessReject(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionReject, decimal.Zero)

	result, err := e.svc.Process(context.Background(), e.input(10))
	require.NoError(t, err)

	assert.Equal(t, allocation.OutcomeRejected, result.Outcome)
	assert.True(t, e.record(t).Allocated.IsZero())
}

func TestProcessEscalate(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionEscalate, decimal.Zero)

	result, err := e.svc.Process(context.Background(), e.input(10))
	require.NoError(t, err)

	assert.Equal(t, allocation.OutcomeBackordered, result.Outcome)
	assert.Len(t, e.publisher.byType(allocation.EventTypeEscalationRaised), 1)
}

func TestProcessConsumesReservation(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	// Hold 30 units for this customer.
	res, err := inventory.NewReservation(e.customerID, e.productID, e.locationID,
		decimal.NewFromInt(30), decimal.NewFromInt(1), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, e.reservations.Save(context.Background(), res))
	record := e.record(t)
	require.NoError(t, record.Reserve(decimal.NewFromInt(30)))
	require.NoError(t, e.records.Save(context.Background(), record))

	// 70 open + 30 held covers the full 90.
	result, err := e.svc.Process(context.Background(), e.input(90))
	require.NoError(t, err)

	assert.Equal(t, allocation.OutcomeAllocated, result.Outcome)
	assert.True(t, result.FromReservation.Equal(decimal.NewFromInt(30)))
	require.NotNil(t, result.ReservationID)
	assert.Equal(t, res.ID, *result.ReservationID)

	stored, err := e.reservations.FindByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationStatusConsumed, stored.Status)

	after := e.record(t)
	assert.True(t, after.Reserved.IsZero())
	assert.True(t, after.Allocated.Equal(decimal.NewFromInt(90)))
	assert.True(t, after.Available().Equal(decimal.NewFromInt(10)))
}

func TestProcessReleasesUnusedHoldRemainder(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	res, err := inventory.NewReservation(e.customerID, e.productID, e.locationID,
		decimal.NewFromInt(50), decimal.NewFromInt(1), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, e.reservations.Save(context.Background(), res))
	record := e.record(t)
	require.NoError(t, record.Reserve(decimal.NewFromInt(50)))
	require.NoError(t, e.records.Save(context.Background(), record))

	// Request needs only 20 of the 50 held; the rest returns to open.
	result, err := e.svc.Process(context.Background(), e.input(20))
	require.NoError(t, err)

	assert.Equal(t, allocation.OutcomeAllocated, result.Outcome)
	assert.True(t, result.FromReservation.Equal(decimal.NewFromInt(20)))

	after := e.record(t)
	assert.True(t, after.Reserved.IsZero())
	assert.True(t, after.Allocated.Equal(decimal.NewFromInt(20)))
	assert.True(t, after.Available().Equal(decimal.NewFromInt(80)))
}

func TestProcessDeadlineExceeded(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	res, err := inventory.NewReservation(e.customerID, e.productID, e.locationID,
		decimal.NewFromInt(30), decimal.NewFromInt(1), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, e.reservations.Save(context.Background(), res))

	deadline := time.Now().Add(-time.Minute)
	req, err := allocation.NewAllocationRequest(e.customerID, e.productID, e.locationID,
		decimal.NewFromInt(10), time.Now().Add(-time.Hour), &deadline)
	require.NoError(t, err)
	require.NoError(t, e.requests.Save(context.Background(), req))

	_, err = e.svc.process(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, shared.ErrDeadlineExceeded.Code, shared.ErrorCode(err))

	stored, err := e.requests.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, allocation.RequestStatusFailed, stored.Status)
	assert.Equal(t, shared.ErrDeadlineExceeded.Code, stored.FailureCode)

	// The hold stays untouched for the next request.
	untouched, err := e.reservations.FindByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationStatusActive, untouched.Status)
	assert.True(t, e.record(t).Allocated.IsZero())
}

func TestProcessCapacityContention(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)
	e.records.conflicts = 100 // every guarded write loses

	_, err := e.svc.Process(context.Background(), e.input(10))
	require.Error(t, err)
	assert.Equal(t, shared.ErrCapacityContention.Code, shared.ErrorCode(err))
	assert.Len(t, e.publisher.byType(allocation.EventTypeCapacityContention), 1)
}

func TestProcessContentionLeavesHoldIntact(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	res, err := inventory.NewReservation(e.customerID, e.productID, e.locationID,
		decimal.NewFromInt(30), decimal.NewFromInt(1), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, e.reservations.Save(context.Background(), res))
	record := e.record(t)
	require.NoError(t, record.Reserve(decimal.NewFromInt(30)))
	require.NoError(t, e.records.Save(context.Background(), record))

	e.records.conflicts = 100 // every guarded write loses

	_, err = e.svc.Process(context.Background(), e.input(30))
	require.Error(t, err)
	assert.Equal(t, shared.ErrCapacityContention.Code, shared.ErrorCode(err))

	stored, err := e.reservations.FindByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationStatusActive, stored.Status,
		"a failed commit must not strand the hold half consumed")

	after := e.record(t)
	assert.True(t, after.Reserved.Equal(decimal.NewFromInt(30)))
	assert.True(t, after.Allocated.IsZero())
}

func TestProcessDeadlineDuringCommitRetries(t *testing.T) {
	e := newEnv(t, 100, true)

	deadline := time.Now().Add(30 * time.Millisecond)
	req, err := allocation.NewAllocationRequest(e.customerID, e.productID, e.locationID,
		decimal.NewFromInt(10), time.Now(), &deadline)
	require.NoError(t, err)
	require.NoError(t, req.MarkClassified(3, 1))
	require.NoError(t, req.MarkRuleEvaluated())
	require.NoError(t, req.MarkReservationChecked())
	require.NoError(t, e.requests.Save(context.Background(), req))

	time.Sleep(40 * time.Millisecond)

	_, err = e.svc.decideAndCommit(context.Background(), req, &preparation{
		verdict: rules.Verdict{Action: rules.ActionAllocateFull},
		target:  decimal.NewFromInt(10),
	})
	require.Error(t, err)
	assert.Equal(t, shared.ErrDeadlineExceeded.Code, shared.ErrorCode(err))

	stored, err := e.requests.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, allocation.RequestStatusFailed, stored.Status)
	assert.True(t, e.record(t).Allocated.IsZero(), "an elapsed deadline must not commit")
}

func TestProcessUnknownCustomer(t *testing.T) {
	e := newEnv(t, 100, true)
	input := e.input(10)
	input.CustomerID = uuid.New()

	_, err := e.svc.Process(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, shared.ErrNotFound.Code, shared.ErrorCode(err))
}

func TestGetResult(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	created, err := e.svc.Process(context.Background(), e.input(25))
	require.NoError(t, err)

	fetched, err := e.svc.GetResult(context.Background(), created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, created.Outcome, fetched.Outcome)
	assert.True(t, created.GrantedQuantity.Equal(fetched.GrantedQuantity))
}

func TestProcessBatchCompetition(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	strategic := e.addCustomer(t, "CUST-T1", partner.SegmentStrategic, 1)
	opportunistic := e.addCustomer(t, "CUST-T4", partner.SegmentOpportunistic, 4)

	batch, err := e.svc.ProcessBatch(context.Background(), []ProcessInput{
		{CustomerID: opportunistic, ProductID: e.productID, LocationID: e.locationID, Quantity: decimal.NewFromInt(80)},
		{CustomerID: strategic, ProductID: e.productID, LocationID: e.locationID, Quantity: decimal.NewFromInt(80)},
	})
	require.NoError(t, err)
	require.Empty(t, batch.Failed)
	require.Len(t, batch.Results, 2)

	byTier := make(map[int]ProcessResult)
	for _, r := range batch.Results {
		byTier[r.Tier] = r
	}
	assert.Equal(t, allocation.OutcomeAllocated, byTier[1].Outcome)
	assert.True(t, byTier[1].GrantedQuantity.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, allocation.OutcomePartial, byTier[4].Outcome)
	assert.True(t, byTier[4].GrantedQuantity.Equal(decimal.NewFromInt(20)))

	record := e.record(t)
	assert.True(t, record.Allocated.Equal(decimal.NewFromInt(100)))
}

func TestProcessBatchInvalidInput(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	batch, err := e.svc.ProcessBatch(context.Background(), []ProcessInput{
		{CustomerID: e.customerID, ProductID: e.productID, LocationID: e.locationID, Quantity: decimal.Zero},
		e.input(10),
	})
	require.NoError(t, err)
	require.Len(t, batch.Failed, 1)
	assert.Equal(t, 0, batch.Failed[0].Index)
	require.Len(t, batch.Results, 1)
}

func TestProcessBatchRetriesCommitConflicts(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)
	e.records.conflicts = 1 // an outside writer beats the first guarded write

	batch, err := e.svc.ProcessBatch(context.Background(), []ProcessInput{e.input(10)})
	require.NoError(t, err)
	require.Empty(t, batch.Failed)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, allocation.OutcomeAllocated, batch.Results[0].Outcome)
	assert.True(t, e.record(t).Allocated.Equal(decimal.NewFromInt(10)))
}

func TestProcessBatchCapacityContention(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)
	e.records.conflicts = 100 // every guarded write loses

	batch, err := e.svc.ProcessBatch(context.Background(), []ProcessInput{e.input(10)})
	require.NoError(t, err)
	require.Len(t, batch.Failed, 1)
	assert.Equal(t, shared.ErrCapacityContention.Code, batch.Failed[0].Code)

	req, err := e.requests.FindByID(context.Background(), batch.Failed[0].RequestID)
	require.NoError(t, err)
	assert.Equal(t, allocation.RequestStatusFailed, req.Status)
	assert.Equal(t, shared.ErrCapacityContention.Code, req.FailureCode)
}

func TestProcessClaimsExpiredHoldCapacity(t *testing.T) {
	e := newEnv(t, 100, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)
	resSvc := reservationapp.NewService(e.reservations, e.records, nil,
		decimal.NewFromFloat(0.5), 3, zap.NewNop())

	// Another customer's hold takes half the stock.
	hold, err := resSvc.Create(context.Background(), reservationapp.CreateReservationRequest{
		CustomerID:  uuid.New(),
		ProductID:   e.productID,
		LocationID:  e.locationID,
		Forecast:    decimal.NewFromInt(50),
		Probability: decimal.NewFromInt(1),
		ExpiresAt:   time.Now().Add(10 * time.Millisecond),
	})
	require.NoError(t, err)
	require.True(t, hold.HeldQuantity.Equal(decimal.NewFromInt(50)))

	first, err := e.svc.Process(context.Background(), e.input(80))
	require.NoError(t, err)
	assert.Equal(t, allocation.OutcomePartial, first.Outcome)
	assert.True(t, first.GrantedQuantity.Equal(decimal.NewFromInt(50)))

	time.Sleep(20 * time.Millisecond)
	released, err := resSvc.ExpireDue(context.Background(), time.Now(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, released)

	// The freed capacity is open to whoever asks next.
	second, err := e.svc.Process(context.Background(), e.input(50))
	require.NoError(t, err)
	assert.Equal(t, allocation.OutcomeAllocated, second.Outcome)
	assert.True(t, second.GrantedQuantity.Equal(decimal.NewFromInt(50)))

	record := e.record(t)
	assert.True(t, record.Allocated.Equal(decimal.NewFromInt(100)))
	assert.True(t, record.Reserved.IsZero())
}

func TestConcurrentProcessHoldsInvariant(t *testing.T) {
	e := newEnv(t, 500, true)
	e.addRule(t, 10, allowAll(), rules.ActionAllocateFull, decimal.Zero)

	const workers = 20
	quantities := []int64{10, 25, 40, 55, 70}

	var wg sync.WaitGroup
	results := make([]*ProcessResult, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.svc.Process(context.Background(), e.input(quantities[i%len(quantities)]))
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	record := e.record(t)
	assert.True(t, record.Allocated.Add(record.Reserved).LessThanOrEqual(record.OnHand),
		"ledger invariant violated: allocated=%s reserved=%s on_hand=%s",
		record.Allocated, record.Reserved, record.OnHand)

	granted := decimal.Zero
	for _, r := range results {
		if r != nil {
			granted = granted.Add(r.GrantedQuantity)
		}
	}
	assert.True(t, granted.Equal(record.Allocated),
		"sum of grants %s must equal ledger allocated %s", granted, record.Allocated)
}
