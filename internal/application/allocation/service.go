package allocation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/allocation"
	"github.com/supplyai/backend/internal/domain/inventory"
	"github.com/supplyai/backend/internal/domain/partner"
	"github.com/supplyai/backend/internal/domain/rules"
	"github.com/supplyai/backend/internal/domain/shared"
)

// laneKey identifies the serialization lane for one product at one
// location
type laneKey struct {
	productID  uuid.UUID
	locationID uuid.UUID
}

// Service runs the allocation pipeline: classify, evaluate rules,
// resolve reservations, optimize, commit. Requests for the same product
// and location are serialized through an in-process lane to keep
// version conflicts rare; the ledger's version guard stays the source
// of correctness either way.
type Service struct {
	requests     allocation.RequestRepository
	customers    partner.CustomerRepository
	ruleStore    rules.RuleRepository
	engine       *rules.Engine
	reservations inventory.ReservationRepository
	ledger       *Ledger
	optimizer    *allocation.Optimizer
	publisher    shared.EventPublisher
	allowPartial bool
	maxRetries   int
	logger       *zap.Logger

	lanesMu sync.Mutex
	lanes   map[laneKey]*sync.Mutex
}

// NewService creates an allocation service
func NewService(
	requests allocation.RequestRepository,
	customers partner.CustomerRepository,
	ruleStore rules.RuleRepository,
	engine *rules.Engine,
	reservations inventory.ReservationRepository,
	ledger *Ledger,
	optimizer *allocation.Optimizer,
	publisher shared.EventPublisher,
	allowPartial bool,
	maxRetries int,
	logger *zap.Logger,
) *Service {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Service{
		requests:     requests,
		customers:    customers,
		ruleStore:    ruleStore,
		engine:       engine,
		reservations: reservations,
		ledger:       ledger,
		optimizer:    optimizer,
		publisher:    publisher,
		allowPartial: allowPartial,
		maxRetries:   maxRetries,
		logger:       logger,
	}
}

func (s *Service) lane(productID, locationID uuid.UUID) *sync.Mutex {
	s.lanesMu.Lock()
	defer s.lanesMu.Unlock()
	if s.lanes == nil {
		s.lanes = make(map[laneKey]*sync.Mutex)
	}
	key := laneKey{productID: productID, locationID: locationID}
	mu, ok := s.lanes[key]
	if !ok {
		mu = &sync.Mutex{}
		s.lanes[key] = mu
	}
	return mu
}

// Process runs one request through the pipeline
func (s *Service) Process(ctx context.Context, input ProcessInput) (*ProcessResult, error) {
	req, err := allocation.NewAllocationRequest(input.CustomerID, input.ProductID, input.LocationID,
		input.Quantity, time.Now(), input.Deadline)
	if err != nil {
		return nil, err
	}
	if err := s.requests.Save(ctx, req); err != nil {
		return nil, err
	}

	mu := s.lane(input.ProductID, input.LocationID)
	mu.Lock()
	defer mu.Unlock()

	return s.process(ctx, req)
}

// ProcessBatch runs a set of requests. Requests targeting the same
// product and location compete in one optimization round instead of
// racing first come first served.
func (s *Service) ProcessBatch(ctx context.Context, inputs []ProcessInput) (*BatchResult, error) {
	result := &BatchResult{}

	groups := make(map[laneKey][]pendingRequest)
	order := make([]laneKey, 0)

	now := time.Now()
	for i, input := range inputs {
		req, err := allocation.NewAllocationRequest(input.CustomerID, input.ProductID, input.LocationID,
			input.Quantity, now, input.Deadline)
		if err == nil {
			err = s.requests.Save(ctx, req)
		}
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{
				Index: i, Code: shared.ErrorCode(err), Message: err.Error(),
			})
			continue
		}
		key := laneKey{productID: input.ProductID, locationID: input.LocationID}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], pendingRequest{index: i, req: req})
	}

	for _, key := range order {
		group := groups[key]
		mu := s.lane(key.productID, key.locationID)
		mu.Lock()
		s.processGroup(ctx, group, result)
		mu.Unlock()
	}

	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].Index < result.Failed[j].Index })
	return result, nil
}

type pendingRequest struct {
	index int
	req   *allocation.AllocationRequest
}

func (s *Service) processGroup(ctx context.Context, group []pendingRequest, result *BatchResult) {
	type contender struct {
		index   int
		req     *allocation.AllocationRequest
		verdict rules.Verdict
		hold    *inventory.Reservation
		target  decimal.Decimal
	}
	var contenders []contender

	for _, p := range group {
		prep, err := s.prepare(ctx, p.req)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{
				Index: p.index, RequestID: p.req.ID,
				Code: shared.ErrorCode(err), Message: err.Error(),
			})
			continue
		}
		if prep.target.IsZero() {
			// Verdict decided the request without touching capacity.
			res, err := s.decideWithoutStock(ctx, p.req, prep.verdict)
			if err != nil {
				result.Failed = append(result.Failed, BatchFailure{
					Index: p.index, RequestID: p.req.ID,
					Code: shared.ErrorCode(err), Message: err.Error(),
				})
				continue
			}
			result.Results = append(result.Results, *res)
			continue
		}
		contenders = append(contenders, contender{
			index: p.index, req: p.req, verdict: prep.verdict, hold: prep.hold, target: prep.target,
		})
	}

	if len(contenders) == 0 {
		return
	}

	record, err := s.ledger.Snapshot(ctx, contenders[0].req.ProductID, contenders[0].req.LocationID)
	if err != nil {
		for _, c := range contenders {
			result.Failed = append(result.Failed, BatchFailure{
				Index: c.index, RequestID: c.req.ID,
				Code: shared.ErrorCode(err), Message: err.Error(),
			})
		}
		return
	}

	candidates := make([]allocation.Candidate, 0, len(contenders))
	for _, c := range contenders {
		need := c.target.Sub(s.holdBudget(c.hold, c.target))
		candidates = append(candidates, allocation.Candidate{
			RequestID:   c.req.ID,
			Tier:        derefTier(c.req.Tier),
			SubmittedAt: c.req.SubmittedAt,
			Quantity:    need,
		})
	}

	solution, err := s.optimizer.Solve(ctx, record.Available(), candidates)
	if err != nil {
		for _, c := range contenders {
			s.failRequest(ctx, c.req, shared.ErrOptimizerInfeasible.Code)
			result.Failed = append(result.Failed, BatchFailure{
				Index: c.index, RequestID: c.req.ID,
				Code: shared.ErrOptimizerInfeasible.Code, Message: shared.ErrOptimizerInfeasible.Message,
			})
		}
		return
	}

	for _, c := range contenders {
		res, err := s.commitGrant(ctx, c.req, c.verdict, c.hold, c.target,
			solution.Grants[c.req.ID], solution.Solver)
		if err != nil && retriableCommit(err) {
			// An outside writer moved the capacity under the joint
			// solution; re-decide this contender alone from a fresh
			// snapshot with the usual retry budget.
			res, err = s.decideAndCommit(ctx, c.req, &preparation{
				verdict: c.verdict, hold: c.hold, target: c.target,
			})
		}
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{
				Index: c.index, RequestID: c.req.ID,
				Code: shared.ErrorCode(err), Message: err.Error(),
			})
			continue
		}
		result.Results = append(result.Results, *res)
	}
}

// preparation carries a request through classification, rule
// evaluation and reservation resolution
type preparation struct {
	verdict rules.Verdict
	hold    *inventory.Reservation
	target  decimal.Decimal // zero when the verdict needs no stock
}

func (s *Service) prepare(ctx context.Context, req *allocation.AllocationRequest) (*preparation, error) {
	now := time.Now()
	if req.DeadlineElapsed(now) {
		s.failRequest(ctx, req, shared.ErrDeadlineExceeded.Code)
		return nil, shared.ErrDeadlineExceeded
	}

	customer, err := s.customers.FindByID(ctx, req.CustomerID)
	if err != nil {
		s.failRequest(ctx, req, shared.ErrorCode(err))
		return nil, err
	}
	if err := req.MarkClassified(customer.Tier, customer.TierVersion); err != nil {
		return nil, err
	}

	record, err := s.ledger.Snapshot(ctx, req.ProductID, req.LocationID)
	if err != nil {
		s.failRequest(ctx, req, shared.ErrorCode(err))
		return nil, err
	}

	// The effective rule set is pinned to the submission time, so a
	// rule published mid-flight cannot change this request's verdict.
	effective, err := s.ruleStore.FindEffectiveAsOf(ctx, req.SubmittedAt)
	if err != nil {
		s.failRequest(ctx, req, shared.ErrorCode(err))
		return nil, err
	}

	verdict := s.engine.Evaluate(effective, rules.EvalContext{
		CustomerTier:        customer.Tier,
		CustomerSegment:     string(customer.Segment),
		CustomerCreditLimit: customer.CreditLimit,
		RequestedQuantity:   req.Quantity,
		AvailableQuantity:   record.Available(),
		OnHandQuantity:      record.OnHand,
	})
	if err := req.MarkRuleEvaluated(); err != nil {
		return nil, err
	}

	var hold *inventory.Reservation
	target := decimal.Zero
	switch verdict.Action {
	case rules.ActionAllocateFull:
		target = req.Quantity
	case rules.ActionAllocatePartial:
		target = verdict.PartialRatio.Mul(req.Quantity)
	}

	if target.IsPositive() {
		hold = s.findHold(ctx, req)
	}
	if err := req.MarkReservationChecked(); err != nil {
		return nil, err
	}
	if err := s.requests.Save(ctx, req); err != nil {
		return nil, err
	}

	return &preparation{verdict: verdict, hold: hold, target: target}, nil
}

func (s *Service) process(ctx context.Context, req *allocation.AllocationRequest) (*ProcessResult, error) {
	prep, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if prep.target.IsZero() {
		return s.decideWithoutStock(ctx, req, prep.verdict)
	}

	return s.decideAndCommit(ctx, req, prep)
}

// decideAndCommit runs the decide+commit window with a bounded retry
// budget. Every attempt re-checks the deadline, re-fetches the hold,
// re-snapshots the ledger, and re-solves, so a conflicting writer only
// costs this request one attempt, never a stale grant.
func (s *Service) decideAndCommit(ctx context.Context, req *allocation.AllocationRequest, prep *preparation) (*ProcessResult, error) {
	hold := prep.hold
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if req.DeadlineElapsed(time.Now()) {
			s.failRequest(ctx, req, shared.ErrDeadlineExceeded.Code)
			return nil, shared.ErrDeadlineExceeded
		}

		if hold != nil {
			hold = s.refreshHold(ctx, hold.ID)
		}

		record, err := s.ledger.Snapshot(ctx, req.ProductID, req.LocationID)
		if err != nil {
			s.failRequest(ctx, req, shared.ErrorCode(err))
			return nil, err
		}

		need := prep.target.Sub(s.holdBudget(hold, prep.target))
		solution, err := s.optimizer.Solve(ctx, record.Available(), []allocation.Candidate{{
			RequestID:   req.ID,
			Tier:        derefTier(req.Tier),
			SubmittedAt: req.SubmittedAt,
			Quantity:    need,
		}})
		if err != nil {
			s.failRequest(ctx, req, shared.ErrOptimizerInfeasible.Code)
			return nil, shared.ErrOptimizerInfeasible
		}

		res, err := s.commitGrant(ctx, req, prep.verdict, hold, prep.target,
			solution.Grants[req.ID], solution.Solver)
		if err == nil {
			return res, nil
		}
		if !retriableCommit(err) {
			return nil, err
		}
		s.logger.Debug("allocation commit conflicted, retrying",
			zap.String("request_id", req.ID.String()),
			zap.Int("attempt", attempt))
	}

	s.failRequest(ctx, req, shared.ErrCapacityContention.Code)
	s.publish(ctx, allocation.NewCapacityContentionEvent(req, s.maxRetries))
	return nil, shared.ErrCapacityContention
}

// refreshHold re-reads a hold before another commit attempt. A rolled
// back commit leaves the row active; a sweeper or competing consumer
// may have closed it, in which case the request falls back to open
// capacity.
func (s *Service) refreshHold(ctx context.Context, id uuid.UUID) *inventory.Reservation {
	hold, err := s.reservations.FindByID(ctx, id)
	if err != nil || !hold.IsActive() {
		return nil
	}
	return hold
}

// commitGrant turns an optimizer grant into a decision and commits it.
// The consumed hold is authoritative on the reservation row: whichever
// of consume and expiry writes the row first wins, the loser backs off.
func (s *Service) commitGrant(ctx context.Context, req *allocation.AllocationRequest, verdict rules.Verdict, hold *inventory.Reservation, target, openGrant decimal.Decimal, solver allocation.Solver) (*ProcessResult, error) {
	now := time.Now()
	holdBudget := s.holdBudget(hold, target)
	granted := holdBudget.Add(openGrant)

	var outcome allocation.Outcome
	switch {
	case granted.Equal(req.Quantity):
		outcome = allocation.OutcomeAllocated
	case granted.IsPositive() && (s.allowPartial || verdict.Action == rules.ActionAllocatePartial):
		outcome = allocation.OutcomePartial
	default:
		outcome = allocation.OutcomeBackordered
		granted = decimal.Zero
		holdBudget = decimal.Zero
		openGrant = decimal.Zero
		hold = nil
	}

	usedFromHold := decimal.Zero
	leftover := decimal.Zero
	var reservationID *uuid.UUID
	var consumedHold *inventory.Reservation
	if hold != nil && holdBudget.IsPositive() {
		if err := hold.Consume(now); err != nil {
			// Expired or already closed under us: fall back to open
			// capacity only.
			return s.commitGrant(ctx, req, verdict, nil, target, openGrant, solver)
		}
		usedFromHold = holdBudget
		leftover = hold.HeldQuantity.Sub(usedFromHold)
		id := hold.ID
		reservationID = &id
		consumedHold = hold
	}

	decision, err := allocation.NewAllocationDecision(req.ID, outcome, req.Quantity, granted, solver, now)
	if err != nil {
		return nil, err
	}
	decision.RuleID = verdict.RuleID
	decision.RuleVersion = verdict.RuleVersion
	decision.ReservationID = reservationID
	decision.ReservedQuantity = usedFromHold
	if verdict.Matched {
		decision.Reason = verdict.RuleName
	}

	// A prior attempt may have advanced the request already; commit
	// retries re-enter here with the request decided.
	if req.Status == allocation.RequestStatusReservationChecked {
		if err := req.MarkDecided(); err != nil {
			return nil, err
		}
	}

	// The hold write rides in the same commit as the record and the
	// decision, so a lost version race rolls all three back and the
	// retry sees the hold still active (or closed by whoever won).
	if err := s.ledger.Commit(ctx, decision, req.ProductID, req.LocationID, openGrant, usedFromHold, leftover, consumedHold); err != nil {
		return nil, err
	}
	if consumedHold != nil {
		s.publishEvents(ctx, consumedHold)
	}

	if err := req.MarkCommitted(); err != nil {
		return nil, err
	}
	if err := s.requests.Save(ctx, req); err != nil {
		return nil, err
	}

	s.publish(ctx, allocation.NewDecisionCommittedEvent(decision, req))
	if outcome == allocation.OutcomeBackordered {
		s.publish(ctx, allocation.NewBackorderRaisedEvent(req))
	}

	s.logger.Info("allocation committed",
		zap.String("request_id", req.ID.String()),
		zap.String("outcome", string(outcome)),
		zap.String("granted", granted.String()),
		zap.String("solver", string(solver)))

	return s.toResult(req, decision), nil
}

// decideWithoutStock finishes a request whose verdict needs no
// capacity: reject, hold, escalate
func (s *Service) decideWithoutStock(ctx context.Context, req *allocation.AllocationRequest, verdict rules.Verdict) (*ProcessResult, error) {
	outcome := allocation.OutcomeBackordered
	if verdict.Action == rules.ActionReject {
		outcome = allocation.OutcomeRejected
	}

	decision, err := allocation.NewAllocationDecision(req.ID, outcome, req.Quantity, decimal.Zero, allocation.SolverNone, time.Now())
	if err != nil {
		return nil, err
	}
	decision.RuleID = verdict.RuleID
	decision.RuleVersion = verdict.RuleVersion
	if verdict.Matched {
		decision.Reason = verdict.RuleName
	}

	if err := req.MarkDecided(); err != nil {
		return nil, err
	}
	if err := s.ledger.Commit(ctx, decision, req.ProductID, req.LocationID, decimal.Zero, decimal.Zero, decimal.Zero, nil); err != nil {
		return nil, err
	}
	if err := req.MarkCommitted(); err != nil {
		return nil, err
	}
	if err := s.requests.Save(ctx, req); err != nil {
		return nil, err
	}

	s.publish(ctx, allocation.NewDecisionCommittedEvent(decision, req))
	if outcome == allocation.OutcomeBackordered {
		s.publish(ctx, allocation.NewBackorderRaisedEvent(req))
	}
	if verdict.Action == rules.ActionEscalate {
		s.publish(ctx, allocation.NewEscalationRaisedEvent(req, verdict.RuleID, verdict.RuleName))
	}

	return s.toResult(req, decision), nil
}

// GetResult returns the request and its effective decision
func (s *Service) GetResult(ctx context.Context, requestID uuid.UUID) (*ProcessResult, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	decision, err := s.ledger.decisions.FindLatestByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.toResult(req, decision), nil
}

// findHold picks the request's consumable reservation: the active hold
// closest to expiry, so holds are spent before the sweeper takes them
func (s *Service) findHold(ctx context.Context, req *allocation.AllocationRequest) *inventory.Reservation {
	holds, err := s.reservations.FindActiveByCustomerProduct(ctx, req.CustomerID, req.ProductID, req.LocationID)
	if err != nil {
		s.logger.Warn("reservation lookup failed, allocating from open capacity",
			zap.String("request_id", req.ID.String()),
			zap.Error(err))
		return nil
	}
	now := time.Now()
	var best *inventory.Reservation
	for i := range holds {
		h := &holds[i]
		if h.IsExpired(now) {
			continue
		}
		if best == nil || h.ExpiresAt.Before(best.ExpiresAt) {
			best = h
		}
	}
	return best
}

func (s *Service) holdBudget(hold *inventory.Reservation, target decimal.Decimal) decimal.Decimal {
	if hold == nil || !hold.IsActive() {
		return decimal.Zero
	}
	return decimal.Min(hold.HeldQuantity, target)
}

func (s *Service) failRequest(ctx context.Context, req *allocation.AllocationRequest, code string) {
	if err := req.Fail(code); err != nil {
		return
	}
	if err := s.requests.Save(ctx, req); err != nil {
		s.logger.Error("failed to persist request failure",
			zap.String("request_id", req.ID.String()),
			zap.Error(err))
	}
}

func (s *Service) toResult(req *allocation.AllocationRequest, decision *allocation.AllocationDecision) *ProcessResult {
	result := &ProcessResult{
		RequestID:         req.ID,
		Outcome:           decision.Outcome,
		RequestedQuantity: decision.RequestedQuantity,
		GrantedQuantity:   decision.GrantedQuantity,
		FromReservation:   decision.ReservedQuantity,
		Solver:            decision.Solver,
		RuleID:            decision.RuleID,
		RuleVersion:       decision.RuleVersion,
		RuleName:          decision.Reason,
		ReservationID:     decision.ReservationID,
		DecidedAt:         decision.DecidedAt,
	}
	if req.Tier != nil {
		result.Tier = *req.Tier
	}
	if req.TierVersion != nil {
		result.TierVersion = *req.TierVersion
	}
	return result
}

func (s *Service) publish(ctx context.Context, event shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}

func (s *Service) publishEvents(ctx context.Context, agg shared.AggregateRoot) {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	for _, e := range events {
		s.publish(ctx, e)
	}
}

func retriableCommit(err error) bool {
	return shared.IsRetriable(err) || shared.ErrorCode(err) == shared.ErrInsufficientStock.Code
}

func derefTier(tier *int) int {
	if tier == nil {
		return partner.MaxTier
	}
	return *tier
}
