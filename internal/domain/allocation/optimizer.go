package allocation

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Candidate is one request competing for capacity in an optimization
// round. Quantity is what the request still needs after any consumed
// reservation was applied.
type Candidate struct {
	RequestID   uuid.UUID
	Tier        int
	SubmittedAt time.Time
	Quantity    decimal.Decimal
}

// Solution maps each candidate request to its granted quantity and
// records which strategy produced it
type Solution struct {
	Grants map[uuid.UUID]decimal.Decimal
	Solver Solver
}

// Strategy distributes a fixed capacity over a set of candidates.
// Implementations are pure: same inputs, same grants, no side effects.
type Strategy interface {
	Name() Solver
	Solve(ctx context.Context, capacity decimal.Decimal, candidates []Candidate) (map[uuid.UUID]decimal.Decimal, error)
}

// tierWeight converts a tier into an objective weight. Tier 1 weighs
// the most; anything below the known range still weighs at least 1.
func tierWeight(tier int) decimal.Decimal {
	w := 5 - tier
	if w < 1 {
		w = 1
	}
	return decimal.NewFromInt(int64(w))
}

// ExactStrategy maximizes the sum of tier weight times fill rate.
// Grants are divisible, so ordering candidates by weight per requested
// unit and filling in that order is the exact optimum, not a heuristic.
// Ties resolve by tier then submission time so the result is
// deterministic across replicas.
type ExactStrategy struct{}

// Name returns the solver label for decisions
func (s *ExactStrategy) Name() Solver {
	return SolverExact
}

// Solve distributes capacity by descending unit density
func (s *ExactStrategy) Solve(ctx context.Context, capacity decimal.Decimal, candidates []Candidate) (map[uuid.UUID]decimal.Decimal, error) {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		// density = weight / quantity; compare cross-multiplied to stay
		// in exact decimal arithmetic
		di := tierWeight(ordered[i].Tier).Mul(ordered[j].Quantity)
		dj := tierWeight(ordered[j].Tier).Mul(ordered[i].Quantity)
		if !di.Equal(dj) {
			return di.GreaterThan(dj)
		}
		if ordered[i].Tier != ordered[j].Tier {
			return ordered[i].Tier < ordered[j].Tier
		}
		return ordered[i].SubmittedAt.Before(ordered[j].SubmittedAt)
	})

	grants := make(map[uuid.UUID]decimal.Decimal, len(candidates))
	remaining := capacity
	for _, c := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		grant := decimal.Min(remaining, c.Quantity)
		if grant.IsNegative() {
			grant = decimal.Zero
		}
		grants[c.RequestID] = grant
		remaining = remaining.Sub(grant)
	}
	return grants, nil
}

// GreedyStrategy fills strictly by tier, first come first served within
// a tier. Cheaper and more predictable than the exact objective; used
// for large rounds and as the fallback.
type GreedyStrategy struct{}

// Name returns the solver label for decisions
func (s *GreedyStrategy) Name() Solver {
	return SolverGreedy
}

// Solve distributes capacity by tier then submission order
func (s *GreedyStrategy) Solve(ctx context.Context, capacity decimal.Decimal, candidates []Candidate) (map[uuid.UUID]decimal.Decimal, error) {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Tier != ordered[j].Tier {
			return ordered[i].Tier < ordered[j].Tier
		}
		return ordered[i].SubmittedAt.Before(ordered[j].SubmittedAt)
	})

	grants := make(map[uuid.UUID]decimal.Decimal, len(candidates))
	remaining := capacity
	for _, c := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		grant := decimal.Min(remaining, c.Quantity)
		if grant.IsNegative() {
			grant = decimal.Zero
		}
		grants[c.RequestID] = grant
		remaining = remaining.Sub(grant)
	}
	return grants, nil
}

// Optimizer selects a strategy per round: the exact objective for
// rounds up to MaxExactCandidates, greedy beyond that, and greedy again
// as the fallback when the exact pass runs out of time. Only when both
// fail does the round surface as infeasible.
type Optimizer struct {
	exact              Strategy
	greedy             Strategy
	maxExactCandidates int
	timeBudget         time.Duration
}

// NewOptimizer creates an optimizer with both strategies wired
func NewOptimizer(maxExactCandidates int, timeBudget time.Duration) *Optimizer {
	return &Optimizer{
		exact:              &ExactStrategy{},
		greedy:             &GreedyStrategy{},
		maxExactCandidates: maxExactCandidates,
		timeBudget:         timeBudget,
	}
}

// Solve runs one optimization round
func (o *Optimizer) Solve(ctx context.Context, capacity decimal.Decimal, candidates []Candidate) (*Solution, error) {
	if len(candidates) == 0 {
		return &Solution{Grants: map[uuid.UUID]decimal.Decimal{}, Solver: SolverNone}, nil
	}
	if capacity.IsNegative() {
		capacity = decimal.Zero
	}

	if len(candidates) <= o.maxExactCandidates {
		exactCtx, cancel := context.WithTimeout(ctx, o.timeBudget)
		grants, err := o.exact.Solve(exactCtx, capacity, candidates)
		cancel()
		if err == nil {
			return &Solution{Grants: grants, Solver: o.exact.Name()}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	grants, err := o.greedy.Solve(ctx, capacity, candidates)
	if err != nil {
		return nil, shared.ErrOptimizerInfeasible
	}
	return &Solution{Grants: grants, Solver: o.greedy.Name()}, nil
}
