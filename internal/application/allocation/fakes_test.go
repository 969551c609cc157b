package allocation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supplyai/backend/internal/domain/allocation"
	"github.com/supplyai/backend/internal/domain/inventory"
	"github.com/supplyai/backend/internal/domain/partner"
	"github.com/supplyai/backend/internal/domain/rules"
	"github.com/supplyai/backend/internal/domain/shared"
)

type memRequestRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*allocation.AllocationRequest
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{rows: make(map[uuid.UUID]*allocation.AllocationRequest)}
}

func (r *memRequestRepo) FindByID(_ context.Context, id uuid.UUID) (*allocation.AllocationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (r *memRequestRepo) FindByCustomer(_ context.Context, customerID uuid.UUID, _ shared.Filter) ([]allocation.AllocationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []allocation.AllocationRequest
	for _, row := range r.rows {
		if row.CustomerID == customerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *memRequestRepo) FindAll(_ context.Context, _ shared.Filter) ([]allocation.AllocationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []allocation.AllocationRequest
	for _, row := range r.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (r *memRequestRepo) Save(_ context.Context, req *allocation.AllocationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *req
	r.rows[req.ID] = &copied
	return nil
}

func (r *memRequestRepo) SaveWithLock(_ context.Context, req *allocation.AllocationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[req.ID]
	if ok && current.GetVersion() >= req.GetVersion() {
		return shared.ErrConcurrencyConflict
	}
	copied := *req
	r.rows[req.ID] = &copied
	return nil
}

type memCustomerRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*partner.Customer
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{rows: make(map[uuid.UUID]*partner.Customer)}
}

func (r *memCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*partner.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (r *memCustomerRepo) FindByCode(_ context.Context, code string) (*partner.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Code == code {
			copied := *row
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memCustomerRepo) FindAll(_ context.Context, _ shared.Filter) ([]partner.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []partner.Customer
	for _, row := range r.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (r *memCustomerRepo) Save(_ context.Context, c *partner.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *c
	r.rows[c.ID] = &copied
	return nil
}

func (r *memCustomerRepo) SaveWithLock(_ context.Context, c *partner.Customer) error {
	return r.Save(context.Background(), c)
}

func (r *memCustomerRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

type memRuleRepo struct {
	mu   sync.Mutex
	rows []rules.BusinessRule
}

func newMemRuleRepo() *memRuleRepo {
	return &memRuleRepo{}
}

func (r *memRuleRepo) FindByID(_ context.Context, id uuid.UUID) (*rules.BusinessRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			copied := r.rows[i]
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRuleRepo) FindLatest(_ context.Context, ruleID uuid.UUID) (*rules.BusinessRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *rules.BusinessRule
	for i := range r.rows {
		if r.rows[i].RuleID == ruleID && (best == nil || r.rows[i].Version > best.Version) {
			best = &r.rows[i]
		}
	}
	if best == nil {
		return nil, shared.ErrNotFound
	}
	copied := *best
	return &copied, nil
}

func (r *memRuleRepo) FindVersions(_ context.Context, ruleID uuid.UUID) ([]rules.BusinessRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []rules.BusinessRule
	for i := range r.rows {
		if r.rows[i].RuleID == ruleID {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}

func (r *memRuleRepo) FindEffectiveAsOf(_ context.Context, at time.Time) ([]rules.BusinessRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := make(map[uuid.UUID]rules.BusinessRule)
	for _, row := range r.rows {
		if row.EffectiveFrom.After(at) {
			continue
		}
		if cur, ok := latest[row.RuleID]; !ok || row.Version > cur.Version {
			latest[row.RuleID] = row
		}
	}
	var out []rules.BusinessRule
	for _, row := range latest {
		if row.Active {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memRuleRepo) FindAll(_ context.Context, _ shared.Filter) ([]rules.BusinessRule, error) {
	return r.FindEffectiveAsOf(context.Background(), time.Now())
}

func (r *memRuleRepo) Append(_ context.Context, rule *rules.BusinessRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *rule)
	return nil
}

func (r *memRuleRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	for _, row := range r.rows {
		seen[row.RuleID] = struct{}{}
	}
	return int64(len(seen)), nil
}

type memReservationRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*inventory.Reservation
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{rows: make(map[uuid.UUID]*inventory.Reservation)}
}

func (r *memReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (r *memReservationRepo) FindActiveByCustomerProduct(_ context.Context, customerID, productID, locationID uuid.UUID) ([]inventory.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []inventory.Reservation
	for _, row := range r.rows {
		if row.IsActive() && row.CustomerID == customerID && row.ProductID == productID && row.LocationID == locationID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindActiveByProductLocation(_ context.Context, productID, locationID uuid.UUID) ([]inventory.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []inventory.Reservation
	for _, row := range r.rows {
		if row.IsActive() && row.ProductID == productID && row.LocationID == locationID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindExpired(_ context.Context, now time.Time, limit int) ([]inventory.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []inventory.Reservation
	for _, row := range r.rows {
		if row.IsExpired(now) {
			out = append(out, *row)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindAll(_ context.Context, _ shared.Filter) ([]inventory.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []inventory.Reservation
	for _, row := range r.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (r *memReservationRepo) Save(_ context.Context, res *inventory.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *res
	r.rows[res.ID] = &copied
	return nil
}

func (r *memReservationRepo) SaveWithLock(_ context.Context, res *inventory.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[res.ID]
	if ok && current.GetVersion() != res.GetVersion()-1 {
		return shared.ErrConcurrencyConflict
	}
	copied := *res
	r.rows[res.ID] = &copied
	return nil
}

func (r *memReservationRepo) lockable(res *inventory.Reservation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[res.ID]
	return !ok || current.GetVersion() == res.GetVersion()-1
}

type memInventoryRepo struct {
	mu        sync.Mutex
	rows      map[string]*inventory.InventoryRecord
	conflicts int // fail the next N version-guarded writes
}

func newMemInventoryRepo() *memInventoryRepo {
	return &memInventoryRepo{rows: make(map[string]*inventory.InventoryRecord)}
}

func recordKey(productID, locationID uuid.UUID) string {
	return productID.String() + "/" + locationID.String()
}

func (r *memInventoryRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			copied := *row
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memInventoryRepo) FindByProductLocation(_ context.Context, productID, locationID uuid.UUID) (*inventory.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[recordKey(productID, locationID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (r *memInventoryRepo) FindAll(_ context.Context, _ shared.Filter) ([]inventory.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []inventory.InventoryRecord
	for _, row := range r.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (r *memInventoryRepo) Save(_ context.Context, record *inventory.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *record
	r.rows[recordKey(record.ProductID, record.LocationID)] = &copied
	return nil
}

func (r *memInventoryRepo) SaveWithLock(_ context.Context, record *inventory.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return shared.ErrConcurrencyConflict
	}
	current, ok := r.rows[recordKey(record.ProductID, record.LocationID)]
	if ok && current.GetVersion() >= record.GetVersion() {
		return shared.ErrConcurrencyConflict
	}
	copied := *record
	r.rows[recordKey(record.ProductID, record.LocationID)] = &copied
	return nil
}

func (r *memInventoryRepo) lockable(record *inventory.InventoryRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return false
	}
	current, ok := r.rows[recordKey(record.ProductID, record.LocationID)]
	return !ok || current.GetVersion() < record.GetVersion()
}

type memDecisionRepo struct {
	mu   sync.Mutex
	rows []allocation.AllocationDecision
}

func newMemDecisionRepo() *memDecisionRepo {
	return &memDecisionRepo{}
}

func (r *memDecisionRepo) FindByID(_ context.Context, id uuid.UUID) (*allocation.AllocationDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			copied := r.rows[i]
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memDecisionRepo) FindByRequest(_ context.Context, requestID uuid.UUID) ([]allocation.AllocationDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []allocation.AllocationDecision
	for _, row := range r.rows {
		if row.RequestID == requestID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memDecisionRepo) FindLatestByRequest(_ context.Context, requestID uuid.UUID) (*allocation.AllocationDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *allocation.AllocationDecision
	for i := range r.rows {
		if r.rows[i].RequestID == requestID {
			best = &r.rows[i]
		}
	}
	if best == nil {
		return nil, shared.ErrNotFound
	}
	copied := *best
	return &copied, nil
}

func (r *memDecisionRepo) Append(_ context.Context, decision *allocation.AllocationDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.RequestID == decision.RequestID && sameCorrection(row.CorrectionOf, decision.CorrectionOf) {
			return shared.ErrAlreadyExists
		}
	}
	r.rows = append(r.rows, *decision)
	return nil
}

// memCommitStore mirrors the transactional commit store: every guard is
// checked before anything is written, so a refused commit leaves no
// partial state behind.
type memCommitStore struct {
	records   *memInventoryRepo
	holds     *memReservationRepo
	decisions *memDecisionRepo
}

func newMemCommitStore(records *memInventoryRepo, holds *memReservationRepo, decisions *memDecisionRepo) *memCommitStore {
	return &memCommitStore{records: records, holds: holds, decisions: decisions}
}

func (s *memCommitStore) Apply(ctx context.Context, record *inventory.InventoryRecord, hold *inventory.Reservation, decision *allocation.AllocationDecision) error {
	if record != nil && !s.records.lockable(record) {
		return shared.ErrConcurrencyConflict
	}
	if hold != nil && !s.holds.lockable(hold) {
		return shared.ErrConcurrencyConflict
	}
	if record != nil {
		if err := s.records.Save(ctx, record); err != nil {
			return err
		}
	}
	if hold != nil {
		if err := s.holds.Save(ctx, hold); err != nil {
			return err
		}
	}
	return s.decisions.Append(ctx, decision)
}

type memIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{keys: make(map[string]struct{})}
}

func (s *memIdempotencyStore) MarkProcessed(_ context.Context, id string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[id]; ok {
		return false, nil
	}
	s.keys[id] = struct{}{}
	return true, nil
}

func (s *memIdempotencyStore) IsProcessed(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[id]
	return ok, nil
}

func (s *memIdempotencyStore) Close() error { return nil }
