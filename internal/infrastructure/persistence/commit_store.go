package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/supplyai/backend/internal/domain/allocation"
	"github.com/supplyai/backend/internal/domain/inventory"
)

// GormCommitStore writes one decision's rows in a single database
// transaction: the guarded ledger record update, the consumed hold
// update, and the decision append. A failed guard rolls every row back,
// so a conflict never leaves stock moved without its decision or a hold
// consumed without its stock movement.
type GormCommitStore struct {
	db *gorm.DB
}

// NewGormCommitStore creates a new GORM commit store
func NewGormCommitStore(db *gorm.DB) *GormCommitStore {
	return &GormCommitStore{db: db}
}

// Apply persists the record, hold, and decision together. record and
// hold may be nil when the decision moved no stock.
func (s *GormCommitStore) Apply(ctx context.Context, record *inventory.InventoryRecord, hold *inventory.Reservation, decision *allocation.AllocationDecision) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if record != nil {
			if err := recordSaveWithLock(tx, record); err != nil {
				return err
			}
		}
		if hold != nil {
			if err := reservationSaveWithLock(tx, hold); err != nil {
				return err
			}
		}
		return appendDecision(tx, decision)
	})
}
