package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/inventory"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Service covers the ledger's plain stock operations: creating rows,
// receiving stock, reading availability
type Service struct {
	records    inventory.InventoryRepository
	publisher  shared.EventPublisher
	maxRetries int
	logger     *zap.Logger
}

// NewService creates a stock service
func NewService(records inventory.InventoryRepository, publisher shared.EventPublisher, maxRetries int, logger *zap.Logger) *Service {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Service{
		records:    records,
		publisher:  publisher,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// CreateRecord opens a ledger row for a product at a location
func (s *Service) CreateRecord(ctx context.Context, productID, locationID uuid.UUID, onHand, reorderPoint decimal.Decimal) (*inventory.InventoryRecord, error) {
	if _, err := s.records.FindByProductLocation(ctx, productID, locationID); err == nil {
		return nil, shared.ErrAlreadyExists
	} else if shared.ErrorCode(err) != shared.ErrNotFound.Code {
		return nil, err
	}

	record, err := inventory.NewInventoryRecord(productID, locationID, onHand, reorderPoint)
	if err != nil {
		return nil, err
	}
	if err := s.records.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Get returns the ledger row for a product at a location
func (s *Service) Get(ctx context.Context, productID, locationID uuid.UUID) (*inventory.InventoryRecord, error) {
	return s.records.FindByProductLocation(ctx, productID, locationID)
}

// List returns ledger rows matching the filter
func (s *Service) List(ctx context.Context, filter shared.Filter) ([]inventory.InventoryRecord, error) {
	return s.records.FindAll(ctx, filter)
}

// Receive adds received stock to a ledger row
func (s *Service) Receive(ctx context.Context, productID, locationID uuid.UUID, quantity decimal.Decimal) (*inventory.InventoryRecord, error) {
	for attempt := 1; ; attempt++ {
		record, err := s.records.FindByProductLocation(ctx, productID, locationID)
		if err != nil {
			return nil, err
		}
		if err := record.Receive(quantity); err != nil {
			return nil, err
		}

		err = s.records.SaveWithLock(ctx, record)
		if err == nil {
			s.logger.Info("stock received",
				zap.String("product_id", productID.String()),
				zap.String("location_id", locationID.String()),
				zap.String("quantity", quantity.String()))
			s.publishEvents(ctx, record)
			return record, nil
		}
		if !shared.IsRetriable(err) || attempt >= s.maxRetries {
			return nil, err
		}
	}
}

// Ship removes allocated stock once it has left the location
func (s *Service) Ship(ctx context.Context, productID, locationID uuid.UUID, quantity decimal.Decimal) (*inventory.InventoryRecord, error) {
	for attempt := 1; ; attempt++ {
		record, err := s.records.FindByProductLocation(ctx, productID, locationID)
		if err != nil {
			return nil, err
		}
		if err := record.Ship(quantity); err != nil {
			return nil, err
		}

		err = s.records.SaveWithLock(ctx, record)
		if err == nil {
			s.publishEvents(ctx, record)
			return record, nil
		}
		if !shared.IsRetriable(err) || attempt >= s.maxRetries {
			return nil, err
		}
	}
}

func (s *Service) publishEvents(ctx context.Context, record *inventory.InventoryRecord) {
	events := record.GetDomainEvents()
	record.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish inventory events",
			zap.String("record_id", record.ID.String()),
			zap.Error(err))
	}
}
