package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/inventory"
	"github.com/supplyai/backend/internal/domain/shared"
)

// CreateReservationRequest carries the inputs for a new soft hold
type CreateReservationRequest struct {
	CustomerID  uuid.UUID
	ProductID   uuid.UUID
	LocationID  uuid.UUID
	Forecast    decimal.Decimal
	Probability decimal.Decimal
	ExpiresAt   time.Time
}

// Service creates and releases reservations and keeps the ledger's
// reserved bucket in step with them. A ceiling ratio caps how much of
// on-hand stock reservations may hold in total, so firm demand always
// has something left to allocate from.
type Service struct {
	reservations inventory.ReservationRepository
	records      inventory.InventoryRepository
	publisher    shared.EventPublisher
	ceilingRatio decimal.Decimal
	maxRetries   int
	logger       *zap.Logger
}

// NewService creates a reservation service
func NewService(
	reservations inventory.ReservationRepository,
	records inventory.InventoryRepository,
	publisher shared.EventPublisher,
	ceilingRatio decimal.Decimal,
	maxRetries int,
	logger *zap.Logger,
) *Service {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Service{
		reservations: reservations,
		records:      records,
		publisher:    publisher,
		ceilingRatio: ceilingRatio,
		maxRetries:   maxRetries,
		logger:       logger,
	}
}

// Create places a new hold. The ledger write is version-guarded and
// retried on conflict; the reservation row is only written after the
// hold stuck.
func (s *Service) Create(ctx context.Context, req CreateReservationRequest) (*inventory.Reservation, error) {
	res, err := inventory.NewReservation(req.CustomerID, req.ProductID, req.LocationID,
		req.Forecast, req.Probability, req.ExpiresAt)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		record, err := s.records.FindByProductLocation(ctx, req.ProductID, req.LocationID)
		if err != nil {
			return nil, err
		}

		ceiling := record.OnHand.Mul(s.ceilingRatio)
		if record.Reserved.Add(res.HeldQuantity).GreaterThan(ceiling) {
			return nil, shared.NewDomainError("RESERVATION_CEILING_EXCEEDED",
				"Reservation would exceed the reserved-stock ceiling")
		}

		if err := record.Reserve(res.HeldQuantity); err != nil {
			return nil, err
		}

		err = s.records.SaveWithLock(ctx, record)
		if err == nil {
			break
		}
		if !shared.IsRetriable(err) || attempt >= s.maxRetries {
			return nil, err
		}
		s.logger.Debug("reservation ledger write conflicted, retrying",
			zap.String("product_id", req.ProductID.String()),
			zap.Int("attempt", attempt))
	}

	if err := s.reservations.Save(ctx, res); err != nil {
		return nil, err
	}

	s.logger.Info("reservation created",
		zap.String("reservation_id", res.ID.String()),
		zap.String("customer_id", req.CustomerID.String()),
		zap.String("held_quantity", res.HeldQuantity.String()),
		zap.Time("expires_at", req.ExpiresAt))
	return res, nil
}

// Get returns a reservation by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	return s.reservations.FindByID(ctx, id)
}

// List returns reservations matching the filter
func (s *Service) List(ctx context.Context, filter shared.Filter) ([]inventory.Reservation, error) {
	return s.reservations.FindAll(ctx, filter)
}

// Cancel releases an active hold before its expiry
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	res, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := res.Cancel(time.Now()); err != nil {
		return err
	}
	// Status guard: if the sweeper or an allocation closed it first,
	// this write loses and the cancel reports a conflict.
	if err := s.reservations.SaveWithLock(ctx, res); err != nil {
		return err
	}

	if err := s.releaseHold(ctx, res); err != nil {
		return err
	}

	s.publishEvents(ctx, res)
	s.logger.Info("reservation cancelled", zap.String("reservation_id", id.String()))
	return nil
}

// ExpireDue releases every active reservation whose expiry has passed.
// Returns how many were released. Races with concurrent consumption are
// resolved by the version guard: whichever write lands first wins and
// the loser is skipped.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, batchSize int) (int, error) {
	due, err := s.reservations.FindExpired(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range due {
		res := &due[i]
		if err := res.Expire(now); err != nil {
			continue
		}
		if err := s.reservations.SaveWithLock(ctx, res); err != nil {
			if shared.IsRetriable(err) {
				// Lost the race against a consume or cancel.
				continue
			}
			return released, err
		}
		if err := s.releaseHold(ctx, res); err != nil {
			s.logger.Error("failed to release expired hold",
				zap.String("reservation_id", res.ID.String()),
				zap.Error(err))
			continue
		}
		s.publishEvents(ctx, res)
		released++
	}
	return released, nil
}

// releaseHold returns the reservation's held quantity to open capacity
func (s *Service) releaseHold(ctx context.Context, res *inventory.Reservation) error {
	for attempt := 1; ; attempt++ {
		record, err := s.records.FindByProductLocation(ctx, res.ProductID, res.LocationID)
		if err != nil {
			return err
		}
		if err := record.ReleaseReservation(res.HeldQuantity); err != nil {
			return err
		}
		err = s.records.SaveWithLock(ctx, record)
		if err == nil {
			return nil
		}
		if !shared.IsRetriable(err) || attempt >= s.maxRetries {
			return err
		}
	}
}

func (s *Service) publishEvents(ctx context.Context, res *inventory.Reservation) {
	events := res.GetDomainEvents()
	res.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish reservation events",
			zap.String("reservation_id", res.ID.String()),
			zap.Error(err))
	}
}
