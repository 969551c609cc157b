package alerting

import (
	"context"

	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/allocation"
	"github.com/supplyai/backend/internal/domain/inventory"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Subscriber turns operational domain events into alert log lines.
// Backorders, escalations, contention and reorder-point breaches all
// land here so operators have one channel to watch.
type Subscriber struct {
	logger *zap.Logger
}

// NewSubscriber creates an alerting subscriber
func NewSubscriber(logger *zap.Logger) *Subscriber {
	return &Subscriber{logger: logger}
}

// EventTypes returns the events the subscriber handles
func (s *Subscriber) EventTypes() []string {
	return []string{
		allocation.EventTypeBackorderRaised,
		allocation.EventTypeEscalationRaised,
		allocation.EventTypeCapacityContention,
		inventory.EventTypeReorderPointReached,
	}
}

// Handle processes one event
func (s *Subscriber) Handle(_ context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *allocation.BackorderRaisedEvent:
		s.logger.Warn("backorder raised",
			zap.String("request_id", e.RequestID.String()),
			zap.String("customer_id", e.CustomerID.String()),
			zap.String("product_id", e.ProductID.String()),
			zap.String("quantity", e.RequestedQuantity.String()))
	case *allocation.EscalationRaisedEvent:
		s.logger.Warn("allocation escalated for review",
			zap.String("request_id", e.RequestID.String()),
			zap.String("customer_id", e.CustomerID.String()),
			zap.String("rule", e.RuleName))
	case *allocation.CapacityContentionEvent:
		s.logger.Warn("allocation lost to capacity contention",
			zap.String("request_id", e.RequestID.String()),
			zap.String("product_id", e.ProductID.String()),
			zap.Int("attempts", e.Attempts))
	case *inventory.ReorderPointReachedEvent:
		s.logger.Warn("reorder point reached",
			zap.String("product_id", e.ProductID.String()),
			zap.String("location_id", e.LocationID.String()),
			zap.String("available", e.Available.String()),
			zap.String("reorder_point", e.ReorderPoint.String()))
	default:
		s.logger.Debug("unhandled alert event", zap.String("event_type", event.EventType()))
	}
	return nil
}
