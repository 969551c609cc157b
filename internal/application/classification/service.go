package classification

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/partner"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Weights configures the classifier score. The three weights should sum
// to 1; the scales normalize raw volume and margin into [0, 1].
type Weights struct {
	Volume      float64
	Margin      float64
	PaymentRisk float64
	VolumeScale decimal.Decimal
	MarginScale decimal.Decimal
}

// DefaultWeights returns the production scoring configuration
func DefaultWeights() Weights {
	return Weights{
		Volume:      0.4,
		Margin:      0.4,
		PaymentRisk: 0.2,
		VolumeScale: decimal.NewFromInt(10000),
		MarginScale: decimal.NewFromInt(500000),
	}
}

// Result is the classification answer for one customer
type Result struct {
	CustomerID  uuid.UUID       `json:"customer_id"`
	Segment     partner.Segment `json:"segment"`
	Tier        int             `json:"tier"`
	TierVersion int             `json:"tier_version"`
	Score       float64         `json:"score"`
	Changed     bool            `json:"changed"`
}

// Service scores customers on their order history and moves them
// between segments and tiers. Tier changes bump the customer's tier
// version; requests already in flight keep the tier they pinned.
type Service struct {
	customers partner.CustomerRepository
	histories partner.OrderHistoryRepository
	publisher shared.EventPublisher
	weights   Weights
	logger    *zap.Logger
}

// NewService creates a classification service
func NewService(
	customers partner.CustomerRepository,
	histories partner.OrderHistoryRepository,
	publisher shared.EventPublisher,
	weights Weights,
	logger *zap.Logger,
) *Service {
	return &Service{
		customers: customers,
		histories: histories,
		publisher: publisher,
		weights:   weights,
		logger:    logger,
	}
}

// Score computes the weighted score in [0, 1] for a history roll-up.
// Customers without history score zero and land in the bottom tier.
func (s *Service) Score(history *partner.OrderHistory) float64 {
	if history == nil {
		return 0
	}

	volume := ratio(history.OrderVolume, s.weights.VolumeScale)
	margin := ratio(history.MarginContribution, s.weights.MarginScale)
	reliability := 1 - clamp01(history.PaymentRisk)

	return s.weights.Volume*volume + s.weights.Margin*margin + s.weights.PaymentRisk*reliability
}

// classify maps a score onto a segment and tier
func classify(score float64) (partner.Segment, int) {
	switch {
	case score >= 0.8:
		return partner.SegmentStrategic, 1
	case score >= 0.6:
		return partner.SegmentStrategic, 2
	case score >= 0.35:
		return partner.SegmentStandard, 3
	default:
		return partner.SegmentOpportunistic, 4
	}
}

// Classify scores one customer and persists the new classification if
// it changed
func (s *Service) Classify(ctx context.Context, customerID uuid.UUID) (*Result, error) {
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	history, err := s.histories.FindByCustomer(ctx, customerID)
	if err != nil && shared.ErrorCode(err) != shared.ErrNotFound.Code {
		return nil, err
	}

	score := s.Score(history)
	segment, tier := classify(score)

	changed := customer.Segment != segment || customer.Tier != tier
	if changed {
		if err := customer.Reclassify(segment, tier); err != nil {
			return nil, err
		}
		if err := s.customers.SaveWithLock(ctx, customer); err != nil {
			return nil, err
		}

		events := customer.GetDomainEvents()
		customer.ClearDomainEvents()
		if s.publisher != nil && len(events) > 0 {
			if err := s.publisher.Publish(ctx, events...); err != nil {
				s.logger.Warn("failed to publish reclassification events",
					zap.String("customer_id", customerID.String()),
					zap.Error(err))
			}
		}

		s.logger.Info("customer reclassified",
			zap.String("customer_id", customerID.String()),
			zap.String("segment", string(segment)),
			zap.Int("tier", tier),
			zap.Float64("score", score))
	}

	return &Result{
		CustomerID:  customer.ID,
		Segment:     customer.Segment,
		Tier:        customer.Tier,
		TierVersion: customer.TierVersion,
		Score:       score,
		Changed:     changed,
	}, nil
}

// GetClassification returns the stored classification plus the current
// score without persisting anything
func (s *Service) GetClassification(ctx context.Context, customerID uuid.UUID) (*Result, error) {
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	history, err := s.histories.FindByCustomer(ctx, customerID)
	if err != nil && shared.ErrorCode(err) != shared.ErrNotFound.Code {
		return nil, err
	}

	return &Result{
		CustomerID:  customer.ID,
		Segment:     customer.Segment,
		Tier:        customer.Tier,
		TierVersion: customer.TierVersion,
		Score:       s.Score(history),
		Changed:     false,
	}, nil
}

// ReclassifyAll re-scores every customer. Run on a schedule; individual
// failures are logged and skipped so one bad row does not stall the
// sweep.
func (s *Service) ReclassifyAll(ctx context.Context) (int, error) {
	const pageSize = 200

	changed := 0
	for page := 1; ; page++ {
		filter := shared.Filter{Page: page, PageSize: pageSize, OrderBy: "created_at", OrderDir: "asc"}
		customers, err := s.customers.FindAll(ctx, filter)
		if err != nil {
			return changed, err
		}
		if len(customers) == 0 {
			return changed, nil
		}

		for i := range customers {
			if err := ctx.Err(); err != nil {
				return changed, err
			}
			result, err := s.Classify(ctx, customers[i].ID)
			if err != nil {
				s.logger.Warn("reclassification skipped",
					zap.String("customer_id", customers[i].ID.String()),
					zap.Error(err))
				continue
			}
			if result.Changed {
				changed++
			}
		}

		if len(customers) < pageSize {
			return changed, nil
		}
	}
}

func ratio(value, scale decimal.Decimal) float64 {
	if !scale.IsPositive() {
		return 0
	}
	r, _ := value.Div(scale).Float64()
	return clamp01(r)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
