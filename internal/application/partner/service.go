package partner

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/partner"
	"github.com/supplyai/backend/internal/domain/shared"
)

// CreateCustomerRequest carries the inputs for a new customer
type CreateCustomerRequest struct {
	Code        string
	Name        string
	CreditLimit decimal.Decimal
}

// Service manages the engine's view of customers. New customers start
// in the default classification; the classifier moves them later.
type Service struct {
	customers partner.CustomerRepository
	logger    *zap.Logger
}

// NewService creates a customer service
func NewService(customers partner.CustomerRepository, logger *zap.Logger) *Service {
	return &Service{customers: customers, logger: logger}
}

// Create registers a new customer
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*partner.Customer, error) {
	customer, err := partner.NewCustomer(req.Code, req.Name, req.CreditLimit)
	if err != nil {
		return nil, err
	}
	if err := s.customers.Save(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info("customer created",
		zap.String("customer_id", customer.ID.String()),
		zap.String("code", customer.Code))
	return customer, nil
}

// Get returns a customer by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	return s.customers.FindByID(ctx, id)
}

// GetByCode returns a customer by external code
func (s *Service) GetByCode(ctx context.Context, code string) (*partner.Customer, error) {
	return s.customers.FindByCode(ctx, code)
}

// List returns customers matching the filter
func (s *Service) List(ctx context.Context, filter shared.Filter) ([]partner.Customer, error) {
	return s.customers.FindAll(ctx, filter)
}

// Count returns the number of customers matching the filter
func (s *Service) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	return s.customers.Count(ctx, filter)
}
