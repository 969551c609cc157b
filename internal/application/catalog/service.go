package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/supplyai/backend/internal/domain/catalog"
	"github.com/supplyai/backend/internal/domain/shared"
)

// CreateProductRequest carries the inputs for a new product
type CreateProductRequest struct {
	SKU          string
	Name         string
	UnitCost     decimal.Decimal
	LeadTimeDays int
}

// Service keeps the engine's product reference data in sync with the
// upstream catalog
type Service struct {
	products catalog.ProductRepository
	logger   *zap.Logger
}

// NewService creates a catalog service
func NewService(products catalog.ProductRepository, logger *zap.Logger) *Service {
	return &Service{products: products, logger: logger}
}

// Create registers a new product
func (s *Service) Create(ctx context.Context, req CreateProductRequest) (*catalog.Product, error) {
	product, err := catalog.NewProduct(req.SKU, req.Name, req.UnitCost, req.LeadTimeDays)
	if err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("product registered",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU))
	return product, nil
}

// Get returns a product by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return s.products.FindByID(ctx, id)
}

// GetBySKU returns a product by SKU
func (s *Service) GetBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	return s.products.FindBySKU(ctx, sku)
}

// List returns products matching the filter
func (s *Service) List(ctx context.Context, filter shared.Filter) ([]catalog.Product, error) {
	return s.products.FindAll(ctx, filter)
}

// Count returns the number of products matching the filter
func (s *Service) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	return s.products.Count(ctx, filter)
}
