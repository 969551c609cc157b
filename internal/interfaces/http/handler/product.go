package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	catalogapp "github.com/supplyai/backend/internal/application/catalog"
	"github.com/supplyai/backend/internal/domain/shared"
	"github.com/supplyai/backend/internal/interfaces/http/dto"
)

// ProductHandler handles product reference data API endpoints
type ProductHandler struct {
	BaseHandler
	catalogService *catalogapp.Service
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalogService *catalogapp.Service) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
	}
}

// CreateProductRequest represents a request to register a product
type CreateProductRequest struct {
	SKU          string  `json:"sku" binding:"required,min=1,max=64"`
	Name         string  `json:"name" binding:"required,min=1,max=255"`
	UnitCost     float64 `json:"unit_cost" binding:"min=0"`
	LeadTimeDays int     `json:"lead_time_days" binding:"min=0"`
}

// Create registers a new product
func (h *ProductHandler) Create(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	product, err := h.catalogService.Create(c.Request.Context(), catalogapp.CreateProductRequest{
		SKU:          req.SKU,
		Name:         req.Name,
		UnitCost:     decimal.NewFromFloat(req.UnitCost),
		LeadTimeDays: req.LeadTimeDays,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, product)
}

// Get returns a product by ID
func (h *ProductHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID")
		return
	}

	product, err := h.catalogService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, product)
}

// GetBySKU returns a product by SKU
func (h *ProductHandler) GetBySKU(c *gin.Context) {
	product, err := h.catalogService.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, product)
}

// List returns products matching the query
func (h *ProductHandler) List(c *gin.Context) {
	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	}

	products, err := h.catalogService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	total, err := h.catalogService.Count(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, products, total, filter.Page, filter.PageSize)
}

// RegisterRoutes registers product routes
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products")
	{
		products.GET("", h.List)
		products.POST("", h.Create)
		products.GET(":id", h.Get)
		products.GET("sku/:sku", h.GetBySKU)
	}
}
