package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	stockapp "github.com/supplyai/backend/internal/application/stock"
	"github.com/supplyai/backend/internal/domain/shared"
	"github.com/supplyai/backend/internal/interfaces/http/dto"
)

// InventoryHandler handles inventory ledger API endpoints
type InventoryHandler struct {
	BaseHandler
	stockService *stockapp.Service
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(stockService *stockapp.Service) *InventoryHandler {
	return &InventoryHandler{
		stockService: stockService,
	}
}

// CreateRecordRequest represents a request to open a ledger row
type CreateRecordRequest struct {
	ProductID    string  `json:"product_id" binding:"required,uuid"`
	LocationID   string  `json:"location_id" binding:"required,uuid"`
	OnHand       float64 `json:"on_hand" binding:"min=0"`
	ReorderPoint float64 `json:"reorder_point" binding:"min=0"`
}

// MovementRequest represents a receipt or shipment against a ledger row
type MovementRequest struct {
	ProductID  string  `json:"product_id" binding:"required,uuid"`
	LocationID string  `json:"location_id" binding:"required,uuid"`
	Quantity   float64 `json:"quantity" binding:"required,gt=0"`
}

// CreateRecord opens a ledger row for a product at a location
func (h *InventoryHandler) CreateRecord(c *gin.Context) {
	var req CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.stockService.CreateRecord(c.Request.Context(),
		uuid.MustParse(req.ProductID), uuid.MustParse(req.LocationID),
		decimal.NewFromFloat(req.OnHand), decimal.NewFromFloat(req.ReorderPoint))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, record)
}

// Get returns the ledger row for a product at a location
func (h *InventoryHandler) Get(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	locationID, err := uuid.Parse(c.Param("locationId"))
	if err != nil {
		h.BadRequest(c, "Invalid location ID")
		return
	}

	record, err := h.stockService.Get(c.Request.Context(), productID, locationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// List returns ledger rows matching the query
func (h *InventoryHandler) List(c *gin.Context) {
	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	records, err := h.stockService.List(c.Request.Context(), shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, records)
}

// Receive adds received stock to a ledger row
func (h *InventoryHandler) Receive(c *gin.Context) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.stockService.Receive(c.Request.Context(),
		uuid.MustParse(req.ProductID), uuid.MustParse(req.LocationID),
		decimal.NewFromFloat(req.Quantity))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// Ship removes allocated stock that has left the location
func (h *InventoryHandler) Ship(c *gin.Context) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.stockService.Ship(c.Request.Context(),
		uuid.MustParse(req.ProductID), uuid.MustParse(req.LocationID),
		decimal.NewFromFloat(req.Quantity))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, record)
}

// RegisterRoutes registers inventory routes
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	inv := rg.Group("/inventory")
	{
		inv.GET("", h.List)
		inv.POST("", h.CreateRecord)
		inv.GET(":productId/:locationId", h.Get)
		inv.POST("/receipts", h.Receive)
		inv.POST("/shipments", h.Ship)
	}
}
