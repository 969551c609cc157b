package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	allocationapp "github.com/supplyai/backend/internal/application/allocation"
)

// AllocationHandler handles allocation request API endpoints
type AllocationHandler struct {
	BaseHandler
	allocationService *allocationapp.Service
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(allocationService *allocationapp.Service) *AllocationHandler {
	return &AllocationHandler{
		allocationService: allocationService,
	}
}

// AllocateRequest represents one demand submitted for allocation
type AllocateRequest struct {
	CustomerID string     `json:"customer_id" binding:"required,uuid"`
	ProductID  string     `json:"product_id" binding:"required,uuid"`
	LocationID string     `json:"location_id" binding:"required,uuid"`
	Quantity   float64    `json:"quantity" binding:"required,gt=0"`
	Deadline   *time.Time `json:"deadline"`
}

// BatchAllocateRequest represents a batch of demands submitted together.
// Requests for the same product and location compete for stock within
// the batch instead of being served first come first served.
type BatchAllocateRequest struct {
	Requests []AllocateRequest `json:"requests" binding:"required,min=1,dive"`
}

func (r *AllocateRequest) toInput() allocationapp.ProcessInput {
	return allocationapp.ProcessInput{
		CustomerID: uuid.MustParse(r.CustomerID),
		ProductID:  uuid.MustParse(r.ProductID),
		LocationID: uuid.MustParse(r.LocationID),
		Quantity:   decimal.NewFromFloat(r.Quantity),
		Deadline:   r.Deadline,
	}
}

// Allocate runs one demand through the allocation pipeline
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.allocationService.Process(c.Request.Context(), req.toInput())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// AllocateBatch runs a batch of demands through the pipeline
func (h *AllocationHandler) AllocateBatch(c *gin.Context) {
	var req BatchAllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	inputs := make([]allocationapp.ProcessInput, len(req.Requests))
	for i := range req.Requests {
		inputs[i] = req.Requests[i].toInput()
	}

	result, err := h.allocationService.ProcessBatch(c.Request.Context(), inputs)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// Get returns the effective decision for a processed request
func (h *AllocationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid request ID")
		return
	}

	result, err := h.allocationService.GetResult(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// RegisterRoutes registers allocation routes
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	allocations := rg.Group("/allocations")
	{
		allocations.POST("", h.Allocate)
		allocations.POST("/batch", h.AllocateBatch)
		allocations.GET(":id", h.Get)
	}
}
