package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supplyai/backend/internal/application/classification"
	partnerapp "github.com/supplyai/backend/internal/application/partner"
	"github.com/supplyai/backend/internal/domain/shared"
	"github.com/supplyai/backend/internal/interfaces/http/dto"
)

// CustomerHandler handles customer and classification API endpoints
type CustomerHandler struct {
	BaseHandler
	customerService       *partnerapp.Service
	classificationService *classification.Service
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customerService *partnerapp.Service, classificationService *classification.Service) *CustomerHandler {
	return &CustomerHandler{
		customerService:       customerService,
		classificationService: classificationService,
	}
}

// CreateCustomerRequest represents a request to create a new customer
type CreateCustomerRequest struct {
	Code        string  `json:"code" binding:"required,min=1,max=64"`
	Name        string  `json:"name" binding:"required,min=1,max=255"`
	CreditLimit float64 `json:"credit_limit" binding:"min=0"`
}

// Create registers a new customer with the default classification
func (h *CustomerHandler) Create(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	customer, err := h.customerService.Create(c.Request.Context(), partnerapp.CreateCustomerRequest{
		Code:        req.Code,
		Name:        req.Name,
		CreditLimit: decimal.NewFromFloat(req.CreditLimit),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, customer)
}

// Get returns a customer by ID
func (h *CustomerHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return
	}

	customer, err := h.customerService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, customer)
}

// List returns customers matching the query
func (h *CustomerHandler) List(c *gin.Context) {
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
	if segment := c.Query("segment"); segment != "" {
		filter.Filters = map[string]interface{}{"segment": segment}
	}

	customers, err := h.customerService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	total, err := h.customerService.Count(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, customers, total, filter.Page, filter.PageSize)
}

// GetClassification returns a customer's current segment, tier and score
func (h *CustomerHandler) GetClassification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return
	}

	result, err := h.classificationService.GetClassification(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Reclassify rescores one customer on demand
func (h *CustomerHandler) Reclassify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return
	}

	result, err := h.classificationService.Classify(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// RegisterRoutes registers customer routes
func (h *CustomerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	customers := rg.Group("/customers")
	{
		customers.GET("", h.List)
		customers.POST("", h.Create)
		customers.GET(":id", h.Get)
		customers.GET(":id/classification", h.GetClassification)
		customers.POST(":id/reclassify", h.Reclassify)
	}
}
