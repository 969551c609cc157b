package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	reservationapp "github.com/supplyai/backend/internal/application/reservation"
	"github.com/supplyai/backend/internal/domain/shared"
	"github.com/supplyai/backend/internal/interfaces/http/dto"
)

// ReservationHandler handles reservation API endpoints
type ReservationHandler struct {
	BaseHandler
	reservationService *reservationapp.Service
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservationService *reservationapp.Service) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
	}
}

// CreateReservationRequest represents a request to place a soft hold
type CreateReservationRequest struct {
	CustomerID  string    `json:"customer_id" binding:"required,uuid"`
	ProductID   string    `json:"product_id" binding:"required,uuid"`
	LocationID  string    `json:"location_id" binding:"required,uuid"`
	Forecast    float64   `json:"forecast" binding:"required,gt=0"`
	Probability float64   `json:"probability" binding:"required,gt=0,lte=1"`
	ExpiresAt   time.Time `json:"expires_at" binding:"required"`
}

// Create places a new soft hold
func (h *ReservationHandler) Create(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	res, err := h.reservationService.Create(c.Request.Context(), reservationapp.CreateReservationRequest{
		CustomerID:  uuid.MustParse(req.CustomerID),
		ProductID:   uuid.MustParse(req.ProductID),
		LocationID:  uuid.MustParse(req.LocationID),
		Forecast:    decimal.NewFromFloat(req.Forecast),
		Probability: decimal.NewFromFloat(req.Probability),
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, res)
}

// Get returns a reservation by ID
func (h *ReservationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID")
		return
	}

	res, err := h.reservationService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, res)
}

// List returns reservations matching the query
func (h *ReservationHandler) List(c *gin.Context) {
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
	if status := c.Query("status"); status != "" {
		filter.Filters = map[string]interface{}{"status": status}
	}

	reservations, err := h.reservationService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, reservations)
}

// Cancel releases an active hold before its expiry
func (h *ReservationHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID")
		return
	}

	if err := h.reservationService.Cancel(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers reservation routes
func (h *ReservationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reservations := rg.Group("/reservations")
	{
		reservations.GET("", h.List)
		reservations.POST("", h.Create)
		reservations.GET(":id", h.Get)
		reservations.DELETE(":id", h.Cancel)
	}
}
