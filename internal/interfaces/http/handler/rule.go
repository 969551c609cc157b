package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/supplyai/backend/internal/application/ruleset"
	"github.com/supplyai/backend/internal/domain/rules"
	"github.com/supplyai/backend/internal/domain/shared"
	"github.com/supplyai/backend/internal/interfaces/http/dto"
)

// RuleHandler handles business rule API endpoints
type RuleHandler struct {
	BaseHandler
	ruleService *ruleset.Service
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(ruleService *ruleset.Service) *RuleHandler {
	return &RuleHandler{
		ruleService: ruleService,
	}
}

// SaveRuleRequest represents a request to create a rule or append a new
// version of an existing one
type SaveRuleRequest struct {
	Name          string          `json:"name" binding:"required,min=1,max=255"`
	Priority      int             `json:"priority" binding:"min=0"`
	Condition     rules.Condition `json:"condition" binding:"required"`
	Action        string          `json:"action" binding:"required,rule_action"`
	PartialRatio  *float64        `json:"partial_ratio"`
	EffectiveFrom *time.Time      `json:"effective_from"`
}

func (r *SaveRuleRequest) toAppRequest() ruleset.SaveRuleRequest {
	partialRatio := decimal.Zero
	if r.PartialRatio != nil {
		partialRatio = decimal.NewFromFloat(*r.PartialRatio)
	}
	return ruleset.SaveRuleRequest{
		Name:          r.Name,
		Priority:      r.Priority,
		Condition:     r.Condition,
		Action:        rules.Action(r.Action),
		PartialRatio:  partialRatio,
		EffectiveFrom: r.EffectiveFrom,
	}
}

// Create creates version 1 of a new rule
func (h *RuleHandler) Create(c *gin.Context) {
	var req SaveRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	rule, err := h.ruleService.Create(c.Request.Context(), req.toAppRequest())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, rule)
}

// Update appends a new version of an existing rule
func (h *RuleHandler) Update(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID")
		return
	}

	var req SaveRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	rule, err := h.ruleService.Update(c.Request.Context(), ruleID, req.toAppRequest())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, rule)
}

// Deactivate appends an inactive version of a rule
func (h *RuleHandler) Deactivate(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID")
		return
	}

	rule, err := h.ruleService.Deactivate(c.Request.Context(), ruleID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, rule)
}

// Get returns the latest version of a rule
func (h *RuleHandler) Get(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID")
		return
	}

	rule, err := h.ruleService.Get(c.Request.Context(), ruleID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, rule)
}

// Versions returns the full version history of a rule
func (h *RuleHandler) Versions(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID")
		return
	}

	versions, err := h.ruleService.Versions(c.Request.Context(), ruleID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, versions)
}

// List returns current rule versions
func (h *RuleHandler) List(c *gin.Context) {
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
	ruleList, err := h.ruleService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, ruleList)
}

// EffectiveAsOf returns the rule set in force at a point in time.
// Defaults to now when no "at" query parameter is given.
func (h *RuleHandler) EffectiveAsOf(c *gin.Context) {
	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "Invalid at parameter, expected RFC3339 timestamp")
			return
		}
		at = parsed
	}

	ruleList, err := h.ruleService.EffectiveAsOf(c.Request.Context(), at)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, ruleList)
}

// RegisterRoutes registers rule routes
func (h *RuleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	ruleRoutes := rg.Group("/rules")
	{
		ruleRoutes.GET("", h.List)
		ruleRoutes.GET("/effective", h.EffectiveAsOf)
		ruleRoutes.POST("", h.Create)
		ruleRoutes.GET(":id", h.Get)
		ruleRoutes.PUT(":id", h.Update)
		ruleRoutes.GET(":id/versions", h.Versions)
		ruleRoutes.POST(":id/deactivate", h.Deactivate)
	}
}
