package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/middleware"
	"github.com/noah-isme/erp-status-api/internal/models"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
	"github.com/noah-isme/erp-status-api/pkg/response"
)

type statusReasonService interface {
	List(ctx context.Context, category models.ReasonCategory, activeOnly bool) ([]models.StatusChangeReason, bool, error)
	Get(ctx context.Context, id string) (*models.StatusChangeReason, error)
	Create(ctx context.Context, req dto.CreateStatusReasonRequest) (*models.StatusChangeReason, error)
	Update(ctx context.Context, id string, req dto.UpdateStatusReasonRequest) (*models.StatusChangeReason, error)
	Delete(ctx context.Context, id string) error
}

// StatusReasonHandler exposes the reason catalog.
type StatusReasonHandler struct {
	service statusReasonService
}

// NewStatusReasonHandler builds a new handler.
func NewStatusReasonHandler(service statusReasonService) *StatusReasonHandler {
	return &StatusReasonHandler{service: service}
}

// List godoc
// @Summary List status change reasons
// @Tags StatusReasons
// @Produce json
// @Param category query string false "employee|stock|invoice|asset|general"
// @Param activeOnly query bool false "Only active reasons (default true)"
// @Success 200 {object} response.Envelope
// @Router /status-change-reasons [get]
func (h *StatusReasonHandler) List(c *gin.Context) {
	category := models.ReasonCategory(strings.ToLower(strings.TrimSpace(c.Query("category"))))
	if category != "" && !category.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown reason category"))
		return
	}
	reasons, hit, err := h.service.List(c.Request.Context(), category, queryBool(c, "activeOnly", true))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, reasons, nil, middleware.ResponseMeta(c))
}

// Get godoc
// @Summary Get a status change reason
// @Tags StatusReasons
// @Produce json
// @Param id path string true "Reason ID"
// @Success 200 {object} response.Envelope
// @Router /status-change-reasons/{id} [get]
func (h *StatusReasonHandler) Get(c *gin.Context) {
	reason, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reason, nil)
}

// Create godoc
// @Summary Create a status change reason
// @Tags StatusReasons
// @Accept json
// @Produce json
// @Param payload body dto.CreateStatusReasonRequest true "Reason payload"
// @Success 201 {object} response.Envelope
// @Router /status-change-reasons [post]
func (h *StatusReasonHandler) Create(c *gin.Context) {
	var req dto.CreateStatusReasonRequest
	if !bindJSON(c, &req, "reason") {
		return
	}
	reason, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reason)
}

// Update godoc
// @Summary Update a status change reason
// @Tags StatusReasons
// @Accept json
// @Produce json
// @Param id path string true "Reason ID"
// @Param payload body dto.UpdateStatusReasonRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /status-change-reasons/{id} [patch]
func (h *StatusReasonHandler) Update(c *gin.Context) {
	var req dto.UpdateStatusReasonRequest
	if !bindJSON(c, &req, "reason") {
		return
	}
	reason, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reason, nil)
}

// Delete godoc
// @Summary Deactivate a status change reason
// @Tags StatusReasons
// @Param id path string true "Reason ID"
// @Success 204
// @Router /status-change-reasons/{id} [delete]
func (h *StatusReasonHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
