package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/pkg/response"
)

type stockService interface {
	Get(ctx context.Context, id string) (*models.StockItem, error)
	ApplyMovement(ctx context.Context, itemID string, req dto.StockMovementRequest, userID string) (*models.StockItem, error)
	DeleteItem(ctx context.Context, itemID string, req dto.DeleteEntityRequest, userID string) (*models.StatusChangeRecord, error)
}

// StockHandler exposes inventory items.
type StockHandler struct {
	service stockService
}

// NewStockHandler builds a new handler.
func NewStockHandler(service stockService) *StockHandler {
	return &StockHandler{service: service}
}

// Get godoc
// @Summary Get an inventory item
// @Tags Stock
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /stock/inventory/{id} [get]
func (h *StockHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// ApplyMovement godoc
// @Summary Apply a stock movement under an access token
// @Tags Stock
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body dto.StockMovementRequest true "Movement"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /stock/inventory/{id}/movements [post]
func (h *StockHandler) ApplyMovement(c *gin.Context) {
	var req dto.StockMovementRequest
	if !bindJSON(c, &req, "stock movement") {
		return
	}
	item, err := h.service.ApplyMovement(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Retire an inventory item
// @Tags Stock
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body dto.DeleteEntityRequest true "Terminal status and reason"
// @Success 200 {object} response.Envelope
// @Router /stock/inventory/{id} [delete]
func (h *StockHandler) Delete(c *gin.Context) {
	var req dto.DeleteEntityRequest
	if !bindOptionalJSON(c, &req, "delete") {
		return
	}
	record, err := h.service.DeleteItem(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
