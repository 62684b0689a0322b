package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/pkg/response"
)

type assetService interface {
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	DeleteAsset(ctx context.Context, id string, req dto.DeleteEntityRequest, userID string) (*models.StatusChangeRecord, error)
}

// AssetHandler exposes the asset register.
type AssetHandler struct {
	service assetService
}

// NewAssetHandler builds a new handler.
func NewAssetHandler(service assetService) *AssetHandler {
	return &AssetHandler{service: service}
}

// Get godoc
// @Summary Get an asset
// @Tags Assets
// @Produce json
// @Param id path string true "Asset ID"
// @Success 200 {object} response.Envelope
// @Router /assets/{id} [get]
func (h *AssetHandler) Get(c *gin.Context) {
	asset, err := h.service.GetAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, asset, nil)
}

// Delete godoc
// @Summary Retire an asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param payload body dto.DeleteEntityRequest true "Terminal status and reason"
// @Success 200 {object} response.Envelope
// @Router /assets/{id} [delete]
func (h *AssetHandler) Delete(c *gin.Context) {
	var req dto.DeleteEntityRequest
	if !bindOptionalJSON(c, &req, "delete") {
		return
	}
	record, err := h.service.DeleteAsset(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
