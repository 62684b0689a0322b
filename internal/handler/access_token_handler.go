package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/pkg/response"
)

type accessTokenService interface {
	Request(ctx context.Context, req dto.AccessTokenRequest, holderID string) (*models.StockAccessToken, error)
	Release(ctx context.Context, token, holderID string) error
	Cancel(ctx context.Context, token, holderID string) error
}

// AccessTokenHandler issues and ends stock access tokens. The scope is fixed per
// route group, so one handler instance serves inventory and another purchase orders.
type AccessTokenHandler struct {
	service accessTokenService
	scope   models.AccessTokenScope
}

// NewAccessTokenHandler builds a handler bound to scope.
func NewAccessTokenHandler(service accessTokenService, scope models.AccessTokenScope) *AccessTokenHandler {
	return &AccessTokenHandler{service: service, scope: scope}
}

// Request godoc
// @Summary Request a stock access token
// @Description Returns 423 when another operation holds the entity.
// @Tags AccessTokens
// @Accept json
// @Produce json
// @Param payload body dto.AccessTokenRequest true "Token request"
// @Success 201 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /stock/access-token [post]
// @Router /stock/purchase-orders/access-token [post]
func (h *AccessTokenHandler) Request(c *gin.Context) {
	var req dto.AccessTokenRequest
	if !bindJSON(c, &req, "access token") {
		return
	}
	req.Scope = h.scope
	token, err := h.service.Request(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, token)
}

// Release godoc
// @Summary Release a stock access token
// @Tags AccessTokens
// @Param token path string true "Token"
// @Success 204
// @Router /stock/access-token/{token}/release [post]
func (h *AccessTokenHandler) Release(c *gin.Context) {
	if err := h.service.Release(c.Request.Context(), c.Param("token"), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Cancel godoc
// @Summary Cancel a stock access token
// @Tags AccessTokens
// @Param token path string true "Token"
// @Success 204
// @Router /stock/access-token/{token}/cancel [post]
func (h *AccessTokenHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("token"), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
