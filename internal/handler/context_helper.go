package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-status-api/internal/middleware"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
	"github.com/noah-isme/erp-status-api/pkg/response"
)

// currentUserID returns the authenticated caller's id, or an empty string.
func currentUserID(c *gin.Context) string {
	claims, ok := middleware.Claims(c)
	if !ok {
		return ""
	}
	return claims.UserID
}

// bindJSON decodes the body into dest and renders a validation error on failure.
func bindJSON(c *gin.Context, dest interface{}, what string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+what+" payload"))
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for bodies that may be empty.
func bindOptionalJSON(c *gin.Context, dest interface{}, what string) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dest, what)
}

func queryBool(c *gin.Context, key string, fallback bool) bool {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
