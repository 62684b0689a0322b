package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-status-api/internal/models"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
	"github.com/noah-isme/erp-status-api/pkg/response"
)

// RequireRoles lets the request through only when the caller holds one of roles.
// SUPERADMIN passes every check.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles)+1)
	allowed[models.RoleSuperAdmin] = struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, permitted := allowed[claims.Role]; !permitted {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
