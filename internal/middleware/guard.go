package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/innovation-cell/research-portal-api/internal/models"
	"github.com/innovation-cell/research-portal-api/internal/policy"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
	"github.com/innovation-cell/research-portal-api/pkg/response"
)

// Guard applies the route policy table to every request. It runs after
// OptionalJWT so authenticated callers carry their claims; per-resource
// checks inside the services still apply on top.
func Guard(table *policy.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		var role *models.UserRole
		if claims := CurrentUser(c); claims != nil {
			role = &claims.Role
		}

		switch table.Authorize(c.Request.URL.Path, role) {
		case policy.Allow:
			c.Next()
		case policy.Unauthenticated:
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
		default:
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
		}
	}
}
