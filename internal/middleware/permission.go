package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/permissions"
	"github.com/tacticalpanel/panel/pkg/errors"
	"github.com/tacticalpanel/panel/pkg/response"
)

// ErrAdminRequired rejects non-admins from admin-only routes. Sub-admins are not admins here.
var ErrAdminRequired = errors.New("ADMIN_REQUIRED", "Admin access required", 403)

// RequireAdmin allows only full admins through. It must run after Auth.
func RequireAdmin(resolver *permissions.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(CtxUserIDKey)
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		admin, err := resolver.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !admin {
			response.Error(c, ErrAdminRequired)
			c.Abort()
			return
		}
		c.Next()
	}
}
