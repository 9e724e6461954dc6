package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/access"
	"github.com/communityhub/platform/internal/api/apierror"
)

// RequireAuthenticated admits callers with a session and a membership in the
// resolved community: 401 without a session, 403 without a membership.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := access.CheckAuthenticated(CurrentRole(c)); err != nil {
			apierror.Abort(c, err)
			return
		}
		c.Next()
	}
}

// RequireRole admits global superadmins and callers whose community or global
// role is one of roles.
//
//	admin := api.Group("/admin", middleware.RequireRole("admin", "owner", "superadmin"))
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := access.CheckRole(CurrentRole(c), roles...); err != nil {
			apierror.Abort(c, err)
			return
		}
		c.Next()
	}
}
