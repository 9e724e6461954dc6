package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/db/repositories"
)

// TenantSlugParam is the path parameter carrying the community slug.
const TenantSlugParam = "tenantSlug"

// ReservedSlugs can never name a community because they are root routes.
var ReservedSlugs = map[string]bool{
	"api":    true,
	"health": true,
	"ready":  true,
	"media":  true,
}

// ResolveTenant looks up the community addressed by the request. Routes without
// a :tenantSlug parameter (the bare /api alias) use defaultSlug. Unknown or
// reserved slugs answer 404 and suspended communities 403 before any handler runs.
func ResolveTenant(tenants *repositories.TenantRepository, defaultSlug string) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := strings.ToLower(c.Param(TenantSlugParam))
		if slug == "" {
			slug = defaultSlug
		} else if ReservedSlugs[slug] {
			apierror.Abort(c, apierror.NotFound("Community not found"))
			return
		}

		tenant, err := tenants.GetBySlug(c.Request.Context(), slug)
		if err != nil {
			apierror.Abort(c, err)
			return
		}
		if tenant == nil {
			apierror.Abort(c, apierror.NotFound("Community not found"))
			return
		}
		if tenant.IsSuspended() {
			apierror.Abort(c, apierror.Forbidden("This community is suspended"))
			return
		}

		c.Set(TenantKey, tenant)
		c.Next()
	}
}

// AttachMembership loads the caller's membership in the resolved community and
// overlays its role onto the effective role. Anonymous callers pass through
// with no membership. It must run after ResolveTenant and SessionMiddleware.
func AttachMembership(tenants *repositories.TenantRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := CurrentTenant(c)
		user := CurrentUser(c)
		if tenant == nil || user == nil {
			SetMembership(c, nil)
			c.Next()
			return
		}

		member, err := tenants.GetMember(c.Request.Context(), tenant.ID, user.ID)
		if err != nil {
			apierror.Abort(c, err)
			return
		}
		SetMembership(c, member)
		c.Next()
	}
}
