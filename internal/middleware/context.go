// Package middleware holds the gin middleware chain of the community API: tenant
// resolution, sessions, membership, guards, rate limiting and the HTTP plumbing
// (request ids, logging, CORS, security headers, metrics).
//
// Per-request state is stored on the gin.Context and read back through the
// accessors in this file; handlers never reach into the context keys directly.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/access"
	"github.com/communityhub/platform/internal/db/models"
)

// Context keys.
const (
	TenantKey     = "tenant"
	UserKey       = "user"
	UserIDKey     = "user_id"
	SessionKey    = "session"
	MembershipKey = "membership"
	RoleKey       = "effective_role"
)

// CurrentTenant returns the community resolved by ResolveTenant.
func CurrentTenant(c *gin.Context) *models.Tenant {
	if v, ok := c.Get(TenantKey); ok {
		if t, ok := v.(*models.Tenant); ok {
			return t
		}
	}
	return nil
}

// CurrentUser returns the signed-in user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(UserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// CurrentSession returns the session row backing the request, or nil.
func CurrentSession(c *gin.Context) *models.Session {
	if v, ok := c.Get(SessionKey); ok {
		if s, ok := v.(*models.Session); ok {
			return s
		}
	}
	return nil
}

// CurrentMembership returns the caller's membership in the resolved community, or nil.
func CurrentMembership(c *gin.Context) *models.TenantMember {
	if v, ok := c.Get(MembershipKey); ok {
		if m, ok := v.(*models.TenantMember); ok {
			return m
		}
	}
	return nil
}

// CurrentRole returns the caller's effective role. Before AttachMembership has
// run it is computed from the user alone.
func CurrentRole(c *gin.Context) access.EffectiveRole {
	if v, ok := c.Get(RoleKey); ok {
		if e, ok := v.(access.EffectiveRole); ok {
			return e
		}
	}
	return effectiveRole(CurrentUser(c), CurrentMembership(c))
}

// CurrentUserID returns the signed-in user's id or "".
func CurrentUserID(c *gin.Context) string {
	if u := CurrentUser(c); u != nil {
		return u.ID
	}
	return ""
}

// SetUser attaches an authenticated user and session to the request. The
// account handlers call it right after login so the rest of the request sees
// the new identity.
func SetUser(c *gin.Context, u *models.User, s *models.Session) {
	c.Set(UserKey, u)
	c.Set(UserIDKey, u.ID)
	if s != nil {
		c.Set(SessionKey, s)
	}
}

// SetMembership records the caller's membership (nil for none) and recomputes
// the effective role.
func SetMembership(c *gin.Context, m *models.TenantMember) {
	if m != nil {
		c.Set(MembershipKey, m)
	}
	c.Set(RoleKey, effectiveRole(CurrentUser(c), m))
}

func effectiveRole(u *models.User, m *models.TenantMember) access.EffectiveRole {
	if u == nil {
		return access.EffectiveRole{}
	}
	global, _ := access.ParseGlobalRole(u.Role)
	var tenantRole *access.TenantRole
	if m != nil {
		r := access.TenantRole(m.Role)
		tenantRole = &r
	}
	return access.ResolveEffectiveRole(u.ID, global, tenantRole)
}
