// Package access holds the role model shared by the tenant middleware, the
// membership service and the handlers: global and community roles, how they
// combine into an effective role, and who may manage whose membership.
// Everything here is pure; the HTTP mapping lives in the middleware package.
package access

import "errors"

// GlobalRole is a platform-wide role stored on the user account.
type GlobalRole string

const (
	GlobalUser       GlobalRole = "user"
	GlobalModerator  GlobalRole = "moderator"
	GlobalAdmin      GlobalRole = "admin"
	GlobalSuperadmin GlobalRole = "superadmin"
)

// TenantRole is a community-scoped role stored on the membership row.
type TenantRole string

const (
	RoleMember     TenantRole = "member"
	RoleModerator  TenantRole = "moderator"
	RoleEditor     TenantRole = "editor"
	RoleAdmin      TenantRole = "admin"
	RoleOwner      TenantRole = "owner"
	RoleSuperadmin TenantRole = "superadmin"
)

// TenantRoles lists every assignable community role.
var TenantRoles = []TenantRole{RoleMember, RoleModerator, RoleEditor, RoleAdmin, RoleOwner, RoleSuperadmin}

// adminManageable are the roles a community admin may grant or take away.
var adminManageable = map[TenantRole]bool{
	RoleMember:    true,
	RoleModerator: true,
	RoleEditor:    true,
}

// Guard failures, mapped to 401 and 403 at the HTTP edge.
var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrNotMember        = errors.New("not a member of this community")
	ErrInsufficientRole = errors.New("insufficient role")
)

// ParseGlobalRole validates s as a global role.
func ParseGlobalRole(s string) (GlobalRole, bool) {
	switch r := GlobalRole(s); r {
	case GlobalUser, GlobalModerator, GlobalAdmin, GlobalSuperadmin:
		return r, true
	}
	return "", false
}

// ParseTenantRole validates s as a community role.
func ParseTenantRole(s string) (TenantRole, bool) {
	r := TenantRole(s)
	for _, known := range TenantRoles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// IsPrivileged reports whether a community role counts toward the
// "at least one privileged member" invariant.
func IsPrivileged(r TenantRole) bool {
	return r == RoleOwner || r == RoleSuperadmin
}

// EffectiveRole is what a caller may do inside the current community.
// The zero value is an anonymous caller.
type EffectiveRole struct {
	UserID   string
	Global   GlobalRole
	Tenant   TenantRole
	IsMember bool
}

// ResolveEffectiveRole combines the account role with the membership role, if any.
// An empty userID yields the anonymous role regardless of the other arguments.
func ResolveEffectiveRole(userID string, global GlobalRole, membership *TenantRole) EffectiveRole {
	if userID == "" {
		return EffectiveRole{}
	}
	e := EffectiveRole{UserID: userID, Global: global}
	if membership != nil {
		e.Tenant = *membership
		e.IsMember = true
	}
	return e
}

// Authenticated reports whether the caller has a session.
func (e EffectiveRole) Authenticated() bool {
	return e.UserID != ""
}

// IsGlobalSuperadmin reports the platform-wide override.
func (e EffectiveRole) IsGlobalSuperadmin() bool {
	return e.Authenticated() && e.Global == GlobalSuperadmin
}

// HasAny reports whether either the community role or the global role is one of roles.
// Role names are shared between the two vocabularies ("admin", "moderator", "superadmin").
func (e EffectiveRole) HasAny(roles ...string) bool {
	for _, r := range roles {
		if e.IsMember && string(e.Tenant) == r {
			return true
		}
		if string(e.Global) == r {
			return true
		}
	}
	return false
}

// CheckAuthenticated is the participation guard: a session and a membership row are required.
func CheckAuthenticated(e EffectiveRole) error {
	if !e.Authenticated() {
		return ErrUnauthenticated
	}
	if !e.IsMember {
		return ErrNotMember
	}
	return nil
}

// CheckRole is the role guard. Global superadmins pass without a membership;
// everyone else needs a membership and a matching community or global role.
func CheckRole(e EffectiveRole, roles ...string) error {
	if !e.Authenticated() {
		return ErrUnauthenticated
	}
	if e.IsGlobalSuperadmin() {
		return nil
	}
	if !e.IsMember {
		return ErrNotMember
	}
	if !e.HasAny(roles...) {
		return ErrInsufficientRole
	}
	return nil
}

// CanManageMembership decides whether actor may move a member from targetRole to
// desiredRole. For removals pass the current role as both arguments.
func CanManageMembership(actor EffectiveRole, targetRole, desiredRole TenantRole) bool {
	if actor.IsGlobalSuperadmin() {
		return true
	}
	if !actor.IsMember {
		return false
	}
	switch actor.Tenant {
	case RoleOwner, RoleSuperadmin:
		return true
	case RoleAdmin:
		return adminManageable[targetRole] && adminManageable[desiredRole]
	}
	return false
}
