package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/api/pagination"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
)

type changeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ListMembersHandler lists the community's members with their user fields
// GET /admin/members
func (h *Handlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := h.tenants.ListMembers(c.Request.Context(), middleware.CurrentTenant(c).ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"members": members})
	}
}

// ChangeRoleHandler moves a member to another community role
// PATCH /admin/members/:userId/role
func (h *Handlers) ChangeRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changeRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		tenant := middleware.CurrentTenant(c)
		member, previous, err := h.membership.ChangeRole(c.Request.Context(), middleware.CurrentRole(c),
			tenant.ID, c.Param("userId"), req.Role)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		if previous != member.Role {
			h.audit(c, "role_change", "user", member.UserID, nil, map[string]interface{}{
				"from": previous,
				"to":   member.Role,
			})
		}
		c.JSON(http.StatusOK, gin.H{"member": member, "previous_role": previous})
	}
}

// RemoveMemberHandler ends a user's membership in the community
// DELETE /admin/members/:userId
func (h *Handlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		removed, err := h.membership.RemoveMember(c.Request.Context(), middleware.CurrentRole(c),
			tenant.ID, c.Param("userId"))
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		h.audit(c, "member_remove", "user", removed.UserID, nil, map[string]interface{}{"role": removed.Role})
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	}
}

// ListAuditLogsHandler pages through the community's moderation log
// GET /admin/audit-logs?page=1&limit=20&action_type=role_change&actor_id=...
func (h *Handlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := pagination.Parse(c, 20, pagination.MaxLimit)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		var filters repositories.ModerationLogFilters
		if v := c.Query("action_type"); v != "" {
			filters.ActionType = &v
		}
		if v := c.Query("actor_id"); v != "" {
			filters.ActorID = &v
		}

		logs, total, err := h.logs.ListByTenant(c.Request.Context(), middleware.CurrentTenant(c).ID,
			filters, page.Limit, page.Offset)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs, "pagination": page.WithTotal(total)})
	}
}
