package community

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/api/pagination"
	"github.com/communityhub/platform/internal/middleware"
)

const defaultNotificationLimit = 50

// ListNotificationsHandler lists the caller's notifications in this community, newest first
// GET /notifications?unread=true&limit=50
func (h *Handlers) ListNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := pagination.Parse(c, defaultNotificationLimit, pagination.MaxLimit)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		ctx := c.Request.Context()
		userID := middleware.CurrentUserID(c)
		tenant := middleware.CurrentTenant(c)

		list, err := h.notifications.ListForUser(ctx, userID, tenant.ID, c.Query("unread") == "true", page.Limit)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		unread, err := h.notifications.CountUnread(ctx, userID, tenant.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": list, "unread_count": unread})
	}
}

// MarkNotificationsReadHandler marks every notification of the caller in this community read
// POST /notifications/read
func (h *Handlers) MarkNotificationsReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		n, err := h.notifications.MarkAllRead(c.Request.Context(), middleware.CurrentUserID(c), tenant.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}
