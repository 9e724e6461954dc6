package community

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

// ActivityHandler returns the merged feed of recent threads, replies, posts and events
// GET /activity?limit=20
func (h *Handlers) ActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := services.DefaultFeedLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				apierror.Respond(c, services.ErrInvalidLimit)
				return
			}
			limit = n
		}

		tenant := middleware.CurrentTenant(c)
		items, err := h.aggregator.ActivityFeed(c.Request.Context(), tenant.ID, limit)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "pagination": gin.H{"limit": limit}})
	}
}

// ProfileHandler returns a member's public profile with their recent threads and replies
// GET /profiles/:username
// GET /users/:username/profile
func (h *Handlers) ProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		profile, err := h.aggregator.Profile(c.Request.Context(), tenant.ID, c.Param("username"))
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}
