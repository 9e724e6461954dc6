// stats.go aggregates the per-community counters shown on the admin dashboard.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/middleware"
)

// DashboardStats is the response of GET /admin/stats
type DashboardStats struct {
	Members        int64 `json:"members" db:"member_count"`
	Threads        int64 `json:"threads" db:"thread_count"`
	Replies        int64 `json:"replies" db:"reply_count"`
	PublishedPosts int64 `json:"published_posts" db:"published_post_count"`
	DraftPosts     int64 `json:"draft_posts" db:"draft_post_count"`
	UpcomingEvents int64 `json:"upcoming_events" db:"upcoming_event_count"`
	PendingReports int64 `json:"pending_reports" db:"pending_report_count"`
	MediaAssets    int64 `json:"media_assets" db:"media_count"`
}

const dashboardStatsQuery = `
	SELECT
		(SELECT COUNT(*) FROM tenant_members WHERE tenant_id = $1) AS member_count,
		(SELECT COUNT(*) FROM forum_threads WHERE tenant_id = $1) AS thread_count,
		(SELECT COUNT(*) FROM forum_replies r
			JOIN forum_threads t ON t.id = r.thread_id
			WHERE t.tenant_id = $1) AS reply_count,
		(SELECT COUNT(*) FROM posts WHERE tenant_id = $1 AND status = 'published') AS published_post_count,
		(SELECT COUNT(*) FROM posts WHERE tenant_id = $1 AND status = 'draft') AS draft_post_count,
		(SELECT COUNT(*) FROM events WHERE tenant_id = $1 AND event_date >= NOW()) AS upcoming_event_count,
		(SELECT COUNT(*) FROM forum_reports WHERE tenant_id = $1 AND status = 'pending') AS pending_report_count,
		(SELECT COUNT(*) FROM media_assets WHERE tenant_id = $1) AS media_count
`

// StatsHandler returns the dashboard counters in a single round-trip
// GET /admin/stats
func (h *Handlers) StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats DashboardStats
		if err := h.db.GetContext(c.Request.Context(), &stats, dashboardStatsQuery, middleware.CurrentTenant(c).ID); err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats})
	}
}
