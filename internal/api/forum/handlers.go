// Package forum implements the discussion forum endpoints: categories, threads,
// replies, subscriptions, saved threads, reports and the forum landing views.
package forum

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

// Handlers handles the /forum routes
type Handlers struct {
	forum      *repositories.ForumRepository
	reactions  *repositories.ReactionRepository
	reports    *repositories.ReportRepository
	posts      *repositories.PostRepository
	tenants    *repositories.TenantRepository
	aggregator *services.Aggregator
	notifier   *services.Notifier
	auditor    *services.Auditor
}

// NewHandlers creates the forum handlers
func NewHandlers(db *sql.DB, aggregator *services.Aggregator, notifier *services.Notifier, auditor *services.Auditor) *Handlers {
	return &Handlers{
		forum:      repositories.NewForumRepository(db),
		reactions:  repositories.NewReactionRepository(db),
		reports:    repositories.NewReportRepository(db),
		posts:      repositories.NewPostRepository(db),
		tenants:    repositories.NewTenantRepository(db),
		aggregator: aggregator,
		notifier:   notifier,
		auditor:    auditor,
	}
}

// Register mounts the forum routes on a tenant-scoped group
func (h *Handlers) Register(rg *gin.RouterGroup) {
	moderators := middleware.RequireRole("moderator", "admin", "owner", "superadmin")
	authenticated := middleware.RequireAuthenticated()

	f := rg.Group("/forum")
	f.GET("/categories", h.ListCategoriesHandler())
	f.POST("/categories", middleware.RequireRole("admin", "owner", "superadmin"), h.CreateCategoryHandler())
	f.GET("/categories/:id/threads", h.ListCategoryThreadsHandler())
	f.POST("/categories/:id/threads", authenticated, h.CreateThreadHandler())

	f.GET("/threads/:id", h.GetThreadHandler())
	f.POST("/threads/:id/replies", authenticated, h.CreateReplyHandler())
	f.POST("/threads/:id/lock", moderators, h.LockThreadHandler())
	f.POST("/threads/:id/pin", moderators, h.PinThreadHandler())
	f.DELETE("/threads/:id", moderators, h.DeleteThreadHandler())
	f.DELETE("/replies/:id", moderators, h.DeleteReplyHandler())

	f.POST("/threads/:id/subscribe", authenticated, h.SubscribeHandler())
	f.DELETE("/threads/:id/subscribe", authenticated, h.UnsubscribeHandler())
	f.POST("/threads/:id/save", authenticated, h.SaveHandler())
	f.DELETE("/threads/:id/save", authenticated, h.UnsaveHandler())
	f.GET("/saved", authenticated, h.ListSavedHandler())

	f.GET("/needs-answers", h.NeedsAnswersHandler())
	f.GET("/highlights", h.HighlightsHandler())
	f.POST("/reports", authenticated, h.CreateReportHandler())
}

// loadThread fetches the :id thread of the current community or writes a 404
func (h *Handlers) loadThread(c *gin.Context) (*models.ForumThread, bool) {
	tenant := middleware.CurrentTenant(c)
	thread, err := h.forum.GetThread(c.Request.Context(), tenant.ID, c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return nil, false
	}
	if thread == nil {
		apierror.Respond(c, apierror.NotFound("Thread not found"))
		return nil, false
	}
	return thread, true
}

// requireThread is loadThread for handlers that only need to know the thread exists
func (h *Handlers) requireThread(c *gin.Context) bool {
	tenant := middleware.CurrentTenant(c)
	ok, err := h.forum.ThreadExists(c.Request.Context(), tenant.ID, c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return false
	}
	if !ok {
		apierror.Respond(c, apierror.NotFound("Thread not found"))
		return false
	}
	return true
}

func (h *Handlers) audit(c *gin.Context, action, targetType, targetID string, metadata map[string]interface{}) {
	h.auditor.Record(c.Request.Context(), services.AuditEntry{
		TenantID:   middleware.CurrentTenant(c).ID,
		ActorID:    middleware.CurrentUserID(c),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
}
