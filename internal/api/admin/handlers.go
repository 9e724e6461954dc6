// Package admin implements the community admin console: members and their
// roles, the audit log, event and post management, report triage, media
// uploads and the dashboard counters.
package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
	"github.com/communityhub/platform/internal/storage"
)

const defaultMaxUploadMB = 5

// Handlers serves the /admin routes
type Handlers struct {
	db         *sqlx.DB
	tenants    *repositories.TenantRepository
	membership *services.MembershipService
	logs       *repositories.ModerationLogRepository
	events     *repositories.EventRepository
	posts      *repositories.PostRepository
	reports    *repositories.ReportRepository
	media      *repositories.MediaRepository
	store      storage.Backend
	maxUpload  int64
	auditor    *services.Auditor
}

// NewHandlers creates the admin handlers. store may be nil, which disables uploads.
func NewHandlers(db *sqlx.DB, store storage.Backend, maxUploadMB int, auditor *services.Auditor) *Handlers {
	if maxUploadMB <= 0 {
		maxUploadMB = defaultMaxUploadMB
	}
	tenants := repositories.NewTenantRepository(db.DB)
	return &Handlers{
		db:         db,
		tenants:    tenants,
		membership: services.NewMembershipService(tenants),
		logs:       repositories.NewModerationLogRepository(db.DB),
		events:     repositories.NewEventRepository(db.DB),
		posts:      repositories.NewPostRepository(db.DB),
		reports:    repositories.NewReportRepository(db.DB),
		media:      repositories.NewMediaRepository(db.DB),
		store:      store,
		maxUpload:  int64(maxUploadMB) << 20,
		auditor:    auditor,
	}
}

// Register mounts the admin routes on a tenant-scoped group
func (h *Handlers) Register(rg *gin.RouterGroup) {
	admins := middleware.RequireRole("admin", "owner", "superadmin")
	moderators := middleware.RequireRole("moderator", "admin", "owner", "superadmin")
	editors := middleware.RequireRole("admin", "editor", "owner", "superadmin")

	a := rg.Group("/admin")
	a.GET("/stats", moderators, h.StatsHandler())

	a.GET("/members", admins, h.ListMembersHandler())
	a.PATCH("/members/:userId/role", admins, h.ChangeRoleHandler())
	a.DELETE("/members/:userId", admins, h.RemoveMemberHandler())
	a.GET("/audit-logs", admins, h.ListAuditLogsHandler())

	a.GET("/events", admins, h.ListEventsHandler())
	a.POST("/events", admins, h.CreateEventHandler())
	a.PATCH("/events/:id", admins, h.UpdateEventHandler())
	a.DELETE("/events/:id", admins, h.DeleteEventHandler())
	a.GET("/events/:id/registrations", admins, h.ListRegistrationsHandler())

	a.GET("/posts", admins, h.ListPostsHandler())
	a.GET("/posts/:id", admins, h.GetPostHandler())
	a.POST("/posts", admins, h.CreatePostHandler())
	a.PATCH("/posts/:id", admins, h.UpdatePostHandler())
	a.DELETE("/posts/:id", admins, h.DeletePostHandler())

	a.GET("/reports", moderators, h.ListReportsHandler())
	a.PATCH("/reports/:id", moderators, h.ResolveReportHandler())

	a.GET("/media", editors, h.ListMediaHandler())
	a.POST("/media", editors, h.UploadMediaHandler())
}

func (h *Handlers) audit(c *gin.Context, action, targetType, targetID string, reason *string, metadata map[string]interface{}) {
	h.auditor.Record(c.Request.Context(), services.AuditEntry{
		TenantID:   middleware.CurrentTenant(c).ID,
		ActorID:    middleware.CurrentUserID(c),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     reason,
		Metadata:   metadata,
	})
}
