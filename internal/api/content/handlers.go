// Package content implements the public editorial endpoints of a community:
// events and event sign-up, published blog posts and the landing page's site
// content.
package content

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

// Handlers serves events, posts and site content
type Handlers struct {
	events  *repositories.EventRepository
	posts   *repositories.PostRepository
	tenants *repositories.TenantRepository
	auditor *services.Auditor
}

// NewHandlers creates the content handlers
func NewHandlers(db *sql.DB, auditor *services.Auditor) *Handlers {
	return &Handlers{
		events:  repositories.NewEventRepository(db),
		posts:   repositories.NewPostRepository(db),
		tenants: repositories.NewTenantRepository(db),
		auditor: auditor,
	}
}

// Register mounts the content routes on a tenant-scoped group
func (h *Handlers) Register(rg *gin.RouterGroup) {
	rg.GET("/events", h.ListEventsHandler())
	rg.GET("/events/:id", h.GetEventHandler())
	rg.POST("/events/:id/register", middleware.RequireAuthenticated(), h.RegisterForEventHandler())

	rg.GET("/posts", h.ListPostsHandler())
	rg.GET("/posts/:idOrSlug", h.GetPostHandler())

	rg.GET("/site-content", h.GetSiteContentHandler())
	rg.PATCH("/site-content", middleware.RequireRole("admin", "editor", "owner", "superadmin"), h.UpdateSiteContentHandler())
}
