// Package community implements the member-facing endpoints that span content
// kinds: the activity feed, public profiles, notifications and the follow and
// save markers.
package community

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

// Handlers serves the community routes
type Handlers struct {
	aggregator    *services.Aggregator
	notifications *repositories.NotificationRepository
	reactions     *repositories.ReactionRepository
	forum         *repositories.ForumRepository
	posts         *repositories.PostRepository
}

// NewHandlers creates the community handlers
func NewHandlers(db *sql.DB, aggregator *services.Aggregator) *Handlers {
	return &Handlers{
		aggregator:    aggregator,
		notifications: repositories.NewNotificationRepository(db),
		reactions:     repositories.NewReactionRepository(db),
		forum:         repositories.NewForumRepository(db),
		posts:         repositories.NewPostRepository(db),
	}
}

// Register mounts the community routes on a tenant-scoped group
func (h *Handlers) Register(rg *gin.RouterGroup) {
	authenticated := middleware.RequireAuthenticated()

	rg.GET("/activity", h.ActivityHandler())
	rg.GET("/profiles/:username", h.ProfileHandler())
	rg.GET("/users/:username/profile", h.ProfileHandler())

	rg.GET("/notifications", authenticated, h.ListNotificationsHandler())
	rg.POST("/notifications/read", authenticated, h.MarkNotificationsReadHandler())

	rg.GET("/follows", authenticated, h.ListMarkersHandler(follows))
	rg.POST("/follows", authenticated, h.AddMarkerHandler(follows))
	rg.DELETE("/follows", authenticated, h.RemoveMarkerHandler(follows))

	rg.GET("/saved", authenticated, h.ListMarkersHandler(saves))
	rg.POST("/saved", authenticated, h.AddMarkerHandler(saves))
	rg.DELETE("/saved", authenticated, h.RemoveMarkerHandler(saves))
}
