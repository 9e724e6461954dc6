package content

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/middleware"
)

// ListEventsHandler lists the community's events, latest first
// GET /events
func (h *Handlers) ListEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		events, err := h.events.ListEvents(c.Request.Context(), tenant.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

// GetEventHandler returns one event with its registration count
// GET /events/:id
func (h *Handlers) GetEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		event, ok := h.loadEvent(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"event": event})
	}
}

// RegisterForEventHandler signs the caller up. Registering twice returns the
// existing registration.
// POST /events/:id/register
func (h *Handlers) RegisterForEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		event, ok := h.loadEvent(c)
		if !ok {
			return
		}

		user := middleware.CurrentUser(c)
		reg := &models.EventRegistration{
			UserID: &user.ID,
			Name:   user.Name(),
			Email:  user.Email,
		}
		created, err := h.events.Register(c.Request.Context(), event.ID, reg)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"registration": reg, "created": created})
	}
}

func (h *Handlers) loadEvent(c *gin.Context) (*models.Event, bool) {
	tenant := middleware.CurrentTenant(c)
	event, err := h.events.GetEvent(c.Request.Context(), tenant.ID, c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return nil, false
	}
	if event == nil {
		apierror.Respond(c, apierror.NotFound("Event not found"))
		return nil, false
	}
	return event, true
}
