package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/middleware"
)

type createEventRequest struct {
	Title       string     `json:"title" binding:"required,min=2,max=200"`
	Category    *string    `json:"category" binding:"omitempty,max=50"`
	Description *string    `json:"description" binding:"omitempty,max=10000"`
	Location    *string    `json:"location" binding:"omitempty,max=200"`
	EventDate   *time.Time `json:"event_date"`
	Capacity    *int       `json:"capacity" binding:"omitempty,min=1"`
}

// updateEventRequest is a partial update. An empty string clears a text
// field and a capacity of 0 removes the limit.
type updateEventRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=2,max=200"`
	Category    *string    `json:"category" binding:"omitempty,max=50"`
	Description *string    `json:"description" binding:"omitempty,max=10000"`
	Location    *string    `json:"location" binding:"omitempty,max=200"`
	EventDate   *time.Time `json:"event_date"`
	Capacity    *int       `json:"capacity" binding:"omitempty,min=0"`
}

func (r updateEventRequest) apply(e *models.Event) []string {
	var changed []string
	text := func(name string, dst **string, src *string) {
		if src == nil {
			return
		}
		changed = append(changed, name)
		if *src == "" {
			*dst = nil
			return
		}
		v := *src
		*dst = &v
	}
	if r.Title != nil {
		changed = append(changed, "title")
		e.Title = *r.Title
	}
	text("category", &e.Category, r.Category)
	text("description", &e.Description, r.Description)
	text("location", &e.Location, r.Location)
	if r.EventDate != nil {
		changed = append(changed, "event_date")
		e.EventDate = r.EventDate
	}
	if r.Capacity != nil {
		changed = append(changed, "capacity")
		if *r.Capacity == 0 {
			e.Capacity = nil
		} else {
			e.Capacity = r.Capacity
		}
	}
	return changed
}

func (h *Handlers) loadEvent(c *gin.Context) (*models.Event, bool) {
	event, err := h.events.GetEvent(c.Request.Context(), middleware.CurrentTenant(c).ID, c.Param("id"))
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

// ListEventsHandler lists every event of the community
// GET /admin/events
func (h *Handlers) ListEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := h.events.ListEvents(c.Request.Context(), middleware.CurrentTenant(c).ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

// CreateEventHandler adds an event
// POST /admin/events
func (h *Handlers) CreateEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		event := &models.Event{
			TenantID:    middleware.CurrentTenant(c).ID,
			Title:       req.Title,
			Category:    req.Category,
			Description: req.Description,
			Location:    req.Location,
			EventDate:   req.EventDate,
			Capacity:    req.Capacity,
		}
		if err := h.events.CreateEvent(c.Request.Context(), event); err != nil {
			apierror.Respond(c, err)
			return
		}

		h.audit(c, "event_create", "event", event.ID, nil, map[string]interface{}{"title": event.Title})
		c.JSON(http.StatusCreated, gin.H{"event": event})
	}
}

// UpdateEventHandler edits an event
// PATCH /admin/events/:id
func (h *Handlers) UpdateEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}
		event, ok := h.loadEvent(c)
		if !ok {
			return
		}

		changed := req.apply(event)
		if len(changed) > 0 {
			if err := h.events.UpdateEvent(c.Request.Context(), event); err != nil {
				apierror.Respond(c, err)
				return
			}
			h.audit(c, "event_update", "event", event.ID, nil, map[string]interface{}{"fields": changed})
		}
		c.JSON(http.StatusOK, gin.H{"event": event})
	}
}

// DeleteEventHandler removes an event with its registrations
// DELETE /admin/events/:id
func (h *Handlers) DeleteEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		deleted, err := h.events.DeleteEvent(c.Request.Context(), middleware.CurrentTenant(c).ID, id)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if !deleted {
			apierror.Respond(c, apierror.NotFound("Event not found"))
			return
		}

		h.audit(c, "event_delete", "event", id, nil, nil)
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

// ListRegistrationsHandler lists an event's sign-ups
// GET /admin/events/:id/registrations
func (h *Handlers) ListRegistrationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		event, ok := h.loadEvent(c)
		if !ok {
			return
		}
		regs, err := h.events.ListRegistrations(c.Request.Context(), event.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"event": event, "registrations": regs})
	}
}
