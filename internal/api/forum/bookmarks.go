package forum

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

type createReportRequest struct {
	TargetType string `json:"target_type" binding:"required,oneof=thread reply post user"`
	TargetID   string `json:"target_id" binding:"required"`
	Reason     string `json:"reason" binding:"required,min=3,max=1000"`
}

func savedThread(c *gin.Context) *models.Reaction {
	return &models.Reaction{
		UserID:       middleware.CurrentUserID(c),
		TargetType:   "thread",
		TargetID:     c.Param("id"),
		ReactionType: repositories.ReactionSave,
	}
}

// SubscribeHandler subscribes the caller to reply notifications
// POST /forum/threads/:id/subscribe
func (h *Handlers) SubscribeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.requireThread(c) {
			return
		}
		if err := h.forum.Subscribe(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"subscribed": true})
	}
}

// UnsubscribeHandler
// DELETE /forum/threads/:id/subscribe
func (h *Handlers) UnsubscribeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.forum.Unsubscribe(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"subscribed": false})
	}
}

// SaveHandler bookmarks a thread
// POST /forum/threads/:id/save
func (h *Handlers) SaveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.requireThread(c) {
			return
		}
		if err := h.reactions.Add(c.Request.Context(), savedThread(c)); err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"saved": true})
	}
}

// UnsaveHandler
// DELETE /forum/threads/:id/save
func (h *Handlers) UnsaveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.reactions.Remove(c.Request.Context(), savedThread(c)); err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"saved": false})
	}
}

// ListSavedHandler lists the caller's saved threads in this community
// GET /forum/saved
func (h *Handlers) ListSavedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		threads, err := h.forum.ListSavedThreads(c.Request.Context(), tenant.ID, middleware.CurrentUserID(c))
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"threads": threads})
	}
}

// NeedsAnswersHandler lists the newest unanswered threads
// GET /forum/needs-answers
func (h *Handlers) NeedsAnswersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		threads, err := h.aggregator.NeedsAnswers(c.Request.Context(), tenant.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"threads": threads})
	}
}

// HighlightsHandler returns the newest, most answered and most viewed threads
// GET /forum/highlights
func (h *Handlers) HighlightsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		highlights, err := h.aggregator.Highlights(c.Request.Context(), tenant.ID, services.HighlightsSize)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, highlights)
	}
}

// CreateReportHandler files a report about content or a member of this community
// POST /forum/reports
func (h *Handlers) CreateReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		ctx := c.Request.Context()
		tenant := middleware.CurrentTenant(c)
		exists, err := h.reportTargetExists(ctx, tenant.ID, req.TargetType, req.TargetID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if !exists {
			apierror.Respond(c, apierror.NotFound("Reported content not found"))
			return
		}

		reporterID := middleware.CurrentUserID(c)
		report := &models.ForumReport{
			TenantID:   tenant.ID,
			ReporterID: &reporterID,
			TargetType: req.TargetType,
			TargetID:   req.TargetID,
			Reason:     req.Reason,
		}
		if err := h.reports.CreateReport(ctx, report); err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"report": report})
	}
}

func (h *Handlers) reportTargetExists(ctx context.Context, tenantID, targetType, targetID string) (bool, error) {
	switch targetType {
	case "thread":
		return h.forum.ThreadExists(ctx, tenantID, targetID)
	case "reply":
		reply, err := h.forum.GetReply(ctx, tenantID, targetID)
		return reply != nil, err
	case "post":
		return h.posts.PostExists(ctx, tenantID, targetID)
	case "user":
		member, err := h.tenants.GetMember(ctx, tenantID, targetID)
		return member != nil, err
	}
	return false, nil
}
