package community

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
)

// markerKind describes one family of per-user markers
type markerKind struct {
	key          string
	reactionType string
	targetTypes  []string
}

var (
	follows = markerKind{key: "follows", reactionType: repositories.ReactionFollow, targetTypes: []string{"category", "thread"}}
	saves   = markerKind{key: "saved", reactionType: repositories.ReactionSave, targetTypes: []string{"thread", "post"}}
)

func (k markerKind) invalidType() error {
	return apierror.Validation(map[string][]string{
		"target_type": {"must be one of: " + strings.Join(k.targetTypes, " ")},
	})
}

type markerRequest struct {
	TargetType string `json:"target_type" binding:"required"`
	TargetID   string `json:"target_id" binding:"required"`
}

func (k markerKind) bind(c *gin.Context) (*models.Reaction, bool) {
	var req markerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.FromBinding(err))
		return nil, false
	}
	if !slices.Contains(k.targetTypes, req.TargetType) {
		apierror.Respond(c, k.invalidType())
		return nil, false
	}
	return &models.Reaction{
		UserID:       middleware.CurrentUserID(c),
		TargetType:   req.TargetType,
		TargetID:     req.TargetID,
		ReactionType: k.reactionType,
	}, true
}

// ListMarkersHandler lists the caller's markers of kind in this community
// GET /follows?target_type=&target_id=
// GET /saved?target_type=
func (h *Handlers) ListMarkersHandler(kind markerKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		types := kind.targetTypes
		if tt := c.Query("target_type"); tt != "" {
			if !slices.Contains(kind.targetTypes, tt) {
				apierror.Respond(c, kind.invalidType())
				return
			}
			types = []string{tt}
		}

		tenant := middleware.CurrentTenant(c)
		items, err := h.reactions.ListMarked(c.Request.Context(), tenant.ID, repositories.ReactionFilter{
			UserID:       middleware.CurrentUserID(c),
			ReactionType: kind.reactionType,
			TargetTypes:  types,
			TargetID:     c.Query("target_id"),
		})
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{kind.key: items})
	}
}

// AddMarkerHandler places a marker on a target of this community. Repeating it is a no-op.
// POST /follows
// POST /saved
func (h *Handlers) AddMarkerHandler(kind markerKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		marker, ok := kind.bind(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		tenant := middleware.CurrentTenant(c)
		exists, err := h.targetExists(ctx, tenant.ID, marker.TargetType, marker.TargetID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if !exists {
			apierror.Respond(c, apierror.NotFound("Target not found"))
			return
		}

		if err := h.reactions.Add(ctx, marker); err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"marker": marker})
	}
}

// RemoveMarkerHandler removes a marker. Removing a missing marker succeeds.
// DELETE /follows
// DELETE /saved
func (h *Handlers) RemoveMarkerHandler(kind markerKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		marker, ok := kind.bind(c)
		if !ok {
			return
		}
		if err := h.reactions.Remove(c.Request.Context(), marker); err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": true})
	}
}

func (h *Handlers) targetExists(ctx context.Context, tenantID, targetType, targetID string) (bool, error) {
	switch targetType {
	case "category":
		return h.forum.CategoryExists(ctx, tenantID, targetID)
	case "thread":
		return h.forum.ThreadExists(ctx, tenantID, targetID)
	case "post":
		return h.posts.PostExists(ctx, tenantID, targetID)
	}
	return false, nil
}
