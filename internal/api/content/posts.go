package content

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/middleware"
)

// ListPostsHandler lists published posts, newest publication first
// GET /posts
func (h *Handlers) ListPostsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		posts, err := h.posts.ListPublished(c.Request.Context(), tenant.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"posts": posts})
	}
}

// GetPostHandler finds a published post by id or slug. Drafts are not found.
// GET /posts/:idOrSlug
func (h *Handlers) GetPostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		post, err := h.posts.GetPublished(c.Request.Context(), tenant.ID, c.Param("idOrSlug"))
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if post == nil {
			apierror.Respond(c, apierror.NotFound("Post not found"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"post": post})
	}
}
