package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/validation"
)

type createPostRequest struct {
	Title          string     `json:"title" binding:"required,min=2,max=200"`
	Slug           string     `json:"slug" binding:"omitempty,max=200"`
	Excerpt        *string    `json:"excerpt" binding:"omitempty,max=500"`
	Content        string     `json:"content" binding:"required"`
	CoverImage     *string    `json:"cover_image" binding:"omitempty,max=500"`
	Status         string     `json:"status" binding:"omitempty,oneof=draft scheduled published"`
	PublishedAt    *time.Time `json:"published_at"`
	SEOTitle       *string    `json:"seo_title" binding:"omitempty,max=200"`
	SEODescription *string    `json:"seo_description" binding:"omitempty,max=500"`
}

// updatePostRequest is a partial update; an empty string clears an optional field
type updatePostRequest struct {
	Title          *string    `json:"title" binding:"omitempty,min=2,max=200"`
	Slug           *string    `json:"slug" binding:"omitempty,max=200"`
	Excerpt        *string    `json:"excerpt" binding:"omitempty,max=500"`
	Content        *string    `json:"content"`
	CoverImage     *string    `json:"cover_image" binding:"omitempty,max=500"`
	Status         *string    `json:"status" binding:"omitempty,oneof=draft scheduled published"`
	PublishedAt    *time.Time `json:"published_at"`
	SEOTitle       *string    `json:"seo_title" binding:"omitempty,max=200"`
	SEODescription *string    `json:"seo_description" binding:"omitempty,max=500"`
}

func (r updatePostRequest) apply(p *models.Post) []string {
	var changed []string
	optional := func(name string, dst **string, src *string) {
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
	required := func(name string, dst *string, src *string) {
		if src != nil {
			changed = append(changed, name)
			*dst = *src
		}
	}
	required("title", &p.Title, r.Title)
	required("slug", &p.Slug, r.Slug)
	required("content", &p.Content, r.Content)
	required("status", &p.Status, r.Status)
	optional("excerpt", &p.Excerpt, r.Excerpt)
	optional("cover_image", &p.CoverImage, r.CoverImage)
	optional("seo_title", &p.SEOTitle, r.SEOTitle)
	optional("seo_description", &p.SEODescription, r.SEODescription)
	if r.PublishedAt != nil {
		changed = append(changed, "published_at")
		p.PublishedAt = r.PublishedAt
	}
	return changed
}

// normalizePost fills the derived fields of p and checks the ones that
// depend on each other.
func normalizePost(p *models.Post, now time.Time) error {
	if p.Slug == "" {
		p.Slug = validation.Slugify(p.Title)
	} else {
		p.Slug = validation.Slugify(p.Slug)
	}
	if p.Slug == "" {
		return apierror.Validation(map[string][]string{"slug": {"must contain letters or digits"}})
	}
	switch p.Status {
	case "":
		p.Status = models.PostStatusDraft
	case models.PostStatusPublished:
		if p.PublishedAt == nil {
			p.PublishedAt = &now
		}
	case models.PostStatusScheduled:
		if p.PublishedAt == nil {
			return apierror.Validation(map[string][]string{"published_at": {"is required for scheduled posts"}})
		}
	}
	return nil
}

func (h *Handlers) loadPost(c *gin.Context) (*models.Post, bool) {
	post, err := h.posts.GetByID(c.Request.Context(), middleware.CurrentTenant(c).ID, c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return nil, false
	}
	if post == nil {
		apierror.Respond(c, apierror.NotFound("Post not found"))
		return nil, false
	}
	return post, true
}

// ListPostsHandler lists every post, drafts included
// GET /admin/posts
func (h *Handlers) ListPostsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := h.posts.ListAll(c.Request.Context(), middleware.CurrentTenant(c).ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"posts": posts})
	}
}

// GetPostHandler returns any post of the community by ID
// GET /admin/posts/:id
func (h *Handlers) GetPostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		post, ok := h.loadPost(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"post": post})
	}
}

// CreatePostHandler writes a new post
// POST /admin/posts
func (h *Handlers) CreatePostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		author := middleware.CurrentUserID(c)
		post := &models.Post{
			TenantID:       middleware.CurrentTenant(c).ID,
			AuthorID:       &author,
			Title:          req.Title,
			Slug:           req.Slug,
			Excerpt:        req.Excerpt,
			Content:        req.Content,
			CoverImage:     req.CoverImage,
			Status:         req.Status,
			PublishedAt:    req.PublishedAt,
			SEOTitle:       req.SEOTitle,
			SEODescription: req.SEODescription,
		}
		if err := normalizePost(post, time.Now()); err != nil {
			apierror.Respond(c, err)
			return
		}
		if err := h.posts.CreatePost(c.Request.Context(), post); err != nil {
			apierror.Respond(c, err)
			return
		}

		h.audit(c, "post_create", "post", post.ID, nil, map[string]interface{}{
			"slug":   post.Slug,
			"status": post.Status,
		})
		c.JSON(http.StatusCreated, gin.H{"post": post})
	}
}

// UpdatePostHandler edits a post. Moving it to published without a
// publication time stamps the current time.
// PATCH /admin/posts/:id
func (h *Handlers) UpdatePostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updatePostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}
		post, ok := h.loadPost(c)
		if !ok {
			return
		}

		wasPublished := post.Status == models.PostStatusPublished
		changed := req.apply(post)
		if len(changed) == 0 {
			c.JSON(http.StatusOK, gin.H{"post": post})
			return
		}
		if err := normalizePost(post, time.Now()); err != nil {
			apierror.Respond(c, err)
			return
		}
		if err := h.posts.UpdatePost(c.Request.Context(), post); err != nil {
			apierror.Respond(c, err)
			return
		}

		action := "post_update"
		if !wasPublished && post.Status == models.PostStatusPublished {
			action = "post_publish"
		}
		h.audit(c, action, "post", post.ID, nil, map[string]interface{}{"fields": changed})
		c.JSON(http.StatusOK, gin.H{"post": post})
	}
}

// DeletePostHandler removes a post
// DELETE /admin/posts/:id
func (h *Handlers) DeletePostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		deleted, err := h.posts.DeletePost(c.Request.Context(), middleware.CurrentTenant(c).ID, id)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if !deleted {
			apierror.Respond(c, apierror.NotFound("Post not found"))
			return
		}

		h.audit(c, "post_delete", "post", id, nil, nil)
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}
