package forum

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/api/pagination"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/telemetry"
	"github.com/communityhub/platform/internal/validation"
)

type createCategoryRequest struct {
	Name        string  `json:"name" binding:"required,min=2,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	IsLocked    bool    `json:"is_locked"`
}

type createThreadRequest struct {
	Title string `json:"title" binding:"required,min=3,max=200"`
	Body  string `json:"body" binding:"required,min=1"`
}

type createReplyRequest struct {
	Body string `json:"body" binding:"required,min=1"`
}

type lockRequest struct {
	Locked *bool `json:"locked"`
}

type pinRequest struct {
	Pinned *bool `json:"pinned"`
}

// threadView is a thread as seen by the caller
type threadView struct {
	models.ForumThread
	IsSubscribed bool `json:"is_subscribed"`
	IsSaved      bool `json:"is_saved"`
}

// bindOptional binds a JSON body that may be absent
func bindOptional(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return apierror.FromBinding(err)
	}
	return nil
}

// ListCategoriesHandler lists the community's categories
// GET /forum/categories
func (h *Handlers) ListCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		categories, err := h.forum.ListCategories(c.Request.Context(), tenant.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}

// CreateCategoryHandler adds a category; the slug is derived from the name
// POST /forum/categories
func (h *Handlers) CreateCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}
		slug := validation.Slugify(req.Name)
		if slug == "" {
			apierror.Respond(c, apierror.Validation(map[string][]string{"name": {"must contain letters or digits"}}))
			return
		}

		tenant := middleware.CurrentTenant(c)
		category := &models.ForumCategory{
			TenantID:    tenant.ID,
			Name:        req.Name,
			Slug:        slug,
			Description: req.Description,
			IsLocked:    req.IsLocked,
		}
		if err := h.forum.CreateCategory(c.Request.Context(), category); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				apierror.Respond(c, apierror.Conflict("A category with this name already exists"))
				return
			}
			apierror.Respond(c, err)
			return
		}

		h.audit(c, "category_create", "forum_category", category.ID, map[string]interface{}{"slug": slug})
		c.JSON(http.StatusCreated, gin.H{"category": category})
	}
}

// ListCategoryThreadsHandler lists one page of a category, pinned threads first
// GET /forum/categories/:id/threads?page=1&limit=10
func (h *Handlers) ListCategoryThreadsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := pagination.Default(c)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		ctx := c.Request.Context()
		tenant := middleware.CurrentTenant(c)
		category, err := h.forum.GetCategory(ctx, tenant.ID, c.Param("id"))
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if category == nil {
			apierror.Respond(c, apierror.NotFound("Category not found"))
			return
		}

		threads, total, err := h.forum.ListCategoryThreads(ctx, tenant.ID, category.ID, page.Limit, page.Offset)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"category":   category,
			"threads":    threads,
			"pagination": page.WithTotal(total),
		})
	}
}

// CreateThreadHandler opens a thread in an unlocked category
// POST /forum/categories/:id/threads
func (h *Handlers) CreateThreadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createThreadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		ctx := c.Request.Context()
		tenant := middleware.CurrentTenant(c)
		category, err := h.forum.GetCategory(ctx, tenant.ID, c.Param("id"))
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if category == nil || category.IsLocked {
			apierror.Respond(c, apierror.Forbidden("Threads cannot be opened in this category"))
			return
		}

		slug := validation.Slugify(req.Title)
		if slug == "" {
			slug = fmt.Sprintf("thread-%d", time.Now().UnixMilli())
		}
		authorID := middleware.CurrentUserID(c)
		thread := &models.ForumThread{
			TenantID:   tenant.ID,
			CategoryID: category.ID,
			AuthorID:   &authorID,
			Title:      req.Title,
			Slug:       slug,
			Body:       req.Body,
		}
		if err := h.forum.CreateThread(ctx, thread); err != nil {
			apierror.Respond(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"thread": thread})
	}
}

// GetThreadHandler returns a thread with one page of replies. Every call counts as
// exactly one view.
// GET /forum/threads/:id?page=1&limit=10
func (h *Handlers) GetThreadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := pagination.Default(c)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		ctx := c.Request.Context()
		tenant := middleware.CurrentTenant(c)
		thread, err := h.forum.ViewThread(ctx, tenant.ID, c.Param("id"))
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if thread == nil {
			apierror.Respond(c, apierror.NotFound("Thread not found"))
			return
		}

		replies, total, err := h.forum.ListReplies(ctx, thread.ID, page.Limit, page.Offset)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		view := threadView{ForumThread: *thread}
		if userID := middleware.CurrentUserID(c); userID != "" {
			if view.IsSubscribed, err = h.forum.IsSubscribed(ctx, userID, thread.ID); err != nil {
				apierror.Respond(c, err)
				return
			}
			view.IsSaved, err = h.reactions.Exists(ctx, &models.Reaction{
				UserID:       userID,
				TargetType:   "thread",
				TargetID:     thread.ID,
				ReactionType: repositories.ReactionSave,
			})
			if err != nil {
				apierror.Respond(c, err)
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"thread":     view,
			"replies":    replies,
			"pagination": page.WithTotal(total),
		})
	}
}

// CreateReplyHandler posts a reply and notifies the thread author and subscribers
// POST /forum/threads/:id/replies
func (h *Handlers) CreateReplyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createReplyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		thread, ok := h.loadThread(c)
		if !ok {
			return
		}
		if thread.IsLocked {
			apierror.Respond(c, apierror.Forbidden("This thread is locked"))
			return
		}

		ctx := c.Request.Context()
		authorID := middleware.CurrentUserID(c)
		reply := &models.ForumReply{ThreadID: thread.ID, AuthorID: &authorID, Body: req.Body}
		if err := h.forum.CreateReply(ctx, reply); err != nil {
			apierror.Respond(c, err)
			return
		}
		telemetry.ForumRepliesTotal.Inc()

		subscribers, err := h.forum.ListSubscribers(ctx, thread.ID)
		if err != nil {
			slog.Warn("failed to load thread subscribers", "thread_id", thread.ID, "error", err)
		}
		h.notifier.NotifyReply(ctx, thread.TenantID, thread, reply, subscribers)

		c.JSON(http.StatusCreated, gin.H{"reply": reply})
	}
}

// LockThreadHandler locks or unlocks a thread. The body is optional and locks by default.
// POST /forum/threads/:id/lock
func (h *Handlers) LockThreadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req lockRequest
		if err := bindOptional(c, &req); err != nil {
			apierror.Respond(c, err)
			return
		}
		locked := req.Locked == nil || *req.Locked

		thread, ok := h.loadThread(c)
		if !ok {
			return
		}
		if _, err := h.forum.SetLocked(c.Request.Context(), thread.TenantID, thread.ID, locked); err != nil {
			apierror.Respond(c, err)
			return
		}
		thread.IsLocked = locked

		h.audit(c, "thread_lock", "forum_thread", thread.ID, map[string]interface{}{"locked": locked})
		c.JSON(http.StatusOK, gin.H{"thread": thread})
	}
}

// PinThreadHandler pins or unpins a thread. The body is optional and pins by default.
// POST /forum/threads/:id/pin
func (h *Handlers) PinThreadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pinRequest
		if err := bindOptional(c, &req); err != nil {
			apierror.Respond(c, err)
			return
		}
		pinned := req.Pinned == nil || *req.Pinned

		thread, ok := h.loadThread(c)
		if !ok {
			return
		}
		if _, err := h.forum.SetPinned(c.Request.Context(), thread.TenantID, thread.ID, pinned); err != nil {
			apierror.Respond(c, err)
			return
		}
		thread.IsPinned = pinned

		h.audit(c, "thread_pin", "forum_thread", thread.ID, map[string]interface{}{"pinned": pinned})
		c.JSON(http.StatusOK, gin.H{"thread": thread})
	}
}

// DeleteThreadHandler hard-deletes a thread with its replies
// DELETE /forum/threads/:id
func (h *Handlers) DeleteThreadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.CurrentTenant(c)
		id := c.Param("id")
		deleted, err := h.forum.DeleteThread(c.Request.Context(), tenant.ID, id)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if !deleted {
			apierror.Respond(c, apierror.NotFound("Thread not found"))
			return
		}

		h.audit(c, "thread_delete", "forum_thread", id, nil)
		c.JSON(http.StatusOK, gin.H{"message": "Thread deleted"})
	}
}

// DeleteReplyHandler removes a reply and tells its author, unless the author
// removed it themselves
// DELETE /forum/replies/:id
func (h *Handlers) DeleteReplyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		tenant := middleware.CurrentTenant(c)
		reply, err := h.forum.GetReply(ctx, tenant.ID, c.Param("id"))
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if reply == nil {
			apierror.Respond(c, apierror.NotFound("Reply not found"))
			return
		}

		if err := h.forum.DeleteReply(ctx, reply); err != nil {
			apierror.Respond(c, err)
			return
		}

		actorID := middleware.CurrentUserID(c)
		if reply.AuthorID != nil && *reply.AuthorID != actorID {
			h.notifier.NotifyModAction(ctx, tenant.ID, *reply.AuthorID, "reply_deleted", reply.ID)
		}
		h.audit(c, "reply_delete", "forum_reply", reply.ID, map[string]interface{}{"thread_id": reply.ThreadID})
		c.JSON(http.StatusOK, gin.H{"message": "Reply deleted"})
	}
}
