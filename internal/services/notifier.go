package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/notify"
	"github.com/communityhub/platform/internal/safego"
	"github.com/communityhub/platform/internal/telemetry"
)

// sideEffectTimeout bounds every fire-and-forget write
const sideEffectTimeout = 5 * time.Second

// dispatcher runs best-effort work outside the request
type dispatcher func(ctx context.Context, fn func(ctx context.Context))

func detached(ctx context.Context, fn func(ctx context.Context)) {
	safego.GoWithTimeout(ctx, sideEffectTimeout, fn)
}

func inline(ctx context.Context, fn func(ctx context.Context)) { fn(ctx) }

// Notifier writes in-app notifications and publishes them as events. Failures are
// logged and counted, never returned to the caller.
type Notifier struct {
	repo      *repositories.NotificationRepository
	publisher notify.Publisher
	dispatch  dispatcher
}

// NewNotifier creates a new Notifier. publisher may be nil when event publishing is off.
func NewNotifier(repo *repositories.NotificationRepository, publisher notify.Publisher) *Notifier {
	return &Notifier{repo: repo, publisher: publisher, dispatch: detached}
}

// Sync makes Notify write on the caller's goroutine. The CLI tools use it, and
// handler tests use it to observe the write.
func (n *Notifier) Sync() *Notifier {
	n.dispatch = inline
	return n
}

// Notify stores n in the background and, once stored, publishes it
func (n *Notifier) Notify(ctx context.Context, nt models.Notification) {
	n.dispatch(ctx, func(ctx context.Context) {
		if err := n.repo.CreateNotification(ctx, &nt); err != nil {
			telemetry.SideEffectFailuresTotal.WithLabelValues("notification").Inc()
			slog.Warn("failed to create notification", "type", nt.Type, "user_id", nt.UserID, "error", err)
			return
		}
		if n.publisher == nil {
			return
		}
		if err := n.publisher.Publish(ctx, notify.EventFromNotification(&nt)); err != nil {
			telemetry.SideEffectFailuresTotal.WithLabelValues("notification_publish").Inc()
			slog.Warn("failed to publish notification event", "notification_id", nt.ID, "error", err)
		}
	})
}

// NotifyReply tells the thread author and the thread's subscribers about a new reply.
// The replier is never notified of their own reply.
func (n *Notifier) NotifyReply(ctx context.Context, tenantID string, thread *models.ForumThread, reply *models.ForumReply, subscribers []string) {
	for _, userID := range ReplyRecipients(thread.AuthorID, subscribers, derefString(reply.AuthorID)) {
		n.Notify(ctx, models.Notification{
			UserID:   userID,
			TenantID: &tenantID,
			Type:     models.NotificationReply,
			Payload: map[string]interface{}{
				"thread_id":    thread.ID,
				"thread_title": thread.Title,
				"reply_id":     reply.ID,
				"message":      "New reply",
			},
		})
	}
}

// NotifyModAction tells a content author that a moderator acted on their content
func (n *Notifier) NotifyModAction(ctx context.Context, tenantID, userID, action, targetID string) {
	n.Notify(ctx, models.Notification{
		UserID:   userID,
		TenantID: &tenantID,
		Type:     models.NotificationModAction,
		Payload: map[string]interface{}{
			"action":    action,
			"target_id": targetID,
		},
	})
}

// ReplyRecipients returns the thread author followed by the subscribers, without
// duplicates and without the replier.
func ReplyRecipients(authorID *string, subscribers []string, replierID string) []string {
	seen := map[string]bool{replierID: true, "": true}
	var out []string
	add := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	if authorID != nil {
		add(*authorID)
	}
	for _, id := range subscribers {
		add(id)
	}
	return out
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
