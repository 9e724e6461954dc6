// activity_repository.go implements ActivityRepository: the read-only, community-scoped
// queries behind the activity feed, forum highlights, needs-answers list and member profiles.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/communityhub/platform/internal/db/models"
)

// ThreadRanking selects the ordering of a highlights list
type ThreadRanking string

const (
	RankNewest       ThreadRanking = "newest"
	RankMostAnswered ThreadRanking = "most_answered"
	RankMostViewed   ThreadRanking = "most_viewed"
)

var rankingOrder = map[ThreadRanking]string{
	RankNewest:       "t.created_at DESC",
	RankMostAnswered: "t.replies_count DESC, t.last_activity_at DESC",
	RankMostViewed:   "t.views_count DESC, t.last_activity_at DESC",
}

// ActivityRepository runs the aggregation queries
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// threadRow is a thread flattened with its category and author columns
type threadRow struct {
	models.ForumThread
	CategoryName      string         `db:"category_name"`
	CategorySlug      string         `db:"category_slug"`
	AuthorUsername    sql.NullString `db:"author_username"`
	AuthorDisplayName *string        `db:"author_display_name"`
}

func (r threadRow) thread() models.ForumThread {
	t := r.ForumThread
	t.Category = &models.CategoryRef{ID: t.CategoryID, Name: r.CategoryName, Slug: r.CategorySlug}
	if t.AuthorID != nil && r.AuthorUsername.Valid {
		t.Author = &models.AuthorRef{ID: *t.AuthorID, Username: r.AuthorUsername.String, DisplayName: r.AuthorDisplayName}
	}
	return t
}

const threadSummarySelect = `
	SELECT t.id, t.tenant_id, t.category_id, t.author_id, t.title, t.slug, t.body,
	       t.is_pinned, t.is_locked, t.is_hidden, t.views_count, t.replies_count,
	       t.last_activity_at, t.created_at,
	       c.name AS category_name, c.slug AS category_slug,
	       u.username AS author_username, u.display_name AS author_display_name
	FROM forum_threads t
	JOIN forum_categories c ON c.id = t.category_id
	LEFT JOIN users u ON u.id = t.author_id
	WHERE t.tenant_id = $1`

func (r *ActivityRepository) selectThreads(ctx context.Context, query string, args ...any) ([]models.ForumThread, error) {
	var rows []threadRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	threads := make([]models.ForumThread, 0, len(rows))
	for _, row := range rows {
		threads = append(threads, row.thread())
	}
	return threads, nil
}

// === Activity feed sources ===

func (r *ActivityRepository) selectItems(ctx context.Context, source, query, tenantID string, limit int) ([]models.ActivityItem, error) {
	items := []models.ActivityItem{}
	if err := r.db.SelectContext(ctx, &items, query, tenantID, limit); err != nil {
		return nil, fmt.Errorf("failed to load recent %s activity: %w", source, err)
	}
	return items, nil
}

// RecentThreads returns threads by latest activity
func (r *ActivityRepository) RecentThreads(ctx context.Context, tenantID string, limit int) ([]models.ActivityItem, error) {
	return r.selectItems(ctx, "thread", `
		SELECT 'thread' AS type, t.id, t.title, t.id::text AS ref_id, t.last_activity_at AS ts
		FROM forum_threads t
		WHERE t.tenant_id = $1
		ORDER BY t.last_activity_at DESC
		LIMIT $2`, tenantID, limit)
}

// RecentReplies returns replies by creation time; the title is the reply body and
// ref_id points at the thread.
func (r *ActivityRepository) RecentReplies(ctx context.Context, tenantID string, limit int) ([]models.ActivityItem, error) {
	return r.selectItems(ctx, "reply", `
		SELECT 'reply' AS type, r.id, r.body AS title, r.thread_id::text AS ref_id, r.created_at AS ts
		FROM forum_replies r
		JOIN forum_threads t ON t.id = r.thread_id
		WHERE t.tenant_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2`, tenantID, limit)
}

// RecentPosts returns published posts by publication time; ref_id is the slug
func (r *ActivityRepository) RecentPosts(ctx context.Context, tenantID string, limit int) ([]models.ActivityItem, error) {
	return r.selectItems(ctx, "post", `
		SELECT 'post' AS type, p.id, p.title, p.slug AS ref_id, COALESCE(p.published_at, p.created_at) AS ts
		FROM posts p
		WHERE p.tenant_id = $1 AND p.status = 'published'
		ORDER BY COALESCE(p.published_at, p.created_at) DESC
		LIMIT $2`, tenantID, limit)
}

// RecentEvents returns events by event date, falling back to creation time
func (r *ActivityRepository) RecentEvents(ctx context.Context, tenantID string, limit int) ([]models.ActivityItem, error) {
	return r.selectItems(ctx, "event", `
		SELECT 'event' AS type, e.id, e.title, e.id::text AS ref_id, COALESCE(e.event_date, e.created_at) AS ts
		FROM events e
		WHERE e.tenant_id = $1
		ORDER BY COALESCE(e.event_date, e.created_at) DESC
		LIMIT $2`, tenantID, limit)
}

// === Forum aggregates ===

// RankedThreads returns the top limit threads of the community under ranking
func (r *ActivityRepository) RankedThreads(ctx context.Context, tenantID string, ranking ThreadRanking, limit int) ([]models.ForumThread, error) {
	order, ok := rankingOrder[ranking]
	if !ok {
		return nil, fmt.Errorf("unknown thread ranking %q", ranking)
	}
	return r.selectThreads(ctx, threadSummarySelect+`
		ORDER BY `+order+`
		LIMIT $2`, tenantID, limit)
}

// UnansweredThreads returns the newest threads without replies
func (r *ActivityRepository) UnansweredThreads(ctx context.Context, tenantID string, limit int) ([]models.ForumThread, error) {
	return r.selectThreads(ctx, threadSummarySelect+`
		  AND t.replies_count = 0
		ORDER BY t.created_at DESC
		LIMIT $2`, tenantID, limit)
}

// ThreadsByAuthor returns the member's newest threads in the community
func (r *ActivityRepository) ThreadsByAuthor(ctx context.Context, tenantID, userID string, limit int) ([]models.ForumThread, error) {
	return r.selectThreads(ctx, threadSummarySelect+`
		  AND t.author_id = $2
		ORDER BY t.created_at DESC
		LIMIT $3`, tenantID, userID, limit)
}

type replyRow struct {
	ID          string       `db:"id"`
	ThreadID    string       `db:"thread_id"`
	AuthorID    *string      `db:"author_id"`
	Body        string       `db:"body"`
	IsHidden    bool         `db:"is_hidden"`
	CreatedAt   sql.NullTime `db:"created_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`
	ThreadTitle string       `db:"thread_title"`
	ThreadSlug  string       `db:"thread_slug"`
}

// RepliesByAuthor returns the member's newest replies in the community with their thread
func (r *ActivityRepository) RepliesByAuthor(ctx context.Context, tenantID, userID string, limit int) ([]models.ForumReply, error) {
	var rows []replyRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT r.id, r.thread_id, r.author_id, r.body, r.is_hidden, r.created_at, r.updated_at,
		       t.title AS thread_title, t.slug AS thread_slug
		FROM forum_replies r
		JOIN forum_threads t ON t.id = r.thread_id
		WHERE t.tenant_id = $1 AND r.author_id = $2
		ORDER BY r.created_at DESC
		LIMIT $3`, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query replies: %w", err)
	}

	replies := make([]models.ForumReply, 0, len(rows))
	for _, row := range rows {
		replies = append(replies, models.ForumReply{
			ID:        row.ID,
			ThreadID:  row.ThreadID,
			AuthorID:  row.AuthorID,
			Body:      row.Body,
			IsHidden:  row.IsHidden,
			CreatedAt: row.CreatedAt.Time,
			UpdatedAt: row.UpdatedAt.Time,
			Thread:    &models.ThreadRef{ID: row.ThreadID, Title: row.ThreadTitle, Slug: row.ThreadSlug},
		})
	}
	return replies, nil
}
