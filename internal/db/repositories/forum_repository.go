// forum_repository.go implements ForumRepository: categories, threads, replies and
// thread subscriptions. Reply counters are maintained with in-place increments inside
// the same transaction as the reply insert or delete.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/communityhub/platform/internal/db/models"
)

// ForumRepository handles forum database operations
type ForumRepository struct {
	db *sql.DB
}

// NewForumRepository creates a new forum repository
func NewForumRepository(db *sql.DB) *ForumRepository {
	return &ForumRepository{db: db}
}

// threadSelect joins each thread to its category and (nullable) author.
const threadSelect = `
	SELECT t.id, t.tenant_id, t.category_id, t.author_id, t.title, t.slug, t.body,
	       t.is_pinned, t.is_locked, t.is_hidden, t.views_count, t.replies_count,
	       t.last_activity_at, t.created_at,
	       c.id, c.name, c.slug,
	       u.id, u.username, u.display_name, u.avatar_url
	FROM forum_threads t
	JOIN forum_categories c ON c.id = t.category_id
	LEFT JOIN users u ON u.id = t.author_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanThread(s scanner) (*models.ForumThread, error) {
	t := &models.ForumThread{}
	cat := &models.CategoryRef{}
	var authorID, username sql.NullString
	var displayName, avatar *string
	err := s.Scan(
		&t.ID, &t.TenantID, &t.CategoryID, &t.AuthorID, &t.Title, &t.Slug, &t.Body,
		&t.IsPinned, &t.IsLocked, &t.IsHidden, &t.ViewsCount, &t.RepliesCount,
		&t.LastActivityAt, &t.CreatedAt,
		&cat.ID, &cat.Name, &cat.Slug,
		&authorID, &username, &displayName, &avatar,
	)
	if err != nil {
		return nil, err
	}
	t.Category = cat
	if authorID.Valid {
		t.Author = &models.AuthorRef{ID: authorID.String, Username: username.String, DisplayName: displayName, AvatarURL: avatar}
	}
	return t, nil
}

func (r *ForumRepository) queryThreads(ctx context.Context, query string, args ...any) ([]models.ForumThread, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	threads := []models.ForumThread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, *t)
	}
	return threads, rows.Err()
}

// === Categories ===

// ListCategories returns the community's categories, each with its most recently active thread
func (r *ForumRepository) ListCategories(ctx context.Context, tenantID string) ([]models.ForumCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.tenant_id, c.name, c.slug, c.description, c.is_locked, c.created_at,
		       lt.id, lt.title, lt.slug, lt.replies_count, lt.last_activity_at, lt.created_at,
		       lt.author_id, lt.username, lt.display_name
		FROM forum_categories c
		LEFT JOIN LATERAL (
			SELECT t.id, t.title, t.slug, t.replies_count, t.last_activity_at, t.created_at,
			       t.author_id, u.username, u.display_name
			FROM forum_threads t
			LEFT JOIN users u ON u.id = t.author_id
			WHERE t.category_id = c.id
			ORDER BY t.last_activity_at DESC
			LIMIT 1
		) lt ON TRUE
		WHERE c.tenant_id = $1
		ORDER BY c.created_at
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.ForumCategory{}
	for rows.Next() {
		var c models.ForumCategory
		var threadID, title, slug, authorID, username sql.NullString
		var replies sql.NullInt64
		var lastActivity, created sql.NullTime
		var displayName *string
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Slug, &c.Description, &c.IsLocked, &c.CreatedAt,
			&threadID, &title, &slug, &replies, &lastActivity, &created,
			&authorID, &username, &displayName); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if threadID.Valid {
			c.LastThread = &models.ForumThread{
				ID:             threadID.String,
				TenantID:       c.TenantID,
				CategoryID:     c.ID,
				Title:          title.String,
				Slug:           slug.String,
				RepliesCount:   int(replies.Int64),
				LastActivityAt: lastActivity.Time,
				CreatedAt:      created.Time,
			}
			if authorID.Valid {
				c.LastThread.AuthorID = &authorID.String
				c.LastThread.Author = &models.AuthorRef{ID: authorID.String, Username: username.String, DisplayName: displayName}
			}
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategory retrieves a category inside the community
func (r *ForumRepository) GetCategory(ctx context.Context, tenantID, id string) (*models.ForumCategory, error) {
	c := &models.ForumCategory{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, slug, description, is_locked, created_at
		FROM forum_categories
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&c.ID, &c.TenantID, &c.Name, &c.Slug, &c.Description, &c.IsLocked, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// CreateCategory inserts a category; a slug already used in the community yields ErrDuplicate
func (r *ForumRepository) CreateCategory(ctx context.Context, c *models.ForumCategory) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO forum_categories (id, tenant_id, name, slug, description, is_locked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.TenantID, c.Name, c.Slug, c.Description, c.IsLocked, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// === Threads ===

// ListCategoryThreads returns one page of a category's threads, pinned first then newest,
// together with the total number of threads in the category.
func (r *ForumRepository) ListCategoryThreads(ctx context.Context, tenantID, categoryID string, limit, offset int) ([]models.ForumThread, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forum_threads WHERE tenant_id = $1 AND category_id = $2`,
		tenantID, categoryID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count threads: %w", err)
	}

	threads, err := r.queryThreads(ctx, threadSelect+`
		WHERE t.tenant_id = $1 AND t.category_id = $2
		ORDER BY t.is_pinned DESC, t.created_at DESC
		LIMIT $3 OFFSET $4`, tenantID, categoryID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return threads, total, nil
}

// CreateThread inserts a thread; ID and timestamps are assigned here
func (r *ForumRepository) CreateThread(ctx context.Context, t *models.ForumThread) error {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now()
	t.LastActivityAt = t.CreatedAt
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO forum_threads (id, tenant_id, category_id, author_id, title, slug, body,
		                           last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.TenantID, t.CategoryID, t.AuthorID, t.Title, t.Slug, t.Body, t.LastActivityAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

// GetThread retrieves a thread inside the community without touching its view counter
func (r *ForumRepository) GetThread(ctx context.Context, tenantID, id string) (*models.ForumThread, error) {
	t, err := scanThread(r.db.QueryRowContext(ctx, threadSelect+`
		WHERE t.id = $1 AND t.tenant_id = $2`, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return t, nil
}

// ViewThread increments the view counter by one and returns the updated thread
func (r *ForumRepository) ViewThread(ctx context.Context, tenantID, id string) (*models.ForumThread, error) {
	t, err := scanThread(r.db.QueryRowContext(ctx, `
		WITH t AS (
			UPDATE forum_threads SET views_count = views_count + 1
			WHERE id = $1 AND tenant_id = $2
			RETURNING *
		)
		SELECT t.id, t.tenant_id, t.category_id, t.author_id, t.title, t.slug, t.body,
		       t.is_pinned, t.is_locked, t.is_hidden, t.views_count, t.replies_count,
		       t.last_activity_at, t.created_at,
		       c.id, c.name, c.slug,
		       u.id, u.username, u.display_name, u.avatar_url
		FROM t
		JOIN forum_categories c ON c.id = t.category_id
		LEFT JOIN users u ON u.id = t.author_id
	`, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to view thread: %w", err)
	}
	return t, nil
}

// SetLocked locks or unlocks a thread; false is returned when the thread does not exist
func (r *ForumRepository) SetLocked(ctx context.Context, tenantID, id string, locked bool) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE forum_threads SET is_locked = $3 WHERE id = $1 AND tenant_id = $2`, id, tenantID, locked)
	if err != nil {
		return false, fmt.Errorf("failed to lock thread: %w", err)
	}
	return rowsAffected(res)
}

// SetPinned pins or unpins a thread; false is returned when the thread does not exist
func (r *ForumRepository) SetPinned(ctx context.Context, tenantID, id string, pinned bool) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE forum_threads SET is_pinned = $3 WHERE id = $1 AND tenant_id = $2`, id, tenantID, pinned)
	if err != nil {
		return false, fmt.Errorf("failed to pin thread: %w", err)
	}
	return rowsAffected(res)
}

// DeleteThread removes a thread and, by cascade, its replies and subscriptions
func (r *ForumRepository) DeleteThread(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM forum_threads WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to delete thread: %w", err)
	}
	return rowsAffected(res)
}

// ThreadExists reports whether the thread belongs to the community
func (r *ForumRepository) ThreadExists(ctx context.Context, tenantID, id string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM forum_threads WHERE id = $1 AND tenant_id = $2)`, id, tenantID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check thread: %w", err)
	}
	return ok, nil
}

// CategoryExists reports whether the category belongs to the community
func (r *ForumRepository) CategoryExists(ctx context.Context, tenantID, id string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM forum_categories WHERE id = $1 AND tenant_id = $2)`, id, tenantID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check category: %w", err)
	}
	return ok, nil
}

// ListSavedThreads returns the threads of this community the user has saved, most recently saved first
func (r *ForumRepository) ListSavedThreads(ctx context.Context, tenantID, userID string) ([]models.ForumThread, error) {
	return r.queryThreads(ctx, threadSelect+`
		JOIN forum_reactions s ON s.target_id = t.id
		WHERE s.user_id = $1 AND s.target_type = 'thread' AND s.reaction_type = 'save'
		  AND t.tenant_id = $2
		ORDER BY s.created_at DESC`, userID, tenantID)
}

// === Replies ===

// ListReplies returns one page of a thread's replies in posting order plus the total count
func (r *ForumRepository) ListReplies(ctx context.Context, threadID string, limit, offset int) ([]models.ForumReply, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forum_replies WHERE thread_id = $1`, threadID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count replies: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.thread_id, r.author_id, r.body, r.is_hidden, r.created_at, r.updated_at,
		       u.id, u.username, u.display_name, u.avatar_url
		FROM forum_replies r
		LEFT JOIN users u ON u.id = r.author_id
		WHERE r.thread_id = $1
		ORDER BY r.created_at ASC
		LIMIT $2 OFFSET $3
	`, threadID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list replies: %w", err)
	}
	defer rows.Close()

	replies := []models.ForumReply{}
	for rows.Next() {
		var rp models.ForumReply
		var authorID, username sql.NullString
		var displayName, avatar *string
		if err := rows.Scan(&rp.ID, &rp.ThreadID, &rp.AuthorID, &rp.Body, &rp.IsHidden, &rp.CreatedAt, &rp.UpdatedAt,
			&authorID, &username, &displayName, &avatar); err != nil {
			return nil, 0, fmt.Errorf("failed to scan reply: %w", err)
		}
		if authorID.Valid {
			rp.Author = &models.AuthorRef{ID: authorID.String, Username: username.String, DisplayName: displayName, AvatarURL: avatar}
		}
		replies = append(replies, rp)
	}
	return replies, total, rows.Err()
}

// CreateReply inserts the reply and bumps the thread's reply counter and activity time
func (r *ForumRepository) CreateReply(ctx context.Context, rp *models.ForumReply) error {
	rp.ID = uuid.New().String()
	rp.CreatedAt = time.Now()
	rp.UpdatedAt = rp.CreatedAt

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO forum_replies (id, thread_id, author_id, body, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rp.ID, rp.ThreadID, rp.AuthorID, rp.Body, rp.CreatedAt, rp.UpdatedAt); err != nil {
			return fmt.Errorf("failed to create reply: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE forum_threads
			SET replies_count = replies_count + 1, last_activity_at = GREATEST(last_activity_at, $2)
			WHERE id = $1
		`, rp.ThreadID, rp.CreatedAt); err != nil {
			return fmt.Errorf("failed to update thread counters: %w", err)
		}
		return nil
	})
}

// GetReply retrieves a reply whose thread belongs to the community
func (r *ForumRepository) GetReply(ctx context.Context, tenantID, id string) (*models.ForumReply, error) {
	rp := &models.ForumReply{}
	err := r.db.QueryRowContext(ctx, `
		SELECT r.id, r.thread_id, r.author_id, r.body, r.is_hidden, r.created_at, r.updated_at
		FROM forum_replies r
		JOIN forum_threads t ON t.id = r.thread_id
		WHERE r.id = $1 AND t.tenant_id = $2
	`, id, tenantID).Scan(&rp.ID, &rp.ThreadID, &rp.AuthorID, &rp.Body, &rp.IsHidden, &rp.CreatedAt, &rp.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reply: %w", err)
	}
	return rp, nil
}

// DeleteReply removes the reply and decrements the thread's reply counter, never below zero
func (r *ForumRepository) DeleteReply(ctx context.Context, rp *models.ForumReply) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM forum_replies WHERE id = $1`, rp.ID); err != nil {
			return fmt.Errorf("failed to delete reply: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE forum_threads SET replies_count = GREATEST(replies_count - 1, 0)
			WHERE id = $1
		`, rp.ThreadID); err != nil {
			return fmt.Errorf("failed to update thread counters: %w", err)
		}
		return nil
	})
}

// === Subscriptions ===

// Subscribe registers the user for reply notifications on a thread (idempotent)
func (r *ForumRepository) Subscribe(ctx context.Context, userID, threadID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO forum_subscriptions (user_id, thread_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, thread_id) DO NOTHING
	`, userID, threadID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

// Unsubscribe removes a thread subscription (idempotent)
func (r *ForumRepository) Unsubscribe(ctx context.Context, userID, threadID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM forum_subscriptions WHERE user_id = $1 AND thread_id = $2`, userID, threadID)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// IsSubscribed reports whether the user follows the thread's replies
func (r *ForumRepository) IsSubscribed(ctx context.Context, userID, threadID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM forum_subscriptions WHERE user_id = $1 AND thread_id = $2)`,
		userID, threadID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return ok, nil
}

// ListSubscribers returns the user IDs subscribed to a thread
func (r *ForumRepository) ListSubscribers(ctx context.Context, threadID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM forum_subscriptions WHERE thread_id = $1 ORDER BY created_at`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
