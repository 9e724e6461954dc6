// post_repository.go implements PostRepository for editorial posts. Public reads only
// see published posts; the admin listing sees every status.
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

// PostRepository handles posts rows
type PostRepository struct {
	db *sql.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `id, tenant_id, author_id, title, slug, excerpt, content, cover_image, status,
	published_at, seo_title, seo_description, created_at, updated_at`

func scanPost(s scanner) (*models.Post, error) {
	p := &models.Post{}
	err := s.Scan(&p.ID, &p.TenantID, &p.AuthorID, &p.Title, &p.Slug, &p.Excerpt, &p.Content,
		&p.CoverImage, &p.Status, &p.PublishedAt, &p.SEOTitle, &p.SEODescription, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PostRepository) list(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func (r *PostRepository) one(ctx context.Context, query string, args ...any) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

// ListPublished returns the community's published posts, newest publication first
func (r *PostRepository) ListPublished(ctx context.Context, tenantID string) ([]models.Post, error) {
	return r.list(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE tenant_id = $1 AND status = 'published'
		ORDER BY COALESCE(published_at, created_at) DESC`, tenantID)
}

// ListAll returns every post of the community regardless of status
func (r *PostRepository) ListAll(ctx context.Context, tenantID string) ([]models.Post, error) {
	return r.list(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE tenant_id = $1
		ORDER BY updated_at DESC`, tenantID)
}

// GetPublished finds a published post by ID or slug
func (r *PostRepository) GetPublished(ctx context.Context, tenantID, idOrSlug string) (*models.Post, error) {
	return r.one(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE tenant_id = $1 AND status = 'published' AND (id::text = $2 OR slug = $2)`, tenantID, idOrSlug)
}

// GetByID finds any post of the community by ID
func (r *PostRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Post, error) {
	return r.one(ctx, `SELECT `+postColumns+` FROM posts WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

// CreatePost inserts a post; a slug already used in the community yields ErrDuplicate
func (r *PostRepository) CreatePost(ctx context.Context, p *models.Post) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, tenant_id, author_id, title, slug, excerpt, content, cover_image, status,
		                   published_at, seo_title, seo_description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.TenantID, p.AuthorID, p.Title, p.Slug, p.Excerpt, p.Content, p.CoverImage, p.Status,
		p.PublishedAt, p.SEOTitle, p.SEODescription, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// UpdatePost writes every editable column of p
func (r *PostRepository) UpdatePost(ctx context.Context, p *models.Post) error {
	p.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts SET title = $3, slug = $4, excerpt = $5, content = $6, cover_image = $7,
		       status = $8, published_at = $9, seo_title = $10, seo_description = $11, updated_at = $12
		WHERE id = $1 AND tenant_id = $2
	`, p.ID, p.TenantID, p.Title, p.Slug, p.Excerpt, p.Content, p.CoverImage, p.Status,
		p.PublishedAt, p.SEOTitle, p.SEODescription, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// DeletePost removes a post; false is returned when it does not exist
func (r *PostRepository) DeletePost(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	return rowsAffected(res)
}

// PostExists reports whether the post belongs to the community
func (r *PostRepository) PostExists(ctx context.Context, tenantID, id string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1 AND tenant_id = $2)`, id, tenantID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check post: %w", err)
	}
	return ok, nil
}
