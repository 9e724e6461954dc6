// reaction_repository.go implements ReactionRepository for the follow and save
// markers members place on categories, threads and posts.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/communityhub/platform/internal/db/models"
)

// Reaction types
const (
	ReactionFollow = "follow"
	ReactionSave   = "save"
)

// ReactionRepository handles forum_reactions rows
type ReactionRepository struct {
	db *sql.DB
}

// NewReactionRepository creates a new reaction repository
func NewReactionRepository(db *sql.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// Add places a marker; repeating it is a no-op
func (r *ReactionRepository) Add(ctx context.Context, rc *models.Reaction) error {
	rc.CreatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO forum_reactions (user_id, target_type, target_id, reaction_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, target_type, target_id, reaction_type) DO NOTHING
	`, rc.UserID, rc.TargetType, rc.TargetID, rc.ReactionType, rc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", rc.ReactionType, err)
	}
	return nil
}

// Remove deletes a marker; removing a missing marker is a no-op
func (r *ReactionRepository) Remove(ctx context.Context, rc *models.Reaction) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM forum_reactions
		WHERE user_id = $1 AND target_type = $2 AND target_id = $3 AND reaction_type = $4
	`, rc.UserID, rc.TargetType, rc.TargetID, rc.ReactionType)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", rc.ReactionType, err)
	}
	return nil
}

// Exists reports whether the marker is present
func (r *ReactionRepository) Exists(ctx context.Context, rc *models.Reaction) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM forum_reactions
			WHERE user_id = $1 AND target_type = $2 AND target_id = $3 AND reaction_type = $4
		)
	`, rc.UserID, rc.TargetType, rc.TargetID, rc.ReactionType).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", rc.ReactionType, err)
	}
	return ok, nil
}

// ReactionFilter narrows ListMarked. TargetTypes must name at least one type;
// an empty TargetID matches every target.
type ReactionFilter struct {
	UserID       string
	ReactionType string
	TargetTypes  []string
	TargetID     string
}

// markerTargets maps a marker target type to its table and title column
var markerTargets = map[string]struct{ table, title string }{
	"category": {"forum_categories", "name"},
	"thread":   {"forum_threads", "title"},
	"post":     {"posts", "title"},
}

// ListMarked returns the user's markers whose targets belong to tenantID, joined to
// the target's title, newest first. Markers on deleted targets drop out of the join.
func (r *ReactionRepository) ListMarked(ctx context.Context, tenantID string, f ReactionFilter) ([]models.MarkedItem, error) {
	out := []models.MarkedItem{}
	for _, targetType := range f.TargetTypes {
		target, ok := markerTargets[targetType]
		if !ok {
			return nil, fmt.Errorf("unknown marker target type %q", targetType)
		}

		query := `
			SELECT m.target_type, m.target_id, t.` + target.title + `, m.created_at
			FROM forum_reactions m
			JOIN ` + target.table + ` t ON t.id = m.target_id
			WHERE m.user_id = $1 AND m.reaction_type = $2 AND m.target_type = $3 AND t.tenant_id = $4`
		args := []any{f.UserID, f.ReactionType, targetType, tenantID}
		if f.TargetID != "" {
			args = append(args, f.TargetID)
			query += ` AND m.target_id = $5`
		}

		items, err := r.scanMarked(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ReactionRepository) scanMarked(ctx context.Context, query string, args ...any) ([]models.MarkedItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	defer rows.Close()

	var items []models.MarkedItem
	for rows.Next() {
		var it models.MarkedItem
		if err := rows.Scan(&it.TargetType, &it.TargetID, &it.Title, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan marker: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
