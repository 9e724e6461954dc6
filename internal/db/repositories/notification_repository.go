// notification_repository.go implements NotificationRepository for in-app notifications
// and MediaRepository for uploaded media records.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/communityhub/platform/internal/db/models"
)

// NotificationRepository handles notifications rows
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification inserts a notification
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now()

	payload, err := marshalJSONB(n.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, tenant_id, type, payload, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`, n.ID, n.UserID, n.TenantID, n.Type, payload, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListForUser returns the user's notifications in this community (and platform-wide ones),
// newest first, capped at limit.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID, tenantID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, tenant_id, type, payload, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND (tenant_id = $2 OR tenant_id IS NULL)
		  AND ($3 = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC
		LIMIT $4
	`, userID, tenantID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.TenantID, &n.Type, &payload, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if n.Payload, err = unmarshalJSONB(payload); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread returns how many unread notifications the user has in this community
func (r *NotificationRepository) CountUnread(ctx context.Context, userID, tenantID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND (tenant_id = $2 OR tenant_id IS NULL) AND is_read = FALSE
	`, userID, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

// MarkAllRead flags every unread notification of the user in this community as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID, tenantID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND (tenant_id = $2 OR tenant_id IS NULL) AND is_read = FALSE
	`, userID, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

// MediaRepository handles media_assets rows
type MediaRepository struct {
	db *sql.DB
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *sql.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// CreateMedia records an uploaded object
func (r *MediaRepository) CreateMedia(ctx context.Context, m *models.MediaAsset) error {
	m.ID = uuid.New().String()
	m.CreatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO media_assets (id, tenant_id, uploader_id, storage_path, content_type, size_bytes, checksum, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.TenantID, m.UploaderID, m.StoragePath, m.ContentType, m.SizeBytes, m.Checksum, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create media asset: %w", err)
	}
	return nil
}

// ListMedia returns the community's uploads, newest first
func (r *MediaRepository) ListMedia(ctx context.Context, tenantID string, limit, offset int) ([]models.MediaAsset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, uploader_id, storage_path, content_type, size_bytes, checksum, created_at
		FROM media_assets
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	out := []models.MediaAsset{}
	for rows.Next() {
		var m models.MediaAsset
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UploaderID, &m.StoragePath, &m.ContentType,
			&m.SizeBytes, &m.Checksum, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan media asset: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
