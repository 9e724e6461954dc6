// Package models - notification.go defines in-app notifications, moderation log
// entries, follow/save reactions and uploaded media.
package models

import "time"

// Notification types
const (
	NotificationReply     = "reply"
	NotificationMention   = "mention"
	NotificationLike      = "like"
	NotificationDM        = "dm"
	NotificationModAction = "mod_action"
)

// Notification is an in-app message for one user
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	TenantID  *string                `json:"tenant_id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	IsRead    bool                   `json:"is_read"`
	CreatedAt time.Time              `json:"created_at"`
}

// ModerationLog records a privileged action; Metadata always carries tenant_id
type ModerationLog struct {
	ID         string                 `json:"id"`
	ActorID    *string                `json:"actor_id"`
	ActionType string                 `json:"action_type"`
	TargetType string                 `json:"target_type"`
	TargetID   string                 `json:"target_id"`
	Reason     *string                `json:"reason"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Reaction is a follow or save marker on a forum target
type Reaction struct {
	UserID       string    `json:"user_id"`
	TargetType   string    `json:"target_type"`
	TargetID     string    `json:"target_id"`
	ReactionType string    `json:"reaction_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// MarkedItem is a followed or saved target with its current title
type MarkedItem struct {
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
}

// MediaAsset is an uploaded file kept in the configured storage backend
type MediaAsset struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	UploaderID  *string   `json:"uploader_id"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
