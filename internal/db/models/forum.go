// Package models - forum.go defines categories, threads, replies, reports and the small
// reference shapes that listing endpoints embed.
package models

import "time"

// AuthorRef is the author summary embedded in threads and replies
type AuthorRef struct {
	ID          string  `json:"id" db:"id"`
	Username    string  `json:"username" db:"username"`
	DisplayName *string `json:"display_name" db:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty" db:"avatar_url"`
}

// CategoryRef is the category summary embedded in thread listings
type CategoryRef struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug,omitempty" db:"slug"`
}

// ThreadRef is the thread summary embedded in reply listings
type ThreadRef struct {
	ID    string `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
	Slug  string `json:"slug" db:"slug"`
}

// ForumCategory groups threads inside a community
type ForumCategory struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description *string      `json:"description"`
	IsLocked    bool         `json:"is_locked"`
	CreatedAt   time.Time    `json:"created_at"`
	LastThread  *ForumThread `json:"last_thread"`
}

// ForumThread is a discussion topic
type ForumThread struct {
	ID             string       `json:"id" db:"id"`
	TenantID       string       `json:"tenant_id" db:"tenant_id"`
	CategoryID     string       `json:"category_id" db:"category_id"`
	AuthorID       *string      `json:"author_id" db:"author_id"`
	Title          string       `json:"title" db:"title"`
	Slug           string       `json:"slug" db:"slug"`
	Body           string       `json:"body" db:"body"`
	IsPinned       bool         `json:"is_pinned" db:"is_pinned"`
	IsLocked       bool         `json:"is_locked" db:"is_locked"`
	IsHidden       bool         `json:"is_hidden" db:"is_hidden"`
	ViewsCount     int          `json:"views_count" db:"views_count"`
	RepliesCount   int          `json:"replies_count" db:"replies_count"`
	LastActivityAt time.Time    `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	Author         *AuthorRef   `json:"author,omitempty" db:"-"`
	Category       *CategoryRef `json:"category,omitempty" db:"-"`
}

// ForumReply is a reply inside a thread
type ForumReply struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"thread_id"`
	AuthorID  *string    `json:"author_id"`
	Body      string     `json:"body"`
	IsHidden  bool       `json:"is_hidden"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Author    *AuthorRef `json:"author,omitempty"`
	Thread    *ThreadRef `json:"thread,omitempty"`
}

// Report status values
const (
	ReportStatusPending   = "pending"
	ReportStatusReviewed  = "reviewed"
	ReportStatusResolved  = "resolved"
	ReportStatusDismissed = "dismissed"
)

// ForumReport is a member's report of content for moderator review
type ForumReport struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	ReporterID *string    `json:"reporter_id"`
	TargetType string     `json:"target_type"`
	TargetID   string     `json:"target_id"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
	ResolvedBy *string    `json:"resolved_by"`
}
