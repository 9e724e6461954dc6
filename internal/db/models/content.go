// Package models - content.go defines blog posts, events and event registrations.
package models

import "time"

// Post status values
const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
)

// Post is an editorial article published by community editors
type Post struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	AuthorID       *string    `json:"author_id"`
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	Excerpt        *string    `json:"excerpt"`
	Content        string     `json:"content"`
	CoverImage     *string    `json:"cover_image"`
	Status         string     `json:"status"`
	PublishedAt    *time.Time `json:"published_at"`
	SEOTitle       *string    `json:"seo_title"`
	SEODescription *string    `json:"seo_description"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Event is a community event, optionally with a capacity limit
type Event struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	Title           string     `json:"title"`
	Category        *string    `json:"category"`
	Description     *string    `json:"description"`
	Location        *string    `json:"location"`
	EventDate       *time.Time `json:"event_date"`
	Capacity        *int       `json:"capacity"`
	RegisteredCount int        `json:"registered_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsFull reports whether the event has reached its capacity
func (e *Event) IsFull() bool {
	return e.Capacity != nil && e.RegisteredCount >= *e.Capacity
}

// EventRegistration is one attendee sign-up
type EventRegistration struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    *string   `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
