// Package models - activity.go defines the merged activity feed entry and the
// aggregate shapes returned by the highlights and profile queries.
package models

import "time"

// Activity item kinds
const (
	ActivityThread = "thread"
	ActivityReply  = "reply"
	ActivityPost   = "post"
	ActivityEvent  = "event"
)

// ActivityItem is one entry of the merged activity feed. RefID is the thread id
// for replies and the slug for posts; otherwise it is the item id.
type ActivityItem struct {
	Type      string    `json:"type" db:"type"`
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	RefID     string    `json:"ref_id" db:"ref_id"`
	Timestamp time.Time `json:"timestamp" db:"ts"`
}

// Highlights groups the three thread rankings shown on the forum landing page
type Highlights struct {
	Newest       []ForumThread `json:"newest"`
	MostAnswered []ForumThread `json:"most_answered"`
	MostViewed   []ForumThread `json:"most_viewed"`
}

// Profile is a member's public profile with their recent contributions
type Profile struct {
	User    PublicUser    `json:"user"`
	Role    string        `json:"tenant_role"`
	Threads []ForumThread `json:"threads"`
	Replies []ForumReply  `json:"replies"`
}
