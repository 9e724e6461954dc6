// Package models - user.go defines platform accounts and their server-side sessions.
package models

import "time"

// User status values
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusBanned    = "banned"
)

// User is a platform-wide account. Role is the global role; community roles live in TenantMember.
type User struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	DisplayName        *string    `json:"display_name"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	Role               string     `json:"role"`
	Status             string     `json:"status"`
	Bio                *string    `json:"bio"`
	AvatarURL          *string    `json:"avatar_url"`
	TrustLevel         int        `json:"trust_level"`
	ReputationPoints   int        `json:"reputation_points"`
	EmailVerified      bool       `json:"email_verified"`
	MustChangePassword bool       `json:"must_change_password"`
	OIDCSubject        *string    `json:"-"`
	LastLoginAt        *time.Time `json:"last_login_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// CanSignIn reports whether the account is allowed to hold a session
func (u *User) CanSignIn() bool {
	return u.Status != UserStatusBanned && u.Status != UserStatusSuspended
}

// Name returns the display name, falling back to the username
func (u *User) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Username
}

// Public returns the profile view of the user, without e-mail or account flags
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		Username:         u.Username,
		DisplayName:      u.DisplayName,
		Bio:              u.Bio,
		AvatarURL:        u.AvatarURL,
		Role:             u.Role,
		TrustLevel:       u.TrustLevel,
		ReputationPoints: u.ReputationPoints,
		CreatedAt:        u.CreatedAt,
	}
}

// PublicUser is the user shape visible to other members
type PublicUser struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	DisplayName      *string   `json:"display_name"`
	Bio              *string   `json:"bio"`
	AvatarURL        *string   `json:"avatar_url"`
	Role             string    `json:"role"`
	TrustLevel       int       `json:"trust_level"`
	ReputationPoints int       `json:"reputation_points"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session is a server-side login session referenced by the session token's jti
type Session struct {
	ID        string
	UserID    string
	TenantID  *string
	TokenHash string
	IP        *string
	UserAgent *string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
