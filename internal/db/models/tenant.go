// Package models - tenant.go defines communities (tenants), their site settings and
// the membership rows that grant users a community-scoped role.
package models

import (
	"encoding/json"
	"time"
)

// Tenant status values
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Tenant is one community hosted by the platform
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	Plan      string    `json:"plan" db:"plan"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsSuspended reports whether the community has been suspended by the platform
func (t *Tenant) IsSuspended() bool {
	return t.Status == TenantStatusSuspended
}

// TenantSettings holds the editable public site content of a community
type TenantSettings struct {
	TenantID        string            `json:"tenant_id"`
	SiteTitle       *string           `json:"site_title"`
	HeroTitle       *string           `json:"hero_title"`
	HeroSubtitle    *string           `json:"hero_subtitle"`
	ContactEmail    *string           `json:"contact_email"`
	Socials         map[string]string `json:"socials"`
	DefaultLanguage string            `json:"default_language"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// SocialsJSON encodes Socials for the JSONB column; nil stays NULL.
func (s *TenantSettings) SocialsJSON() ([]byte, error) {
	if s.Socials == nil {
		return nil, nil
	}
	return json.Marshal(s.Socials)
}

// TenantMember grants a user a role inside one community
type TenantMember struct {
	TenantID string    `json:"tenant_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// MemberWithUser is a membership joined to the user columns shown in the admin member list
type MemberWithUser struct {
	UserID      string     `json:"user_id"`
	Username    string     `json:"username"`
	DisplayName *string    `json:"display_name"`
	Email       string     `json:"email"`
	AvatarURL   *string    `json:"avatar_url"`
	GlobalRole  string     `json:"global_role"`
	Status      string     `json:"status"`
	Role        string     `json:"role"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}
