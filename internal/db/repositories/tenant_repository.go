// tenant_repository.go implements TenantRepository: communities, their site settings
// and membership rows, including the locked privileged-member count used when
// changing or removing members.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/communityhub/platform/internal/db/models"
)

// TenantRepository handles database operations for communities and memberships
type TenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, slug, plan, status, created_at`

func scanTenant(row *sql.Row) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Plan, &t.Status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// GetBySlug retrieves a community by its URL slug
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
}

// GetByID retrieves a community by ID
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

// EnsureTenant creates the community if the slug is free and returns the stored row
func (r *TenantRepository) EnsureTenant(ctx context.Context, slug, name string) (*models.Tenant, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, plan, status, created_at)
		VALUES ($1, $2, $3, 'free', 'active', $4)
		ON CONFLICT (slug) DO NOTHING
	`, uuid.New().String(), name, slug, time.Now())
	if err != nil {
		return nil, false, fmt.Errorf("failed to create tenant: %w", err)
	}
	created, err := rowsAffected(res)
	if err != nil {
		return nil, false, err
	}
	t, err := r.GetBySlug(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	if t == nil {
		return nil, false, fmt.Errorf("tenant %q missing after create", slug)
	}
	return t, created, nil
}

// TenantStats summarises one community for diagnostics
type TenantStats struct {
	Tenant     models.Tenant
	Members    int
	Privileged int
}

// ListWithStats returns every community with its member and privileged member counts
func (r *TenantRepository) ListWithStats(ctx context.Context) ([]TenantStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.slug, t.plan, t.status, t.created_at,
		       COUNT(m.user_id) AS members,
		       COUNT(m.user_id) FILTER (WHERE m.role IN ('owner', 'superadmin')) AS privileged
		FROM tenants t
		LEFT JOIN tenant_members m ON m.tenant_id = t.id
		GROUP BY t.id
		ORDER BY t.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []TenantStats
	for rows.Next() {
		var s TenantStats
		if err := rows.Scan(&s.Tenant.ID, &s.Tenant.Name, &s.Tenant.Slug, &s.Tenant.Plan,
			&s.Tenant.Status, &s.Tenant.CreatedAt, &s.Members, &s.Privileged); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// === Membership ===

// GetMember returns the membership of userID in tenantID, or nil if there is none
func (r *TenantRepository) GetMember(ctx context.Context, tenantID, userID string) (*models.TenantMember, error) {
	m := &models.TenantMember{}
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, user_id, role, joined_at
		FROM tenant_members
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID).Scan(&m.TenantID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// AddMember inserts a membership; an existing membership is left untouched
func (r *TenantRepository) AddMember(ctx context.Context, tenantID, userID, role string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenant_members (tenant_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, user_id) DO NOTHING
	`, tenantID, userID, role, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// ListMembers returns every member of the community joined to their account
func (r *TenantRepository) ListMembers(ctx context.Context, tenantID string) ([]models.MemberWithUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.display_name, u.email, u.avatar_url, u.role, u.status,
		       m.role, m.joined_at, u.last_login_at
		FROM tenant_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.tenant_id = $1
		ORDER BY m.joined_at
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []models.MemberWithUser{}
	for rows.Next() {
		var m models.MemberWithUser
		if err := rows.Scan(&m.UserID, &m.Username, &m.DisplayName, &m.Email, &m.AvatarURL,
			&m.GlobalRole, &m.Status, &m.Role, &m.JoinedAt, &m.LastLoginAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// MembershipTx is the view of the membership table available inside
// TenantRepository.InMembershipTx.
type MembershipTx struct {
	tx *sql.Tx
}

// InMembershipTx runs fn in a transaction over the membership table
func (r *TenantRepository) InMembershipTx(ctx context.Context, fn func(mt *MembershipTx) error) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&MembershipTx{tx: tx})
	})
}

// GetMember reads a membership inside the transaction, locking the row
func (mt *MembershipTx) GetMember(ctx context.Context, tenantID, userID string) (*models.TenantMember, error) {
	m := &models.TenantMember{}
	err := mt.tx.QueryRowContext(ctx, `
		SELECT tenant_id, user_id, role, joined_at
		FROM tenant_members
		WHERE tenant_id = $1 AND user_id = $2
		FOR UPDATE
	`, tenantID, userID).Scan(&m.TenantID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// LockPrivilegedMembers locks and returns the user IDs holding owner or superadmin
// in the community, so concurrent demotions serialise on the same rows.
func (mt *MembershipTx) LockPrivilegedMembers(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := mt.tx.QueryContext(ctx, `
		SELECT user_id
		FROM tenant_members
		WHERE tenant_id = $1 AND role IN ('owner', 'superadmin')
		ORDER BY user_id
		FOR UPDATE
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock privileged members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan privileged member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateRole sets the role of one membership, scoped to the community
func (mt *MembershipTx) UpdateRole(ctx context.Context, tenantID, userID, role string) error {
	_, err := mt.tx.ExecContext(ctx, `
		UPDATE tenant_members SET role = $3
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return nil
}

// Remove deletes one membership
func (mt *MembershipTx) Remove(ctx context.Context, tenantID, userID string) error {
	_, err := mt.tx.ExecContext(ctx,
		`DELETE FROM tenant_members WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// === Site settings ===

// GetSettings returns the site content of a community, or nil if never saved
func (r *TenantRepository) GetSettings(ctx context.Context, tenantID string) (*models.TenantSettings, error) {
	s := &models.TenantSettings{}
	var socials []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, site_title, hero_title, hero_subtitle, contact_email, socials,
		       default_language, updated_at
		FROM tenant_settings
		WHERE tenant_id = $1
	`, tenantID).Scan(&s.TenantID, &s.SiteTitle, &s.HeroTitle, &s.HeroSubtitle, &s.ContactEmail,
		&socials, &s.DefaultLanguage, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant settings: %w", err)
	}
	if len(socials) > 0 {
		if err := json.Unmarshal(socials, &s.Socials); err != nil {
			return nil, fmt.Errorf("failed to decode socials: %w", err)
		}
	}
	return s, nil
}

// UpsertSettings stores the complete site content of a community
func (r *TenantRepository) UpsertSettings(ctx context.Context, s *models.TenantSettings) error {
	socials, err := s.SocialsJSON()
	if err != nil {
		return fmt.Errorf("failed to encode socials: %w", err)
	}
	if s.DefaultLanguage == "" {
		s.DefaultLanguage = "tr"
	}
	s.UpdatedAt = time.Now()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, site_title, hero_title, hero_subtitle, contact_email,
		                             socials, default_language, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id) DO UPDATE SET
			site_title = EXCLUDED.site_title,
			hero_title = EXCLUDED.hero_title,
			hero_subtitle = EXCLUDED.hero_subtitle,
			contact_email = EXCLUDED.contact_email,
			socials = EXCLUDED.socials,
			default_language = EXCLUDED.default_language,
			updated_at = EXCLUDED.updated_at
	`, s.TenantID, s.SiteTitle, s.HeroTitle, s.HeroSubtitle, s.ContactEmail, socials, s.DefaultLanguage, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save tenant settings: %w", err)
	}
	return nil
}
