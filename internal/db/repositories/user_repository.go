// user_repository.go implements UserRepository for platform accounts and
// SessionRepository for the server-side login sessions referenced by session tokens.
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

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, display_name, email, password_hash, role, status, bio, avatar_url,
	trust_level, reputation_points, email_verified, must_change_password, oidc_subject,
	last_login_at, created_at`

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.Bio, &u.AvatarURL, &u.TrustLevel, &u.ReputationPoints, &u.EmailVerified,
		&u.MustChangePassword, &u.OIDCSubject, &u.LastLoginAt, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetUserByUsername retrieves a user by username (case-sensitive)
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username = $1", username)
}

// GetUserByEmail retrieves a user by e-mail address (case-insensitive)
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "LOWER(email) = LOWER($1)", email)
}

// GetUserByOIDCSubject retrieves the user linked to an identity provider subject
func (r *UserRepository) GetUserByOIDCSubject(ctx context.Context, sub string) (*models.User, error) {
	return r.getOne(ctx, "oidc_subject = $1", sub)
}

// CreateUser inserts a new account. Conflicting username or e-mail yields ErrDuplicate.
func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) error {
	return insertUser(ctx, r.db, u)
}

// CreateUserWithMembership inserts the user and its membership of tenantID in
// one transaction, so a failed membership never leaves an account behind.
func (r *UserRepository) CreateUserWithMembership(ctx context.Context, u *models.User, tenantID, role string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tenant_members (tenant_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
		`, tenantID, u.ID, role, u.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		return nil
	})
}

func insertUser(ctx context.Context, db execer, u *models.User) error {
	u.ID = uuid.New().String()
	u.CreatedAt = time.Now()
	if u.Role == "" {
		u.Role = "user"
	}
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, email, password_hash, role, status,
		                   email_verified, oidc_subject, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.Username, u.DisplayName, u.Email, u.PasswordHash, u.Role, u.Status,
		u.EmailVerified, u.OIDCSubject, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// TouchLastLogin records a successful sign-in
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the password hash and clears the forced-change flag
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, must_change_password = FALSE
		WHERE id = $1
	`, id, hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// LinkOIDCSubject attaches an identity provider subject to an existing account
func (r *UserRepository) LinkOIDCSubject(ctx context.Context, id, sub string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET oidc_subject = $2 WHERE id = $1`, id, sub)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to link oidc subject: %w", err)
	}
	return nil
}

// SessionRepository handles user_sessions rows
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession stores a new session. The caller may pre-assign ID so the token
// can carry it; otherwise one is generated.
func (r *SessionRepository) CreateSession(ctx context.Context, s *models.Session) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_sessions (id, user_id, tenant_id, token_hash, ip, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.UserID, s.TenantID, s.TokenHash, s.IP, s.UserAgent, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID regardless of expiry
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, tenant_id, token_hash, ip, user_agent, expires_at, created_at
		FROM user_sessions
		WHERE id = $1
	`, id).Scan(&s.ID, &s.UserID, &s.TenantID, &s.TokenHash, &s.IP, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// DeleteSession removes one session
func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteOtherSessions removes every session of the user except keepID
func (r *SessionRepository) DeleteOtherSessions(ctx context.Context, userID, keepID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE user_id = $1 AND id <> $2`, userID, keepID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes sessions whose expiry is before now
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
