// Package account implements the /auth endpoints: local registration and
// login, logout, the current-user lookup, password changes and OpenID Connect
// single sign-on.
package account

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/communityhub/platform/internal/auth"
	"github.com/communityhub/platform/internal/auth/oidc"
	"github.com/communityhub/platform/internal/config"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
)

const defaultSessionTTL = 7 * 24 * time.Hour

// SSOProvider is the part of the OpenID Connect client the callback needs
type SSOProvider interface {
	AuthURL(state string) string
	Authenticate(ctx context.Context, code string) (*oidc.Identity, error)
}

// Handlers serves the account endpoints
type Handlers struct {
	cfg      config.AuthConfig
	users    *repositories.UserRepository
	sessions *repositories.SessionRepository
	tenants  *repositories.TenantRepository
	auditor  *services.Auditor
	sso      SSOProvider
}

// NewHandlers creates the account handlers. SSO stays disabled until
// SetSSOProvider is called.
func NewHandlers(cfg config.AuthConfig, db *sql.DB, auditor *services.Auditor) *Handlers {
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = defaultSessionTTL
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "community_session"
	}
	return &Handlers{
		cfg:      cfg,
		users:    repositories.NewUserRepository(db),
		sessions: repositories.NewSessionRepository(db),
		tenants:  repositories.NewTenantRepository(db),
		auditor:  auditor,
	}
}

// SetSSOProvider enables the /auth/sso routes
func (h *Handlers) SetSSOProvider(p SSOProvider) {
	h.sso = p
}

// Register mounts the /auth routes on rg. limiter may be nil.
func (h *Handlers) Register(rg *gin.RouterGroup, limiter middleware.Limiter) {
	limited := func(c *gin.Context) { c.Next() }
	if limiter != nil {
		limited = middleware.RateLimitMiddleware(limiter, middleware.ScopeAuth)
	}

	g := rg.Group("/auth")
	g.POST("/register", limited, h.RegisterHandler())
	g.POST("/login", limited, h.LoginHandler())
	g.POST("/logout", h.LogoutHandler())
	g.GET("/me", h.MeHandler())
	g.POST("/change-password", middleware.RequireAuthenticated(), h.ChangePasswordHandler())
	g.GET("/sso/login", limited, h.SSOLoginHandler())
	g.GET("/sso/callback", limited, h.SSOCallbackHandler())
}

// accountView is the signed-in user as returned by the auth endpoints
type accountView struct {
	*models.User
	TenantRole *string `json:"tenant_role"`
}

func viewOf(u *models.User, m *models.TenantMember) accountView {
	v := accountView{User: u}
	if m != nil {
		role := m.Role
		v.TenantRole = &role
	}
	return v
}

// startSession stores a session row for user in tenant, sets the cookie and
// attaches the identity to the rest of the request.
func (h *Handlers) startSession(c *gin.Context, user *models.User, tenant *models.Tenant) error {
	id := uuid.New().String()
	token, err := auth.GenerateSessionToken(id, user.ID, tenant.ID, h.cfg.Session.TTL)
	if err != nil {
		return err
	}

	tenantID := tenant.ID
	s := &models.Session{
		ID:        id,
		UserID:    user.ID,
		TenantID:  &tenantID,
		TokenHash: auth.HashToken(token),
		IP:        optional(c.ClientIP()),
		UserAgent: optional(c.Request.UserAgent()),
		ExpiresAt: time.Now().Add(h.cfg.Session.TTL),
	}
	if err := h.sessions.CreateSession(c.Request.Context(), s); err != nil {
		return err
	}

	middleware.SetSessionCookie(c, h.cfg.Session, token)
	middleware.SetUser(c, user, s)
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// secure reports whether cookies set by these handlers need the Secure flag
func (h *Handlers) secure(c *gin.Context) bool {
	return h.cfg.Session.Secure || c.Request.TLS != nil
}

func setShortCookie(c *gin.Context, name, value string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", secure, true)
}
