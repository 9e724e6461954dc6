package account

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/auth"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/services"
	"github.com/communityhub/platform/internal/telemetry"
)

type registerRequest struct {
	Username    string  `json:"username" binding:"required,min=3,max=50"`
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=6,max=72"`
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required,min=6"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

func attempt(action, outcome string) {
	telemetry.AuthAttemptsTotal.WithLabelValues(action, outcome).Inc()
}

// RegisterHandler creates an account and a membership in the resolved community
// POST /auth/register
func (h *Handlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		ctx := c.Request.Context()
		tenant := middleware.CurrentTenant(c)

		existing, err := h.users.GetUserByUsername(ctx, req.Username)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if existing != nil {
			attempt("register", "conflict")
			apierror.Respond(c, apierror.Conflict("Username is already taken"))
			return
		}
		existing, err = h.users.GetUserByEmail(ctx, req.Email)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if existing != nil {
			attempt("register", "conflict")
			apierror.Respond(c, apierror.Conflict("Email is already registered"))
			return
		}

		hash, err := auth.HashPassword(req.Password, h.cfg.BcryptCost)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		displayName := req.DisplayName
		if displayName == nil || *displayName == "" {
			displayName = &req.Username
		}
		user := &models.User{
			Username:     req.Username,
			DisplayName:  displayName,
			Email:        req.Email,
			PasswordHash: hash,
		}
		if err := h.users.CreateUserWithMembership(ctx, user, tenant.ID, "member"); err != nil {
			apierror.Respond(c, err)
			return
		}
		if err := h.startSession(c, user, tenant); err != nil {
			apierror.Respond(c, err)
			return
		}

		attempt("register", "success")
		h.auditor.Record(ctx, services.AuditEntry{
			TenantID:   tenant.ID,
			ActorID:    user.ID,
			Action:     "user_register",
			TargetType: "user",
			TargetID:   user.ID,
		})

		member := &models.TenantMember{TenantID: tenant.ID, UserID: user.ID, Role: "member"}
		c.JSON(http.StatusCreated, gin.H{
			"message": "Registration successful",
			"user":    viewOf(user, member),
			"tenant":  tenant,
		})
	}
}

// LoginHandler signs in with username and password
// POST /auth/login
func (h *Handlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		ctx := c.Request.Context()
		tenant := middleware.CurrentTenant(c)

		user, err := h.users.GetUserByUsername(ctx, req.Username)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
			attempt("login", "invalid_credentials")
			apierror.Respond(c, apierror.Unauthenticated("Invalid username or password"))
			return
		}
		if !user.CanSignIn() {
			attempt("login", user.Status)
			apierror.Respond(c, apierror.Unauthenticated("Your account is "+user.Status))
			return
		}

		member, err := h.tenants.GetMember(ctx, tenant.ID, user.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if member == nil {
			attempt("login", "not_member")
			apierror.Respond(c, apierror.Forbidden("You are not a member of this community"))
			return
		}

		if err := h.users.TouchLastLogin(ctx, user.ID); err != nil {
			apierror.Respond(c, err)
			return
		}
		if err := h.startSession(c, user, tenant); err != nil {
			apierror.Respond(c, err)
			return
		}

		attempt("login", "success")
		c.JSON(http.StatusOK, gin.H{
			"message": "Login successful",
			"user":    viewOf(user, member),
			"tenant":  tenant,
		})
	}
}

// LogoutHandler ends the current session. It succeeds without one.
// POST /auth/logout
func (h *Handlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s := middleware.CurrentSession(c); s != nil {
			if err := h.sessions.DeleteSession(c.Request.Context(), s.ID); err != nil {
				apierror.Respond(c, err)
				return
			}
		}
		middleware.ClearSessionCookie(c, h.cfg.Session)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// MeHandler returns the signed-in user with their role in this community
// GET /auth/me
func (h *Handlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated", "user": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user":   viewOf(user, middleware.CurrentMembership(c)),
			"tenant": middleware.CurrentTenant(c),
		})
	}
}

// ChangePasswordHandler replaces the caller's password and signs out their other sessions
// POST /auth/change-password
func (h *Handlers) ChangePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}

		user := middleware.CurrentUser(c)
		if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
			apierror.Respond(c, apierror.Unauthenticated("Current password is incorrect"))
			return
		}

		ctx := c.Request.Context()
		hash, err := auth.HashPassword(req.NewPassword, h.cfg.BcryptCost)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if err := h.users.UpdatePassword(ctx, user.ID, hash); err != nil {
			apierror.Respond(c, err)
			return
		}

		keep := ""
		if s := middleware.CurrentSession(c); s != nil {
			keep = s.ID
		}
		revoked, err := h.sessions.DeleteOtherSessions(ctx, user.ID, keep)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Password updated", "sessions_revoked": revoked})
	}
}
