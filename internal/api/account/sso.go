package account

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/auth"
	"github.com/communityhub/platform/internal/auth/oidc"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/validation"
)

const (
	stateCookie       = "community_sso_state"
	stateCookieMaxAge = 600
	maxUsernameTries  = 20
)

// SSOLoginHandler redirects to the identity provider
// GET /auth/sso/login
func (h *Handlers) SSOLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.sso == nil {
			apierror.Respond(c, apierror.NotFound("Single sign-on is not enabled"))
			return
		}
		state, err := auth.RandomToken(32)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		setShortCookie(c, stateCookie, state, stateCookieMaxAge, h.secure(c))
		c.Redirect(http.StatusFound, h.sso.AuthURL(state))
	}
}

// SSOCallbackHandler completes the authorization-code flow and signs the user in
// GET /auth/sso/callback?code=...&state=...
func (h *Handlers) SSOCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.sso == nil {
			apierror.Respond(c, apierror.NotFound("Single sign-on is not enabled"))
			return
		}

		expected, _ := c.Cookie(stateCookie)
		setShortCookie(c, stateCookie, "", -1, h.secure(c))
		state := c.Query("state")
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
			attempt("sso", "invalid_state")
			apierror.Respond(c, apierror.Invariant("Invalid or expired sign-in state"))
			return
		}
		code := c.Query("code")
		if code == "" {
			apierror.Respond(c, apierror.Invariant("Missing authorization code"))
			return
		}

		ctx := c.Request.Context()
		identity, err := h.sso.Authenticate(ctx, code)
		if err != nil {
			slog.Warn("sso authentication failed", "error", err)
			attempt("sso", "failed")
			apierror.Respond(c, apierror.Unauthenticated("Single sign-on failed"))
			return
		}

		user, err := h.resolveSSOUser(ctx, identity)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if !user.CanSignIn() {
			attempt("sso", user.Status)
			apierror.Respond(c, apierror.Unauthenticated("Your account is "+user.Status))
			return
		}

		tenant := middleware.CurrentTenant(c)
		member, err := h.tenants.GetMember(ctx, tenant.ID, user.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		if member == nil {
			if !h.cfg.OIDC.AutoJoin {
				attempt("sso", "not_member")
				apierror.Respond(c, apierror.Forbidden("You are not a member of this community"))
				return
			}
			if err := h.tenants.AddMember(ctx, tenant.ID, user.ID, "member"); err != nil {
				apierror.Respond(c, err)
				return
			}
		}

		if err := h.users.TouchLastLogin(ctx, user.ID); err != nil {
			apierror.Respond(c, err)
			return
		}
		if err := h.startSession(c, user, tenant); err != nil {
			apierror.Respond(c, err)
			return
		}

		attempt("sso", "success")
		redirect := h.cfg.OIDC.PostLoginRedirect
		if redirect == "" {
			redirect = "/"
		}
		c.Redirect(http.StatusFound, redirect)
	}
}

// resolveSSOUser finds the account for identity by subject, then by verified
// e-mail (linking the subject), and otherwise creates one.
func (h *Handlers) resolveSSOUser(ctx context.Context, identity *oidc.Identity) (*models.User, error) {
	user, err := h.users.GetUserByOIDCSubject(ctx, identity.Subject)
	if err != nil || user != nil {
		return user, err
	}

	if identity.EmailVerified {
		user, err = h.users.GetUserByEmail(ctx, identity.Email)
		if err != nil {
			return nil, err
		}
		if user != nil {
			if err := h.users.LinkOIDCSubject(ctx, user.ID, identity.Subject); err != nil {
				return nil, err
			}
			user.OIDCSubject = &identity.Subject
			return user, nil
		}
	}

	username, err := h.uniqueUsername(ctx, identity)
	if err != nil {
		return nil, err
	}
	subject := identity.Subject
	user = &models.User{
		Username:      username,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		OIDCSubject:   &subject,
	}
	if identity.Name != "" {
		name := identity.Name
		user.DisplayName = &name
	} else {
		user.DisplayName = &user.Username
	}
	if err := h.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// uniqueUsername derives a free username from the identity's claims
func (h *Handlers) uniqueUsername(ctx context.Context, identity *oidc.Identity) (string, error) {
	base := usernameBase(identity)
	candidate := base
	for i := 2; i <= maxUsernameTries+1; i++ {
		existing, err := h.users.GetUserByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", apierror.Conflict("Could not find a free username for this account")
}

func usernameBase(identity *oidc.Identity) string {
	raw := identity.PreferredUsername
	if raw == "" {
		raw, _, _ = strings.Cut(identity.Email, "@")
	}
	base := []rune(validation.Slugify(raw))
	if len(base) > 40 {
		base = base[:40]
	}
	for len(base) < 3 {
		base = append(base, 'x')
	}
	return string(base)
}
