package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/auth"
	"github.com/communityhub/platform/internal/config"
	"github.com/communityhub/platform/internal/db/repositories"
)

// SessionMiddleware identifies the caller from the session cookie, or from an
// Authorization: Bearer header carrying the same token. A missing, invalid,
// expired or revoked token leaves the request anonymous; so does a banned or
// suspended account. Only storage failures abort the request.
func SessionMiddleware(cfg config.SessionConfig, sessions *repositories.SessionRepository, users *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cfg.CookieName)
		if token == "" {
			c.Next()
			return
		}

		claims, err := auth.ValidateSessionToken(token)
		if err != nil {
			slog.Debug("ignoring invalid session token", "error", err)
			c.Next()
			return
		}

		ctx := c.Request.Context()
		session, err := sessions.GetSession(ctx, claims.ID)
		if err != nil {
			apierror.Abort(c, err)
			return
		}
		if session == nil || session.Expired(time.Now()) || session.UserID != claims.Subject ||
			subtle.ConstantTimeCompare([]byte(session.TokenHash), []byte(auth.HashToken(token))) != 1 {
			c.Next()
			return
		}

		user, err := users.GetUserByID(ctx, session.UserID)
		if err != nil {
			apierror.Abort(c, err)
			return
		}
		if user == nil || !user.CanSignIn() {
			c.Next()
			return
		}

		SetUser(c, user, session)
		c.Next()
	}
}

// sessionToken prefers the cookie and falls back to a bearer token.
func sessionToken(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	if header := c.GetHeader("Authorization"); header != "" {
		if token, err := auth.ExtractBearerToken(header); err == nil {
			return token
		}
	}
	return ""
}

// SetSessionCookie stores token in the HttpOnly session cookie.
func SetSessionCookie(c *gin.Context, cfg config.SessionConfig, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, token, int(cfg.TTL.Seconds()), "/", cfg.Domain, cfg.Secure, true)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context, cfg config.SessionConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, "", -1, "/", cfg.Domain, cfg.Secure, true)
}
