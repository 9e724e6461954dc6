// Package auth provides the authentication primitives: signed session tokens,
// password hashing and OpenID Connect single sign-on (sub-package oidc).
// internal/middleware/session.go uses these to resolve the caller of each request.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/communityhub/platform/pkg/checksum"
)

// SecretEnvVar names the environment variable holding the session signing secret
const SecretEnvVar = "COMMUNITY_JWT_SECRET"

const issuer = "community-platform"

var (
	sessionSecret     string
	sessionSecretOnce sync.Once
	sessionSecretErr  error
)

// Claims is the payload of a session token. ID (jti) is the user_sessions row id
// and Subject is the user id.
type Claims struct {
	TenantID string `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// IsDevMode reports whether the process runs in development mode
func IsDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	return devMode == "true" || devMode == "1" ||
		os.Getenv("NODE_ENV") == "development" ||
		os.Getenv("GIN_MODE") == "debug"
}

func generateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// ValidateSecret loads the signing secret once. Production requires COMMUNITY_JWT_SECRET;
// development generates a random one, so sessions do not survive a restart.
// Call this at startup.
func ValidateSecret() error {
	sessionSecretOnce.Do(func() {
		secret := os.Getenv(SecretEnvVar)
		if secret == "" {
			if IsDevMode() {
				sessionSecret = generateRandomSecret()
				slog.Warn(SecretEnvVar + " not set, using a generated secret; sessions will not persist across restarts")
				return
			}
			sessionSecretErr = errors.New(SecretEnvVar + " is required outside development mode " +
				"(generate one with: openssl rand -hex 32)")
			return
		}
		if len(secret) < 32 {
			slog.Warn(SecretEnvVar + " is shorter than the recommended 32 characters")
		}
		sessionSecret = secret
	})
	return sessionSecretErr
}

func signingKey() ([]byte, error) {
	if err := ValidateSecret(); err != nil {
		return nil, err
	}
	return []byte(sessionSecret), nil
}

// GenerateSessionToken signs a token for session sessionID of userID that expires after ttl
func GenerateSessionToken(sessionID, userID, tenantID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	key, err := signingKey()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := &Claims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ValidateSessionToken verifies the signature and expiry of a session token
func ValidateSessionToken(tokenString string) (*Claims, error) {
	key, err := signingKey()
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("token is missing session or subject")
	}
	return claims, nil
}

// HashToken returns the value stored in user_sessions.token_hash for tokenString
func HashToken(tokenString string) string {
	return checksum.SumString(tokenString)
}
