// Package api wires together all HTTP routes of the community platform.
//
// Route grouping:
//   - Every community route exists twice: under /:tenantSlug/api and under the
//     bare /api alias, which resolves the configured default community. Both
//     groups run ResolveTenant -> SessionMiddleware -> AttachMembership before
//     any handler.
//   - GET <group>/health is mounted ahead of tenant resolution so that it keeps
//     answering for suspended communities.
//   - /health, /ready and /media/*path live at the root. /media is only mounted
//     for the local backend with serve_directly; cloud backends hand out signed
//     URLs instead.
package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/communityhub/platform/internal/api/account"
	"github.com/communityhub/platform/internal/api/admin"
	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/api/community"
	"github.com/communityhub/platform/internal/api/content"
	"github.com/communityhub/platform/internal/api/forum"
	"github.com/communityhub/platform/internal/audit"
	"github.com/communityhub/platform/internal/config"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/jobs"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/notify"
	"github.com/communityhub/platform/internal/services"
	"github.com/communityhub/platform/internal/storage"
)

// Dependencies are the optional collaborators built by cmd/server. Nil fields
// switch the matching feature off.
type Dependencies struct {
	// Store keeps uploaded media. Nil disables uploads and /media.
	Store storage.Backend
	// Limiter overrides the auth rate limiter (the redis limiter). When nil and
	// rate limiting is enabled an in-memory limiter is created.
	Limiter middleware.Limiter
	// SSO enables /auth/sso/*.
	SSO account.SSOProvider
	// Publisher receives notification.created events.
	Publisher notify.Publisher
	// Shipper receives every stored moderation log entry.
	Shipper audit.Shipper
}

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	sessionCleanup *jobs.SessionCleanupJob
	rateLimiters   []*middleware.MemoryLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.sessionCleanup != nil {
		bg.sessionCleanup.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB, deps Dependencies) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	bg := &BackgroundServices{}
	started := time.Now()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS))

	router.NoRoute(func(c *gin.Context) {
		apierror.Respond(c, apierror.NotFound("Route not found"))
	})

	tls := cfg.Security.TLS.Enabled
	root := router.Group("", middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(tls)))
	root.GET("/health", healthCheckHandler(db, started))
	root.GET("/ready", readinessHandler(db, deps.Store))

	if deps.Store != nil && cfg.Storage.DefaultBackend == "local" && cfg.Storage.Local.ServeDirectly {
		media := router.Group("/media", middleware.SecurityHeadersMiddleware(middleware.MediaSecurityHeadersConfig(tls)))
		media.GET("/*path", serveMediaHandler(deps.Store))
	}

	limiter := deps.Limiter
	if limiter == nil && cfg.Security.RateLimiting.Enabled {
		mem := middleware.NewMemoryLimiter(middleware.AuthRateLimitConfig(cfg.Security.RateLimiting))
		bg.rateLimiters = append(bg.rateLimiters, mem)
		limiter = mem
	}

	// Shared services
	tenantRepo := repositories.NewTenantRepository(db)
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	sqlxDB := sqlx.NewDb(db, "postgres")

	auditor := services.NewAuditor(repositories.NewModerationLogRepository(db), deps.Shipper)
	notifier := services.NewNotifier(repositories.NewNotificationRepository(db), deps.Publisher)
	aggregator := services.NewAggregator(repositories.NewActivityRepository(sqlxDB), userRepo, tenantRepo)

	accountHandlers := account.NewHandlers(cfg.Auth, db, auditor)
	if deps.SSO != nil {
		accountHandlers.SetSSOProvider(deps.SSO)
	}
	forumHandlers := forum.NewHandlers(db, aggregator, notifier, auditor)
	contentHandlers := content.NewHandlers(db, auditor)
	communityHandlers := community.NewHandlers(db, aggregator)
	adminHandlers := admin.NewHandlers(sqlxDB, deps.Store, cfg.Storage.MaxUploadMB, auditor)

	for _, base := range []string{"/api", "/:" + middleware.TenantSlugParam + "/api"} {
		g := root.Group(base)
		g.GET("/health", healthCheckHandler(db, started))

		tenant := g.Group("",
			middleware.ResolveTenant(tenantRepo, cfg.MultiTenancy.DefaultTenantSlug),
			middleware.SessionMiddleware(cfg.Auth.Session, sessionRepo, userRepo),
			middleware.AttachMembership(tenantRepo),
		)
		accountHandlers.Register(tenant, limiter)
		forumHandlers.Register(tenant)
		contentHandlers.Register(tenant)
		communityHandlers.Register(tenant)
		adminHandlers.Register(tenant)
	}

	bg.sessionCleanup = jobs.NewSessionCleanupJob(sessionRepo, time.Hour)
	go bg.sessionCleanup.Start(context.Background())

	return router, bg
}

func healthCheckHandler(db *sql.DB, started time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
			"uptime_seconds": int64(time.Since(started).Seconds()),
		})
	}
}

func readinessHandler(db *sql.DB, store storage.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":   false,
				"checks":  checks,
				"message": "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if store == nil {
			checks["storage"] = "disabled"
		} else if _, err := store.Stat(c.Request.Context(), ".readiness-probe"); err != nil && !errors.Is(err, storage.ErrNotFound) {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":   false,
				"checks":  checks,
				"message": "storage backend not ready",
			})
			return
		} else {
			checks["storage"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// serveMediaHandler streams a stored object. Keys are validated before the
// backend sees them so a path cannot leave the storage root.
func serveMediaHandler(store storage.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("path"), "/")
		if !storage.ValidKey(key) {
			apierror.Respond(c, apierror.NotFound("File not found"))
			return
		}

		body, obj, err := store.Open(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				apierror.Respond(c, apierror.NotFound("File not found"))
				return
			}
			apierror.Respond(c, err)
			return
		}
		defer body.Close()

		contentType := obj.ContentType
		if contentType == "" {
			contentType = storage.ContentTypeOf(key)
		}
		headers := map[string]string{"Cache-Control": "public, max-age=86400"}
		if obj.Checksum != "" {
			headers["ETag"] = `"` + obj.Checksum + `"`
		}
		c.DataFromReader(http.StatusOK, obj.Size, contentType, body, headers)
	}
}
