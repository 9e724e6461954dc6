// Package main is the entry point for the community platform server binary.
// It dispatches three subcommands (serve, migrate and version) via a simple
// switch on os.Args. The serve command runs auto-migration on startup so freshly
// deployed containers never need a separate migration step.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- served only on the dedicated profiling port, never on the Gin listener.
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/communityhub/platform/internal/api"
	"github.com/communityhub/platform/internal/auth"
	"github.com/communityhub/platform/internal/auth/oidc"
	"github.com/communityhub/platform/internal/audit"
	"github.com/communityhub/platform/internal/config"
	"github.com/communityhub/platform/internal/db"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/middleware"
	"github.com/communityhub/platform/internal/notify"
	"github.com/communityhub/platform/internal/storage"
	_ "github.com/communityhub/platform/internal/storage/azure"
	_ "github.com/communityhub/platform/internal/storage/gcs"
	_ "github.com/communityhub/platform/internal/storage/local"
	_ "github.com/communityhub/platform/internal/storage/s3"
	"github.com/communityhub/platform/internal/telemetry"
)

const (
	version = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg, configPath)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "version":
		fmt.Printf("Community Platform v%s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config, configPath string) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := auth.ValidateSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	// Log level follows the config file; everything else needs a restart.
	if _, err := config.Watch(configPath, func(old, updated *config.Config) {
		telemetry.SetLevel(updated.Logging.Level)
		if keys := config.RestartRequired(old, updated); len(keys) > 0 {
			slog.Warn("configuration changes require a restart", "keys", keys)
		}
	}); err != nil {
		slog.Warn("config watcher disabled", "error", err)
	}

	slog.Info("connecting to database",
		"host", cfg.Database.Host, "port", cfg.Database.Port,
		"name", cfg.Database.Name, "sslmode", cfg.Database.SSLMode)

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	telemetry.StartDBStatsCollector(ctx, database, 15*time.Second)

	slog.Info("running database migrations")
	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", v, "dirty", dirty)
	}

	tenant, created, err := repositories.NewTenantRepository(database).
		EnsureTenant(ctx, cfg.MultiTenancy.DefaultTenantSlug, cfg.MultiTenancy.DefaultTenantName)
	if err != nil {
		return fmt.Errorf("failed to ensure default community: %w", err)
	}
	slog.Info("default community", "slug", tenant.Slug, "id", tenant.ID, "created", created)

	startSidePorts(cfg)

	deps, closers, err := buildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}()

	router, bgServices := api.NewRouter(cfg, database, deps)

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"base_url", cfg.Server.BaseURL,
			"storage", cfg.Storage.DefaultBackend,
			"default_community", cfg.MultiTenancy.DefaultTenantSlug)

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

// buildDependencies creates the optional collaborators of the router. The
// returned closers release them after the HTTP server has drained.
func buildDependencies(ctx context.Context, cfg *config.Config) (api.Dependencies, []func(), error) {
	var deps api.Dependencies
	var closers []func()

	store, err := storage.NewBackend(cfg)
	if err != nil {
		return deps, closers, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := ensureStorage(ctx, cfg, store); err != nil {
		return deps, closers, fmt.Errorf("failed to prepare storage: %w", err)
	}
	deps.Store = store

	if cfg.Redis.Enabled && cfg.Security.RateLimiting.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, auth rate limits will fail open until it recovers", "error", err)
		}
		deps.Limiter = middleware.NewRedisLimiter(client, "community:ratelimit:",
			middleware.AuthRateLimitConfig(cfg.Security.RateLimiting))
		closers = append(closers, func() { _ = client.Close() })
	}

	if cfg.Auth.OIDC.Enabled {
		discoverCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		provider, err := oidc.NewOIDCProvider(discoverCtx, &cfg.Auth.OIDC)
		cancel()
		if err != nil {
			return deps, closers, fmt.Errorf("failed to initialize OIDC provider: %w", err)
		}
		deps.SSO = provider
	}

	if cfg.Notifications.Kafka.Enabled {
		publisher, err := notify.NewKafkaPublisher(cfg.Notifications.Kafka)
		if err != nil {
			return deps, closers, fmt.Errorf("failed to initialize notification publisher: %w", err)
		}
		deps.Publisher = publisher
		closers = append(closers, func() { _ = publisher.Close() })
	}

	shipper, err := audit.NewMultiShipper(cfg.Audit)
	if err != nil {
		return deps, closers, fmt.Errorf("failed to initialize audit shippers: %w", err)
	}
	if shipper.Len() > 0 {
		deps.Shipper = shipper
		closers = append(closers, func() { _ = shipper.Close() })
	}

	return deps, closers, nil
}

// ensureStorage creates the bucket or container of cloud backends when missing
func ensureStorage(ctx context.Context, cfg *config.Config, store storage.Backend) error {
	switch s := store.(type) {
	case interface{ EnsureBucket(context.Context) error }:
		return s.EnsureBucket(ctx)
	case interface {
		EnsureBucket(context.Context, string) error
	}:
		return s.EnsureBucket(ctx, cfg.Storage.GCS.ProjectID)
	case interface{ EnsureContainer(context.Context) error }:
		return s.EnsureContainer(ctx)
	}
	return nil
}

// startSidePorts serves Prometheus metrics and pprof on their own listeners so
// they stay off the public ingress path.
func startSidePorts(cfg *config.Config) {
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	if cfg.Telemetry.Profiling.Enabled {
		pprofAddr := fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port)
		go func() {
			slog.Info("starting pprof server", "addr", pprofAddr)
			srv := &http.Server{ //nolint:gosec // #nosec G112 -- internal-only pprof port
				Addr:         pprofAddr,
				Handler:      http.DefaultServeMux,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("pprof server error", "error", err)
			}
		}()
	}
}

func runMigrations(cfg *config.Config, direction string) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed", "version", v, "dirty", dirty)
	return nil
}
