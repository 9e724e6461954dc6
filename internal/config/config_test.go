package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "community",
				Password: "secret",
				Name:     "community",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=community password=secret dbname=community sslmode=require",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host:    "db.example.com",
				Port:    5433,
				User:    "admin",
				Name:    "forum",
				SSLMode: "disable",
			},
			want: "host=db.example.com port=5433 user=admin password= dbname=forum sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Host: "localhost",
			Name: "community",
			User: "community",
		},
		Storage: StorageConfig{
			DefaultBackend: "local",
			MaxUploadMB:    5,
			Local:          LocalStorageConfig{BasePath: "./storage"},
		},
		Auth: AuthConfig{
			BcryptCost: 12,
			Session:    SessionConfig{CookieName: "community_session", TTL: time.Hour},
		},
		MultiTenancy: MultiTenancyConfig{DefaultTenantSlug: "akincilar"},
		Security: SecurityConfig{
			RateLimiting: RateLimitingConfig{Enabled: true, AuthRequests: 20, AuthWindow: 15 * time.Minute},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid minimal config passes", func(t *testing.T) {
		if err := minimalValidConfig().Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	failing := []struct {
		name   string
		mutate func(*Config)
	}{
		{"server port 0", func(c *Config) { c.Server.Port = 0 }},
		{"server port 70000", func(c *Config) { c.Server.Port = 70000 }},
		{"missing base_url", func(c *Config) { c.Server.BaseURL = "" }},
		{"missing database host", func(c *Config) { c.Database.Host = "" }},
		{"missing database name", func(c *Config) { c.Database.Name = "" }},
		{"missing database user", func(c *Config) { c.Database.User = "" }},
		{"redis without addr", func(c *Config) { c.Redis = RedisConfig{Enabled: true} }},
		{"unknown storage backend", func(c *Config) { c.Storage.DefaultBackend = "ftp" }},
		{"zero upload size", func(c *Config) { c.Storage.MaxUploadMB = 0 }},
		{"azure without account", func(c *Config) {
			c.Storage.DefaultBackend = "azure"
			c.Storage.Azure = AzureStorageConfig{AccountKey: "k", ContainerName: "c"}
		}},
		{"s3 without region", func(c *Config) {
			c.Storage.DefaultBackend = "s3"
			c.Storage.S3 = S3StorageConfig{Bucket: "media"}
		}},
		{"gcs without bucket", func(c *Config) { c.Storage.DefaultBackend = "gcs" }},
		{"local without base path", func(c *Config) { c.Storage.Local.BasePath = "" }},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 2 }},
		{"missing cookie name", func(c *Config) { c.Auth.Session.CookieName = "" }},
		{"zero session ttl", func(c *Config) { c.Auth.Session.TTL = 0 }},
		{"oidc without issuer", func(c *Config) {
			c.Auth.OIDC = OIDCConfig{Enabled: true, ClientID: "id", ClientSecret: "s"}
		}},
		{"oidc without secret", func(c *Config) {
			c.Auth.OIDC = OIDCConfig{Enabled: true, IssuerURL: "https://idp", ClientID: "id"}
		}},
		{"empty default tenant", func(c *Config) { c.MultiTenancy.DefaultTenantSlug = "" }},
		{"rate limit zero requests", func(c *Config) { c.Security.RateLimiting.AuthRequests = 0 }},
		{"rate limit zero window", func(c *Config) { c.Security.RateLimiting.AuthWindow = 0 }},
		{"tls without cert", func(c *Config) { c.Security.TLS = TLSConfig{Enabled: true, KeyFile: "k"} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"kafka without brokers", func(c *Config) {
			c.Notifications.Kafka = KafkaConfig{Enabled: true, Topic: "t"}
		}},
		{"webhook shipper without url", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "webhook", Webhook: &AuditWebhookConfig{}}}
		}},
		{"unknown shipper type", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "syslog"}}
		}},
	}

	for _, tt := range failing {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() expected error for %s, got nil", tt.name)
			}
		})
	}

	t.Run("rate limit values ignored when disabled", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Security.RateLimiting = RateLimitingConfig{Enabled: false}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("disabled shipper is not checked", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Audit.Shippers = []AuditShipperConfig{{Enabled: false, Type: "bogus"}}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})
}

// ---------------------------------------------------------------------------
// expandEnv
// ---------------------------------------------------------------------------

func TestExpandEnv(t *testing.T) {
	t.Run("expands ${VAR} syntax", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_SECRET", "super-secret")
		if got := expandEnv("${CONFIG_TEST_SECRET}"); got != "super-secret" {
			t.Errorf("expandEnv() = %q, want %q", got, "super-secret")
		}
	})

	t.Run("plain string passthrough", func(t *testing.T) {
		if got := expandEnv("no-vars-here"); got != "no-vars-here" {
			t.Errorf("expandEnv() = %q, want %q", got, "no-vars-here")
		}
	})

	t.Run("unset variable expands to empty string", func(t *testing.T) {
		os.Unsetenv("CONFIG_TEST_DEFINITELY_UNSET_12345")
		if got := expandEnv("${CONFIG_TEST_DEFINITELY_UNSET_12345}"); got != "" {
			t.Errorf("expandEnv() = %q, want empty string", got)
		}
	})
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// writeTempConfig creates a temp YAML file and registers a cleanup to remove it.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config-test-*.yaml")
	if err != nil {
		t.Fatal("CreateTemp:", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	if _, err := f.WriteString(content); err != nil {
		t.Fatal("WriteString:", err)
	}
	f.Close()
	return f.Name()
}

const baseYAML = `
server:
  base_url: "http://localhost:8080"
database:
  host: "localhost"
  name: "community"
  user: "community"
logging:
  level: "info"
`

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for an explicit missing file")
	}
	if !strings.Contains(err.Error(), "error reading config file") {
		t.Errorf("Load() unexpected error kind: %v", err)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
server:
  host: "testhost"
  port: 9999
  base_url: "http://testhost:9999"
database:
  host: "dbhost"
  name: "testdb"
  user: "testuser"
multi_tenancy:
  default_tenant_slug: "Gezginler"
logging:
  level: "debug"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "testhost" || cfg.Server.Port != 9999 {
		t.Errorf("Server = %s:%d, want testhost:9999", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("Database.Name = %q, want testdb", cfg.Database.Name)
	}
	if cfg.MultiTenancy.DefaultTenantSlug != "gezginler" {
		t.Errorf("DefaultTenantSlug = %q, want lower-cased gezginler", cfg.MultiTenancy.DefaultTenantSlug)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, baseYAML))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.MultiTenancy.DefaultTenantSlug != "akincilar" {
		t.Errorf("default tenant slug = %q, want akincilar", cfg.MultiTenancy.DefaultTenantSlug)
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("default bcrypt cost = %d, want 12", cfg.Auth.BcryptCost)
	}
	if cfg.Auth.Session.TTL != 168*time.Hour {
		t.Errorf("default session ttl = %v, want 168h", cfg.Auth.Session.TTL)
	}
	if cfg.Security.RateLimiting.AuthRequests != 20 || cfg.Security.RateLimiting.AuthWindow != 15*time.Minute {
		t.Errorf("default auth rate limit = %d per %v, want 20 per 15m",
			cfg.Security.RateLimiting.AuthRequests, cfg.Security.RateLimiting.AuthWindow)
	}
	if cfg.Storage.DefaultBackend != "local" {
		t.Errorf("default storage backend = %q, want local", cfg.Storage.DefaultBackend)
	}
}

func TestLoad_DefaultTenantSlugEnv(t *testing.T) {
	t.Run("bare variable", func(t *testing.T) {
		t.Setenv("DEFAULT_TENANT_SLUG", "kasif")
		cfg, err := Load(writeTempConfig(t, baseYAML))
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.MultiTenancy.DefaultTenantSlug != "kasif" {
			t.Errorf("DefaultTenantSlug = %q, want kasif", cfg.MultiTenancy.DefaultTenantSlug)
		}
	})

	t.Run("prefixed variable", func(t *testing.T) {
		t.Setenv("COMMUNITY_MULTI_TENANCY_DEFAULT_TENANT_SLUG", "izci")
		cfg, err := Load(writeTempConfig(t, baseYAML))
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if cfg.MultiTenancy.DefaultTenantSlug != "izci" {
			t.Errorf("DefaultTenantSlug = %q, want izci", cfg.MultiTenancy.DefaultTenantSlug)
		}
	})
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("COMMUNITY_DATABASE_HOST", "db.internal")
	t.Setenv("COMMUNITY_REDIS_ENABLED", "true")
	t.Setenv("COMMUNITY_REDIS_ADDR", "redis:6379")
	cfg, err := Load(writeTempConfig(t, baseYAML))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want db.internal", cfg.Database.Host)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis = %+v, want enabled at redis:6379", cfg.Redis)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASS", "mysecret")
	content := strings.Replace(baseYAML, `user: "community"`, "user: \"community\"\n  password: \"${TEST_DB_PASS}\"", 1)
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Password != "mysecret" {
		t.Errorf("Database.Password = %q, want mysecret", cfg.Database.Password)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeTempConfig(t, "server: [unclosed")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestGetPublicURL(t *testing.T) {
	s := ServerConfig{PublicURL: "https://forum.example.com", BaseURL: "http://internal:8080"}
	if got := s.GetPublicURL(); got != "https://forum.example.com" {
		t.Errorf("GetPublicURL = %q", got)
	}
	s.PublicURL = ""
	if got := s.GetPublicURL(); got != "http://internal:8080" {
		t.Errorf("GetPublicURL fallback = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Watch / RestartRequired
// ---------------------------------------------------------------------------

func TestWatch_InitialLoad(t *testing.T) {
	w, err := Watch(writeTempConfig(t, baseYAML), nil)
	if err != nil {
		t.Fatalf("Watch() error: %v", err)
	}
	if w.Current() == nil || w.Current().Database.Name != "community" {
		t.Errorf("Current() = %+v, want loaded config", w.Current())
	}
}

func TestWatch_InvalidInitialConfig(t *testing.T) {
	if _, err := Watch(writeTempConfig(t, "logging:\n  level: loud\n"), nil); err == nil {
		t.Error("Watch() expected validation error")
	}
}

func TestRestartRequired(t *testing.T) {
	old := minimalValidConfig()
	updated := minimalValidConfig()
	updated.Logging.Level = "debug"
	if keys := RestartRequired(old, updated); len(keys) != 0 {
		t.Errorf("RestartRequired() = %v, want none for a log level change", keys)
	}

	updated.Server.Port = 9000
	updated.Redis.Addr = "other:6379"
	keys := RestartRequired(old, updated)
	if len(keys) != 2 || keys[0] != "server" || keys[1] != "redis" {
		t.Errorf("RestartRequired() = %v, want [server redis]", keys)
	}
}
