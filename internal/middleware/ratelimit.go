// ratelimit.go provides Gin middleware that enforces per-client request budgets,
// returning 429 responses once a client has used up its window.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/communityhub/platform/internal/api/apierror"
	"github.com/communityhub/platform/internal/config"
	"github.com/communityhub/platform/internal/telemetry"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests is the number of requests a client may make per Window
	Requests int
	// Window is the length of one counting window
	Window time.Duration
	// CleanupInterval is how often expired in-memory windows are dropped
	CleanupInterval time.Duration
}

// AuthRateLimitConfig returns the limits for the sign-in and registration endpoints
func AuthRateLimitConfig(cfg config.RateLimitingConfig) RateLimitConfig {
	rl := RateLimitConfig{
		Requests:        cfg.AuthRequests,
		Window:          cfg.AuthWindow,
		CleanupInterval: 5 * time.Minute,
	}
	if rl.Requests < 1 {
		rl.Requests = 20
	}
	if rl.Window <= 0 {
		rl.Window = 15 * time.Minute
	}
	return rl
}

// Decision is the outcome of one limiter check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the client identified by key may make another request
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// windowEntry tracks one client's fixed window
type windowEntry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window counter kept in process memory. It is built
// once at startup and shared by every route it guards.
type MemoryLimiter struct {
	config   RateLimitConfig
	entries  map[string]*windowEntry
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewMemoryLimiter creates an in-memory limiter and starts its cleanup goroutine
func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	rl := &MemoryLimiter{
		config:  cfg,
		entries: make(map[string]*windowEntry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	if cfg.CleanupInterval > 0 {
		go rl.cleanup()
	}
	return rl
}

// cleanup periodically removes windows that have already reset
func (rl *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.purge()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *MemoryLimiter) purge() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, entry := range rl.entries {
		if !now.Before(entry.resetAt) {
			delete(rl.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *MemoryLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow counts a request for key against the current window
func (rl *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowEntry{resetAt: now.Add(rl.config.Window)}
		rl.entries[key] = entry
	}

	d := Decision{Limit: rl.config.Requests}
	if entry.count >= rl.config.Requests {
		d.RetryAfter = entry.resetAt.Sub(now)
		return d, nil
	}
	entry.count++
	d.Allowed = true
	d.Remaining = rl.config.Requests - entry.count
	return d, nil
}

// RedisLimiter shares the budget between instances through redis (GCRA via redis_rate)
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisLimiter creates a limiter whose keys live under prefix in client
func NewRedisLimiter(client redis.UniversalClient, prefix string, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   cfg.Requests,
			Burst:  cfg.Requests,
			Period: cfg.Window,
		},
		prefix: prefix,
	}
}

// Allow asks redis whether key has budget left
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := rl.limiter.Allow(ctx, rl.prefix+key, rl.limit)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:    res.Allowed > 0,
		Limit:      rl.limit.Burst,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// ScopeAuth labels the credential endpoints. Its budget is always per client IP
// so a signed-in caller shares the budget of anonymous requests from the same address.
const ScopeAuth = "auth"

// RateLimitMiddleware rejects clients that have exhausted limiter. scope labels
// the community_rate_limited_total metric. When the limiter backend fails the
// request is let through.
func RateLimitMiddleware(limiter Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := limiter.Allow(c.Request.Context(), getRateLimitKey(c, scope))
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "scope", scope, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			telemetry.RateLimitedTotal.WithLabelValues(scope).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			apierror.Abort(c, apierror.TooManyRequests("Too many attempts, please try again later"))
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// getRateLimitKey determines the key to use for rate limiting
// Priority: user_id > IP address, except ScopeAuth which is IP only
func getRateLimitKey(c *gin.Context, scope string) string {
	if id := c.GetString(UserIDKey); id != "" && scope != ScopeAuth {
		return "user:" + id
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
