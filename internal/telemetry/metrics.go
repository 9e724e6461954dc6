// Package telemetry provides logging setup and Prometheus metrics for the community platform.
//
// All metrics are registered against the default Prometheus registry and are served on the
// side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<COMMUNITY_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// HTTP metrics use c.FullPath() (the route template such as /:tenantSlug/api/forum/threads/:id)
// rather than the raw URL so tenant slugs and ids do not blow up label cardinality.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Authentication and abuse metrics.
//
// AuthAttemptsTotal has labels {action, outcome}: action is register|login|sso, outcome is
// success or the failure kind (invalid_credentials, banned, not_member, conflict, ...).
//
// Example PromQL:
//   - Failed logins per minute: sum(rate(community_auth_attempts_total{action="login",outcome!="success"}[5m])) * 60
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_auth_attempts_total",
			Help: "Authentication attempts, by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_rate_limited_total",
			Help: "Requests rejected by a rate limiter, by limiter scope.",
		},
		[]string{"scope"},
	)
)

// SideEffectFailuresTotal counts best-effort writes (notification, audit, kafka publish,
// audit shipping) that failed and were dropped. A steady non-zero rate means users are
// missing notifications or the audit trail has gaps.
var SideEffectFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "community_side_effect_failures_total",
		Help: "Best-effort side effects that failed, by kind.",
	},
	[]string{"kind"},
)

// ForumRepliesTotal counts accepted forum replies across all communities.
var ForumRepliesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "community_forum_replies_total",
		Help: "Total number of forum replies created.",
	},
)

// SessionsPurgedTotal counts expired sessions removed by the cleanup job.
var SessionsPurgedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "community_sessions_purged_total",
		Help: "Total number of expired sessions deleted by the cleanup job.",
	},
)

// MediaUploadBytes records the size of accepted media uploads.
var MediaUploadBytes = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "community_media_upload_bytes",
		Help:    "Size of accepted media uploads in bytes.",
		Buckets: prometheus.ExponentialBuckets(16<<10, 4, 6),
	},
)

// DBOpenConnections tracks the open connections of the sql.DB pool. It is sampled
// by StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples the pool every interval until ctx is cancelled
// or the database stops answering pings.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
