package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/telemetry"
)

// noRouteLabel replaces the path label of requests that matched no route.
const noRouteLabel = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds
// for every request. The path label is the route template from c.FullPath()
// (/:tenantSlug/api/forum/threads/:id), never the raw URL, so community slugs and
// ids do not multiply the series.
//
// Register it after gin.Recovery() and RequestIDMiddleware so statuses written
// by recovered panics are counted.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRouteLabel
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
