package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timecapsule-api/internal/service"
)

// unmatchedRoute labels requests no route matched, so unknown paths do not create new series.
const unmatchedRoute = "unmatched"

// Metrics records method, route template and status for every request except the listed probe paths
// (health checks and scrapes).
func Metrics(metricsSvc *service.MetricsService, probes ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(probes))
	for _, p := range probes {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skip[route]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
