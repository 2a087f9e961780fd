package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/prometheus"
)

// Metrics records per-request counters and latency histograms. The route
// template (":id" instead of the raw value) keeps label cardinality bounded;
// unmatched routes are collapsed into a single label.
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPActiveRequests.WithLabelValues(method, path).Inc()
		start := time.Now()
		c.Next()
		m.HTTPActiveRequests.WithLabelValues(method, path).Dec()

		prometheus.RecordHTTPRequest(m, method, path, c.Writer.Status(), time.Since(start))
	}
}
