package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection. Requests are
// labelled by matched route so SPA paths don't explode cardinality.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Timer measures an upstream round trip
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer starts a timer
func NewTimer(metrics *Metrics) *Timer {
	return &Timer{start: time.Now(), metrics: metrics}
}

// Stop records the round trip with the upstream status
func (t *Timer) Stop(status int) {
	if t == nil || t.metrics == nil {
		return
	}
	t.metrics.RecordUpstream(status, time.Since(t.start))
}

// Fail records a transport failure of the given kind
func (t *Timer) Fail(kind string) {
	if t == nil || t.metrics == nil {
		return
	}
	t.metrics.RecordUpstreamError(kind)
}
