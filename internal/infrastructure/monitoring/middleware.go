package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Use the route template so path params don't explode cardinality
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Timer measures the conversion time of one file
type Timer struct {
	start   time.Time
	metrics *Metrics
	format  string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, format string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		format:  format,
	}
}

// Stop stops the timer and records the file outcome
func (t *Timer) Stop(result string) time.Duration {
	duration := time.Since(t.start)
	t.metrics.RecordFile(result, t.format, duration)
	return duration
}
