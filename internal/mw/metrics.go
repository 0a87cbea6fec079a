package mw

import (
	"time"

	"github.com/gin-gonic/gin"

	"campus-admin/internal/metrics"
)

// Metrics records every request against its route pattern.
func Metrics(m *metrics.HTTP) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.Observe(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
