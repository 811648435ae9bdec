// Package middleware provides shared gin middleware for the HTTP layer.
package middleware

import (
	"time"

	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request with method, path, status and latency.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := float64(time.Since(start).Microseconds()) / 1000.0
		log.HTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), latency, c.ClientIP())
	}
}
