package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/reunite/internal/auth"
	"github.com/your-org/reunite/internal/observability"
)

// LoggingMiddleware logs each request with slog and records its duration.
// The client field is whatever the auth layer resolved for the request, so
// it is empty on unauthenticated routes like /healthz.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		slog.Info("request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", duration.String(),
			"bytes", c.Writer.Size(),
			"client", c.GetString(auth.ClientKey),
			"ip", c.ClientIP(),
		)

		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(status),
		).Observe(duration.Seconds())
	}
}
