package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/likecodingloveproblems/matchticketselling/internal/metrics"
	"github.com/likecodingloveproblems/matchticketselling/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Logger logs request details and records request duration
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if metrics.RequestDuration != nil {
			metrics.RequestDuration.Record(c.Request.Context(), latency.Seconds(),
				attribute.String("method", c.Request.Method),
				attribute.String("path", c.FullPath()),
				attribute.Int("status", status),
			)
		}

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", latency),
			zap.Int("body_size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("Server error", fields...)
		case status >= 400:
			log.Warn("Client error", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}
