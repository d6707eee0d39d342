package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StructuredLogger logs one entry per request. Successful /metrics scrapes go to debug.
func StructuredLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		statusCode := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"request_id":  GetRequestID(c),
			"method":      c.Request.Method,
			"path":        path,
			"query":       query,
			"status":      statusCode,
			"latency_ms":  time.Since(startTime).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
			"error_count": len(c.Errors),
		})

		switch {
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Error("Request completed with errors")
		case statusCode >= 500:
			entry.Error("Request failed with server error")
		case statusCode >= 400:
			entry.Warn("Request failed with client error")
		case path == "/metrics":
			entry.Debug("Metrics scraped")
		default:
			entry.Info("Request completed successfully")
		}
	}
}
