package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is both the header name and the gin context key for request ids.
const RequestIDKey = "X-Request-ID"

// RequestLogger tags every request with an id and logs its outcome.
// Health checks are not logged.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader(RequestIDKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDKey, requestID)

		c.Next()

		if path == "/health" {
			return
		}

		latency := time.Since(start)
		status := c.Writer.Status()
		logger := slog.Default().With(
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"client_ip", c.ClientIP(),
			"status", status,
			"latency_ms", latency.Milliseconds(),
		)
		if len(c.Errors) > 0 {
			logger = logger.With("error", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Error("request completed with server error")
		case status >= 400:
			logger.Warn("request completed with client error")
		default:
			logger.Info("request completed")
		}
	}
}

// GetRequestID returns the id RequestLogger assigned to this request.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
