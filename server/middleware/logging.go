package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicememo/logger"
)

const slowRequest = 500 * time.Millisecond

// RequestLogger logs every request with method, path, status and duration.
// The UI polls /health, so it is skipped.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		fields := logger.Fields(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			logger.FieldDuration, latency.Milliseconds(),
		)
		if id := RequestIDFrom(c); id != "" {
			fields["request_id"] = id
		}
		if latency > slowRequest {
			fields["slow"] = true
		}
		if len(c.Errors) > 0 {
			fields[logger.FieldError] = c.Errors.String()
		}
		logByStatus(log, fields, status)
	}
}

func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("request completed", fields)
	case status >= 400:
		log.Warn("request completed", fields)
	default:
		log.Debug("request completed", fields)
	}
}
