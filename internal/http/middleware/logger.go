package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Logger writes one line per request. Server errors log at error level and
// client errors at warn.
func Logger(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event := l.Info()
		switch {
		case status >= 500:
			event = l.Error()
		case status >= 400:
			event = l.Warn()
		}
		event.
			Str("request_id", c.GetString(RequestIDHeader)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency).
			Msg("request")
	}
}
