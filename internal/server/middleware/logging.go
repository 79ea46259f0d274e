package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	logx "github.com/estate-copilot/server/pkg/logger"
)

// RequestLog emits one structured log line per request.
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := logx.Info()
		if c.Writer.Status() >= 500 {
			evt = logx.Error()
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("user_id", UserID(c)).
			Msg("request")
	}
}
