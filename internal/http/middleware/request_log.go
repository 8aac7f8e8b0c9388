package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/ctxutil"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

// RequestLogger writes one line per request. 5xx lines carry the last gin
// error; the level follows the status class.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := append([]interface{}{
			"method", c.Request.Method,
			"route", routeOf(c),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}, ctxutil.LogFields(c.Request.Context())...)

		switch {
		case status >= 500:
			if last := c.Errors.Last(); last != nil {
				fields = append(fields, "error", last.Error())
			}
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request served", fields...)
		}
	}
}

// routeOf is the matched route pattern, or the raw path for 404s.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}
