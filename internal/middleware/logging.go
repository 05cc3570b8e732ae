package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/httpx"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
)

// AccessLog writes one structured line per request. Query strings are not
// logged since OAuth callbacks carry codes there.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]any{
			"request_id": httpx.RequestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
		}
		if id := c.GetString(AccountIDKey); id != "" {
			fields["account_id"] = id
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("http request", fields)
		case c.Writer.Status() >= 400:
			logger.Warn("http request", fields)
		default:
			logger.Info("http request", fields)
		}
	}
}

// Recovery turns handler panics into a 500 JSON body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("handler panic", map[string]any{
			"request_id": httpx.RequestID(c),
			"path":       c.Request.URL.Path,
			"panic":      recovered,
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, httpx.ErrorResponse{
			Code:      "server_error",
			Message:   "internal error",
			RequestID: httpx.RequestID(c),
		})
	})
}
