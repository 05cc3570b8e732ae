package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/httpx"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/ratelimit"
)

// RateRule limits requests sharing the same Key to Limit per Window.
type RateRule struct {
	Name   string
	Limit  int
	Window time.Duration
	// Key derives the bucket for a request. An empty key skips the check.
	Key func(c *gin.Context) string
}

// ByIP buckets by client address.
func ByIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByAccount buckets by the authenticated account. It must run after
// GinRequireAuth.
func ByAccount(c *gin.Context) string {
	return c.GetString(AccountIDKey)
}

// RateLimit enforces rule against limiter. A limiter error lets the request
// through.
func RateLimit(limiter ratelimit.Limiter, rule RateRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rule.Key(c)
		if key == "" {
			c.Next()
			return
		}

		d, err := limiter.Allow(c.Request.Context(), rule.Name+":"+key, rule.Limit, rule.Window)
		if err != nil {
			logger.Error("rate limiter unavailable", map[string]any{
				"request_id": httpx.RequestID(c),
				"rule":       rule.Name,
				"error":      err,
			})
			c.Next()
			return
		}

		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			logger.Warn("rate limited", map[string]any{
				"request_id": httpx.RequestID(c),
				"rule":       rule.Name,
			})
			httpx.Error(c, apperr.RateLimited("too many requests, try again later"))
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Next()
	}
}
