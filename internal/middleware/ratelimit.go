package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/appship/engage-api/internal/ratelimit"
)

// ContextRateLimited marks a request the limiter rejected. Tracking
// handlers read it and skip persistence while still responding as if
// nothing happened; anti-abuse must never alter what the tracked user
// sees.
const ContextRateLimited = "rate_limited"

// RateLimit resolves the client identity and consults the limiter. It
// never aborts the request; it only annotates the context.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := ResolveClientIdentity(c.Request)
		c.Set(ContextRateLimited, !limiter.Allow(identity))
		c.Next()
	}
}

// IsRateLimited reports whether RateLimit flagged the request.
func IsRateLimited(c *gin.Context) bool {
	return c.GetBool(ContextRateLimited)
}
