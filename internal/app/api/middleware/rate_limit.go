package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/lingobill/internal/platform/redis"
	"github.com/fatflowers/lingobill/pkg/logctx"
	"github.com/fatflowers/lingobill/pkg/response"
)

// RateLimitMiddleware allows limit requests per window per user, falling back
// to the client IP for anonymous callers. Limiter failures let the request
// through. deny writes the rejection; nil uses the standard envelope.
func RateLimitMiddleware(l redis.Limiter, scope string, limit int, window time.Duration, base *zap.SugaredLogger, deny gin.HandlerFunc) gin.HandlerFunc {
	if deny == nil {
		deny = func(c *gin.Context) {
			c.JSON(http.StatusTooManyRequests, response.ErrorT[any](response.APIResponseCodeTooManyRequests, nil))
		}
	}
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		subject := c.GetString(logctx.KeyUserID)
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}
		allowed, err := l.Allow(c.Request.Context(), redis.RateLimitKey(scope, subject), limit, window)
		if err != nil {
			logctx.FromGin(c, base).Warnw("rate_limit_unavailable", "scope", scope, "err", err)
			c.Next()
			return
		}
		if !allowed {
			logctx.FromGin(c, base).Infow("rate_limited", "scope", scope)
			deny(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
