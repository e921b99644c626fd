package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatapp/internal/redis"
	"chatapp/internal/transport/httpdto"
	chatapp_errors "chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

type MessageLimiter interface {
	AllowMessage(ctx context.Context, subject string) (*redis.RateLimitResult, error)
}

// MessageRateLimitMiddleware limits message sends per client address.
// Requests pass when the limiter itself fails.
func MessageRateLimitMiddleware(limiter MessageLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowMessage(c.Request.Context(), c.ClientIP())
		if err != nil {
			l.WithContext(c.Request.Context()).Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.AbortWithStatusJSON(chatapp_errors.HTTPStatus(chatapp_errors.ErrRateLimited),
				httpdto.NewErrorResponse("message rate limit exceeded", chatapp_errors.CodeRateLimited))
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
