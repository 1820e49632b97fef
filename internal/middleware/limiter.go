package middleware

import (
	"github.com/haierkeys/fast-note-offline/pkg/app"
	"github.com/haierkeys/fast-note-offline/pkg/code"

	"github.com/gin-gonic/gin"
	"github.com/juju/ratelimit"
)

// RateLimiter creates a token bucket limiter shared by every request
// RateLimiter 创建令牌桶限流中间件，rate<=0 时不限流
func RateLimiter(rate float64, burst int64) gin.HandlerFunc {
	if rate <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = int64(rate) + 1
	}
	bucket := ratelimit.NewBucketWithRate(rate, burst)

	return func(c *gin.Context) {
		if bucket.TakeAvailable(1) == 0 {
			response := app.NewResponse(c)
			response.ToResponse(code.ErrorTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}
