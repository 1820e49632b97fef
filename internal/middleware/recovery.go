package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/haierkeys/fast-note-offline/pkg/app"
	"github.com/haierkeys/fast-note-offline/pkg/code"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryWithLogger 捕获处理链中的 panic，记录堆栈并返回 500
func RecoveryWithLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			var errorMsg string
			fields := []zap.Field{
				zap.String("router", path),
				zap.String("method", c.Request.Method),
				zap.String("query", query),
				zap.String("ip", c.ClientIP()),
				zap.String("traceId", GetTraceIDFromGin(c)),
			}
			switch v := err.(type) {
			case string:
				errorMsg = v
				logger.Error("Recovered from panic", append(fields, zap.String("panic_value", v), zap.String("stack", string(debug.Stack())))...)
			case error:
				errorMsg = v.Error()
				logger.Error("Recovered from panic", append(fields, zap.Error(v), zap.String("stack", string(debug.Stack())))...)
			default:
				logger.Error("Recovered from unknown panic", append(fields,
					zap.String("panic_value", fmt.Sprintf("%v", v)),
					zap.String("stack", string(debug.Stack())),
				)...)
			}

			app.NewResponse(c).ToResponse(code.ErrorServerInternal.WithDetails(errorMsg))
			c.Abort()
		}()

		c.Next()
	}
}
