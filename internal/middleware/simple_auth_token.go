package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/haierkeys/fast-note-offline/pkg/app"
	"github.com/haierkeys/fast-note-offline/pkg/code"

	"github.com/gin-gonic/gin"
)

// SimpleAuthTokenWithConfig 本地 API 令牌校验，authToken 为空时不校验
func SimpleAuthTokenWithConfig(authToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authToken == "" {
			c.Next()
			return
		}

		var token string

		if s, exist := c.GetQuery("authorization"); exist {
			token = s
		} else if s, exist = c.GetQuery("Authorization"); exist {
			token = s
		} else if s = c.GetHeader("Authorization"); len(s) != 0 {
			token = s
		}
		token = strings.TrimPrefix(token, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(authToken)) != 1 {
			app.NewResponse(c).ToResponse(code.ErrorUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}
