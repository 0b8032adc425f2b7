package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"PSync/tools/security"
)

// CtxUserIDKey 下游 handler 统一用这个 key 取当前用户
const CtxUserIDKey = "psyncUserId"

// Middleware Bearer 令牌认证；sub 即 userId。
// 同步接口全部挂在它后面。
func Middleware(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "missing token"})
			return
		}
		userID, err := security.VerifySubject(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "invalid token"})
			return
		}
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// UserID 从上下文取当前用户；中间件没挂时返回空串
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
