package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"shorturl-service/internal/policy"
	auth "shorturl-service/pkg/jwt"

	"github.com/gin-gonic/gin"
)

const callerKey = "caller"

// IdentityMiddleware 解析 Bearer 令牌并把调用方身份写入上下文
//
// 没有 Authorization 头时按匿名处理，由具体操作决定是否需要登录；
// 令牌格式错误或校验失败直接返回 401。
func IdentityMiddleware(jwtManager *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		// 提取Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "认证格式错误"})
			return
		}

		claims, err := jwtManager.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的认证令牌"})
			return
		}

		caller := policy.NewCallerIdentity(strconv.FormatUint(uint64(claims.UserID), 10), claims.Username, claims.Role)
		SetCaller(c, caller)
		c.Next()
	}
}

// RequireAuth 要求已登录
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Caller(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少认证令牌"})
			return
		}
		c.Next()
	}
}

// Caller 取出当前调用方，匿名时返回 nil
func Caller(c *gin.Context) *policy.CallerIdentity {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*policy.CallerIdentity)
	return caller
}

// SetCaller 写入调用方身份
func SetCaller(c *gin.Context, caller *policy.CallerIdentity) {
	c.Set(callerKey, caller)
}
