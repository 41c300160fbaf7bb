package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"opentry/internal/pkg/ctxutil"
	httputil "opentry/internal/pkg/http"
	"opentry/internal/pkg/jwt"
)

// TokenValidator 校验 Access Token 并返回用户ID
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Auth JWT 认证中间件
// 从 Authorization header 中提取 Bearer token，验证后注入 user_id 到 context
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				httputil.NewErrorResponse(httputil.CodeUnauthorized, "Unauthorized"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				httputil.NewErrorResponse(httputil.CodeUnauthorized, "Invalid authorization header"))
			return
		}

		userID, err := validator.ValidateToken(parts[1])
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				msg = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				httputil.NewErrorResponse(httputil.CodeInvalidToken, msg))
			return
		}

		c.Set("user_id", userID)
		c.Request = c.Request.WithContext(ctxutil.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// Session 读取 X-Session-ID 注入 context，缺失时不拦截，由业务层决定
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(ctxutil.SessionIDHeader)); id != "" {
			c.Request = c.Request.WithContext(ctxutil.WithSessionID(c.Request.Context(), id))
		}
		c.Next()
	}
}
