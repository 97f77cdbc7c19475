package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SubjectKey 上下文中保存 token subject 的键
const SubjectKey = "subject"

// RequireAuth 要求有效的 Bearer token，secret 为空时直接放行
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "missing Authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			unauthorized(c, "invalid Authorization header format")
			return
		}

		subject, err := ValidateToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(SubjectKey, subject)
		c.Next()
	}
}

// ValidateToken 校验 HMAC 签名的 token 并返回 subject
func ValidateToken(secret, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("invalid token claims: %w", err)
	}
	return subject, nil
}

// GetSubject 从上下文获取 token subject
func GetSubject(c *gin.Context) string {
	if v, ok := c.Get(SubjectKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": http.StatusUnauthorized,
		"msg":  msg,
	})
}
