package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mirror-backend/internal/shared/auth"
	"mirror-backend/internal/shared/server/respond"
)

const (
	adminSubKey  = "adminSub"
	adminRoleKey = "adminRole"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// AdminAuth requires a valid admin bearer token and stores the subject in context.
func AdminAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" || verifier == nil {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil || claims.Role != auth.RoleAdmin {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
			return
		}

		c.Set(adminSubKey, claims.Subject)
		c.Set(adminRoleKey, claims.Role)
		c.Next()
	}
}

// AdminFromContext fetches the admin subject set by AdminAuth.
func AdminFromContext(c *gin.Context) string {
	return stringFromContext(c, adminSubKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
