package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recipehub/internal/pkg/response"
)

// RequireRole ensures that the authenticated user has the specified role
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			response.AbortFail(c, http.StatusUnauthorized, "Role not found in token", "UNAUTHORIZED")
			return
		}

		if r, _ := role.(string); r != requiredRole {
			response.AbortFail(c, http.StatusForbidden, "Access denied: insufficient permissions", "FORBIDDEN")
			return
		}

		c.Next()
	}
}

// AdminOnly middleware requires admin role
func AdminOnly() gin.HandlerFunc {
	return RequireRole("admin")
}
