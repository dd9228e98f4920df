package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recipehub/internal/pkg/jwt"
	"recipehub/internal/pkg/response"
)

// JWTAuth verifies the bearer token and puts user_id and role on the context.
func JWTAuth(tokens *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.AbortFail(c, http.StatusUnauthorized, "Authorization header is required", "AUTH_HEADER_MISSING")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			response.AbortFail(c, http.StatusUnauthorized, "Authorization header must be 'Bearer <token>'", "INVALID_AUTH_FORMAT")
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, "Invalid or expired token", "INVALID_TOKEN")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}
