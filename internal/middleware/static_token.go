package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recipehub/internal/pkg/response"
)

// StaticToken protects operator endpoints such as /metrics with a fixed
// bearer token. An empty token leaves the endpoint open.
func StaticToken(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			logAuthFailure(c, http.StatusUnauthorized, "invalid_auth_format")
			response.AbortFail(c, http.StatusUnauthorized, "Authorization header must be 'Bearer <token>'", "AUTH_MISSING")
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) != 1 {
			logAuthFailure(c, http.StatusForbidden, "invalid_token")
			response.AbortFail(c, http.StatusForbidden, "Invalid token", "AUTH_INVALID")
			return
		}
		c.Next()
	}
}

func logAuthFailure(c *gin.Context, status int, reason string) {
	slog.Warn("static token auth failed",
		"status", status, "path", c.Request.URL.Path, "request_id", requestID(c), "reason", reason)
}
