package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"recipehub/internal/pkg/response"
)

// ErrorLogger logs request errors and recovers from panics. Errors that no
// later handler answered get a plain 500.
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				logRequestError(c, start, "panic", fmt.Errorf("%v", recovered), string(debug.Stack()))
				if !c.Writer.Written() {
					response.Fail(c, http.StatusInternalServerError, "Internal Server Error", "INTERNAL_SERVER_ERROR")
				}
				c.Abort()
				return
			}

			if len(c.Errors) == 0 {
				if c.Writer.Status() >= http.StatusInternalServerError {
					logRequestError(c, start, "http_error", fmt.Errorf("status=%d", c.Writer.Status()), "")
				}
				return
			}

			for _, err := range c.Errors {
				logRequestError(c, start, fmt.Sprintf("%v", err.Type), err.Err, "")
			}
			if !c.Writer.Written() {
				response.Fail(c, http.StatusInternalServerError, "Internal Server Error", "")
			}
		}()

		c.Next()
	}
}

func logRequestError(c *gin.Context, start time.Time, errType string, err error, stack string) {
	attrs := []any{
		"type", errType,
		"status", c.Writer.Status(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"client_ip", c.ClientIP(),
		"user_id", c.GetInt64("user_id"),
		"request_id", requestID(c),
		"latency", time.Since(start).String(),
		"error", err,
	}
	if stack != "" {
		attrs = append(attrs, "stack", stack)
	}
	level := slog.LevelError
	if c.Writer.Written() && c.Writer.Status() < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	slog.Log(c.Request.Context(), level, "request_error", attrs...)
}

func requestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = c.GetHeader("X-Request-Id")
	}
	return requestID
}
