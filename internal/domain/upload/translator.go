package upload

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every recognised upload failure.
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Translate maps err to the upload error contract. ok is false for errors the
// pipeline does not own; those must be left to the default error handling.
func Translate(err error) (status int, body ErrorBody, ok bool) {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.Status, ErrorBody{Message: ue.Message, Code: ue.Code}, true
	}

	// body limit enforced by http.MaxBytesReader
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusBadRequest, ErrorBody{
			Message: "File too large. Maximum request size: " + formatSize(mbe.Limit),
			Code:    CodeFileSize,
		}, true
	}
	return 0, ErrorBody{}, false
}

// ErrorHandler answers requests whose pipeline stages recorded an upload
// error with c.Error. Anything it does not recognise stays in c.Errors.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		for i := len(c.Errors) - 1; i >= 0; i-- {
			if status, body, ok := Translate(c.Errors[i].Err); ok {
				c.AbortWithStatusJSON(status, body)
				return
			}
		}
	}
}
