package response

import "github.com/gin-gonic/gin"

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

// Fail writes the error envelope shared with the upload pipeline. code may
// be empty.
func Fail(c *gin.Context, statusCode int, message string, code string) {
	body := gin.H{
		"success": false,
		"message": message,
	}
	if code != "" {
		body["code"] = code
	}
	c.JSON(statusCode, body)
}

// AbortFail is Fail followed by c.Abort.
func AbortFail(c *gin.Context, statusCode int, message string, code string) {
	Fail(c, statusCode, message, code)
	c.Abort()
}
