package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery converts handler panics into a 500 carrying the request id, so a
// client report can be matched to the stack trace in the logs.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID := c.GetString("request_id")
				log.Printf("[%s] panic on %s %s: %v\n%s",
					requestID, c.Request.Method, c.Request.URL.Path, r, debug.Stack())

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "internal_error",
					"request_id": requestID,
				})
			}
		}()

		c.Next()
	}
}
