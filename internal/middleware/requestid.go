package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the header and context key carrying the request id.
const RequestIDKey = "X-Request-ID"

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Request.Header.Set(RequestIDKey, requestID)
		c.Header(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		c.Next()
	}
}
