// Package middleware holds the gin middleware chain of the HTTP API:
// request IDs, structured request logging, CORS, rate limiting, panic
// recovery, and per-request metrics.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation ID in both directions.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key the middleware stores the ID under.
const requestIDKey = "request_id"

// RequestID propagates an incoming X-Request-ID or mints a fresh UUID, and
// echoes it on the response so clients can correlate log lines.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the request's correlation ID, or "" outside the
// middleware chain.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
