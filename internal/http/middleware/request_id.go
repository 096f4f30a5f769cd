package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID tags every request with an id, honoring one supplied by the
// caller (upstream proxy or a retrying gateway) and minting a uuid otherwise.
// The id is echoed in the response header and threaded through all log lines.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}

		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)

		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	rid, _ := c.Get(requestIDKey)
	if s, ok := rid.(string); ok {
		return s
	}
	return ""
}
