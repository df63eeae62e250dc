package server

import (
	"strings"
	"time"

	"auction-ledger/services/bidding/helpers"
	"auction-ledger/utils"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the authenticated user id set by the upstream identity provider
const UserIDHeader = "X-User-ID"

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
		"user_id": c.GetString(helpers.IdentityKey),
	})
}

// IdentityMiddleware attaches the caller's identity to the request context.
// Handlers that need a user reject requests without one.
func IdentityMiddleware(c *gin.Context) {
	if id := strings.TrimSpace(c.GetHeader(UserIDHeader)); id != "" {
		c.Set(helpers.IdentityKey, id)
	}
	c.Next()
}
