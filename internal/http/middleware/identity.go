// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file binds the caller identity to the request context, and guards the
// bridge-only inbound relay endpoint with a shared token.
//
// Identity issuance and authentication happen upstream (the platform hands
// every connected client an opaque, globally unique identifier); this layer
// only transports the already-verified value, via the X-Client-ID header.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderClientID carries the opaque caller identity issued upstream.
	HeaderClientID = "X-Client-ID"
	// HeaderRelayToken authenticates the external relay bridge.
	HeaderRelayToken = "X-Relay-Token"
	// HeaderRelayMessageID carries the external network's identifier for an
	// inbound block, used for redelivery dedupe.
	HeaderRelayMessageID = "X-Relay-Message-ID"

	ctxKeyRateBypass = "rate.bypass"
)

// ClientIdentity stores the caller identity from X-Client-ID in the Gin
// context. Requests without the header proceed; endpoints that require an
// identity reject them in the handler with a 401.
func ClientIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderClientID)); id != "" {
			c.Set(clientIDKey, id)
		}
		c.Next()
	}
}

// ClientIDFrom returns the caller identity bound by ClientIdentity. The
// second return value reports presence.
func ClientIDFrom(c *gin.Context) (string, bool) {
	v, ok := c.Get(clientIDKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// BridgeBypass marks requests carrying a valid relay token for rate-limit
// bypass. It must run before the rate limiter; BridgeAuth still enforces
// authentication on the guarded route. An invalid or absent token leaves the
// request subject to normal limiting.
func BridgeBypass(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token != "" {
			got := strings.TrimSpace(c.GetHeader(HeaderRelayToken))
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1 {
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// BridgeAuth guards an endpoint with a shared token carried in X-Relay-Token.
// Comparison is constant-time. An empty configured token disables the
// endpoint entirely (403), so the inbound path cannot be left open by
// accident.
func BridgeAuth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "forbidden",
				"message":    "relay bridge is not configured",
			})
			return
		}
		got := strings.TrimSpace(c.GetHeader(HeaderRelayToken))
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "invalid relay token",
			})
			return
		}
		c.Next()
	}
}
