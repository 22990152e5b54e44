package httpserver

import (
	"io"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/dmitrijs2005/webshelf/internal/logging"
	"github.com/dmitrijs2005/webshelf/internal/server/auth"
	"github.com/dmitrijs2005/webshelf/internal/server/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID     = "X-Request-ID"
	headerAuthorization = "Authorization"
	ctxKeyRequestID     = "request_id"
)

// RequestID propagates X-Request-ID, generating one when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

// Recovery turns a panic in a later handler into a 500 and logs the value
// with its stack.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error(c.Request.Context(), "panic while serving request",
			"request_id", requestID(c),
			"path", c.Request.URL.Path,
			"panic", recovered,
			"stack", string(debug.Stack()),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errBodyInternal)
	})
}

// CORS answers preflight requests and sets the allow headers for listed
// origins. "*" allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	wildcard := slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (wildcard || slices.Contains(origins, origin)) {
			if wildcard {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", strings.Join([]string{headerAuthorization, "Content-Type", headerRequestID}, ", "))
			c.Header("Access-Control-Expose-Headers", headerRequestID)
		}
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Authenticate is the request gate. Public paths pass untouched; every other
// request needs a valid bearer token, whose identity is attached to the
// request context. The store is not consulted.
func Authenticate(gate *auth.Gate, logger logging.Logger, mtr *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if gate.IsPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		header := c.GetHeader(headerAuthorization)
		ident, err := gate.Authenticate(header)
		if err != nil {
			reason := auth.RejectReason(err)
			token, _ := auth.BearerToken(header)
			mtr.GateRejection("http", reason)
			logger.Warn(c.Request.Context(), "authentication failed", "auth_event", auth.SecurityEvent{
				Transport: "http",
				RequestID: requestID(c),
				Target:    c.Request.Method + " " + c.Request.URL.Path,
				Reason:    reason,
				Token:     token,
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, errBodyUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), ident))
		c.Next()
	}
}
