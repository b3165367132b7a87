package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/tallybridge/internal/metrics"
	"github.com/roach88/tallybridge/internal/model"
)

const callerKey = "tallybridge_caller"

// Authenticator resolves bearer tokens. Implemented by *ingest.Service.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Client, error)
}

// SetCaller stores the authenticated client in the gin context.
func SetCaller(c *gin.Context, client model.Client) {
	c.Set(callerKey, client)
}

// GetCaller retrieves the authenticated client from the gin context.
// The bool is false on routes without authMiddleware.
func GetCaller(c *gin.Context) (model.Client, bool) {
	if v, exists := c.Get(callerKey); exists {
		if client, ok := v.(model.Client); ok {
			return client, true
		}
	}
	return model.Client{}, false
}

// authMiddleware requires a bearer token that maps to a registered client.
func authMiddleware(auth Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := auth.Authenticate(c.Request.Context(), extractBearerToken(c))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		SetCaller(c, client)
		c.Next()
	}
}

// adminMiddleware requires the configured admin token.
func adminMiddleware(adminToken string) gin.HandlerFunc {
	want := []byte(adminToken)
	return func(c *gin.Context) {
		got := []byte(extractBearerToken(c))
		if len(got) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}

// extractBearerToken reads "Authorization: Bearer <token>".
// Returns "" when the header is absent or not a bearer credential.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// instrument records request counts and latency per matched route.
func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
