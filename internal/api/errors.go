package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/tallybridge/internal/ingest"
)

// writeError maps service errors onto HTTP responses and aborts the chain.
//
//   - *ingest.AuthError: 401 (unauthenticated) or 403 (forbidden)
//   - *ingest.ValidationError: 400
//   - anything else: 500, logged, details withheld from the client
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var authErr *ingest.AuthError
	var validationErr *ingest.ValidationError

	switch {
	case errors.As(err, &authErr):
		status := http.StatusUnauthorized
		if authErr.Kind == ingest.AuthForbidden {
			status = http.StatusForbidden
		}
		c.AbortWithStatusJSON(status, gin.H{"error": authErr.Reason})

	case errors.As(err, &validationErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})

	default:
		logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
