package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pinchat/internal/auth"
)

const (
	// ContextKeyAdmin is the context key for storing the admin username.
	ContextKeyAdmin = "admin"

	// unauthorizedMessage is returned for every token failure.
	unauthorizedMessage = "invalid or missing token"
)

// AuthMiddleware creates a middleware that validates admin JWT tokens.
// Every failure gets the same 401 body; the reason is only logged.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Msg("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: unauthorizedMessage})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			logger.Debug().Msg("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: unauthorizedMessage})
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: unauthorizedMessage})
			return
		}

		c.Set(ContextKeyAdmin, claims.Username)
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// CORSMiddleware allows any origin, matching the browser client deployment.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// BackendGuard rejects API calls with 500 while the store is unavailable.
func BackendGuard(degraded error, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if degraded != nil {
			logger.Warn().Err(degraded).Str("path", c.Request.URL.Path).Msg("request rejected, backend unavailable")
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "backend unavailable"})
			return
		}
		c.Next()
	}
}
