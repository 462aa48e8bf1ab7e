package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pinchat/internal/auth"
)

// AuthHandlers provides the admin login endpoint.
type AuthHandlers struct {
	authService *auth.Service
	limiter     Limiter
	log         *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(authService *auth.Service, limiter Limiter, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		limiter:     limiter,
		log:         logger,
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// Login handles admin login.
// POST /api/admin/login
func (h *AuthHandlers) Login(c *gin.Context) {
	if h.limiter != nil {
		ok, err := h.limiter.Allow(c.Request.Context(), "login:"+c.ClientIP())
		if err != nil {
			// A broken limiter must not lock admins out.
			h.log.Warn().Err(err).Msg("login limiter failed")
		} else if !ok {
			c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many login attempts"})
			return
		}
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login admin")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("username", req.Username).Msg("admin logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}
