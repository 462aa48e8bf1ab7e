package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/pinchat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service issues and verifies admin tokens.
type Service struct {
	store     store.AdminStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(adminStore store.AdminStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     adminStore,
		jwtConfig: jwtConfig,
	}
}

// Login validates admin credentials and returns a signed token.
// Store outages are returned as-is so callers can tell them apart from bad credentials.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	admin, err := s.store.GetAdmin(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("get admin: %w", err)
	}

	if errPwd := ComparePassword(admin.PasswordHash, password); errPwd != nil {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, admin.Username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// SetAdmin creates the admin or replaces its password.
func (s *Service) SetAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return ErrInvalidUsername
	}
	if len(password) < 6 {
		return ErrInvalidPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.store.SaveAdmin(ctx, &store.Admin{Username: username, PasswordHash: hash}); err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	return nil
}

// EnsureAdmin creates the admin only if it does not exist yet.
// Returns true when a new account was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := s.store.GetAdmin(ctx, strings.TrimSpace(username))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("get admin: %w", err)
	}
	if err := s.SetAdmin(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
