// Package service implements the application's use cases on top of the
// store, the token service, and the image pipeline. Handlers stay thin;
// every rule about who may do what lives here.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/vieuxgrimoire/grimoire-server/internal/auth"
	"github.com/vieuxgrimoire/grimoire-server/internal/domain"
	domainerrors "github.com/vieuxgrimoire/grimoire-server/internal/errors"
	"github.com/vieuxgrimoire/grimoire-server/internal/id"
	"github.com/vieuxgrimoire/grimoire-server/internal/store"
	"github.com/vieuxgrimoire/grimoire-server/internal/validation"
)

// SignupRequest is the payload for account creation.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the payload for credential exchange.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult carries a freshly issued access token.
type AuthResult struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService handles signup, login, and token verification.
type AuthService struct {
	store     *store.Store
	tokens    *auth.TokenService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(s *store.Store, tokens *auth.TokenService, v *validation.Validator, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:     s,
		tokens:    tokens,
		validator: v,
		logger:    logger,
	}
}

// Signup creates a new account. The password is hashed before anything
// is persisted; the plaintext never leaves this function.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*domain.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to hash password")
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate user ID")
	}

	user := &domain.User{
		ID:           userID,
		Email:        req.Email,
		PasswordHash: hash,
	}
	user.InitTimestamps()

	if err := s.store.CreateUser(ctx, user); err != nil {
		if domainerrors.Is(err, store.ErrEmailExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create user")
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and issues an access token.
// An unknown email reports not found; a wrong password reports invalid
// credentials. The split matches what the web client expects.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if domainerrors.Is(err, store.ErrUserNotFound) {
			return nil, domainerrors.NotFound("no account for this email")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to look up user")
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to verify password")
	}
	if !ok {
		return nil, domainerrors.InvalidCredentials("incorrect password")
	}

	token, expiresAt, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to issue token")
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return &AuthResult{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyAccessToken validates a bearer token and returns the user ID it
// was issued for.
func (s *AuthService) VerifyAccessToken(tokenString string) (string, error) {
	claims, err := s.tokens.VerifyToken(tokenString)
	if err != nil {
		return "", domainerrors.Unauthorized("invalid or expired token").WithCause(err)
	}
	if claims.Subject == "" {
		return "", domainerrors.Unauthorized("token has no subject")
	}
	return claims.Subject, nil
}
