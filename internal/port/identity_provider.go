package port

import (
	"context"
	"errors"

	"github.com/rl1809/storefront/internal/core/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email address is already in use")
	ErrInvalidEmail       = errors.New("email address is badly formatted")
	ErrWeakPassword       = errors.New("password should be at least 6 characters")
	ErrSessionExpired     = errors.New("session is no longer valid")
)

type IdentityProvider interface {
	// CreateAnonymousSession creates an ephemeral principal
	CreateAnonymousSession(ctx context.Context) (*domain.Principal, error)

	// CreateSession signs in with email and password
	CreateSession(ctx context.Context, email, password string) (*domain.Principal, error)

	// RegisterPrincipal creates a credentialed principal and signs it in
	RegisterPrincipal(ctx context.Context, email, password string) (*domain.Principal, error)

	// ResumeSession restores the principal that owns token
	ResumeSession(ctx context.Context, token string) (*domain.Principal, error)

	// EndSession invalidates the principal's session token
	EndSession(ctx context.Context, principal *domain.Principal) error
}
