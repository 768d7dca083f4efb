// Package authapi is the client side of the authentication backend: the operations the
// session core needs, the errors they can fail with and an HTTP implementation.
package authapi

import (
	"context"
	"time"

	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/users"
)

// Client is the authentication backend as seen by the session core
type Client interface {
	// Login fails with ErrInvalidCredentials or ErrNetwork
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
	// Register fails with *ValidationError, ErrConflict or ErrNetwork
	Register(ctx context.Context, reg Registration) (*AuthResult, error)
	// Refresh fails with ErrUnauthorized when the refresh token is no longer accepted,
	// ErrNetwork or ErrTimeout otherwise
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	// Logout revokes the pair server side. It is best effort.
	Logout(ctx context.Context, tokens token.Tokens) error
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Name     string         `json:"name"`
	UserType users.UserType `json:"userType"`
}

// AuthResult is returned by a successful login or registration
type AuthResult struct {
	User   users.User   `json:"user"`
	Tokens token.Tokens `json:"tokens"`
}

// RefreshResult carries the new access token. RefreshToken is empty when the backend
// did not rotate the refresh token.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Apply merges the result into the previous pair
func (r RefreshResult) Apply(prev token.Tokens) token.Tokens {
	next := token.Tokens{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = prev.RefreshToken
	}
	return next
}
