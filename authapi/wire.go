package authapi

import (
	"time"

	"github.com/jrsteele09/plan-session/token/jwt"
	"github.com/jrsteele09/plan-session/users"
)

// Paths served by the authentication backend
const (
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
	PathRefresh  = "/auth/refresh"
	PathLogout   = "/auth/logout"
	PathMe       = "/api/me"
)

// WireTokens is the token object exchanged with the backend.
type WireTokens struct {
	// AccessToken is the bearer token for API calls.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	AccessToken string `json:"accessToken"`

	// RefreshToken is the opaque token exchanged at /auth/refresh.
	// Only present on refresh when the backend rotated it.
	RefreshToken string `json:"refreshToken,omitempty"`

	// ExpiresAt is the access token expiry as an RFC 3339 instant.
	// Example: "2025-03-01T10:15:00Z"
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	// ExpiresIn is the access token lifetime in seconds, used when ExpiresAt is absent.
	// Example: 900
	ExpiresIn int `json:"expiresIn,omitempty"`
}

// expiry resolves the access token expiry: expiresAt, then expiresIn relative to
// received, then the unverified JWT exp claim.
func (w WireTokens) expiry(received time.Time) (time.Time, bool) {
	if w.ExpiresAt != nil && !w.ExpiresAt.IsZero() {
		return *w.ExpiresAt, true
	}
	if w.ExpiresIn > 0 {
		return received.Add(time.Duration(w.ExpiresIn) * time.Second), true
	}
	return jwt.ExpiryUnverified(w.AccessToken)
}

// WireAuthResponse is the body of a successful login or registration
type WireAuthResponse struct {
	User   users.User `json:"user"`
	Tokens WireTokens `json:"tokens"`
}

// WireRefreshRequest is the body of /auth/refresh and /auth/logout
type WireRefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// WireError is the body of every non-2xx response.
type WireError struct {
	// Error is a machine readable code.
	// Example: "invalid_credentials"
	Error string `json:"error"`

	// Message is a human readable description.
	Message string `json:"message,omitempty"`

	// Fields holds per-field validation messages on 400/422.
	// Example: {"email": "is already in use"}
	Fields map[string]string `json:"fields,omitempty"`
}
