package token

import (
	"strings"
	"time"
)

// Tokens is the access/refresh token pair held by a session. ExpiresAt is the access token
// expiry; the refresh token's own lifetime is opaque to the client.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Valid reports whether the pair is structurally usable
func (t Tokens) Valid() bool {
	return strings.TrimSpace(t.AccessToken) != "" &&
		strings.TrimSpace(t.RefreshToken) != "" &&
		!t.ExpiresAt.IsZero()
}

// FreshAt reports whether the access token can still be used at now without a refresh,
// keeping margin in hand for the request itself.
func (t Tokens) FreshAt(now time.Time, margin time.Duration) bool {
	return now.Before(t.ExpiresAt.Add(-margin))
}

// RefreshAt is the instant a proactive refresh should fire
func (t Tokens) RefreshAt(margin time.Duration) time.Time {
	return t.ExpiresAt.Add(-margin)
}

// Equal compares token pairs, treating expiry instants with different locations as equal
func (t Tokens) Equal(o Tokens) bool {
	return t.AccessToken == o.AccessToken &&
		t.RefreshToken == o.RefreshToken &&
		t.ExpiresAt.Equal(o.ExpiresAt)
}
