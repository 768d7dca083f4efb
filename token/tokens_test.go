package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/plan-session/token"
	"github.com/stretchr/testify/require"
)

func TestTokensValid(t *testing.T) {
	now := time.Now()
	require.True(t, token.Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: now}.Valid())
	require.False(t, token.Tokens{AccessToken: "", RefreshToken: "r", ExpiresAt: now}.Valid())
	require.False(t, token.Tokens{AccessToken: "a", RefreshToken: " ", ExpiresAt: now}.Valid())
	require.False(t, token.Tokens{AccessToken: "a", RefreshToken: "r"}.Valid())
}

func TestTokensFreshAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens := token.Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Add(time.Minute)}

	require.True(t, tokens.FreshAt(now, 30*time.Second))
	require.False(t, tokens.FreshAt(now.Add(30*time.Second), 30*time.Second))
	require.False(t, tokens.FreshAt(now.Add(2*time.Minute), 0))
	require.Equal(t, now.Add(30*time.Second), tokens.RefreshAt(30*time.Second))
}

func TestTokensEqualIgnoresLocation(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := token.Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: at}
	b := token.Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: at.In(time.FixedZone("AEST", 10*3600))}
	require.True(t, a.Equal(b))
}
