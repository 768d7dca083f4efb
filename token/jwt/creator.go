package jwt

import (
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/plan-session/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Creator handles access token creation for the mock auth API
type Creator struct {
	secret []byte
	issuer string

	mu  sync.RWMutex
	ttl time.Duration
}

// NewCreator creates a new HS256 access token creator
func NewCreator(secret string, ttl time.Duration, issuer string) *Creator {
	return &Creator{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
	}
}

// SetTTL changes the lifetime of subsequently issued access tokens
func (c *Creator) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// CreateAccessToken creates a signed access token and returns it with its expiry
func (c *Creator) CreateAccessToken(user *users.User) (string, time.Time, error) {
	c.mu.RLock()
	ttl := c.ttl
	c.mu.RUnlock()

	now := NowTimeFunc()
	expiresAt := now.Add(ttl)
	claims := jwtlib.MapClaims{
		"iss":       c.issuer,              // The issuer of the token
		"sub":       user.ID,               // The user the token was issued to
		"email":     user.Email,            // Convenience claim for resource servers
		"user_type": string(user.UserType), // client or provider
		"iat":       now.Unix(),            // Issued At
		"exp":       expiresAt.Unix(),      // Expiry
		"jti":       uuid.New().String(),   // Unique token ID for revocation
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, time.Unix(expiresAt.Unix(), 0), nil
}

func (c *Creator) verificationKey(token *jwtlib.Token) (any, error) {
	if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.secret, nil
}
