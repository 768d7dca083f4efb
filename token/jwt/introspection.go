package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// TokenIntrospection describes a verified access token. If Active is false the other
// fields may not be populated.
type TokenIntrospection struct {
	Active   bool      `json:"active"`              // Is the token valid right now
	Sub      string    `json:"sub,omitempty"`       // Users unique ID
	Email    string    `json:"email,omitempty"`     // Email claim
	UserType string    `json:"user_type,omitempty"` // client or provider
	JTI      string    `json:"jti,omitempty"`       // Token ID
	Exp      time.Time `json:"exp,omitempty"`       // Expiration
}

// RevokedChecker is an interface for checking if a token has been revoked
type RevokedChecker interface {
	IsRevoked(jti string) bool
}

// Inspector verifies access tokens issued by a Creator
type Inspector struct {
	creator        *Creator
	revokedChecker RevokedChecker
}

// NewInspector creates a new JWT inspector
func NewInspector(creator *Creator, revokedChecker RevokedChecker) *Inspector {
	return &Inspector{
		creator:        creator,
		revokedChecker: revokedChecker,
	}
}

// Introspect validates and extracts information from an access token
func (i *Inspector) Introspect(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, nil
	}

	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc),
	)
	token, err := parser.ParseWithClaims(rawToken, jwtlib.MapClaims{}, i.creator.verificationKey)
	if err != nil || !token.Valid {
		return &TokenIntrospection{Active: false}, err
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return &TokenIntrospection{Active: false}, errors.New("error extracting claims from token")
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	userType, _ := claims["user_type"].(string)
	jti, _ := claims["jti"].(string)
	exp, _ := claims["exp"].(float64)

	active := true
	if jti != "" && i.revokedChecker != nil && i.revokedChecker.IsRevoked(jti) {
		active = false
	}

	return &TokenIntrospection{
		Active:   active,
		Sub:      sub,
		Email:    email,
		UserType: userType,
		JTI:      jti,
		Exp:      time.Unix(int64(exp), 0),
	}, nil
}

// ExpiryUnverified reads the exp claim of a JWT without verifying its signature. Clients
// use it only as a fallback when the API omits an explicit expiry.
func ExpiryUnverified(rawToken string) (time.Time, bool) {
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
