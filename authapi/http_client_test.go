package authapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/authapi/mockserver"
	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/users"
	"github.com/stretchr/testify/require"
)

type mockConfig struct{}

func (mockConfig) GetPort() string                   { return ":0" }
func (mockConfig) GetJWTSecret() string              { return "test-secret" }
func (mockConfig) GetAccessTokenTTL() time.Duration  { return 15 * time.Minute }
func (mockConfig) GetRefreshTokenTTL() time.Duration { return time.Hour }

func newMockBackend(t *testing.T) (*mockserver.Server, *authapi.HTTPClient) {
	t.Helper()
	backend, err := mockserver.New(mockConfig{})
	require.NoError(t, err)
	_, err = backend.SeedUser("alice@example.com", "Passw0rd!", "Alice", users.UserTypeProvider)
	require.NoError(t, err)

	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	client, err := authapi.NewHTTPClient(srv.URL + "/")
	require.NoError(t, err)
	return backend, client
}

func stubBackend(t *testing.T, status int, body any) *authapi.HTTPClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}))
	t.Cleanup(srv.Close)
	client, err := authapi.NewHTTPClient(srv.URL)
	require.NoError(t, err)
	return client
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	_, err := authapi.NewHTTPClient("  ")
	require.Error(t, err)
}

func TestLoginAgainstMockBackend(t *testing.T) {
	_, client := newMockBackend(t)
	ctx := context.Background()

	res, err := client.Login(ctx, authapi.Credentials{Email: "alice@example.com", Password: "Passw0rd!"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", res.User.Email)
	require.True(t, res.User.IsProvider())
	require.True(t, res.Tokens.Valid())
	require.WithinDuration(t, time.Now().Add(15*time.Minute), res.Tokens.ExpiresAt, 5*time.Second)

	_, err = client.Login(ctx, authapi.Credentials{Email: "alice@example.com", Password: "nope"})
	require.ErrorIs(t, err, authapi.ErrInvalidCredentials)
	require.False(t, authapi.IsTransient(err))
}

func TestRegisterAgainstMockBackend(t *testing.T) {
	_, client := newMockBackend(t)
	ctx := context.Background()

	_, err := client.Register(ctx, authapi.Registration{Email: "bad", Password: "x"})
	require.ErrorIs(t, err, authapi.ErrValidation)
	var verr *authapi.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "email")
	require.Contains(t, verr.Fields, "password")

	_, err = client.Register(ctx, authapi.Registration{Email: "alice@example.com", Password: "Passw0rd!", Name: "A"})
	require.ErrorIs(t, err, authapi.ErrConflict)

	res, err := client.Register(ctx, authapi.Registration{Email: "carol@example.com", Password: "Passw0rd!", Name: "Carol"})
	require.NoError(t, err)
	require.Equal(t, users.UserTypeClient, res.User.UserType)
}

func TestRefreshAgainstMockBackend(t *testing.T) {
	backend, client := newMockBackend(t)
	ctx := context.Background()

	res, err := client.Login(ctx, authapi.Credentials{Email: "alice@example.com", Password: "Passw0rd!"})
	require.NoError(t, err)

	refreshed, err := client.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, res.Tokens.RefreshToken, refreshed.RefreshToken)

	_, err = client.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, authapi.ErrUnauthorized)

	backend.FailNext(authapi.PathRefresh, http.StatusBadGateway, 1)
	_, err = client.Refresh(ctx, refreshed.RefreshToken)
	require.ErrorIs(t, err, authapi.ErrNetwork)
	require.True(t, authapi.IsTransient(err))
}

func TestLogoutAgainstMockBackend(t *testing.T) {
	_, client := newMockBackend(t)
	ctx := context.Background()

	res, err := client.Login(ctx, authapi.Credentials{Email: "alice@example.com", Password: "Passw0rd!"})
	require.NoError(t, err)
	require.NoError(t, client.Logout(ctx, res.Tokens))

	_, err = client.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, authapi.ErrUnauthorized)

	resp, err := client.Do(ctx, http.MethodGet, authapi.PathMe, res.Tokens.AccessToken)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTimeoutMatchesNetwork(t *testing.T) {
	backend, client := newMockBackend(t)
	backend.SetLatency(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Refresh(ctx, "whatever")
	require.ErrorIs(t, err, authapi.ErrTimeout)
	require.ErrorIs(t, err, authapi.ErrNetwork)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := authapi.NewHTTPClient(url)
	require.NoError(t, err)
	_, err = client.Login(context.Background(), authapi.Credentials{Email: "a@b.com", Password: "x"})
	require.ErrorIs(t, err, authapi.ErrNetwork)
	require.False(t, errors.Is(err, authapi.ErrTimeout))
}

func TestStatusMapping(t *testing.T) {
	ctx := context.Background()

	client := stubBackend(t, http.StatusInternalServerError, authapi.WireError{Error: "boom", Message: "database down"})
	_, err := client.Login(ctx, authapi.Credentials{})
	require.ErrorIs(t, err, authapi.ErrNetwork)
	require.ErrorContains(t, err, "database down")

	client = stubBackend(t, http.StatusBadRequest, authapi.WireError{Error: "bad", Fields: map[string]string{"name": "is required"}})
	_, err = client.Register(ctx, authapi.Registration{})
	var verr *authapi.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "is required", verr.Fields["name"])

	client = stubBackend(t, http.StatusUnprocessableEntity, nil)
	_, err = client.Register(ctx, authapi.Registration{})
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "form")

	client = stubBackend(t, http.StatusGatewayTimeout, nil)
	_, err = client.Refresh(ctx, "r")
	require.ErrorIs(t, err, authapi.ErrTimeout)

	client = stubBackend(t, http.StatusForbidden, nil)
	_, err = client.Refresh(ctx, "r")
	require.ErrorIs(t, err, authapi.ErrUnauthorized)
}

func TestExpiryFallbacks(t *testing.T) {
	ctx := context.Background()
	user := users.User{ID: "u-1", Email: "a@b.com", UserType: users.UserTypeClient}

	client := stubBackend(t, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": map[string]any{"accessToken": "opaque", "refreshToken": "r", "expiresIn": 600},
	})
	res, err := client.Login(ctx, authapi.Credentials{})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(10*time.Minute), res.Tokens.ExpiresAt, 5*time.Second)

	exp := time.Now().Add(42 * time.Minute).Truncate(time.Second)
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	client = stubBackend(t, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": map[string]any{"accessToken": signed, "refreshToken": "r"},
	})
	res, err = client.Login(ctx, authapi.Credentials{})
	require.NoError(t, err)
	require.True(t, exp.Equal(res.Tokens.ExpiresAt))

	client = stubBackend(t, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": map[string]any{"accessToken": "opaque", "refreshToken": "r"},
	})
	_, err = client.Login(ctx, authapi.Credentials{})
	require.ErrorIs(t, err, authapi.ErrNetwork, "a response without any expiry is malformed")
}

func TestRefreshResultApplyKeepsRefreshToken(t *testing.T) {
	prev := token.Tokens{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: time.Now()}
	exp := time.Now().Add(time.Hour)

	next := authapi.RefreshResult{AccessToken: "a2", ExpiresAt: exp}.Apply(prev)
	require.Equal(t, "r1", next.RefreshToken)

	next = authapi.RefreshResult{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: exp}.Apply(prev)
	require.Equal(t, "r2", next.RefreshToken)
	require.Equal(t, "a2", next.AccessToken)
}

func TestValidationErrorMessage(t *testing.T) {
	err := authapi.NewValidationError(map[string]string{"password": "too short", "email": "invalid"})
	require.EqualError(t, err, "validation failed: email: invalid; password: too short")
	require.NoError(t, authapi.NewValidationError(nil))
}
