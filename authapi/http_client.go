package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/plan-session/token"
)

const maxErrorBody = 64 << 10

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks JSON to the authentication backend
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

type HTTPClientOption func(*HTTPClient)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) HTTPClientOption {
	return func(h *HTTPClient) {
		h.httpClient = c
	}
}

func WithLogger(l zerolog.Logger) HTTPClientOption {
	return func(h *HTTPClient) {
		h.logger = l
	}
}

// WithNowTime overrides the clock used to resolve relative expiries
func WithNowTime(now func() time.Time) HTTPClientOption {
	return func(h *HTTPClient) {
		h.now = now
	}
}

func NewHTTPClient(baseURL string, opts ...HTTPClientOption) (*HTTPClient, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("[NewHTTPClient] base URL is required")
	}
	c := &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     log.Logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	var body WireAuthResponse
	status, wireErr, err := c.post(ctx, "Login", PathLogin, "", creds, &body)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return nil, fmt.Errorf("[HTTPClient.Login] %w", ErrInvalidCredentials)
	case status >= 200 && status < 300:
		return c.authResult("Login", body)
	default:
		return nil, c.statusError("Login", status, wireErr)
	}
}

func (c *HTTPClient) Register(ctx context.Context, reg Registration) (*AuthResult, error) {
	var body WireAuthResponse
	status, wireErr, err := c.post(ctx, "Register", PathRegister, "", reg, &body)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusConflict:
		return nil, fmt.Errorf("[HTTPClient.Register] %w", ErrConflict)
	case status >= 200 && status < 300:
		return c.authResult("Register", body)
	default:
		return nil, c.statusError("Register", status, wireErr)
	}
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	var body WireTokens
	status, wireErr, err := c.post(ctx, "Refresh", PathRefresh, "", WireRefreshRequest{RefreshToken: refreshToken}, &body)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("[HTTPClient.Refresh] %w", ErrUnauthorized)
	case status >= 200 && status < 300:
		expiresAt, ok := body.expiry(c.now())
		if body.AccessToken == "" || !ok {
			return nil, networkError("Refresh", errors.New("malformed refresh response"))
		}
		return &RefreshResult{
			AccessToken:  body.AccessToken,
			RefreshToken: body.RefreshToken,
			ExpiresAt:    expiresAt,
		}, nil
	default:
		return nil, c.statusError("Refresh", status, wireErr)
	}
}

func (c *HTTPClient) Logout(ctx context.Context, tokens token.Tokens) error {
	status, wireErr, err := c.post(ctx, "Logout", PathLogout, tokens.AccessToken, WireRefreshRequest{RefreshToken: tokens.RefreshToken}, nil)
	if err != nil {
		return err
	}
	if status >= 200 && status < 300 {
		return nil
	}
	return c.statusError("Logout", status, wireErr)
}

// Do sends an arbitrary request relative to the base URL with the bearer token set
func (c *HTTPClient) Do(ctx context.Context, method, path, accessToken string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[HTTPClient.Do] building request")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("Do", err)
	}
	return resp, nil
}

// BaseURL returns the backend root the client was built with
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) authResult(op string, body WireAuthResponse) (*AuthResult, error) {
	expiresAt, ok := body.Tokens.expiry(c.now())
	tokens := token.Tokens{
		AccessToken:  body.Tokens.AccessToken,
		RefreshToken: body.Tokens.RefreshToken,
		ExpiresAt:    expiresAt,
	}
	if !ok || !tokens.Valid() || body.User.ID == "" {
		return nil, networkError(op, errors.New("malformed auth response"))
	}
	return &AuthResult{User: body.User, Tokens: tokens}, nil
}

// post sends body as JSON and decodes a 2xx response into out. Transport failures are
// returned as errors; any HTTP status is returned for the caller to map.
func (c *HTTPClient) post(ctx context.Context, op, path, bearer string, in, out any) (int, *WireError, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, nil, pkgerrors.Wrapf(err, "[HTTPClient.%s] encoding request", op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, pkgerrors.Wrapf(err, "[HTTPClient.%s] building request", op)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("op", op).Str("request_id", requestID).Msg("Auth request failed")
		return 0, nil, transportError(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", c.now().Sub(start)).
		Msg("Auth request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var wireErr WireError
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if len(data) > 0 && json.Unmarshal(data, &wireErr) == nil {
			return resp.StatusCode, &wireErr, nil
		}
		return resp.StatusCode, nil, nil
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, nil, networkError(op, pkgerrors.Wrap(err, "decoding response"))
		}
	}
	return resp.StatusCode, nil, nil
}

func (c *HTTPClient) statusError(op string, status int, wireErr *WireError) error {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		fields := map[string]string{}
		if wireErr != nil {
			for k, v := range wireErr.Fields {
				fields[k] = v
			}
			if len(fields) == 0 && wireErr.Message != "" {
				fields["form"] = wireErr.Message
			}
		}
		if len(fields) == 0 {
			fields["form"] = http.StatusText(status)
		}
		return fmt.Errorf("[HTTPClient.%s] %w", op, &ValidationError{Fields: fields})
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return timeoutError(op, fmt.Errorf("status %d", status))
	default:
		msg := http.StatusText(status)
		if wireErr != nil && wireErr.Message != "" {
			msg = wireErr.Message
		}
		return networkError(op, fmt.Errorf("status %d: %s", status, msg))
	}
}

func transportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return timeoutError(op, err)
	}
	return networkError(op, err)
}
