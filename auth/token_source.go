package auth

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

type sessionTokenSource struct {
	ctx     context.Context
	service *Service
}

// TokenSource exposes the session as an oauth2.TokenSource. Every Token call goes through
// EnsureFreshToken, so it must not be wrapped in oauth2.ReuseTokenSource.
func (s *Service) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, service: s}
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	tokens, err := ts.service.EnsureFreshToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: tokens.RefreshToken,
		Expiry:       tokens.ExpiresAt,
	}, nil
}

// HTTPClient returns a client that authenticates requests with the session's access
// token. A request answered 401 is retried once after OnUnauthorized, provided its body
// can be replayed.
func (s *Service) HTTPClient(ctx context.Context, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &unauthorizedRetryTransport{
			service: s,
			source:  s.TokenSource(ctx),
			base:    base,
		},
	}
}

type unauthorizedRetryTransport struct {
	service *Service
	source  oauth2.TokenSource
	base    http.RoundTripper
}

func (t *unauthorizedRetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, sent, err := t.send(req, req.Body)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	if _, err := t.service.OnUnauthorized(req.Context(), sent); err != nil {
		t.service.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("Not retrying unauthorized request")
		return resp, nil
	}

	body := req.Body
	if req.GetBody != nil {
		if body, err = req.GetBody(); err != nil {
			return resp, nil
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	resp, _, err = t.send(req, body)
	return resp, err
}

// send issues req with body and the current access token, returning the token it used
func (t *unauthorizedRetryTransport) send(req *http.Request, body io.ReadCloser) (*http.Response, string, error) {
	tok, err := t.source.Token()
	if err != nil {
		if body != nil {
			body.Close()
		}
		return nil, "", err
	}

	out := req.Clone(req.Context())
	out.Body = body
	tok.SetAuthHeader(out)
	resp, err := t.base.RoundTrip(out)
	return resp, tok.AccessToken, err
}
