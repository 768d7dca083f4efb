// Package apifake provides a scripted authapi.Client for exercising the session core
// without a network.
package apifake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/users"
)

var _ authapi.Client = (*FakeClient)(nil)

// FakeClient answers every call from its programmed state. By default Login succeeds for
// any credentials and Refresh issues a new token pair with the configured TTL.
type FakeClient struct {
	mu sync.Mutex

	user        users.User
	accessTTL   time.Duration
	now         func() time.Time
	issued      int
	rotate      bool
	loginErr    error
	registerErr error
	logoutErr   error
	refreshErr  []error
	gate        chan struct{}
	started     chan struct{}

	loginCalls    int
	registerCalls int
	refreshCalls  int
	logoutCalls   int
	refreshTokens []string
}

func NewFakeClient(user users.User) *FakeClient {
	return &FakeClient{
		user:      user,
		accessTTL: 15 * time.Minute,
		now:       time.Now,
		rotate:    true,
	}
}

// SetNow overrides the clock used to compute expiries
func (f *FakeClient) SetNow(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *FakeClient) SetAccessTTL(ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessTTL = ttl
}

// SetRotate controls whether Refresh returns a new refresh token
func (f *FakeClient) SetRotate(rotate bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotate = rotate
}

func (f *FakeClient) FailLogin(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginErr = err
}

func (f *FakeClient) FailRegister(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerErr = err
}

func (f *FakeClient) FailLogout(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutErr = err
}

// FailRefresh queues errors returned by the next refresh calls, one per call
func (f *FakeClient) FailRefresh(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshErr = append(f.refreshErr, errs...)
}

// BlockRefresh makes Refresh wait until the returned release function is called. The
// returned channel is closed once the first blocked refresh has started.
func (f *FakeClient) BlockRefresh() (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	f.started = make(chan struct{})
	var once sync.Once
	return f.started, func() { once.Do(func() { close(gate) }) }
}

func (f *FakeClient) Login(ctx context.Context, _ authapi.Credentials) (*authapi.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &authapi.AuthResult{User: f.user, Tokens: f.issueLocked()}, nil
}

func (f *FakeClient) Register(ctx context.Context, reg authapi.Registration) (*authapi.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	u := f.user
	u.Email, u.Name = reg.Email, reg.Name
	if reg.UserType != "" {
		u.UserType = reg.UserType
	}
	return &authapi.AuthResult{User: u, Tokens: f.issueLocked()}, nil
}

func (f *FakeClient) Refresh(ctx context.Context, refreshToken string) (*authapi.RefreshResult, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	gate, started := f.gate, f.started
	f.gate, f.started = nil, nil
	f.mu.Unlock()

	if gate != nil {
		close(started)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("[FakeClient.Refresh] %w: %w: %w", authapi.ErrTimeout, authapi.ErrNetwork, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.refreshErr) > 0 {
		err := f.refreshErr[0]
		f.refreshErr = f.refreshErr[1:]
		if err != nil {
			return nil, err
		}
	}
	next := f.issueLocked()
	res := &authapi.RefreshResult{AccessToken: next.AccessToken, ExpiresAt: next.ExpiresAt}
	if f.rotate {
		res.RefreshToken = next.RefreshToken
	}
	return res, nil
}

func (f *FakeClient) Logout(ctx context.Context, _ token.Tokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *FakeClient) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

func (f *FakeClient) RegisterCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registerCalls
}

func (f *FakeClient) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *FakeClient) LogoutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutCalls
}

// RefreshTokensSeen lists the refresh tokens presented to Refresh, in order
func (f *FakeClient) RefreshTokensSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshTokens...)
}

func (f *FakeClient) issueLocked() token.Tokens {
	f.issued++
	return token.Tokens{
		AccessToken:  fmt.Sprintf("access-%d", f.issued),
		RefreshToken: fmt.Sprintf("refresh-%d", f.issued),
		ExpiresAt:    f.now().Add(f.accessTTL),
	}
}
