package auth_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/plan-session/auth"
	"github.com/jrsteele09/plan-session/authapi/apifake"
	"github.com/jrsteele09/plan-session/tokenstore/storefake"
	"github.com/jrsteele09/plan-session/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@b.com"
	testPassword = "Passw0rd!"
	safetyMargin = 30 * time.Second
	accessTTL    = 15 * time.Minute
)

type sessionConfig struct {
	maxTimeouts int
}

func (sessionConfig) GetSafetyMargin() time.Duration   { return safetyMargin }
func (sessionConfig) GetRequestTimeout() time.Duration { return 2 * time.Second }
func (sessionConfig) GetHydrationGrace() time.Duration { return 7 * 24 * time.Hour }
func (c sessionConfig) GetMaxRefreshTimeouts() int {
	if c.maxTimeouts == 0 {
		return 3
	}
	return c.maxTimeouts
}

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeTimers records scheduled callbacks instead of running them
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (f *fakeTimers) AfterFunc(d time.Duration, fn func()) auth.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// pending returns the timers that have been neither stopped nor fired
func (f *fakeTimers) pending() []*fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeTimer
	for _, t := range f.timers {
		t.mu.Lock()
		if !t.stopped {
			out = append(out, t)
		}
		t.mu.Unlock()
	}
	return out
}

// fire runs the single pending timer
func (f *fakeTimers) fire(t *testing.T) {
	t.Helper()
	pending := f.pending()
	require.Len(t, pending, 1, "expected exactly one armed timer")
	timer := pending[0]
	timer.mu.Lock()
	timer.stopped = true
	timer.mu.Unlock()
	timer.fn()
}

type testFixture struct {
	clock   *clock
	timers  *fakeTimers
	client  *apifake.FakeClient
	store   *storefake.FakeStore
	service *auth.Service
}

func testUser() users.User {
	return users.User{ID: "user-1", Email: testEmail, Name: "Alice", UserType: users.UserTypeClient}
}

func newFixture(t *testing.T, cfg sessionConfig) *testFixture {
	t.Helper()
	f := &testFixture{
		clock:  &clock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		timers: &fakeTimers{},
		client: apifake.NewFakeClient(testUser()),
		store:  storefake.NewFakeStore(),
	}
	f.client.SetNow(f.clock.Now)
	f.client.SetAccessTTL(accessTTL)

	svc, err := auth.NewService(f.client, f.store, cfg,
		auth.WithNowTime(f.clock.Now),
		auth.WithAfterFunc(f.timers.AfterFunc),
		auth.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	f.service = svc
	return f
}
