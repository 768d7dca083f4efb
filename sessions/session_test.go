package sessions_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/plan-session/internal/errors"
	"github.com/jrsteele09/plan-session/sessions"
	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/users"
	"github.com/stretchr/testify/require"
)

func testUser() users.User {
	return users.User{ID: "u-1", Email: "a@b.com", Name: "Alice", UserType: users.UserTypeClient}
}

func testTokens(access string) token.Tokens {
	return token.Tokens{AccessToken: access, RefreshToken: "r-" + access, ExpiresAt: time.Now().Add(time.Hour)}
}

// recorder checks the authentication invariant on every published snapshot
func recorder(t *testing.T, s *sessions.Session) *[]sessions.Snapshot {
	t.Helper()
	var mu sync.Mutex
	var got []sessions.Snapshot
	unsubscribe := s.Subscribe(func(snap sessions.Snapshot) {
		require.Equal(t, snap.User != nil && snap.Tokens != nil, snap.IsAuthenticated)
		require.Equal(t, snap.Status == sessions.StatusAuthenticating || snap.Status == sessions.StatusRefreshing, snap.IsLoading)
		mu.Lock()
		got = append(got, snap)
		mu.Unlock()
	})
	t.Cleanup(unsubscribe)
	return &got
}

func statuses(snaps []sessions.Snapshot) []sessions.Status {
	out := make([]sessions.Status, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Status)
	}
	return out
}

func TestInitialSnapshot(t *testing.T) {
	snap := sessions.New().Current()
	require.Equal(t, sessions.StatusUnauthenticated, snap.Status)
	require.False(t, snap.IsAuthenticated)
	require.False(t, snap.IsLoading)
	require.Nil(t, snap.User)
	require.Nil(t, snap.Tokens)
}

func TestLoginRefreshLogoutLifecycle(t *testing.T) {
	s := sessions.New()
	got := recorder(t, s)

	gen, err := s.BeginAuthentication()
	require.NoError(t, err)
	require.True(t, s.Current().IsLoading)

	require.NoError(t, s.CompleteAuthentication(gen, testUser(), testTokens("a1")))
	snap := s.Current()
	require.True(t, snap.IsAuthenticated)
	require.Equal(t, "a1", snap.Tokens.AccessToken)

	rgen, err := s.BeginRefresh()
	require.NoError(t, err)
	require.Equal(t, gen, rgen)
	require.True(t, s.Current().IsAuthenticated, "refreshing keeps the session authenticated")

	require.NoError(t, s.CompleteRefresh(rgen, testTokens("a2")))
	require.Equal(t, "a2", s.Current().Tokens.AccessToken)

	s.Reset()
	snap = s.Current()
	require.False(t, snap.IsAuthenticated)
	require.Equal(t, gen+1, snap.Generation)

	require.Equal(t, []sessions.Status{
		sessions.StatusAuthenticating,
		sessions.StatusAuthenticated,
		sessions.StatusRefreshing,
		sessions.StatusAuthenticated,
		sessions.StatusUnauthenticated,
	}, statuses(*got))
}

func TestFailAuthenticationKeepsError(t *testing.T) {
	s := sessions.New()
	gen, err := s.BeginAuthentication()
	require.NoError(t, err)

	cause := errors.New("bad password")
	require.NoError(t, s.FailAuthentication(gen, cause))

	snap := s.Current()
	require.Equal(t, sessions.StatusUnauthenticated, snap.Status)
	require.ErrorIs(t, snap.Err, cause)
	require.False(t, snap.IsLoading)

	_, err = s.BeginAuthentication()
	require.NoError(t, err)
	require.Nil(t, s.Current().Err, "a new attempt clears the previous error")
}

func TestAbortRefreshKeepsStaleTokens(t *testing.T) {
	s := sessions.New()
	require.NoError(t, s.Hydrate(testUser(), testTokens("a1")))

	gen, err := s.BeginRefresh()
	require.NoError(t, err)
	cause := errors.New("offline")
	require.NoError(t, s.AbortRefresh(gen, cause))

	snap := s.Current()
	require.Equal(t, sessions.StatusAuthenticated, snap.Status)
	require.Equal(t, "a1", snap.Tokens.AccessToken)
	require.ErrorIs(t, snap.Err, cause)
}

func TestFailRefreshExpiresSession(t *testing.T) {
	s := sessions.New()
	require.NoError(t, s.Hydrate(testUser(), testTokens("a1")))

	gen, err := s.BeginRefresh()
	require.NoError(t, err)
	require.NoError(t, s.FailRefresh(gen, errors.New("revoked")))

	snap := s.Current()
	require.Equal(t, sessions.StatusUnauthenticated, snap.Status)
	require.True(t, snap.Expired)
	require.Nil(t, snap.User)
	require.Nil(t, snap.Tokens)
	require.Equal(t, gen+1, snap.Generation)
}

func TestStaleGenerationIsDiscarded(t *testing.T) {
	s := sessions.New()
	got := recorder(t, s)

	gen, err := s.BeginAuthentication()
	require.NoError(t, err)
	s.Reset()

	err = s.CompleteAuthentication(gen, testUser(), testTokens("late"))
	require.ErrorIs(t, err, sessions.ErrStaleGeneration)
	require.False(t, s.Current().IsAuthenticated)

	require.NoError(t, s.Hydrate(testUser(), testTokens("a1")))
	rgen, err := s.BeginRefresh()
	require.NoError(t, err)
	s.Reset()

	require.ErrorIs(t, s.CompleteRefresh(rgen, testTokens("a2")), sessions.ErrStaleGeneration)
	require.ErrorIs(t, s.FailRefresh(rgen, errors.New("x")), sessions.ErrStaleGeneration)
	require.False(t, s.Current().IsAuthenticated)
	require.False(t, s.Current().Expired)

	for _, snap := range *got {
		if snap.Tokens != nil {
			require.NotEqual(t, "late", snap.Tokens.AccessToken)
			require.NotEqual(t, "a2", snap.Tokens.AccessToken)
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	s := sessions.New()

	_, err := s.BeginRefresh()
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	require.ErrorIs(t, s.CompleteAuthentication(0, testUser(), testTokens("a")), apperrors.ErrInvalidTransition)

	require.NoError(t, s.Hydrate(testUser(), testTokens("a1")))
	_, err = s.BeginAuthentication()
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	require.ErrorIs(t, s.Hydrate(testUser(), testTokens("a2")), apperrors.ErrInvalidTransition)
	require.ErrorIs(t, s.MarkError(errors.New("io")), apperrors.ErrInvalidTransition)

	_, err = s.BeginRefresh()
	require.NoError(t, err)
	_, err = s.BeginRefresh()
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestMarkErrorAllowsLogin(t *testing.T) {
	s := sessions.New()
	require.NoError(t, s.MarkError(errors.New("disk unreadable")))
	require.Equal(t, sessions.StatusError, s.Current().Status)
	require.False(t, s.Current().IsAuthenticated)

	_, err := s.BeginAuthentication()
	require.NoError(t, err)
}

func TestResetIsIdempotent(t *testing.T) {
	s := sessions.New()
	s.Reset()
	s.Reset()
	snap := s.Current()
	require.Equal(t, sessions.StatusUnauthenticated, snap.Status)
	require.Equal(t, uint64(2), snap.Generation)
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := sessions.New()
	require.NoError(t, s.Hydrate(testUser(), testTokens("a1")))

	snap := s.Current()
	snap.Tokens.AccessToken = "mutated"
	snap.User.Name = "Mallory"

	again := s.Current()
	require.Equal(t, "a1", again.Tokens.AccessToken)
	require.Equal(t, "Alice", again.User.Name)
}

func TestUnsubscribe(t *testing.T) {
	s := sessions.New()
	calls := 0
	unsubscribe := s.Subscribe(func(sessions.Snapshot) { calls++ })

	s.Reset()
	unsubscribe()
	unsubscribe()
	s.Reset()

	require.Equal(t, 1, calls)
}

func TestListenersSeeTransitionsInOrder(t *testing.T) {
	s := sessions.New()

	var mu sync.Mutex
	var gens []uint64
	s.Subscribe(func(snap sessions.Snapshot) {
		mu.Lock()
		gens = append(gens, snap.Generation)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Reset()
		}()
	}
	wg.Wait()

	require.Len(t, gens, 50)
	for i := 1; i < len(gens); i++ {
		require.Less(t, gens[i-1], gens[i])
	}
}

func TestListenerMayReadCurrent(t *testing.T) {
	s := sessions.New()
	var seen sessions.Status
	s.Subscribe(func(sessions.Snapshot) { seen = s.Current().Status })

	require.NoError(t, s.Hydrate(testUser(), testTokens("a1")))
	require.Equal(t, sessions.StatusAuthenticated, seen)
}

func TestListenerMayReadCurrentDuringConcurrentTransitions(t *testing.T) {
	s := sessions.New()
	s.Subscribe(func(sessions.Snapshot) {
		time.Sleep(time.Millisecond)
		_ = s.Current()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Reset()
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent Reset with a listener reading Current did not finish")
	}
	require.Equal(t, uint64(20), s.Generation())
}
