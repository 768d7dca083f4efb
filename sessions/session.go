package sessions

import (
	"errors"
	"fmt"
	"sync"

	apperrors "github.com/jrsteele09/plan-session/internal/errors"
	"github.com/jrsteele09/plan-session/internal/utils"
	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/users"
)

// Status of the session
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticating  Status = "authenticating"
	StatusAuthenticated   Status = "authenticated"
	StatusRefreshing      Status = "refreshing"
	StatusError           Status = "error"
)

// ErrStaleGeneration is returned when a transition carries a generation that a logout
// has already superseded. Callers drop the result silently.
var ErrStaleGeneration = errors.New("session generation superseded")

// Snapshot is an immutable view of the session published to readers
type Snapshot struct {
	User            *users.User
	Tokens          *token.Tokens
	IsAuthenticated bool
	IsLoading       bool
	Status          Status
	Err             error
	// Expired is set when the session ended because the refresh token was rejected
	Expired bool
	// Generation increments every time a session ends
	Generation uint64
}

// Listener receives every published snapshot. Listeners run synchronously in transition
// order and must not call the session's transition methods.
type Listener func(Snapshot)

type subscription struct {
	id uint64
	fn Listener
}

// Session is the single source of truth for who is signed in. Transition methods are
// the only mutators; they are intended for the auth service alone.
type Session struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex
	user      *users.User
	tokens    *token.Tokens
	status    Status
	err       error
	expired   bool
	gen       uint64
	nextSubID uint64
	subs      []subscription
}

func New() *Session {
	return &Session{status: StatusUnauthenticated}
}

// Current returns the latest snapshot
func (s *Session) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Generation returns the current session generation
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Subscribe registers fn for every future transition. The returned function removes it.
func (s *Session) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// BeginAuthentication moves an idle session into Authenticating and returns the
// generation the login must complete under.
func (s *Session) BeginAuthentication() (uint64, error) {
	var gen uint64
	err := s.transition(func() error {
		if s.status != StatusUnauthenticated && s.status != StatusError {
			return s.invalid("BeginAuthentication")
		}
		s.status = StatusAuthenticating
		s.err = nil
		s.expired = false
		gen = s.gen
		return nil
	})
	return gen, err
}

func (s *Session) CompleteAuthentication(gen uint64, user users.User, tokens token.Tokens) error {
	return s.transition(func() error {
		if err := s.checkLocked("CompleteAuthentication", gen, StatusAuthenticating); err != nil {
			return err
		}
		s.user = user.Clone()
		s.tokens = utils.Ptr(tokens)
		s.status = StatusAuthenticated
		s.err = nil
		return nil
	})
}

func (s *Session) FailAuthentication(gen uint64, cause error) error {
	return s.transition(func() error {
		if err := s.checkLocked("FailAuthentication", gen, StatusAuthenticating); err != nil {
			return err
		}
		s.user, s.tokens = nil, nil
		s.status = StatusUnauthenticated
		s.err = cause
		return nil
	})
}

// BeginRefresh marks a refresh as in flight and returns the generation it belongs to
func (s *Session) BeginRefresh() (uint64, error) {
	var gen uint64
	err := s.transition(func() error {
		if s.status != StatusAuthenticated {
			return s.invalid("BeginRefresh")
		}
		s.status = StatusRefreshing
		gen = s.gen
		return nil
	})
	return gen, err
}

func (s *Session) CompleteRefresh(gen uint64, tokens token.Tokens) error {
	return s.transition(func() error {
		if err := s.checkLocked("CompleteRefresh", gen, StatusRefreshing); err != nil {
			return err
		}
		s.tokens = utils.Ptr(tokens)
		s.status = StatusAuthenticated
		s.err = nil
		return nil
	})
}

// AbortRefresh returns to Authenticated keeping the current, possibly stale, tokens
func (s *Session) AbortRefresh(gen uint64, cause error) error {
	return s.transition(func() error {
		if err := s.checkLocked("AbortRefresh", gen, StatusRefreshing); err != nil {
			return err
		}
		s.status = StatusAuthenticated
		s.err = cause
		return nil
	})
}

// FailRefresh ends the session because its refresh token is no longer accepted
func (s *Session) FailRefresh(gen uint64, cause error) error {
	return s.transition(func() error {
		if err := s.checkLocked("FailRefresh", gen, StatusRefreshing); err != nil {
			return err
		}
		s.endLocked()
		s.err = cause
		s.expired = true
		return nil
	})
}

// Reset ends the session from any state
func (s *Session) Reset() {
	_ = s.transition(func() error {
		s.endLocked()
		return nil
	})
}

// Hydrate installs a persisted session at startup
func (s *Session) Hydrate(user users.User, tokens token.Tokens) error {
	return s.transition(func() error {
		if s.status != StatusUnauthenticated {
			return s.invalid("Hydrate")
		}
		s.user = user.Clone()
		s.tokens = utils.Ptr(tokens)
		s.status = StatusAuthenticated
		s.err = nil
		s.expired = false
		return nil
	})
}

// MarkError records that the persisted session could not be read
func (s *Session) MarkError(cause error) error {
	return s.transition(func() error {
		if s.status != StatusUnauthenticated {
			return s.invalid("MarkError")
		}
		s.status = StatusError
		s.err = cause
		return nil
	})
}

func (s *Session) endLocked() {
	s.user, s.tokens = nil, nil
	s.status = StatusUnauthenticated
	s.err = nil
	s.expired = false
	s.gen++
}

func (s *Session) checkLocked(op string, gen uint64, want Status) error {
	if gen != s.gen {
		return ErrStaleGeneration
	}
	if s.status != want {
		return s.invalid(op)
	}
	return nil
}

func (s *Session) invalid(op string) error {
	return fmt.Errorf("[Session.%s] from %s: %w", op, s.status, apperrors.ErrInvalidTransition)
}

// transition applies fn under the state lock and publishes the result. The notify lock
// is held across the whole transition so listeners see transitions in order; the state
// lock is released before listeners run so they may call Current.
func (s *Session) transition(fn func() error) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
	return nil
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:     s.status,
		Err:        s.err,
		Expired:    s.expired,
		Generation: s.gen,
		IsLoading:  s.status == StatusAuthenticating || s.status == StatusRefreshing,
	}
	if s.user != nil && s.tokens != nil {
		snap.User = s.user.Clone()
		snap.Tokens = utils.Clone(s.tokens)
		snap.IsAuthenticated = true
	}
	return snap
}
