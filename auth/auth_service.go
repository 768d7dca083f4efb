package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/internal/config"
	"github.com/jrsteele09/plan-session/sessions"
	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/tokenstore"
	"github.com/jrsteele09/plan-session/users"
)

// Service owns the session. It is the only writer of the session state and the token
// store: login and registration completion, refresh resolution and logout all run under
// writeMu.
type Service struct {
	client  authapi.Client
	store   tokenstore.Store
	session *sessions.Session

	safetyMargin   time.Duration
	requestTimeout time.Duration
	hydrationGrace time.Duration
	maxTimeouts    int

	nowTime   func() time.Time
	afterFunc AfterFunc
	logger    zerolog.Logger

	writeMu         sync.Mutex
	refreshGroup    singleflight.Group
	refreshTimeouts int // consecutive, guarded by writeMu
	scheduler       *expiryScheduler

	closeMu  sync.Mutex
	closed   bool
	inflight sync.WaitGroup // refresh tickets started before Close
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithAfterFunc replaces the timer used for proactive refreshes (primarily for testing)
func WithAfterFunc(afterFunc AfterFunc) ServiceOption {
	return func(s *Service) {
		s.afterFunc = afterFunc
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSession uses an existing session instead of creating one
func WithSession(session *sessions.Session) ServiceOption {
	return func(s *Service) {
		s.session = session
	}
}

// NewService initializes a new Service with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewService(
	client authapi.Client,
	store tokenstore.Store,
	cfg config.SessionConfig,
	options ...ServiceOption,
) (*Service, error) {
	if client == nil {
		return nil, errors.New("[NewService] auth API client is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] token store is required")
	}
	if cfg == nil {
		return nil, errors.New("[NewService] session config is required")
	}

	s := &Service{
		client:         client,
		store:          store,
		safetyMargin:   cfg.GetSafetyMargin(),
		requestTimeout: cfg.GetRequestTimeout(),
		hydrationGrace: cfg.GetHydrationGrace(),
		maxTimeouts:    cfg.GetMaxRefreshTimeouts(),
		nowTime:        time.Now,
		afterFunc:      RealAfterFunc,
		logger:         log.Logger,
	}

	for _, opt := range options {
		opt(s)
	}

	if s.session == nil {
		s.session = sessions.New()
	}
	s.scheduler = newExpiryScheduler(s.afterFunc, s.nowTime, s.safetyMargin, s.scheduledRefresh)

	return s, nil
}

// Current returns the latest session snapshot
func (s *Service) Current() sessions.Snapshot {
	return s.session.Current()
}

// Subscribe registers fn for every session transition and returns its unsubscribe func
func (s *Service) Subscribe(fn sessions.Listener) func() {
	return s.session.Subscribe(fn)
}

// NextScheduledRefresh returns when the proactive refresh will fire, or zero
func (s *Service) NextScheduledRefresh() time.Time {
	return s.scheduler.next()
}

// Restore hydrates the session from the token store. It is meant to run once at startup,
// before any other operation.
//
// A persisted pair is restored even if its access token has expired, as long as it
// expired less than the hydration grace ago; the scheduler then refreshes it right away.
// Older or incomplete data is cleared.
func (s *Service) Restore(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tokens, err := s.store.Load(ctx)
	if err == nil {
		var user *users.User
		user, err = s.store.LoadUser(ctx)
		if err == nil {
			return s.hydrateLocked(ctx, user, tokens)
		}
	}

	s.logger.Error().Err(err).Msg("Failed to read persisted session")
	if markErr := s.session.MarkError(err); markErr != nil {
		s.logger.Warn().Err(markErr).Msg("Session already active, ignoring store failure")
	}
	return errors.Wrap(err, "[Service.Restore] reading token store")
}

func (s *Service) hydrateLocked(ctx context.Context, user *users.User, tokens *token.Tokens) error {
	if tokens == nil || user == nil {
		if tokens != nil || user != nil {
			s.logger.Warn().Msg("Discarding incomplete persisted session")
			s.clearStoreLocked(ctx)
		}
		return nil
	}

	if age := s.nowTime().Sub(tokens.ExpiresAt); age > s.hydrationGrace {
		s.logger.Info().Dur("expired_for", age).Msg("Discarding persisted session older than the hydration grace")
		s.clearStoreLocked(ctx)
		return nil
	}

	if err := s.session.Hydrate(*user, *tokens); err != nil {
		return errors.Wrap(err, "[Service.Restore] hydrating session")
	}
	s.scheduler.arm(tokens.ExpiresAt)

	s.logger.Info().
		Str("user_id", user.ID).
		Time("expires_at", tokens.ExpiresAt).
		Msg("Session restored")
	return nil
}

// Login authenticates with email and password and starts a session
func (s *Service) Login(ctx context.Context, creds authapi.Credentials) (*users.User, error) {
	return s.authenticate(ctx, "Login", ValidateCredentials(creds), func(ctx context.Context) (*authapi.AuthResult, error) {
		return s.client.Login(ctx, creds)
	})
}

// Register creates an account and starts a session for it
func (s *Service) Register(ctx context.Context, reg authapi.Registration) (*users.User, error) {
	return s.authenticate(ctx, "Register", ValidateRegistration(reg), func(ctx context.Context) (*authapi.AuthResult, error) {
		return s.client.Register(ctx, reg)
	})
}

func (s *Service) authenticate(
	ctx context.Context,
	op string,
	validationErr error,
	call func(ctx context.Context) (*authapi.AuthResult, error),
) (*users.User, error) {
	gen, err := s.session.BeginAuthentication()
	if err != nil {
		return nil, fmt.Errorf("[Service.%s] %w: %w", op, ErrSessionBusy, err)
	}

	if validationErr != nil {
		s.failAuthentication(gen, validationErr)
		return nil, fmt.Errorf("[Service.%s] %w", op, validationErr)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	res, err := call(callCtx)
	if err != nil {
		s.failAuthentication(gen, err)
		return nil, fmt.Errorf("[Service.%s] %w", op, err)
	}

	user, err := s.completeAuthentication(ctx, gen, res)
	if err != nil {
		return nil, fmt.Errorf("[Service.%s] %w", op, err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("user_type", string(user.UserType)).
		Str("op", op).
		Msg("Authenticated")
	return user, nil
}

func (s *Service) failAuthentication(gen uint64, cause error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.session.FailAuthentication(gen, cause); err != nil {
		s.logger.Debug().Err(err).Msg("Discarding failed authentication")
	}
}

func (s *Service) completeAuthentication(ctx context.Context, gen uint64, res *authapi.AuthResult) (*users.User, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.session.Generation() != gen {
		go s.revoke(res.Tokens)
		return nil, ErrSuperseded
	}

	if err := s.persistLocked(ctx, res.User, res.Tokens); err != nil {
		s.clearStoreLocked(ctx)
		_ = s.session.FailAuthentication(gen, err)
		return nil, err
	}

	if err := s.session.CompleteAuthentication(gen, res.User, res.Tokens); err != nil {
		return nil, err
	}
	s.refreshTimeouts = 0
	s.scheduler.arm(res.Tokens.ExpiresAt)
	return res.User.Clone(), nil
}

// Logout ends the session from any state. Pending logins and refreshes are superseded,
// the store is cleared and the backend is asked to revoke the tokens. The backend call
// is best effort; its failure is logged and not returned.
func (s *Service) Logout(ctx context.Context) error {
	s.writeMu.Lock()
	snap := s.session.Current()
	s.scheduler.cancel()
	s.refreshGroup.Forget(refreshKey)
	s.session.Reset()
	s.refreshTimeouts = 0
	err := s.store.Clear(ctx)
	s.writeMu.Unlock()

	if snap.Tokens != nil {
		s.revokeWithContext(ctx, *snap.Tokens)
	}
	if snap.User != nil {
		s.logger.Info().Str("user_id", snap.User.ID).Msg("Logged out")
	}
	return errors.Wrap(err, "[Service.Logout] clearing token store")
}

// Close stops the proactive refresh timer and waits, at most RequestTimeout, for a
// refresh already in flight so a rotated token pair is persisted before exit. No new
// refresh starts after Close.
func (s *Service) Close() {
	s.scheduler.cancel()
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.requestTimeout):
		s.logger.Warn().Msg("Closed while a token refresh was still in flight")
	}
	// a refresh that completed while waiting re-arms the timer
	s.scheduler.cancel()
}

// trackRefresh registers a refresh ticket with Close, or reports false once closed
func (s *Service) trackRefresh() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return false
	}
	s.inflight.Add(1)
	return true
}

func (s *Service) revoke(tokens token.Tokens) {
	s.revokeWithContext(context.Background(), tokens)
}

func (s *Service) revokeWithContext(ctx context.Context, tokens token.Tokens) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.requestTimeout)
	defer cancel()
	if err := s.client.Logout(ctx, tokens); err != nil {
		s.logger.Warn().Err(err).Msg("Server-side logout failed")
	}
}

func (s *Service) persistLocked(ctx context.Context, user users.User, tokens token.Tokens) error {
	if err := s.store.Save(ctx, tokens); err != nil {
		return errors.Wrap(err, "persisting tokens")
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return errors.Wrap(err, "persisting user")
	}
	return nil
}

func (s *Service) clearStoreLocked(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear token store")
	}
}
