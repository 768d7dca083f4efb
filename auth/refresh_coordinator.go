package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/sessions"
	"github.com/jrsteele09/plan-session/token"
)

const refreshKey = "refresh"

// EnsureFreshToken returns tokens that are safe to use for a request. It refreshes the
// access token when it is within the safety margin of expiry. Concurrent callers share a
// single refresh; a caller whose ctx ends stops waiting but the refresh carries on for
// everyone else.
//
// Errors: ErrNotAuthenticated without a session, ErrSessionExpired when the refresh token
// was rejected (the session has been logged out), or a transient authapi error when the
// backend could not be reached (the session keeps its current tokens).
func (s *Service) EnsureFreshToken(ctx context.Context) (token.Tokens, error) {
	snap := s.session.Current()
	switch snap.Status {
	case sessions.StatusAuthenticated:
		if snap.Tokens.FreshAt(s.nowTime(), s.safetyMargin) {
			return *snap.Tokens, nil
		}
	case sessions.StatusRefreshing:
	default:
		return token.Tokens{}, ErrNotAuthenticated
	}
	return s.awaitRefresh(ctx, "")
}

// OnUnauthorized is called after a request made with rejectedAccessToken was answered
// 401. If the session still holds that token it is refreshed regardless of its expiry;
// if it has already been replaced the current tokens are returned.
func (s *Service) OnUnauthorized(ctx context.Context, rejectedAccessToken string) (token.Tokens, error) {
	snap := s.session.Current()
	switch snap.Status {
	case sessions.StatusAuthenticated:
		if snap.Tokens.AccessToken != rejectedAccessToken {
			return *snap.Tokens, nil
		}
	case sessions.StatusRefreshing:
	default:
		return token.Tokens{}, ErrNotAuthenticated
	}
	return s.awaitRefresh(ctx, rejectedAccessToken)
}

func (s *Service) awaitRefresh(ctx context.Context, rejectedAccessToken string) (token.Tokens, error) {
	ch := s.refreshGroup.DoChan(refreshKey, func() (any, error) {
		return s.runRefresh(ctx, rejectedAccessToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return token.Tokens{}, res.Err
		}
		return res.Val.(token.Tokens), nil
	case <-ctx.Done():
		return token.Tokens{}, ctx.Err()
	}
}

// runRefresh is the body of the single refresh ticket. It runs on its own goroutine.
func (s *Service) runRefresh(ctx context.Context, rejectedAccessToken string) (token.Tokens, error) {
	if !s.trackRefresh() {
		return token.Tokens{}, ErrServiceClosed
	}
	defer s.inflight.Done()

	snap := s.session.Current()
	if snap.Status == sessions.StatusAuthenticated && snap.Tokens != nil {
		stillRejected := rejectedAccessToken != "" && snap.Tokens.AccessToken == rejectedAccessToken
		if !stillRejected && snap.Tokens.FreshAt(s.nowTime(), s.safetyMargin) {
			// another ticket finished between the caller's check and this one starting
			return *snap.Tokens, nil
		}
	}

	gen, err := s.session.BeginRefresh()
	if err != nil {
		return token.Tokens{}, ErrNotAuthenticated
	}
	prev := s.session.Current().Tokens
	if prev == nil {
		return token.Tokens{}, ErrNotAuthenticated
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.requestTimeout)
	defer cancel()

	res, callErr := s.client.Refresh(callCtx, prev.RefreshToken)
	return s.resolveRefresh(callCtx, gen, *prev, res, callErr)
}

func (s *Service) resolveRefresh(ctx context.Context, gen uint64, prev token.Tokens, res *authapi.RefreshResult, callErr error) (token.Tokens, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.session.Generation() != gen {
		s.logger.Debug().Msg("Discarding refresh result superseded by logout")
		return token.Tokens{}, ErrNotAuthenticated
	}

	if callErr == nil {
		next := res.Apply(prev)
		if !next.Valid() {
			callErr = fmt.Errorf("[Service.EnsureFreshToken] %w: incomplete token pair", authapi.ErrNetwork)
		} else {
			return s.completeRefreshLocked(ctx, gen, next), nil
		}
	}

	if errors.Is(callErr, authapi.ErrTimeout) {
		s.refreshTimeouts++
		if s.refreshTimeouts >= s.maxTimeouts {
			callErr = fmt.Errorf("%w after %d consecutive timeouts: %w", authapi.ErrUnauthorized, s.refreshTimeouts, callErr)
		}
	} else {
		// any other outcome breaks the run of timeouts
		s.refreshTimeouts = 0
	}

	if errors.Is(callErr, authapi.ErrUnauthorized) {
		return token.Tokens{}, s.expireLocked(ctx, gen, callErr)
	}

	if err := s.session.AbortRefresh(gen, callErr); err != nil {
		s.logger.Error().Err(err).Msg("Failed to abort refresh")
	}
	s.scheduler.armAt(s.nowTime().Add(s.retryDelay()))
	s.logger.Warn().Err(callErr).Int("consecutive_timeouts", s.refreshTimeouts).Msg("Token refresh failed, keeping current tokens")
	return token.Tokens{}, fmt.Errorf("[Service.EnsureFreshToken] %w", callErr)
}

func (s *Service) completeRefreshLocked(ctx context.Context, gen uint64, next token.Tokens) token.Tokens {
	if err := s.store.Save(ctx, next); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist refreshed tokens, keeping them in memory")
	}
	if err := s.session.CompleteRefresh(gen, next); err != nil {
		s.logger.Error().Err(err).Msg("Failed to complete refresh")
	}
	s.refreshTimeouts = 0

	// a lifetime shorter than the margin would otherwise re-fire immediately
	at := next.RefreshAt(s.safetyMargin)
	if earliest := s.nowTime().Add(s.retryDelay()); at.Before(earliest) {
		at = earliest
	}
	s.scheduler.armAt(at)
	s.logger.Debug().Time("expires_at", next.ExpiresAt).Msg("Access token refreshed")
	return next
}

func (s *Service) expireLocked(ctx context.Context, gen uint64, cause error) error {
	s.scheduler.cancel()
	s.refreshTimeouts = 0
	if err := s.store.Clear(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear token store after session expiry")
	}
	if err := s.session.FailRefresh(gen, cause); err != nil {
		s.logger.Error().Err(err).Msg("Failed to end expired session")
	}
	s.logger.Info().Err(cause).Msg("Session expired")
	return fmt.Errorf("%w: %w", ErrSessionExpired, cause)
}

// retryDelay is how long to wait before retrying a refresh that failed transiently
func (s *Service) retryDelay() time.Duration {
	if s.safetyMargin > 0 {
		return s.safetyMargin / 2
	}
	return time.Second
}

// scheduledRefresh runs when the expiry timer fires
func (s *Service) scheduledRefresh() {
	snap := s.session.Current()
	if snap.Status == sessions.StatusAuthenticated && snap.Tokens.FreshAt(s.nowTime(), s.safetyMargin) {
		s.scheduler.arm(snap.Tokens.ExpiresAt)
		return
	}

	_, err := s.EnsureFreshToken(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionExpired):
		s.logger.Info().Msg("Scheduled refresh ended the session")
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrServiceClosed):
	default:
		s.logger.Warn().Err(err).Msg("Scheduled refresh failed")
	}
}
