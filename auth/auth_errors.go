package auth

import "errors"

var (
	// ErrNotAuthenticated is returned when a token is requested without a session
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionExpired is returned when the session ended because its refresh token was
	// rejected. Callers send the user back to the login page.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionBusy is returned by Login and Register while a session is active or a
	// login is already in progress
	ErrSessionBusy = errors.New("session busy")
	// ErrSuperseded is returned by Login and Register when a logout happened while the
	// request was in flight
	ErrSuperseded = errors.New("superseded by logout")
	// ErrServiceClosed is returned when a refresh is requested after Close
	ErrServiceClosed = errors.New("session service closed")
)
