package authapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials is returned by Login when the email or password is wrong
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrConflict is returned by Register when the email is already registered
	ErrConflict = errors.New("account already exists")
	// ErrUnauthorized is returned by Refresh when the refresh token was rejected
	ErrUnauthorized = errors.New("refresh token rejected")
	// ErrNetwork covers transport failures and server errors
	ErrNetwork = errors.New("auth backend unavailable")
	// ErrTimeout is a network failure caused by a deadline. It also matches ErrNetwork.
	ErrTimeout = errors.New("auth backend timed out")
	// ErrValidation matches any *ValidationError
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports field-level problems with a registration
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError returns nil when fields is empty
func NewValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// IsTransient reports whether err is worth retrying later
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork)
}

func networkError(op string, cause error) error {
	return fmt.Errorf("[HTTPClient.%s] %w: %w", op, ErrNetwork, cause)
}

func timeoutError(op string, cause error) error {
	return fmt.Errorf("[HTTPClient.%s] %w: %w: %w", op, ErrTimeout, ErrNetwork, cause)
}
