package auth

import (
	"net/mail"
	"strings"

	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/users"
)

// ValidateCredentials checks that both fields are present before calling the backend
func ValidateCredentials(creds authapi.Credentials) error {
	fields := map[string]string{}
	if strings.TrimSpace(creds.Email) == "" {
		fields["email"] = "is required"
	}
	if creds.Password == "" {
		fields["password"] = "is required"
	}
	return authapi.NewValidationError(fields)
}

// ValidateRegistration applies the same rules as the backend so obvious mistakes are
// reported per field without a round trip
func ValidateRegistration(reg authapi.Registration) error {
	fields := map[string]string{}

	email := strings.TrimSpace(reg.Email)
	if email == "" {
		fields["email"] = "is required"
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		fields["email"] = "must be a valid email address"
	}

	if err := users.ValidatePasswordStrength(reg.Password); err != nil {
		fields["password"] = err.Error()
	}

	if strings.TrimSpace(reg.Name) == "" {
		fields["name"] = "is required"
	}

	if reg.UserType != "" && !reg.UserType.Valid() {
		fields["userType"] = "must be client or provider"
	}

	return authapi.NewValidationError(fields)
}
