package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// UserType is the account role that gates role-specific views
type UserType string

const (
	UserTypeClient   UserType = "client"   // Participant managing their own plan
	UserTypeProvider UserType = "provider" // Service provider invoicing against plans
)

// Valid reports whether t is one of the known account roles
func (t UserType) Valid() bool {
	return t == UserTypeClient || t == UserTypeProvider
}

// ParseUserType parses a role name, defaulting empty input to client
func ParseUserType(s string) (UserType, error) {
	t := UserType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return UserTypeClient, nil
	}
	if !t.Valid() {
		return "", fmt.Errorf("unknown user type %q", s)
	}
	return t, nil
}

type User struct {
	ID           string    `json:"id"`               // Unique identifier for the user
	Email        string    `json:"email"`            // User's email address
	Name         string    `json:"name"`             // Display name
	UserType     UserType  `json:"userType"`         // client or provider
	Avatar       *string   `json:"avatar,omitempty"` // Optional avatar URL
	PasswordHash string    `json:"-"`                // Hashed version of the user's password - never serialize
	CreatedAt    time.Time `json:"createdAt"`        // When the account was created
	UpdatedAt    time.Time `json:"updatedAt"`        // Last profile change
}

// IsProvider returns true for provider accounts
func (u *User) IsProvider() bool {
	return u != nil && u.UserType == UserTypeProvider
}

// Clone returns a copy that shares no pointers with u
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Avatar != nil {
		avatar := *u.Avatar
		c.Avatar = &avatar
	}
	return &c
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
