package signon

import (
	"regexp"
)

// Credentials represents user credentials for signup or login
type Credentials struct {
	Username string
	Email    string
	Password string
}

// SignupValidator validates credentials during signup
type SignupValidator func(creds *Credentials) *AuthError

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// DefaultSignupValidator provides sensible default validation for signup
var DefaultSignupValidator SignupValidator = func(creds *Credentials) *AuthError {
	if creds.Email == "" {
		return NewAuthError(ErrCodeMissingField, "Email is required", "email")
	}
	if !emailRegex.MatchString(creds.Email) {
		return NewAuthError(ErrCodeInvalidEmail, "Invalid email format", "email")
	}

	// Username is optional; validate only when provided
	if creds.Username != "" {
		if len(creds.Username) < 3 || len(creds.Username) > 20 {
			return NewAuthError(ErrCodeInvalidUsername, "Username must be 3-20 characters", "username")
		}
		if !usernameRegex.MatchString(creds.Username) {
			return NewAuthError(ErrCodeInvalidUsername, "Username can only contain letters, numbers, underscores, and hyphens", "username")
		}
	}

	if len(creds.Password) < 8 {
		return NewAuthError(ErrCodeWeakPassword, "Password must be at least 8 characters", "password")
	}

	return nil
}
