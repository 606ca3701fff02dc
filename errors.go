package signon

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by the reconciler and verification controller.
// Callers should test with errors.Is since store failures are wrapped.
var (
	// ErrNotFound means no user exists for the given identifier
	ErrNotFound = errors.New("user not found")

	// ErrInvalidCredential means the password did not match the stored hash
	ErrInvalidCredential = errors.New("invalid credentials")

	// ErrNotVerified means the credentials matched but the email was never verified
	ErrNotVerified = errors.New("email not verified")

	// ErrInvalidToken means the verification token does not exist (or was already used)
	ErrInvalidToken = errors.New("invalid token")

	// ErrDeliveryFailed means the verification email could not be sent.
	// The token row is still persisted when this is returned.
	ErrDeliveryFailed = errors.New("verification email delivery failed")

	// ErrCredentialConflict means a provider profile's email collides with an
	// existing local (password) account
	ErrCredentialConflict = errors.New("email already registered with a different sign-in method")

	// ErrEmailExists means a signup attempted to reuse an already registered email
	ErrEmailExists = errors.New("email already registered")

	// ErrStoreUnavailable wraps any unexpected persistence-layer fault
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError wraps an unexpected backend fault so it matches ErrStoreUnavailable
// via errors.Is while keeping the underlying cause.
func StoreError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// Error codes used in JSON error responses
const (
	ErrCodeMissingField    = "missing_field"
	ErrCodeInvalidEmail    = "invalid_email"
	ErrCodeInvalidUsername = "invalid_username"
	ErrCodeWeakPassword    = "weak_password"
	ErrCodeInvalidCreds    = "invalid_credentials"
	ErrCodeNotVerified     = "email_not_verified"
	ErrCodeEmailExists     = "email_exists"
	ErrCodeInvalidToken    = "invalid_token"
	ErrCodeServerError     = "server_error"
)

// AuthError is the structured error surfaced to the routing layer
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAuthError creates an AuthError with the given code, message and field
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

// AuthErrorHandler lets applications override how auth errors are rendered.
// Returning true means the error was handled and no default response should be written.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool
