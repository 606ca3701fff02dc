package signon

import "time"

// User is the unified account record. A user is password-capable (PasswordHash
// set), provider-linked (Provider/ProviderID set), or both. Email is unique
// across all users.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	Provider     string    `json:"provider,omitempty"`    // "google", "facebook"; empty for local-only
	ProviderID   string    `json:"provider_id,omitempty"` // provider's subject id
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProviderProfile is what an OAuth provider asserts about a user after a
// successful code exchange. The reconciler keys on Provider+ExternalID.
type ProviderProfile struct {
	Provider    string `json:"provider"`
	ExternalID  string `json:"external_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// UserStore manages user accounts.
//
// Lookup methods return ErrNotFound (possibly wrapped) when no record matches
// and an error matching ErrStoreUnavailable for any other backend fault.
type UserStore interface {
	// CreateUser persists a new user. Fails if the email is already taken.
	CreateUser(user *User) (*User, error)

	// GetUserByID retrieves a user by their ID
	GetUserByID(userID string) (*User, error)

	// FindByEmail retrieves a user by their (unique) email
	FindByEmail(email string) (*User, error)

	// FindByProviderID retrieves a user by an external provider identifier
	FindByProviderID(provider, externalID string) (*User, error)

	// SaveUser creates or updates a user (upsert)
	SaveUser(user *User) error
}

// TokenStore manages email verification tokens. At most one actionable token
// should exist per outstanding verification request.
type TokenStore interface {
	// CreateToken mints a fresh random token for the user, valid for expiry
	CreateToken(userID, email string, expiry time.Duration) (*VerificationToken, error)

	// GetToken returns the token row without consuming it
	GetToken(token string) (*VerificationToken, error)

	// TakeToken atomically finds and deletes the token row. Exactly one caller
	// wins for a given value; everyone else gets ErrNotFound. This is what
	// makes redemption single-use under concurrent requests.
	TakeToken(token string) (*VerificationToken, error)

	// DeleteToken removes a token row if present
	DeleteToken(token string) error

	// DeleteUserTokens removes all outstanding tokens for a user
	DeleteUserTokens(userID string) error
}
