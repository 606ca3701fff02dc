package signon

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Reconciler decides, for one authentication attempt, which user the caller
// is. Local and provider reconciliation deliberately use different identity
// keys (email vs provider id) and different failure policies: local login is
// strict about verification, provider sign-in auto-verifies because the
// provider already proved email ownership.
type Reconciler struct {
	Users UserStore
}

// NewReconciler creates a Reconciler over the given user store
func NewReconciler(users UserStore) *Reconciler {
	return &Reconciler{Users: users}
}

// ResolveLocal resolves an email/password assertion.
//
// Fails with ErrNotFound for an unknown email, ErrInvalidCredential when the
// password does not match, and ErrNotVerified when the password matches but
// the account never completed email verification. Callers at the HTTP
// boundary must collapse NotFound and InvalidCredential into one generic
// message so login never reveals whether an email is registered.
func (r *Reconciler) ResolveLocal(email, password string) (*User, error) {
	user, err := r.Users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, StoreError("find user by email", err)
	}

	if user.PasswordHash == "" {
		// provider-only accounts always carry a placeholder hash, but an empty
		// hash must never compare equal to anything
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	if !user.Verified {
		return nil, ErrNotVerified
	}

	return user, nil
}

// ResolveProvider resolves an external provider assertion, creating the user
// on first sight. "Already exists" is the normal case here, not a failure.
//
// A new provider user is created pre-verified (the provider proved email
// ownership) with a random placeholder password hash that is never
// communicated, since login for the account is provider-gated.
//
// If the provider email collides with an existing local (password) account
// the call fails with ErrCredentialConflict. Silently linking would let
// anyone controlling the provider account take over the local one.
func (r *Reconciler) ResolveProvider(profile *ProviderProfile) (*User, error) {
	if profile == nil || profile.ExternalID == "" {
		return nil, fmt.Errorf("provider profile missing external id")
	}

	user, err := r.Users.FindByProviderID(profile.Provider, profile.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, StoreError("find user by provider id", err)
	}

	// First time we see this external identity. Accounts are keyed by email,
	// so a profile without one (e.g. Facebook without the email permission)
	// cannot be created; behavior would otherwise vary per store backend.
	if profile.Email == "" {
		return nil, fmt.Errorf("provider profile missing email")
	}

	// Guard against an email collision with an existing account before
	// creating anything.
	existing, err := r.Users.FindByEmail(profile.Email)
	if err == nil {
		if existing.Provider == profile.Provider && existing.ProviderID == profile.ExternalID {
			return existing, nil
		}
		return nil, ErrCredentialConflict
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, StoreError("find user by email", err)
	}

	placeholder, err := generatePlaceholderHash()
	if err != nil {
		return nil, err
	}

	user = &User{
		ID:           uuid.NewString(),
		Username:     profile.DisplayName,
		Email:        profile.Email,
		PasswordHash: placeholder,
		Verified:     true,
		Provider:     profile.Provider,
		ProviderID:   profile.ExternalID,
	}
	created, err := r.Users.CreateUser(user)
	if err != nil {
		return nil, StoreError("create provider user", err)
	}
	log.Printf("Created %s user %s for external id %s", profile.Provider, created.ID, profile.ExternalID)
	return created, nil
}

// generatePlaceholderHash produces a bcrypt hash of a random secret nobody
// knows. Provider-gated accounts get one so they are never password-capable
// by accident.
func generatePlaceholderHash() (string, error) {
	secret, err := GenerateSecureToken()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash placeholder password: %w", err)
	}
	return string(hash), nil
}
