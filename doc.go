// Package signon is a user-account backend: registration with email
// verification, password login, JWT session issuance and "sign in with
// Google/Facebook" flows over a pluggable document store.
//
// # Architecture
//
// Reconciler: decides, for one authentication attempt, which User the caller
// is. Local login is keyed by email and strict about verification; provider
// sign-in is keyed by the provider's subject id and creates pre-verified
// accounts on first sight.
//
// Verifier: owns the verification token lifecycle - issue, expire, reissue,
// redeem. Redemption is single-use: the token row is consumed atomically with
// marking the user verified, and an expired token degrades into a reissue
// instead of a hard failure.
//
// Issuer: stateless minting and checking of signed session tokens.
//
// # Basic Usage
//
// Set up a store, the issuer and the top level SignOn object:
//
//	import (
//	    "github.com/ChanSarun168/signon"
//	    "github.com/ChanSarun168/signon/stores"
//	)
//
//	users := stores.NewFSUserStore("/path/to/storage")
//	tokens := stores.NewFSTokenStore("/path/to/storage")
//	issuer, err := signon.NewIssuer(os.Getenv("SIGNON_JWT_SECRET_KEY"), "myapp", time.Hour)
//	// handle err - a missing secret must be fatal at startup
//
//	auth := signon.New("myapp", users, issuer)
//	auth.Session = scs.New()
//	auth.Verifier = &signon.Verifier{
//	    Users: users, Tokens: tokens, Issuer: issuer,
//	    EmailSender: &signon.ConsoleEmailSender{},
//	    BaseURL:     "https://yourapp.com",
//	}
//	auth.AddLocal(&signon.LocalAuth{})
//
// Mount OAuth providers the same way:
//
//	google := oauth2.NewGoogleOAuth2("", "", "", auth.SaveProviderUserAndRedirect)
//	auth.AddProvider("/google", google.Handler())
//
// # Store Implementations
//
// File-based stores live in the stores package and suit development and
// tests. stores/gorm and stores/gae provide SQL and Cloud Datastore backends
// for production. All token stores implement TakeToken, the atomic
// find-and-delete that keeps redemption single-use under concurrent requests.
//
// # Security
//
// Passwords are hashed with bcrypt at default cost. Verification tokens are
// 32 crypto/rand bytes, hex encoded, with a short configurable expiry.
// Login, verification and resend responses never reveal whether an email or
// token exists.
package signon
