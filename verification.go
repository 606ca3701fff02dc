package signon

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// Verifier owns the verification token state machine:
// Issued -> Redeemed, or Issued -> Expired -> Reissued (back to Issued).
type Verifier struct {
	Users  UserStore
	Tokens TokenStore
	Issuer *Issuer

	// EmailSender delivers the verification link. Required for Issue.
	EmailSender SendEmail

	// BaseURL is used to build verification links
	BaseURL string

	// Window is how long an issued token stays redeemable.
	// Defaults to DefaultVerificationWindow.
	Window time.Duration
}

// RedeemResult is the outcome of a Redeem call. Exactly one of the two shapes
// is populated: a successful verification (Verified true, User and
// SessionToken set) or a graceful reissue after expiry (Reissued set, user
// left unverified).
type RedeemResult struct {
	Verified     bool
	User         *User
	SessionToken string
	Reissued     *VerificationToken
}

func (v *Verifier) window() time.Duration {
	if v.Window > 0 {
		return v.Window
	}
	return DefaultVerificationWindow
}

// VerificationLink builds the link embedded in the verification email
func (v *Verifier) VerificationLink(token string) string {
	return fmt.Sprintf("%s/auth/verify?token=%s", v.BaseURL, token)
}

// Issue creates a fresh verification token for the user and emails the
// verification link.
//
// On delivery failure the token row is kept and ErrDeliveryFailed is returned
// alongside the token: deleting the row would strand the signup, while a kept
// row can still be redeemed or replaced through the resend path.
func (v *Verifier) Issue(user *User) (*VerificationToken, error) {
	token, err := v.Tokens.CreateToken(user.ID, user.Email, v.window())
	if err != nil {
		return nil, StoreError("create verification token", err)
	}

	if err := v.EmailSender.SendVerificationEmail(user.Email, v.VerificationLink(token.Token)); err != nil {
		log.Println("error sending verification email: ", err)
		return token, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return token, nil
}

// Redeem consumes a verification token value.
//
// An unknown value fails with ErrInvalidToken. An expired token does not
// fail: the stale row is discarded, a fresh token is issued for the same
// user, and the caller gets a Reissued outcome telling the user to check
// their email again. A live token marks the user verified, deletes the row
// and mints a session token.
//
// The token row is consumed via TakeToken, so two concurrent redemptions of
// the same value cannot both win: the loser sees ErrInvalidToken.
func (v *Verifier) Redeem(tokenValue string) (*RedeemResult, error) {
	token, err := v.Tokens.TakeToken(tokenValue)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, StoreError("take verification token", err)
	}

	user, err := v.Users.GetUserByID(token.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Orphaned token; nothing to verify. Same generic failure as an
			// unknown token so the caller learns nothing extra.
			return nil, ErrInvalidToken
		}
		return nil, StoreError("load token owner", err)
	}

	if token.IsExpired() {
		if user.Verified {
			// Nothing outstanding to reissue; the stale row is already gone.
			return nil, ErrInvalidToken
		}
		fresh, err := v.Issue(user)
		if err != nil && !errors.Is(err, ErrDeliveryFailed) {
			return nil, err
		}
		if err != nil {
			log.Println("reissue delivery failed, token kept: ", err)
		}
		log.Printf("Verification token for user %s expired, reissued", user.ID)
		return &RedeemResult{Reissued: fresh}, nil
	}

	user.Verified = true
	if err := v.Users.SaveUser(user); err != nil {
		return nil, StoreError("save verified user", err)
	}

	session, err := v.Issuer.MintSession(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mint session token: %w", err)
	}

	return &RedeemResult{Verified: true, User: user, SessionToken: session}, nil
}

// Resend discards any outstanding tokens for the user and issues a fresh one.
// Used by the "didn't get the email?" path. No-op error for already verified
// users so the endpoint stays enumeration-safe.
func (v *Verifier) Resend(user *User) (*VerificationToken, error) {
	if user.Verified {
		return nil, ErrInvalidToken
	}
	if err := v.Tokens.DeleteUserTokens(user.ID); err != nil {
		return nil, StoreError("delete outstanding tokens", err)
	}
	return v.Issue(user)
}
