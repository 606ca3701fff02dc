package signon

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultVerificationWindow is how long a verification token stays redeemable.
// The observed policy is deliberately short; override via Verifier.Window.
const DefaultVerificationWindow = time.Minute

// DefaultSessionTTL is the validity of a minted session token.
const DefaultSessionTTL = time.Hour

// VerificationToken is a single-use, time-bounded proof of email ownership.
type VerificationToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the token has expired
func (t *VerificationToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// GenerateSecureToken generates a cryptographically secure random token value
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Issuer mints and verifies signed session tokens. It holds no persisted
// state; validity is determined purely by signature and expiry.
type Issuer struct {
	SecretKey  string
	JwtIssuer  string
	SessionTTL time.Duration
}

// NewIssuer creates an Issuer. A missing secret is a configuration error and
// is fatal at construction, never per-call. If secretKey is empty the
// SIGNON_JWT_SECRET_KEY env var is consulted first.
func NewIssuer(secretKey, jwtIssuer string, sessionTTL time.Duration) (*Issuer, error) {
	if secretKey == "" {
		secretKey = strings.TrimSpace(os.Getenv("SIGNON_JWT_SECRET_KEY"))
	}
	if secretKey == "" {
		return nil, fmt.Errorf("signon: JWT secret key is required")
	}
	if jwtIssuer == "" {
		jwtIssuer = "Signon-Issuer"
	}
	if sessionTTL == 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Issuer{SecretKey: secretKey, JwtIssuer: jwtIssuer, SessionTTL: sessionTTL}, nil
}

// MintSession creates a signed session token carrying the user id as subject.
func (i *Issuer) MintSession(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iss": i.JwtIssuer,
		"iat": now.Unix(),
		"exp": now.Add(i.SessionTTL).Unix(),
	})
	return token.SignedString([]byte(i.SecretKey))
}

// VerifySession checks the signature and expiry of a session token and
// returns the embedded user id.
func (i *Issuer) VerifySession(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(i.SecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}
