// Package grpc lets gRPC services share the signon session contract: a
// bearer session token (or a trusted user-id header) in request metadata is
// turned into an authenticated user id on the context.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// Default metadata keys for authentication context.
// These can be customized via Config if needed.
const (
	// DefaultMetadataKeyAuthToken is the default gRPC metadata key carrying the session token
	DefaultMetadataKeyAuthToken = "authorization"

	// DefaultMetadataKeyUserID is the default gRPC metadata key for a pre-authenticated user ID
	DefaultMetadataKeyUserID = "x-user-id"
)

type userIDContextKey struct{}

// TokenVerifier validates a session token and returns the embedded user id.
// Typically signon.Issuer.VerifySession.
type TokenVerifier func(tokenString string) (userID string, err error)

// Config holds the metadata key configuration for auth context.
type Config struct {
	// MetadataKeyAuthToken is the gRPC metadata key carrying the session token.
	// Defaults to "authorization"; a "Bearer " prefix is tolerated.
	MetadataKeyAuthToken string

	// MetadataKeyUserID is the metadata key for a pre-authenticated user ID.
	// Only honored when TrustUserIDMetadata is set - as it must be, coming
	// from an untrusted client it is plain impersonation.
	MetadataKeyUserID string

	// TrustUserIDMetadata when true accepts MetadataKeyUserID without a token.
	// Meant for services behind an authenticating gateway.
	TrustUserIDMetadata bool

	// VerifyToken validates session tokens found in metadata
	VerifyToken TokenVerifier
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyAuthToken: DefaultMetadataKeyAuthToken,
		MetadataKeyUserID:    DefaultMetadataKeyUserID,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthToken == "" {
		c.MetadataKeyAuthToken = DefaultMetadataKeyAuthToken
	}
	if c.MetadataKeyUserID == "" {
		c.MetadataKeyUserID = DefaultMetadataKeyUserID
	}
}

// UserIDFromContext extracts the authenticated user ID placed on the context
// by the interceptors. Returns empty string if no user is authenticated.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(userIDContextKey{}); v != nil {
		return v.(string)
	}
	return ""
}

// ContextWithUserID returns a context carrying the authenticated user id.
// Exposed for tests and for handlers that authenticate out of band.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// TokenToOutgoingContext adds a session token to outgoing gRPC metadata.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthToken, "Bearer "+token)
}

// UserIDToOutgoingContext adds a pre-authenticated user id to outgoing
// metadata. Only honored by servers with TrustUserIDMetadata set.
func UserIDToOutgoingContext(ctx context.Context, userID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyUserID, userID)
}

// IsAuthenticated returns true if there is an authenticated user in the context.
func IsAuthenticated(ctx context.Context) bool {
	return UserIDFromContext(ctx) != ""
}
