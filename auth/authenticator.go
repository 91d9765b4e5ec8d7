package auth

import (
	"context"
	"net/http"
	"time"
)

// Authentication methods.
const (
	MethodAPIKey = "api_key"
	MethodJWT    = "jwt"
)

// Identity is an authenticated caller.
type Identity struct {
	Principal string
	Method    string
	ExpiresAt time.Time
}

// Authenticator validates the credentials carried by a request.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Authenticate returns one of the package sentinel errors, wrapped,
//   when credentials are missing or rejected.
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports reports whether the request carries credentials of this kind.
	Supports(r *http.Request) bool

	// Authenticate validates the credentials.
	Authenticate(r *http.Request) (*Identity, error)
}

type contextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the identity stored by Require, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}
