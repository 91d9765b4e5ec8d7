package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// HeaderName is the header containing the API key.
	// Default: "X-API-Key"
	HeaderName string

	// Keys maps a principal to the SHA-256 hex digest of its key.
	Keys map[string]string
}

// APIKeyAuthenticator validates API keys against stored hashes.
type APIKeyAuthenticator struct {
	header string
	keys   map[string][]byte // principal -> digest
}

// NewAPIKeyAuthenticator creates an API key authenticator. Every stored hash
// must be a hex encoded SHA-256 digest.
func NewAPIKeyAuthenticator(config APIKeyConfig) (*APIKeyAuthenticator, error) {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}

	keys := make(map[string][]byte, len(config.Keys))
	for principal, hash := range config.Keys {
		digest, err := hex.DecodeString(hash)
		if err != nil || len(digest) != sha256.Size {
			return nil, fmt.Errorf("auth: api key for %q is not a sha256 hex digest", principal)
		}
		keys[principal] = digest
	}

	return &APIKeyAuthenticator{header: config.HeaderName, keys: keys}, nil
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return MethodAPIKey
}

// Supports returns true if the request contains the API key header.
func (a *APIKeyAuthenticator) Supports(r *http.Request) bool {
	return r.Header.Get(a.header) != ""
}

// Authenticate compares the presented key with every stored hash.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	key := strings.TrimSpace(r.Header.Get(a.header))
	if key == "" {
		return nil, ErrMissingCredentials
	}

	digest := sha256.Sum256([]byte(key))
	for principal, stored := range a.keys {
		if subtle.ConstantTimeCompare(digest[:], stored) == 1 {
			return &Identity{Principal: principal, Method: MethodAPIKey}, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// HashAPIKey returns the SHA-256 hex digest to store for key.
func HashAPIKey(key string) string {
	digest := sha256.Sum256([]byte(key))
	return hex.EncodeToString(digest[:])
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
