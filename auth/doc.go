// Package auth guards admin endpoints that change agent state, such as
// supervisor event ingestion.
//
// Two authenticators are provided: API keys compared by SHA-256 hash, and
// HMAC-signed JWT bearer tokens. Require accepts a request when any
// authenticator that supports it succeeds; probes stay unauthenticated.
package auth
