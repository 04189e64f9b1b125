// Package apikey authenticates requests with static bearer keys. Keys are
// hashed at construction time and compared in constant time, so neither the
// store nor the comparison exposes plaintext key material.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/minichat/relay/pkg/auth"
)

// Entry declares one accepted key and the identity it maps to.
type Entry struct {
	Key     string
	Subject string
	Tier    string
}

// Authenticator validates bearer tokens against a static set of keys.
type Authenticator struct {
	keys []keyEntry
}

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// New builds an authenticator from the configured entries. Plaintext keys
// are hashed immediately and not retained.
func New(entries []Entry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, keyEntry{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: auth.Identity{Subject: e.Subject, Tier: e.Tier},
		})
	}
	return a
}

// Authenticate checks the Authorization header for a bearer token. It
// abstains when the header is missing or uses another scheme, and votes No
// when a bearer token is present but matches no configured key.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], entry.hash[:]) == 1 {
			// Copy so callers never share the stored identity.
			id := entry.identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
