package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision is the outcome of a single authenticator's vote.
type AuthDecision int

const (
	// Yes accepts the request. The chain stops and the identity is attached.
	Yes AuthDecision = iota

	// No rejects the request. Credentials were present but did not check out,
	// so the chain stops without consulting later authenticators.
	No

	// Abstain passes the vote to the next authenticator in the chain, used
	// when the credential type is not one this authenticator handles.
	Abstain
)

// AuthResult carries a single vote plus the data that goes with it.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // set only when Decision == Yes
	Err      error     // set only when Decision == No
}

// Identity describes an authenticated caller.
type Identity struct {
	// Subject uniquely identifies the caller. Never empty on a Yes decision.
	Subject string

	// Tier selects the rate-limit bucket. Empty means "default".
	Tier string
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain evaluates authenticators in order using three-outcome voting.
type AuthChain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision applies when every authenticator abstains.
	// Yes admits anonymous callers; No locks the API down.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain, stopping at the first Yes or No.
// If all abstain, the default decision applies.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous", Tier: "default"},
		}
	}

	return AuthResult{
		Decision: No,
		Err:      ErrUnauthenticated,
	}
}
