// Package noop provides an authenticator that accepts every request with an
// anonymous identity. It backs the "none" auth mode used in development.
package noop

import (
	"context"
	"net/http"

	"github.com/minichat/relay/pkg/auth"
)

// Authenticator always votes Yes with a default anonymous identity.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject: "anonymous",
			Tier:    "default",
		},
	}
}
