package auth

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/minichat/relay/pkg/observability"
)

// Middleware wraps an AuthChain and optional RateLimiter as HTTP middleware.
// Requests to bypass endpoints skip authentication entirely; everything else
// must draw a Yes from the chain before reaching the next handler.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision == No {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				writeJSONError(w, http.StatusUnauthorized,
					`{"error":{"kind":"unauthenticated","message":"authentication required"}}`)
				return
			}

			if result.Decision != Yes || result.Identity == nil {
				writeJSONError(w, http.StatusUnauthorized,
					`{"error":{"kind":"unauthenticated","message":"authentication required"}}`)
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				writeJSONError(w, http.StatusInternalServerError,
					`{"error":{"kind":"internal","message":"internal authentication error"}}`)
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"path", r.URL.Path,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", result.Identity.Tier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(result.Identity.Tier).Inc()
					writeJSONError(w, http.StatusTooManyRequests,
						`{"error":{"kind":"rate_limited","message":"rate limit exceeded"}}`)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), result.Identity)))
		})
	}
}

// DefaultBypassEndpoints lists endpoints that skip authentication: the
// banner, the liveness probe, metrics scrapes, and the pre-login network
// check the mini-program runs before it has any credentials.
var DefaultBypassEndpoints = []string{"/", "/health", "/metrics", "/api/health/network"}

func writeJSONError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
