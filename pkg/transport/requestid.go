package transport

import (
	"net/http"

	"github.com/minichat/relay/pkg/api"
)

// RequestID returns middleware that assigns a unique request ID to each
// request. A well-formed inbound X-Request-Id header is honored so callers
// can correlate across systems; anything else is replaced with a freshly
// generated ID whose prefix names the endpoint family. The ID is stored in
// the request context and echoed on the X-Request-Id response header.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if !api.ValidateRequestID(id) {
				id = api.NewRequestID(prefixForPath(r.URL.Path))
			}

			w.Header().Set("X-Request-Id", id)
			r = r.WithContext(ContextWithRequestID(r.Context(), id))
			next.ServeHTTP(w, r)
		})
	}
}

// prefixForPath picks the ID prefix for an endpoint so log lines reveal the
// entry point at a glance.
func prefixForPath(path string) string {
	switch path {
	case "/api/chat/sync":
		return api.SyncIDPrefix
	case "/api/chat/miniprogram":
		return api.MiniProgramIDPrefix
	case "/api/chat/simple":
		return api.SimpleIDPrefix
	case "/api/health/network":
		return api.NetworkCheckIDPrefix
	default:
		return api.ChatIDPrefix
	}
}
