package transport

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/minichat/relay/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to internal-error responses. The server continues to
// accept new requests after a panic is recovered. If the response has
// already started (a partially written stream), no error body is written;
// the connection is simply left to close.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if rec := recover(); rec != nil {
					logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered",
						slog.String("request_id", RequestIDFromContext(r.Context())),
						slog.String("endpoint", r.URL.Path),
						slog.String("panic", fmt.Sprint(rec)),
					)
					if !sr.written {
						WriteError(sr, api.NewInternalError(fmt.Sprintf("internal server error: %v", rec)))
					}
				}
			}()
			next.ServeHTTP(sr, r)
		})
	}
}
