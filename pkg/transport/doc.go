// Package transport defines the middleware chain and shared HTTP plumbing
// for the relay's endpoint layer.
//
// The transport layer bridges external clients and the relay service. It
// deserializes incoming requests into the wire types defined in pkg/api,
// dispatches them, and serializes results back as JSON, an SSE event
// stream, or the mini-program envelope.
//
// # Middleware
//
// Middleware wraps http.Handler with cross-cutting concerns: panic
// recovery, request ID assignment (X-Request-Id), structured request
// logging via log/slog, and Prometheus metrics. Middleware composes with
// Chain; the first middleware listed is the outermost wrapper.
//
// # Error mapping
//
// HTTPStatusFromError maps the error kinds of pkg/api onto HTTP statuses:
// invalid input is the caller's fault (422), configuration problems are the
// operator's (500), timeouts gateway out as 504, and every other upstream
// failure surfaces as 502.
package transport
