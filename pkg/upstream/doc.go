// Package upstream implements the client for the completion API the relay
// forwards to.
//
// The client has two modes. Complete performs a non-streaming call with a
// bounded retry loop: transient failures (transport timeout, connection
// failure, 5xx) are retried with exponential backoff plus jitter, while
// authentication failures, other 4xx statuses, malformed success bodies, and
// business-layer timeouts are terminal. The retry loop is an explicit state
// machine; see retry.go.
//
// Stream opens the completion in SSE mode and returns a lazy, finite,
// non-restartable sequence of events. There is no retry within a stream: any
// failure is surfaced as a terminal error event. A wall-clock deadline is
// enforced across the whole stream, checked between lines.
//
// Every failure is classified as an api.ErrorKind, which drives both retry
// policy here and status mapping in the transport layer.
package upstream
