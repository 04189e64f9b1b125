package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - relay_requests_total (counter): incremented per request with endpoint and status class labels
//   - relay_request_duration_seconds (histogram): request duration by endpoint
//   - relay_streaming_connections_active (gauge): incremented while an SSE response is in flight
//
// Streaming is detected from the Content-Type the handler writes, not from
// request headers: clients negotiate SSE in the request body, so the
// response is the only reliable signal.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		// Deferred so the gauge comes back down even if the handler
		// panics mid-stream.
		defer func() {
			if sw.streaming {
				StreamingConnections.Dec()
			}
		}()
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		endpoint := endpointLabel(r.URL.Path)

		// Status class label like "2xx", "4xx", "5xx".
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(endpoint, statusStr).Inc()
		RequestDuration.WithLabelValues(endpoint).Observe(duration)
	})
}

// endpointLabel clamps the path to the relay's route set so request paths
// cannot inflate label cardinality.
func endpointLabel(path string) string {
	switch path {
	case "/", "/health", "/metrics",
		"/api/chat", "/api/chat/sync", "/api/chat/miniprogram", "/api/chat/simple",
		"/api/health/network":
		return path
	}
	return "other"
}

// statusWriter wraps http.ResponseWriter to capture the status code and to
// notice when the handler switches the response to an event stream.
type statusWriter struct {
	http.ResponseWriter
	status    int
	written   bool
	streaming bool
}

// markWritten runs once, on whichever of WriteHeader or Write the handler
// reaches first. The SSE path never calls WriteHeader, so the Content-Type
// check has to happen here rather than in WriteHeader alone.
func (w *statusWriter) markWritten() {
	if w.written {
		return
	}
	w.written = true
	if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
		w.streaming = true
		StreamingConnections.Inc()
	}
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
	}
	w.markWritten()
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	w.markWritten()
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher,
// which SSE responses rely on.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling
// http.ResponseController and similar utilities to access the original
// writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
