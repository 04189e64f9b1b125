package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minichat/relay/pkg/api"
)

// serveWithRequestID runs a request through the RequestID middleware and
// returns the ID the inner handler saw plus the recorder.
func serveWithRequestID(t *testing.T, path, inbound string) (string, *httptest.ResponseRecorder) {
	t.Helper()

	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, path, nil)
	if inbound != "" {
		req.Header.Set("X-Request-Id", inbound)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return seen, rec
}

func TestRequestIDPrefixPerEndpoint(t *testing.T) {
	tests := []struct {
		path       string
		wantPrefix string
	}{
		{"/api/chat", "req_"},
		{"/api/chat/sync", "sync_"},
		{"/api/chat/miniprogram", "mp_"},
		{"/api/chat/simple", "simple_"},
		{"/api/health/network", "net_"},
		{"/somewhere/else", "req_"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			seen, rec := serveWithRequestID(t, tt.path, "")

			if !strings.HasPrefix(seen, tt.wantPrefix) {
				t.Errorf("request ID = %q, want prefix %q", seen, tt.wantPrefix)
			}
			if !api.ValidateRequestID(seen) {
				t.Errorf("request ID %q is not well-formed", seen)
			}
			if got := rec.Header().Get("X-Request-Id"); got != seen {
				t.Errorf("response header = %q, context ID = %q; want them equal", got, seen)
			}
		})
	}
}

func TestRequestIDsAreUnique(t *testing.T) {
	a, _ := serveWithRequestID(t, "/api/chat", "")
	b, _ := serveWithRequestID(t, "/api/chat", "")
	if a == b {
		t.Errorf("two requests got the same ID %q", a)
	}
}

func TestRequestIDHonorsValidInbound(t *testing.T) {
	inbound := api.NewRequestID(api.ChatIDPrefix)
	seen, rec := serveWithRequestID(t, "/api/chat", inbound)

	if seen != inbound {
		t.Errorf("context ID = %q, want inbound %q", seen, inbound)
	}
	if got := rec.Header().Get("X-Request-Id"); got != inbound {
		t.Errorf("response header = %q, want inbound echoed", got)
	}
}

func TestRequestIDReplacesMalformedInbound(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
	}{
		{"garbage", "not a request id!!"},
		{"wrong prefix", "xyz_abcdefgh12345678"},
		{"too short", "req_abc"},
		{"injection attempt", "req_abcdefgh12345678\r\nSet-Cookie: x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, _ := serveWithRequestID(t, "/api/chat", tt.inbound)

			if seen == tt.inbound {
				t.Errorf("malformed inbound ID %q was honored", tt.inbound)
			}
			if !api.ValidateRequestID(seen) {
				t.Errorf("replacement ID %q is not well-formed", seen)
			}
		})
	}
}
