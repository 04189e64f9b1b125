package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minichat/relay/pkg/api"
)

func errResponse(status int, body string) *http.Response {
	rec := httptest.NewRecorder()
	rec.WriteHeader(status)
	fmt.Fprint(rec, body)
	return rec.Result()
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    api.ErrorKind
		wantMessage string
	}{
		{
			name:        "401 with nested message",
			status:      http.StatusUnauthorized,
			body:        `{"error":{"message":"invalid api key"}}`,
			wantKind:    api.KindAuth,
			wantMessage: "invalid api key",
		},
		{
			name:        "401 without body",
			status:      http.StatusUnauthorized,
			body:        "",
			wantKind:    api.KindAuth,
			wantMessage: "credential rejected",
		},
		{
			name:        "503 without body",
			status:      http.StatusServiceUnavailable,
			body:        "",
			wantKind:    api.KindUpstream,
			wantMessage: "HTTP 503",
		},
		{
			name:        "500 with top-level message",
			status:      http.StatusInternalServerError,
			body:        `{"message":"overloaded"}`,
			wantKind:    api.KindUpstream,
			wantMessage: "overloaded",
		},
		{
			name:        "429 is terminal upstream",
			status:      http.StatusTooManyRequests,
			body:        "",
			wantKind:    api.KindUpstream,
			wantMessage: "HTTP 429",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := errResponse(tt.status, tt.body)
			defer resp.Body.Close()

			got := mapHTTPError(resp)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if !strings.Contains(got.Message, tt.wantMessage) {
				t.Errorf("Message = %q, want it to contain %q", got.Message, tt.wantMessage)
			}
		})
	}
}

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }

func TestMapNetworkError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind api.ErrorKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, api.KindTimeout},
		{"wrapped deadline", fmt.Errorf("Post %q: %w", "http://x", context.DeadlineExceeded), api.KindTimeout},
		{"net timeout", fakeTimeoutError{}, api.KindTimeout},
		{"cancelled", context.Canceled, api.KindConnection},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), api.KindConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapNetworkError(tt.err)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
		})
	}
}

func TestExtractErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"nested shape", `{"error":{"message":"bad request"}}`, "bad request"},
		{"top-level shape", `{"message":"rate limited"}`, "rate limited"},
		{"nested wins over top-level", `{"error":{"message":"nested"},"message":"top"}`, "nested"},
		{"not json", "<html>service down</html>", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractErrorMessage(strings.NewReader(tt.body))
			if got != tt.want {
				t.Errorf("extractErrorMessage = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("nil reader", func(t *testing.T) {
		if got := extractErrorMessage(nil); got != "" {
			t.Errorf("extractErrorMessage(nil) = %q, want empty", got)
		}
	})
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q, want unchanged", got)
	}
	long := strings.Repeat("x", 300)
	got := truncate(long, 200)
	if len(got) != 203 {
		t.Errorf("len(truncate) = %d, want 203", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated string %q missing ellipsis", got[190:])
	}
}
