package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/minichat/relay/pkg/api"
)

// mapHTTPError converts a non-2xx response into a classified error. It reads
// a bounded prefix of the body looking for a descriptive message.
//
// 401 is an authentication failure and never retried. 5xx statuses classify
// as KindUpstream and are the only statuses the caller may retry. Any other
// 4xx is a terminal upstream error.
func mapHTTPError(resp *http.Response) *api.Error {
	message := extractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if message == "" {
			message = "credential rejected"
		}
		return api.NewAuthError("upstream authentication failed: " + message)

	case resp.StatusCode >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("upstream server error (HTTP %d)", resp.StatusCode)
		}
		return api.NewUpstreamError(message)

	default:
		if message == "" {
			message = fmt.Sprintf("upstream call failed (HTTP %d)", resp.StatusCode)
		}
		return api.NewUpstreamError(message)
	}
}

// mapNetworkError converts a transport-level error (timeout, connection
// refused, DNS failure) into a classified error.
func mapNetworkError(err error) *api.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewTimeoutError("upstream call timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return api.NewTimeoutError("upstream call timed out")
	}
	if errors.Is(err, context.Canceled) {
		return api.NewConnectionError("upstream call cancelled")
	}
	return api.NewConnectionError("upstream connection failed: " + err.Error())
}

// extractErrorMessage tries to parse an error body and returns the message if
// found. The read is capped at 4KB.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp chatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil {
		if errResp.Error.Message != "" {
			return errResp.Error.Message
		}
		if errResp.Message != "" {
			return errResp.Message
		}
	}

	return ""
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
