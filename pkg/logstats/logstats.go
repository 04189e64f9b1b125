// Package logstats parses the relay's JSON log stream and aggregates it into
// operational statistics. It understands the exact messages and attributes
// the transport and upstream layers emit, and powers both the one-shot
// analyze report and the live follow view.
package logstats

import (
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
)

// Log messages the relay emits. The analyzer matches on these exactly.
const (
	msgReceived       = "request received"
	msgCompleted      = "request completed"
	msgFailed         = "request failed"
	msgRetrying       = "retrying upstream call"
	msgUpstreamFailed = "upstream call failed"
	msgPanic          = "panic recovered"
)

// Entry is one parsed log line. Fields beyond the slog basics are populated
// only when the line carries them.
type Entry struct {
	Time       time.Time `json:"time"`
	Level      string    `json:"level"`
	Message    string    `json:"msg"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Endpoint   string    `json:"endpoint"`
	Status     int       `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Kind       string    `json:"kind"`
	Error      string    `json:"error"`
	Attempt    int       `json:"attempt"`
	WaitS      float64   `json:"wait_s"`
	Panic      string    `json:"panic"`
}

// ParseLine decodes one JSON log line. The second return value is false for
// blank lines and lines that are not log records.
func ParseLine(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != '{' {
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return Entry{}, false
	}
	if e.Message == "" {
		return Entry{}, false
	}
	return e, true
}
