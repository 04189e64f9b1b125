// Package debug provides category-gated wire tracing for the relay.
//
// Two orthogonal controls:
//   - Categories (WHAT to trace): the RELAY_DEBUG env var or the
//     logging.debug config key, comma separated.
//   - Levels (HOW MUCH detail): the ordinary log level; TRACE sits below
//     DEBUG and unlocks full request and response payloads.
//
// Usage:
//
//	debug.Trace("upstream", "sending completion request", "body", payload)
//	if debug.Enabled("upstream") { /* expensive formatting */ }
//
// Categories: upstream, transport, streaming, auth, config, all.
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity. At TRACE, full
// untruncated payloads may be logged.
const LevelTrace = slog.LevelDebug - 4

// categories holds the set of enabled trace categories. Read-only after
// Init, so no synchronization needed.
var categories map[string]bool

func init() {
	// Environment first, so tracing works before config is loaded.
	categories = parseCategories(os.Getenv("RELAY_DEBUG"))
}

// Init configures the enabled categories from config. The RELAY_DEBUG
// environment variable takes precedence. The process-wide logger is owned
// by the caller; Init never touches slog's default.
func Init(configCategories string) {
	cats := os.Getenv("RELAY_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)
}

// Enabled reports whether tracing is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug-level message for the given category. A disabled
// category makes this a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category. Only visible
// when the log level is TRACE.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE output is active for the category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(nil, LevelTrace)
}

// Raw writes plain text to stderr without any slog formatting. Use this for
// copy-paste-ready output (full HTTP bodies, SSE transcripts). Only emitted
// when the category is enabled AND the level is TRACE.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel converts a level string to a slog.Level. Unknown values fall
// back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the list of enabled categories for status reporting.
func Categories() []string {
	var result []string
	for k := range categories {
		result = append(result, k)
	}
	return result
}

// Truncate returns s truncated to maxLen bytes, with "..." appended if
// truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	if s == "" {
		return m
	}
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
