package logstats

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	successMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	failMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	warnMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render("!")
	retryMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render("↻")
	infoMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("·")
)

// WriteReport renders the aggregated statistics. window only labels the
// report header; pass 0 when the whole file was analyzed.
func WriteReport(w io.Writer, s *Stats, window time.Duration) {
	scope := "entire file"
	if window > 0 {
		scope = "last " + window.String()
	}
	fmt.Fprintln(w, headerStyle.Render("Log statistics")+" "+dimStyle.Render("("+scope+")"))
	fmt.Fprintln(w)

	row := func(label string, value string) {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-18s", label)), value)
	}

	row("requests received", fmt.Sprintf("%d", s.Received))
	row("succeeded", fmt.Sprintf("%d", s.Succeeded))
	row("failed", fmt.Sprintf("%d", s.Failed))
	row("success rate", fmt.Sprintf("%.1f%%", s.SuccessRate()))
	row("avg response time", formatDuration(s.AvgDuration()))
	row("upstream failures", fmt.Sprintf("%d", s.UpstreamFailures))
	row("upstream retries", fmt.Sprintf("%d", s.Retries))
	if s.Panics > 0 {
		row("panics", fmt.Sprintf("%d", s.Panics))
	}
	fmt.Fprintln(w)

	if len(s.ErrorKinds) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Errors by kind"))
		for _, kc := range sortedKinds(s.ErrorKinds) {
			fmt.Fprintf(w, "  %s %d\n", labelStyle.Render(fmt.Sprintf("%-18s", kc.kind)), kc.count)
		}
		fmt.Fprintln(w)
	}

	if len(s.Traces) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Recent requests"))
		for _, tr := range s.Traces {
			fmt.Fprintf(w, "  %s\n", idStyle.Render(tr.RequestID))
			for _, e := range tr.Entries {
				fmt.Fprintf(w, "    %s\n", FormatEntry(e))
			}
		}
	}
}

type kindCount struct {
	kind  string
	count int
}

// sortedKinds orders kinds by descending count, ties broken by name.
func sortedKinds(kinds map[string]int) []kindCount {
	out := make([]kindCount, 0, len(kinds))
	for k, c := range kinds {
		out = append(out, kindCount{kind: k, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].kind < out[j].kind
	})
	return out
}

// FormatEntry renders one log entry as a single annotated line: a severity
// mark, the wall time, the level, the message, and a dimmed attribute tail.
func FormatEntry(e Entry) string {
	parts := []string{
		markFor(e),
		timeStyle.Render(e.Time.Format("15:04:05.000")),
		fmt.Sprintf("%-5s", e.Level),
		e.Message,
	}
	if tail := attrTail(e); tail != "" {
		parts = append(parts, dimStyle.Render(tail))
	}
	if e.RequestID != "" {
		parts = append(parts, idStyle.Render("["+e.RequestID+"]"))
	}
	return strings.Join(parts, " ")
}

func markFor(e Entry) string {
	switch {
	case e.Level == "ERROR":
		return failMark
	case e.Message == msgRetrying:
		return retryMark
	case e.Level == "WARN":
		return warnMark
	case e.Message == msgCompleted && e.Status < 400:
		return successMark
	default:
		return infoMark
	}
}

func attrTail(e Entry) string {
	var kv []string
	if e.Method != "" {
		kv = append(kv, e.Method)
	}
	if e.Endpoint != "" {
		kv = append(kv, e.Endpoint)
	}
	if e.Status != 0 {
		kv = append(kv, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message == msgCompleted || e.DurationMS != 0 {
		kv = append(kv, fmt.Sprintf("%dms", e.DurationMS))
	}
	if e.Attempt != 0 {
		kv = append(kv, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	if e.WaitS != 0 {
		kv = append(kv, fmt.Sprintf("wait=%.1fs", e.WaitS))
	}
	if e.Kind != "" {
		kv = append(kv, "kind="+e.Kind)
	}
	if e.Error != "" {
		kv = append(kv, "error="+e.Error)
	}
	if e.Panic != "" {
		kv = append(kv, "panic="+e.Panic)
	}
	return strings.Join(kv, " ")
}

// formatDuration renders a duration the way the report shows times,
// millisecond precision below one second.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
