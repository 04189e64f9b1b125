package logstats

import (
	"bufio"
	"fmt"
	"io"
	"time"
)

// traceLimit caps how many request traces Analyze retains for the report.
const traceLimit = 5

// Stats aggregates a window of relay log entries.
type Stats struct {
	// Received counts requests that reached the server.
	Received int

	// Succeeded counts requests that completed with a status below 400.
	Succeeded int

	// Failed counts requests rejected with a classified error.
	Failed int

	// Retries counts backoff waits entered before upstream retries.
	Retries int

	// UpstreamFailures counts individual failed upstream attempts.
	UpstreamFailures int

	// Panics counts handler panics the recovery middleware caught.
	Panics int

	// ErrorKinds tallies terminal failures by error kind.
	ErrorKinds map[string]int

	// DurationsMS holds the duration of every completed request.
	DurationsMS []int64

	// Traces holds the last few requests with all their log entries, in the
	// order the requests first appeared.
	Traces []Trace
}

// Trace groups the log entries of one request in arrival order.
type Trace struct {
	RequestID string
	Entries   []Entry
}

// SuccessRate returns the share of received requests that succeeded, as a
// percentage.
func (s *Stats) SuccessRate() float64 {
	total := s.Received
	if total < 1 {
		total = 1
	}
	return float64(s.Succeeded) / float64(total) * 100
}

// AvgDuration returns the mean duration across completed requests.
func (s *Stats) AvgDuration() time.Duration {
	if len(s.DurationsMS) == 0 {
		return 0
	}
	var sum int64
	for _, d := range s.DurationsMS {
		sum += d
	}
	return time.Duration(sum/int64(len(s.DurationsMS))) * time.Millisecond
}

// Analyze reads the log stream and aggregates every entry at or after since.
// A zero since keeps everything. Lines that are not log records are skipped.
func Analyze(r io.Reader, since time.Time) (*Stats, error) {
	stats := &Stats{
		ErrorKinds: make(map[string]int),
	}

	byID := make(map[string]int) // request id -> index into traces
	var traces []Trace

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		e, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		if !since.IsZero() && e.Time.Before(since) {
			continue
		}

		if e.RequestID != "" {
			idx, seen := byID[e.RequestID]
			if !seen {
				idx = len(traces)
				byID[e.RequestID] = idx
				traces = append(traces, Trace{RequestID: e.RequestID})
			}
			traces[idx].Entries = append(traces[idx].Entries, e)
		}

		switch e.Message {
		case msgReceived:
			stats.Received++
		case msgCompleted:
			if e.Status < 400 {
				stats.Succeeded++
			}
			stats.DurationsMS = append(stats.DurationsMS, e.DurationMS)
		case msgFailed:
			stats.Failed++
			kind := e.Kind
			if kind == "" {
				kind = "unknown"
			}
			stats.ErrorKinds[kind]++
		case msgRetrying:
			stats.Retries++
		case msgUpstreamFailed:
			stats.UpstreamFailures++
		case msgPanic:
			// Panicked requests never log completion or a classified
			// failure, so they are counted here.
			stats.Panics++
			stats.ErrorKinds["internal"]++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}

	if len(traces) > traceLimit {
		traces = traces[len(traces)-traceLimit:]
	}
	stats.Traces = traces

	return stats, nil
}
