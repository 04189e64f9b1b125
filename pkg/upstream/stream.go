package upstream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/minichat/relay/pkg/api"
)

// EventType classifies a streaming event.
type EventType int

const (
	// EventDelta carries one content fragment.
	EventDelta EventType = iota
	// EventDone marks clean completion of the stream.
	EventDone
	// EventError terminates the stream with a classified failure.
	EventError
)

// Event is one element of a Stream's sequence.
type Event struct {
	Type  EventType
	Delta string
	// Err is populated for EventError.
	Err *api.Error
}

// Stream is a lazy, finite, non-restartable sequence of events read from one
// upstream connection. The channel returned by Events closes after a
// terminal event (EventDone or EventError) or after Close. Close releases
// the underlying connection and is safe to call at any point, including
// mid-sequence when the consumer stops early.
type Stream struct {
	events <-chan Event
	cancel context.CancelFunc
	once   sync.Once
}

// NewStream wraps an event channel and a release function. The release
// function is invoked exactly once, on Close.
func NewStream(events <-chan Event, cancel context.CancelFunc) *Stream {
	return &Stream{events: events, cancel: cancel}
}

// Events returns the event sequence.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Close releases the underlying connection. Idempotent.
func (s *Stream) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// readStream reads SSE lines from body and emits events on ch until the
// [DONE] sentinel, the deadline, an error, or context cancellation.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[{"delta":{"content":"..."}}]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped; they never abort the stream. The
// deadline is checked between lines, so a stream that keeps producing is cut
// off promptly while one blocked on a read is bounded by the connection.
func (c *Client) readStream(ctx context.Context, body io.Reader, ch chan<- Event, deadline time.Time) {
	scanner := bufio.NewScanner(body)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if time.Now().After(deadline) {
			sendEvent(ctx, ch, Event{
				Type: EventError,
				Err:  api.NewTimeoutError("upstream stream exceeded the timeout bound"),
			})
			return
		}

		line := scanner.Text()

		// Lines without the data prefix are framing noise (empty separator
		// lines, ": " comments) and are ignored.
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		if payload == "[DONE]" {
			sendEvent(ctx, ch, Event{Type: EventDone})
			return
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.log.Warn("skipping malformed stream chunk",
				slog.String("error", err.Error()),
				slog.String("data", truncate(payload, 200)),
			)
			continue
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != nil && *delta.Content != "" {
			if !sendEvent(ctx, ch, Event{Type: EventDelta, Delta: *delta.Content}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		// Cancellation severs the connection, which surfaces here as a read
		// error; that is the consumer stopping, not a failure.
		if ctx.Err() != nil {
			return
		}
		sendEvent(ctx, ch, Event{
			Type: EventError,
			Err:  api.NewConnectionError("stream read error: " + err.Error()),
		})
		return
	}

	// EOF without the sentinel: the upstream closed cleanly.
	sendEvent(ctx, ch, Event{Type: EventDone})
}

// sendEvent delivers ev unless the consumer has gone away.
func sendEvent(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
