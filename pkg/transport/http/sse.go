package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/minichat/relay/pkg/api"
	"github.com/minichat/relay/pkg/debug"
	"github.com/minichat/relay/pkg/observability"
)

// writerState tracks the state of an SSE writer.
type writerState int

const (
	writerIdle      writerState = iota // no writes yet
	writerStreaming                    // at least one event written
	writerCompleted                    // terminal event sent
)

// sseWriter serializes stream events as data-only SSE frames:
//
//	data: {"type":"content","content":"..."}\n
//	\n
//
// The first write sets the SSE headers; every frame is flushed immediately
// so typewriter clients see fragments as they arrive. A terminal event
// (end or error) completes the writer, and further writes fail.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteEvent sends one event frame.
func (s *sseWriter) WriteEvent(event api.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write event: stream is completed")
	}

	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	debug.Trace("streaming", "writing stream event", "frame", string(data))

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	observability.StreamEventsTotal.WithLabelValues(string(event.Type)).Inc()

	if event.Terminal() {
		s.state = writerCompleted
	}
	return nil
}
