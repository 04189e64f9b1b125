package http

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minichat/relay/pkg/api"
)

func TestSSEWriterFrameFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newSSEWriter(rec)

	if err := sw.WriteEvent(api.NewStartEvent()); err != nil {
		t.Fatalf("WriteEvent error: %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}

	want := `data: {"type":"start","message":"generating answer"}` + "\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if !rec.Flushed {
		t.Error("event was not flushed")
	}
}

func TestSSEWriterEventSequence(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newSSEWriter(rec)

	events := []api.StreamEvent{
		api.NewStartEvent(),
		api.NewContentEvent("hi"),
		api.NewContentEvent(" there"),
		api.NewEndEvent(),
	}
	for _, ev := range events {
		if err := sw.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent(%v) error: %v", ev.Type, err)
		}
	}

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	if len(frames) != len(events) {
		t.Fatalf("got %d frames, want %d", len(frames), len(events))
	}
	for i, frame := range frames {
		if !strings.HasPrefix(frame, "data: ") {
			t.Errorf("frame %d = %q, missing data prefix", i, frame)
		}
	}
	if !strings.Contains(frames[1], `"content":"hi"`) {
		t.Errorf("frame 1 = %q, want content event", frames[1])
	}
}

func TestSSEWriterTerminalCompletes(t *testing.T) {
	tests := []struct {
		name     string
		terminal api.StreamEvent
	}{
		{"end", api.NewEndEvent()},
		{"error", api.NewErrorEvent("upstream failed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			sw := newSSEWriter(rec)

			if err := sw.WriteEvent(tt.terminal); err != nil {
				t.Fatalf("WriteEvent error: %v", err)
			}
			if err := sw.WriteEvent(api.NewContentEvent("late")); err == nil {
				t.Error("WriteEvent after terminal event = nil error, want rejection")
			}
			if strings.Contains(rec.Body.String(), "late") {
				t.Error("content written after terminal event")
			}
		})
	}
}

func TestSSEWriterRepeatedHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := newSSEWriter(rec)

	if err := sw.WriteEvent(api.NewStartEvent()); err != nil {
		t.Fatalf("WriteEvent error: %v", err)
	}
	if err := sw.WriteEvent(api.NewContentEvent("x")); err != nil {
		t.Fatalf("WriteEvent error: %v", err)
	}
	// Headers are set exactly once, on the first event.
	if got := rec.Header().Values("Content-Type"); len(got) != 1 {
		t.Errorf("Content-Type set %d times, want 1", len(got))
	}
}
