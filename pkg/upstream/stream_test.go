package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/minichat/relay/pkg/api"
)

func writeSSE(w http.ResponseWriter, payload string) {
	fmt.Fprintf(w, "data: %s\n\n", payload)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func contentChunk(content string) string {
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, content)
}

// collectEvents drains the stream until the channel closes.
func collectEvents(t *testing.T, st *Stream) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-st.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream events")
		}
	}
}

func TestStreamDeltasInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q, want %q", got, "text/event-stream")
		}
		writeSSE(w, `{"choices":[{"index":0,"delta":{"role":"assistant"}}]}`)
		writeSSE(w, contentChunk("Hel"))
		writeSSE(w, contentChunk("lo"))
		writeSSE(w, contentChunk(", world"))
		writeSSE(w, "[DONE]")
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	st, err := c.Stream(context.Background(), api.Conversation{{Role: api.RoleUser, Content: "hi"}}, 5*time.Second)
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	defer st.Close()

	events := collectEvents(t, st)
	wantDeltas := []string{"Hel", "lo", ", world"}
	if len(events) != len(wantDeltas)+1 {
		t.Fatalf("got %d events, want %d", len(events), len(wantDeltas)+1)
	}
	for i, want := range wantDeltas {
		if events[i].Type != EventDelta || events[i].Delta != want {
			t.Errorf("event %d = {%v %q}, want delta %q", i, events[i].Type, events[i].Delta, want)
		}
	}
	if last := events[len(events)-1]; last.Type != EventDone {
		t.Errorf("last event type = %v, want EventDone", last.Type)
	}
}

func TestStreamSkipsMalformedChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, contentChunk("good"))
		writeSSE(w, `{not valid json`)
		writeSSE(w, contentChunk("still good"))
		writeSSE(w, "[DONE]")
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	st, err := c.Stream(context.Background(), api.Conversation{{Role: api.RoleUser, Content: "hi"}}, 5*time.Second)
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	defer st.Close()

	events := collectEvents(t, st)
	var deltas []string
	for _, ev := range events {
		if ev.Type == EventError {
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
		if ev.Type == EventDelta {
			deltas = append(deltas, ev.Delta)
		}
	}
	if len(deltas) != 2 || deltas[0] != "good" || deltas[1] != "still good" {
		t.Errorf("deltas = %q, want [good, still good]", deltas)
	}
}

func TestStreamConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	st, err := c.Stream(context.Background(), api.Conversation{{Role: api.RoleUser, Content: "hi"}}, 5*time.Second)
	if err == nil {
		st.Close()
		t.Fatal("Stream = nil error, want auth error")
	}
	if got := api.KindOf(err); got != api.KindAuth {
		t.Errorf("KindOf = %q, want %q", got, api.KindAuth)
	}
}

func TestStreamMissingCredential(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Stream(context.Background(), api.Conversation{{Role: api.RoleUser, Content: "hi"}}, time.Second)
	if err == nil {
		t.Fatal("Stream = nil error, want configuration error")
	}
	if got := api.KindOf(err); got != api.KindConfig {
		t.Errorf("KindOf = %q, want %q", got, api.KindConfig)
	}
}

func TestStreamTimeoutBetweenChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, contentChunk("first"))
		time.Sleep(150 * time.Millisecond)
		writeSSE(w, contentChunk("late"))
		writeSSE(w, "[DONE]")
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	st, err := c.Stream(context.Background(), api.Conversation{{Role: api.RoleUser, Content: "hi"}}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	defer st.Close()

	events := collectEvents(t, st)
	if len(events) == 0 {
		t.Fatal("no events received")
	}
	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("last event type = %v, want EventError", last.Type)
	}
	if last.Err.Kind != api.KindTimeout {
		t.Errorf("error kind = %q, want %q", last.Err.Kind, api.KindTimeout)
	}
	// The late delta must not have been delivered.
	for _, ev := range events[:len(events)-1] {
		if ev.Delta == "late" {
			t.Error("delta after the timeout bound was delivered")
		}
	}
}

func TestStreamCloseReleasesConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, contentChunk("first"))
		// Keep producing until the client goes away.
		for {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(20 * time.Millisecond):
				writeSSE(w, contentChunk("more"))
			}
		}
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	st, err := c.Stream(context.Background(), api.Conversation{{Role: api.RoleUser, Content: "hi"}}, time.Minute)
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}

	select {
	case ev := <-st.Events():
		if ev.Type != EventDelta {
			t.Fatalf("first event type = %v, want EventDelta", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first event")
	}

	st.Close()
	st.Close() // idempotent

	done := make(chan struct{})
	go func() {
		for range st.Events() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event channel did not close after Close")
	}
}

func TestStreamEOFWithoutSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, contentChunk("only"))
		// Connection closes without a [DONE] sentinel.
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	st, err := c.Stream(context.Background(), api.Conversation{{Role: api.RoleUser, Content: "hi"}}, 5*time.Second)
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	defer st.Close()

	events := collectEvents(t, st)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventDelta || events[0].Delta != "only" {
		t.Errorf("event 0 = {%v %q}, want delta %q", events[0].Type, events[0].Delta, "only")
	}
	if events[1].Type != EventDone {
		t.Errorf("event 1 type = %v, want EventDone", events[1].Type)
	}
}
