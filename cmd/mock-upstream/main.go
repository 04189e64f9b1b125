// Command mock-upstream runs a deterministic completion API server for
// exercising the relay without a real upstream account. It serves
// /v1/chat/completions in both sync and streaming mode and honors fault
// directives embedded anywhere in the last user message:
//
//	[status=500]  - respond with that HTTP status and an error body
//	[flaky=2]     - fail the first 2 calls for this prompt, then succeed
//	[delay=2s]    - wait before answering
//	[malformed]   - respond 200 with a body that is not JSON
//	[empty]       - respond 200 with no choices
//
// Directives ride in message content, so they pass through the relay
// untouched and can drive its retry and error paths end to end.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock upstream starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock upstream failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock upstream shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Fault directives ---

var directiveRe = regexp.MustCompile(`\[(status|flaky|delay)=([^\]]+)\]`)

type faults struct {
	status    int
	flaky     int
	delay     time.Duration
	malformed bool
	empty     bool
}

func parseFaults(prompt string) faults {
	var f faults
	for _, m := range directiveRe.FindAllStringSubmatch(prompt, -1) {
		switch m[1] {
		case "status":
			if n, err := strconv.Atoi(m[2]); err == nil {
				f.status = n
			}
		case "flaky":
			if n, err := strconv.Atoi(m[2]); err == nil {
				f.flaky = n
			}
		case "delay":
			if d, err := time.ParseDuration(m[2]); err == nil {
				f.delay = d
			}
		}
	}
	f.malformed = strings.Contains(prompt, "[malformed]")
	f.empty = strings.Contains(prompt, "[empty]")
	return f
}

// flakyCalls tracks how often each flaky prompt has been seen, so the first
// N calls fail and later ones succeed.
var flakyCalls struct {
	mu   sync.Mutex
	seen map[string]int
}

func flakyShouldFail(prompt string, failures int) bool {
	flakyCalls.mu.Lock()
	defer flakyCalls.mu.Unlock()
	if flakyCalls.seen == nil {
		flakyCalls.seen = make(map[string]int)
	}
	flakyCalls.seen[prompt]++
	return flakyCalls.seen[prompt] <= failures
}

// --- Handler ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt := lastUserMessage(&req)
	f := parseFaults(prompt)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}
	if f.status >= 400 {
		writeError(w, f.status, fmt.Sprintf("injected %d failure", f.status))
		return
	}
	if f.flaky > 0 && flakyShouldFail(prompt, f.flaky) {
		writeError(w, http.StatusInternalServerError, "injected flaky failure")
		return
	}
	if f.malformed {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("this is not json"))
		return
	}

	model := req.Model
	if model == "" {
		model = "mock-chat"
	}

	if req.Stream {
		handleStreaming(w, model, prompt, f)
		return
	}

	resp := chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  model,
		Usage:  chatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
	if !f.empty {
		resp.Choices = []chatChoice{
			{
				Index:        0,
				Message:      chatMsg{Role: "assistant", Content: answerFor(prompt)},
				FinishReason: "stop",
			},
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// answerFor generates a deterministic reply so test assertions can be exact.
func answerFor(prompt string) string {
	clean := strings.TrimSpace(directiveRe.ReplaceAllString(prompt, ""))
	lower := strings.ToLower(clean)
	switch {
	case strings.Contains(lower, "count from 1 to 5"):
		return "1, 2, 3, 4, 5"
	case clean == "":
		return "Hello! How can I help you today?"
	default:
		return "You said: " + clean
	}
}

// --- Streaming ---

func handleStreaming(w http.ResponseWriter, model, prompt string, f faults) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Role chunk first, like the real API.
	writeSSEChunk(w, model, "", true, false)
	flusher.Flush()

	if !f.empty {
		for _, token := range tokenize(answerFor(prompt)) {
			writeSSEChunk(w, model, token, false, false)
			flusher.Flush()
		}
	}

	writeSSEChunk(w, model, "", false, true)
	flusher.Flush()

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// tokenize slices the answer into word-sized deltas.
func tokenize(text string) []string {
	words := strings.SplitAfter(text, " ")
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func writeSSEChunk(w http.ResponseWriter, model, content string, isRole, isFinish bool) {
	delta := map[string]any{}
	if isRole {
		delta["role"] = "assistant"
	}
	if content != "" {
		delta["content"] = content
	}

	choice := map[string]any{
		"index":         0,
		"delta":         delta,
		"finish_reason": nil,
	}
	if isFinish {
		choice["finish_reason"] = "stop"
	}

	chunk := map[string]any{
		"id":      "chatcmpl-mock-stream",
		"object":  "chat.completion.chunk",
		"model":   model,
		"choices": []any{choice},
	}

	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// --- Models endpoint ---

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-chat", "object": "model", "owned_by": "mock-upstream"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Helpers ---

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"server_error"}}`, message)
}

func lastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}
