package upstream

import "github.com/minichat/relay/pkg/api"

// Wire types for the completion API. api.Turn already carries the wire field
// names, so conversations are forwarded without re-mapping.

// chatCompletionRequest is the request body for /v1/chat/completions.
type chatCompletionRequest struct {
	Model       string     `json:"model"`
	Messages    []api.Turn `json:"messages"`
	Temperature float64    `json:"temperature"`
	Stream      bool       `json:"stream,omitempty"`
}

// chatCompletionResponse is the non-streaming response body.
type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionChunk is a single SSE chunk in a streaming response.
type chatCompletionChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Model   string            `json:"model"`
	Choices []chatChunkChoice `json:"choices"`
}

type chatChunkChoice struct {
	Index        int            `json:"index"`
	Delta        chatChunkDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

type chatChunkDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// chatErrorResponse covers both error body shapes seen from completion
// backends: a nested {"error": {"message": ...}} object and a top-level
// {"message": ...} field.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
	Message string `json:"message"`
}
