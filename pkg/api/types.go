package api

// ---------------------------------------------------------------------------
// Conversation types
// ---------------------------------------------------------------------------

// Role identifies the author of a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one role-tagged message in a conversation. The JSON field names
// match the upstream completion API, so turns pass through unmodified.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered sequence of turns. It is always non-empty by
// the time it reaches the upstream client; order is conversation order.
type Conversation []Turn

// ---------------------------------------------------------------------------
// Chat request / response
// ---------------------------------------------------------------------------

// ChatRequest is the client request accepted by every chat endpoint.
// Exactly one of Messages (non-empty) or Prompt (non-blank) must be given.
type ChatRequest struct {
	Prompt   string `json:"prompt,omitempty"`
	Messages []Turn `json:"messages,omitempty"`
	// Stream selects SSE delivery on POST /api/chat. Absent means stream.
	Stream *bool  `json:"stream,omitempty"`
	UserID string `json:"userId,omitempty"`
	// Timeout is the per-request timeout bound in seconds. Zero means the
	// configured default; out-of-range values are clamped, not rejected.
	Timeout float64 `json:"timeout,omitempty"`
}

// ResolveStream returns the effective stream flag, defaulting to true when
// the field is absent.
func (r *ChatRequest) ResolveStream() bool {
	if r.Stream != nil {
		return *r.Stream
	}
	return true
}

// ChatResponse is the plain answer payload returned by the non-streaming
// chat endpoints.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// StatusResponse is returned by the health banner endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ---------------------------------------------------------------------------
// Mini-program envelopes
// ---------------------------------------------------------------------------

// Envelope is the {code, message, data} wrapper used by the mini-program
// endpoints. The HTTP status is always 200; clients inspect Code.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// NewSuccessEnvelope wraps data in a code-200 envelope.
func NewSuccessEnvelope(data any) *Envelope {
	return &Envelope{Code: 200, Message: "success", Data: data}
}

// NewErrorEnvelope wraps a user-facing error message in a code-500 envelope.
func NewErrorEnvelope(message string, ts int64) *Envelope {
	return &Envelope{
		Code:    500,
		Message: "error",
		Data:    ErrorData{Error: message, Timestamp: ts},
	}
}

// MiniProgramData is the success payload of POST /api/chat/miniprogram: the
// full answer plus pre-sliced chunks for a typewriter rendering.
type MiniProgramData struct {
	Chunks         []string `json:"chunks"`
	TotalChunks    int      `json:"total_chunks"`
	CompleteAnswer string   `json:"complete_answer"`
	// ChunkDelay is the suggested inter-chunk delay in milliseconds.
	ChunkDelay int   `json:"chunk_delay"`
	Timestamp  int64 `json:"timestamp"`
}

// SimpleData is the success payload of POST /api/chat/simple.
type SimpleData struct {
	Answer    string `json:"answer"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorData is the failure payload carried inside an error Envelope.
type ErrorData struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// NetworkData is the payload of GET /api/health/network. UpstreamAPI holds
// the probe verdict (reachable, timeout, unreachable); Error carries detail
// for unclassified failures.
type NetworkData struct {
	UpstreamAPI string `json:"upstream_api,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// ---------------------------------------------------------------------------
// Streaming events
// ---------------------------------------------------------------------------

// StreamEventType identifies one of the relay's SSE event payloads.
type StreamEventType string

const (
	StreamEventStart   StreamEventType = "start"
	StreamEventContent StreamEventType = "content"
	StreamEventEnd     StreamEventType = "end"
	StreamEventError   StreamEventType = "error"
)

// StreamEvent is the JSON payload of one "data:" line on the streaming chat
// endpoint. Exactly one of Message, Content, or Error is populated,
// depending on Type.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Message string          `json:"message,omitempty"`
	Content string          `json:"content,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewStartEvent signals that answer generation has begun.
func NewStartEvent() StreamEvent {
	return StreamEvent{Type: StreamEventStart, Message: "generating answer"}
}

// NewContentEvent carries one content fragment.
func NewContentEvent(content string) StreamEvent {
	return StreamEvent{Type: StreamEventContent, Content: content}
}

// NewEndEvent signals clean completion of the answer.
func NewEndEvent() StreamEvent {
	return StreamEvent{Type: StreamEventEnd, Message: "answer complete"}
}

// NewErrorEvent terminates a stream with a failure description.
func NewErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: StreamEventError, Error: message}
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == StreamEventEnd || e.Type == StreamEventError
}
