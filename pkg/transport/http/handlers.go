package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/minichat/relay/pkg/api"
	"github.com/minichat/relay/pkg/transport"
	"github.com/minichat/relay/pkg/upstream"
)

// nowUnix returns the current Unix timestamp in seconds. A variable so
// tests can pin it.
var nowUnix = func() int64 { return time.Now().Unix() }

// handlers holds the endpoint implementations. One instance serves all
// requests; it carries no per-request state.
type handlers struct {
	svc         transport.ChatService
	maxBodySize int64
	inflight    *transport.InFlightRegistry
	logger      *slog.Logger
}

// handleRoot serves the GET / banner.
func (h *handlers) handleRoot(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, api.StatusResponse{
		Status:  "ok",
		Message: "chat relay service is running",
	})
}

// handleHealth serves GET /health.
func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, api.StatusResponse{Status: "healthy"})
}

// handleChat serves POST /api/chat. The response streams SSE events unless
// the request carries an explicit "stream": false, which degrades to the
// sync behavior.
func (h *handlers) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	if req.ResolveStream() {
		h.streamChat(w, r, req)
		return
	}

	answer, err := h.svc.Answer(r.Context(), req)
	if err != nil {
		h.failRequest(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.ChatResponse{Answer: answer})
}

// handleChatSync serves POST /api/chat/sync: always a single JSON answer.
func (h *handlers) handleChatSync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	answer, err := h.svc.Answer(r.Context(), req)
	if err != nil {
		h.failRequest(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.ChatResponse{Answer: answer})
}

// handleMiniProgram serves POST /api/chat/miniprogram. Success and upstream
// failure both answer HTTP 200 with a {code, message, data} envelope — the
// mini-program client inspects the embedded code, not the transport status.
// Invalid input is the one exception: it is the caller's bug and surfaces
// as a real 422 before any upstream work happens.
func (h *handlers) handleMiniProgram(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	data, err := h.svc.ChunkedAnswer(r.Context(), req)
	if err != nil {
		h.failEnveloped(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.NewSuccessEnvelope(data))
}

// handleSimple serves POST /api/chat/simple: the envelope wrapper around a
// plain complete answer, for clients that render without the typewriter
// effect.
func (h *handlers) handleSimple(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	answer, err := h.svc.Answer(r.Context(), req)
	if err != nil {
		h.failEnveloped(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.NewSuccessEnvelope(api.SimpleData{
		Answer:    answer,
		Timestamp: nowUnix(),
	}))
}

// handleNetworkCheck serves GET /api/health/network: a reachability probe
// against the upstream API origin. Always HTTP 200; the envelope carries
// the verdict.
func (h *handlers) handleNetworkCheck(w http.ResponseWriter, r *http.Request) {
	err := h.svc.ProbeUpstream(r.Context())
	ts := nowUnix()

	if err == nil {
		transport.WriteJSON(w, http.StatusOK, &api.Envelope{
			Code:    200,
			Message: "network ok",
			Data:    api.NetworkData{UpstreamAPI: "reachable", Timestamp: ts},
		})
		return
	}

	apiErr := transport.AsAPIError(err)
	h.logFailure(r, apiErr)

	var env *api.Envelope
	switch apiErr.Kind {
	case api.KindTimeout:
		env = &api.Envelope{
			Code:    500,
			Message: "network timeout",
			Data:    api.NetworkData{UpstreamAPI: "timeout", Timestamp: ts},
		}
	case api.KindConnection:
		env = &api.Envelope{
			Code:    500,
			Message: "network connection failed",
			Data:    api.NetworkData{UpstreamAPI: "unreachable", Timestamp: ts},
		}
	default:
		env = &api.Envelope{
			Code:    500,
			Message: "network check failed",
			Data:    api.NetworkData{Error: apiErr.Message, Timestamp: ts},
		}
	}
	transport.WriteJSON(w, http.StatusOK, env)
}

// streamChat relays the answer as SSE events: a start marker, one content
// event per upstream fragment, then end (or error). Failures before the
// first frame still have the plain JSON error path available.
func (h *handlers) streamChat(w http.ResponseWriter, r *http.Request, req *api.ChatRequest) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	st, err := h.svc.StreamAnswer(ctx, req)
	if err != nil {
		h.failRequest(w, r, err)
		return
	}
	defer st.Close()

	// Register so a server shutdown can cut the stream loose instead of
	// waiting out an upstream that keeps producing.
	requestID := transport.RequestIDFromContext(r.Context())
	h.inflight.Register(requestID, cancel)
	defer h.inflight.Remove(requestID)

	sw := newSSEWriter(w)
	if err := sw.WriteEvent(api.NewStartEvent()); err != nil {
		return
	}

	for ev := range st.Events() {
		switch ev.Type {
		case upstream.EventDelta:
			if err := sw.WriteEvent(api.NewContentEvent(ev.Delta)); err != nil {
				// Client went away; the deferred Close releases upstream.
				return
			}
		case upstream.EventDone:
			sw.WriteEvent(api.NewEndEvent())
			return
		case upstream.EventError:
			h.logFailure(r, ev.Err)
			sw.WriteEvent(api.NewErrorEvent(ev.Err.Message))
			return
		}
	}

	// The event channel closed without a terminal event: the stream was
	// cancelled (client disconnect or shutdown).
	sw.WriteEvent(api.NewErrorEvent("stream cancelled"))
}

// decodeChatRequest parses and bounds the request body. On failure it
// writes the error response and returns ok=false.
func (h *handlers) decodeChatRequest(w http.ResponseWriter, r *http.Request) (*api.ChatRequest, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		transport.WriteJSON(w, http.StatusUnsupportedMediaType, api.ErrorResponse{
			Error: api.NewInvalidInputError("Content-Type must be application/json"),
		})
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteJSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{
				Error: api.NewInvalidInputError("request body too large"),
			})
			return nil, false
		}
		transport.WriteJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Error: api.NewInvalidInputError("invalid JSON: " + err.Error()),
		})
		return nil, false
	}
	return &req, true
}

// failRequest logs a failure and writes the plain JSON error response with
// the status derived from the error kind.
func (h *handlers) failRequest(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := transport.AsAPIError(err)
	h.logFailure(r, apiErr)
	transport.WriteError(w, apiErr)
}

// failEnveloped logs a failure and writes the mini-program error envelope,
// except for invalid input, which stays a real 422.
func (h *handlers) failEnveloped(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := transport.AsAPIError(err)
	h.logFailure(r, apiErr)

	if apiErr.Kind == api.KindInvalidInput {
		transport.WriteError(w, apiErr)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.NewErrorEnvelope(userMessage(apiErr), nowUnix()))
}

func (h *handlers) logFailure(r *http.Request, apiErr *api.Error) {
	h.logger.LogAttrs(r.Context(), slog.LevelWarn, "request failed",
		slog.String("request_id", transport.RequestIDFromContext(r.Context())),
		slog.String("endpoint", r.URL.Path),
		slog.String("kind", string(apiErr.Kind)),
		slog.String("error", apiErr.Message),
	)
}

// userMessage renders a classified failure as the string the mini-program
// client shows verbatim.
func userMessage(err *api.Error) string {
	switch err.Kind {
	case api.KindTimeout:
		return "Request timed out, please try again later"
	case api.KindConnection:
		return "Network connection failed, please check your network settings"
	case api.KindAuth, api.KindConfig:
		return "Service configuration error, please contact the administrator"
	case api.KindMalformed:
		return "Service response error, please try again later"
	case api.KindInternal:
		return "Unexpected error: " + err.Message
	default:
		return "Service error: " + err.Message
	}
}
