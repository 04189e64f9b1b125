package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/minichat/relay/pkg/api"
	"github.com/minichat/relay/pkg/upstream"
)

// Completer is the upstream surface the service depends on. It is satisfied
// by *upstream.Client; tests substitute a fake.
type Completer interface {
	Complete(ctx context.Context, conv api.Conversation, timeout time.Duration) (string, error)
	Stream(ctx context.Context, conv api.Conversation, timeout time.Duration) (*upstream.Stream, error)
	Probe(ctx context.Context) error
}

// Service ties request preparation to the upstream client. Every chat
// endpoint funnels through it; the handlers own only wire shaping.
type Service struct {
	upstream Completer
	cfg      Config
	log      *slog.Logger
}

// New creates a Service. A nil logger falls back to slog.Default.
func New(up Completer, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{upstream: up, cfg: cfg, log: log}
}

// prepare validates the request shape, normalizes it into a conversation,
// and resolves the effective timeout bound.
func (s *Service) prepare(req *api.ChatRequest) (api.Conversation, time.Duration, *api.Error) {
	if err := api.ValidateChatRequest(req, s.cfg.Validation); err != nil {
		return nil, 0, err
	}
	conv, err := Normalize(req)
	if err != nil {
		return nil, 0, err
	}
	return conv, s.cfg.ClampTimeout(req.Timeout), nil
}

// Answer resolves req into a conversation and returns the complete answer
// text from one upstream completion call.
func (s *Service) Answer(ctx context.Context, req *api.ChatRequest) (string, error) {
	conv, timeout, aerr := s.prepare(req)
	if aerr != nil {
		return "", aerr
	}

	s.log.Debug("forwarding conversation",
		slog.Int("turns", len(conv)),
		slog.Float64("timeout_s", timeout.Seconds()),
		slog.String("user_id", req.UserID),
	)
	return s.upstream.Complete(ctx, conv, timeout)
}

// StreamAnswer resolves req into a conversation and opens an upstream
// stream. The caller owns the returned stream and must drain it or call
// Close to release the connection.
func (s *Service) StreamAnswer(ctx context.Context, req *api.ChatRequest) (*upstream.Stream, error) {
	conv, timeout, aerr := s.prepare(req)
	if aerr != nil {
		return nil, aerr
	}

	s.log.Debug("opening answer stream",
		slog.Int("turns", len(conv)),
		slog.Float64("timeout_s", timeout.Seconds()),
		slog.String("user_id", req.UserID),
	)
	return s.upstream.Stream(ctx, conv, timeout)
}

// ChunkedAnswer returns the complete answer pre-sliced into typewriter
// blocks for the mini-program client.
func (s *Service) ChunkedAnswer(ctx context.Context, req *api.ChatRequest) (*api.MiniProgramData, error) {
	answer, err := s.Answer(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks := SplitChunks(answer, s.cfg.ChunkSize)
	return &api.MiniProgramData{
		Chunks:         chunks,
		TotalChunks:    len(chunks),
		CompleteAnswer: answer,
		ChunkDelay:     int(s.cfg.ChunkDelay.Milliseconds()),
		Timestamp:      time.Now().Unix(),
	}, nil
}

// ProbeUpstream checks whether the completion API origin is reachable.
func (s *Service) ProbeUpstream(ctx context.Context) error {
	return s.upstream.Probe(ctx)
}
