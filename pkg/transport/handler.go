package transport

import (
	"context"

	"github.com/minichat/relay/pkg/api"
	"github.com/minichat/relay/pkg/upstream"
)

// ChatService is the contract between the endpoint layer and the relay
// core. It is satisfied by *relay.Service; tests substitute a fake.
type ChatService interface {
	// Answer returns the complete answer for one request.
	Answer(ctx context.Context, req *api.ChatRequest) (string, error)

	// StreamAnswer opens an upstream stream for the request. The caller
	// owns the returned stream and must drain it or call Close.
	StreamAnswer(ctx context.Context, req *api.ChatRequest) (*upstream.Stream, error)

	// ChunkedAnswer returns the answer pre-sliced into typewriter blocks.
	ChunkedAnswer(ctx context.Context, req *api.ChatRequest) (*api.MiniProgramData, error)

	// ProbeUpstream checks whether the completion API origin is reachable.
	ProbeUpstream(ctx context.Context) error
}
