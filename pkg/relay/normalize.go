package relay

import (
	"strings"

	"github.com/minichat/relay/pkg/api"
)

// Normalize converts a ChatRequest into the Conversation sent upstream.
//
// An explicit non-empty message list wins and passes through verbatim,
// order preserved. Otherwise a non-blank prompt becomes a single user turn
// with surrounding whitespace trimmed. A request carrying neither is
// rejected as invalid input; this never consumes a retry and surfaces
// straight back to the caller.
func Normalize(req *api.ChatRequest) (api.Conversation, *api.Error) {
	if len(req.Messages) > 0 {
		return api.Conversation(req.Messages), nil
	}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		return api.Conversation{{Role: api.RoleUser, Content: prompt}}, nil
	}
	return nil, api.NewInvalidInputError("request must include a prompt or messages")
}
