package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxMessages    int
	MaxContentSize int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessages:    200,
		MaxContentSize: 256 * 1024, // 256KB per turn
	}
}

// ValidateChatRequest checks a ChatRequest for structural validity: known
// roles and size limits. It returns an *Error describing the first failure,
// or nil if the request is valid. Presence of prompt/messages is not checked
// here; the normalizer owns that rule.
func ValidateChatRequest(req *ChatRequest, cfg ValidationConfig) *Error {
	if cfg.MaxContentSize > 0 && len(req.Prompt) > cfg.MaxContentSize {
		return NewInvalidInputError(
			fmt.Sprintf("prompt exceeds maximum of %d bytes", cfg.MaxContentSize))
	}

	if cfg.MaxMessages > 0 && len(req.Messages) > cfg.MaxMessages {
		return NewInvalidInputError(
			fmt.Sprintf("messages exceeds maximum of %d turns", cfg.MaxMessages))
	}

	for i, turn := range req.Messages {
		if !turn.Role.Valid() {
			return NewInvalidInputError(
				fmt.Sprintf("messages[%d]: invalid role %q", i, turn.Role))
		}
		if cfg.MaxContentSize > 0 && len(turn.Content) > cfg.MaxContentSize {
			return NewInvalidInputError(
				fmt.Sprintf("messages[%d]: content exceeds maximum of %d bytes", i, cfg.MaxContentSize))
		}
	}

	if req.Timeout < 0 {
		return NewInvalidInputError("timeout must not be negative")
	}

	return nil
}
