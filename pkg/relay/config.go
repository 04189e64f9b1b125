package relay

import (
	"time"

	"github.com/minichat/relay/pkg/api"
)

// Config holds the service-level knobs for request handling.
type Config struct {
	// ChunkSize is the rune count per typewriter block.
	ChunkSize int
	// ChunkDelay is the inter-chunk delay suggested to typewriter clients.
	ChunkDelay time.Duration
	// DefaultTimeout applies when a request names no bound.
	DefaultTimeout time.Duration
	// MinTimeout and MaxTimeout clamp the per-request bound.
	MinTimeout time.Duration
	MaxTimeout time.Duration
	// Validation bounds the accepted request shape.
	Validation api.ValidationConfig
}

// DefaultConfig returns the stock service settings.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      2,
		ChunkDelay:     50 * time.Millisecond,
		DefaultTimeout: 60 * time.Second,
		MinTimeout:     10 * time.Second,
		MaxTimeout:     300 * time.Second,
		Validation:     api.DefaultValidationConfig(),
	}
}

// ClampTimeout resolves a request's timeout, given in seconds, against the
// configured bounds. Zero or negative selects the default; out-of-range
// values are clamped rather than rejected.
func (c Config) ClampTimeout(seconds float64) time.Duration {
	if seconds <= 0 {
		return c.DefaultTimeout
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < c.MinTimeout {
		return c.MinTimeout
	}
	if d > c.MaxTimeout {
		return c.MaxTimeout
	}
	return d
}
