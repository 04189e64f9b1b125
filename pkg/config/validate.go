package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
//
// The upstream API key is intentionally not checked: the relay must start
// without one, failing chat requests with a configuration error instead.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is required"))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	if c.Upstream.BaseURL == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url is required"))
	} else if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url %q must be an absolute URL", c.Upstream.BaseURL))
	}
	if c.Upstream.Temperature < 0 || c.Upstream.Temperature > 2 {
		errs = append(errs, fmt.Errorf("upstream.temperature must be in [0, 2], got %g", c.Upstream.Temperature))
	}
	if c.Upstream.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("upstream.max_retries must be >= 1, got %d", c.Upstream.MaxRetries))
	}

	if c.Chat.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("chat.chunk_size must be >= 1, got %d", c.Chat.ChunkSize))
	}
	if c.Chat.MinTimeout <= 0 || c.Chat.MinTimeout > c.Chat.MaxTimeout {
		errs = append(errs, fmt.Errorf("chat timeouts must satisfy 0 < min_timeout <= max_timeout, got min %v max %v",
			c.Chat.MinTimeout, c.Chat.MaxTimeout))
	}
	if c.Chat.DefaultTimeout < c.Chat.MinTimeout || c.Chat.DefaultTimeout > c.Chat.MaxTimeout {
		errs = append(errs, fmt.Errorf("chat.default_timeout %v must lie within [min_timeout, max_timeout]",
			c.Chat.DefaultTimeout))
	}

	switch c.Auth.Type {
	case "none", "apikey", "jwt":
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}
	if c.Auth.Type == "apikey" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
	}
	if c.Auth.Type == "jwt" && c.Auth.JWT.JWKSURL == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be trace, debug, info, warn, or error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
