// Package config provides unified configuration for the chat relay.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (RELAY_ prefix, plus DEEPSEEK_API_KEY)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
//
// A missing upstream credential is deliberately NOT a validation error: the
// server starts without one and chat requests fail with a configuration
// error on first use, so health and metrics endpoints stay inspectable on a
// misconfigured deployment.
package config

import "time"

// Config holds all configuration for the relay.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Chat     ChatConfig     `yaml:"chat"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`             // default: ":8080"
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MiB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	AllowedOrigins  []string      `yaml:"allowed_origins"`  // default: ["*"]
}

// UpstreamConfig holds the completion API client settings.
type UpstreamConfig struct {
	BaseURL           string        `yaml:"base_url"`            // default: https://api.deepseek.com
	APIKey            string        `yaml:"api_key"`             // optional; absence fails on first use
	APIKeyFile        string        `yaml:"api_key_file"`        // _file variant for api_key
	Model             string        `yaml:"model"`               // default: "deepseek-chat"
	Temperature       float64       `yaml:"temperature"`         // default: 0.1
	MaxRetries        int           `yaml:"max_retries"`         // default: 3
	RequestsPerMinute float64       `yaml:"requests_per_minute"` // outbound limiter; 0 disables
	Burst             int           `yaml:"burst"`               // default: 5
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`       // default: 10s
}

// ChatConfig holds request shaping settings.
type ChatConfig struct {
	ChunkSize      int           `yaml:"chunk_size"`      // default: 2 runes
	ChunkDelay     time.Duration `yaml:"chunk_delay"`     // default: 50ms
	DefaultTimeout time.Duration `yaml:"default_timeout"` // default: 60s
	MinTimeout     time.Duration `yaml:"min_timeout"`     // default: 10s
	MaxTimeout     time.Duration `yaml:"max_timeout"`     // default: 300s
}

// AuthConfig holds inbound authentication settings. The relay deploys open
// by default; auth exists for installations that front it to the internet.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`      // settings for type=jwt
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single inbound API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"` // _file variant for key
	Subject string `yaml:"subject"`
	Tier    string `yaml:"tier"`
}

// JWTConfig holds JWT/JWKS validation settings.
type JWTConfig struct {
	JWKSURL  string `yaml:"jwks_url"` // required for type=jwt
	Issuer   string `yaml:"issuer"`   // optional iss check
	Audience string `yaml:"audience"` // optional aud check
}

// RateLimitConfig holds the per-identity inbound rate limit.
type RateLimitConfig struct {
	RequestsPerMinute int            `yaml:"requests_per_minute"` // 0 disables
	Tiers             map[string]int `yaml:"tiers"`               // per-tier overrides
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error, default: "info"
	Format string `yaml:"format"` // json|text, default: "json"
	// File, when set, duplicates log output to an append-only file; the
	// logstats tool reads this file.
	File string `yaml:"file"`
	// Debug selects wire-tracing categories, comma separated. See pkg/debug
	// for the category list. RELAY_DEBUG overrides.
	Debug string `yaml:"debug"`
}

// MetricsConfig holds the Prometheus exposition setting.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxBodySize:     1 << 20,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Upstream: UpstreamConfig{
			BaseURL:      "https://api.deepseek.com",
			Model:        "deepseek-chat",
			Temperature:  0.1,
			MaxRetries:   3,
			Burst:        5,
			ProbeTimeout: 10 * time.Second,
		},
		Chat: ChatConfig{
			ChunkSize:      2,
			ChunkDelay:     50 * time.Millisecond,
			DefaultTimeout: 60 * time.Second,
			MinTimeout:     10 * time.Second,
			MaxTimeout:     300 * time.Second,
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
