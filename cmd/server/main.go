// Command server runs the chat relay between the mini-program front end and
// the completion API.
//
// Configuration comes from a YAML file plus environment overrides:
//
//	--config PATH           - config file (also $RELAY_CONFIG; falls back to
//	                          ./config.yaml, then /etc/relay/config.yaml)
//	RELAY_ADDR              - listen address (default: :8080)
//	RELAY_UPSTREAM_URL      - completion API base URL
//	RELAY_UPSTREAM_API_KEY  - upstream credential (DEEPSEEK_API_KEY also works)
//	RELAY_LOG_LEVEL         - trace, debug, info, warn, or error
//	RELAY_DEBUG             - wire-tracing categories, see pkg/debug
//
// See pkg/config for the full schema.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/minichat/relay/pkg/api"
	"github.com/minichat/relay/pkg/auth"
	"github.com/minichat/relay/pkg/auth/apikey"
	"github.com/minichat/relay/pkg/auth/jwt"
	"github.com/minichat/relay/pkg/auth/noop"
	"github.com/minichat/relay/pkg/config"
	"github.com/minichat/relay/pkg/debug"
	"github.com/minichat/relay/pkg/relay"
	transporthttp "github.com/minichat/relay/pkg/transport/http"
	"github.com/minichat/relay/pkg/upstream"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()
	// pkg/auth and pkg/debug log through the default logger.
	slog.SetDefault(logger)
	debug.Init(cfg.Logging.Debug)

	client := upstream.NewClient(upstream.Config{
		BaseURL:           cfg.Upstream.BaseURL,
		APIKey:            cfg.Upstream.APIKey,
		Model:             cfg.Upstream.Model,
		Temperature:       cfg.Upstream.Temperature,
		MaxRetries:        cfg.Upstream.MaxRetries,
		RequestsPerMinute: cfg.Upstream.RequestsPerMinute,
		Burst:             cfg.Upstream.Burst,
		ProbeTimeout:      cfg.Upstream.ProbeTimeout,
		Logger:            logger,
	})
	defer client.Close()

	if cfg.Upstream.APIKey == "" {
		logger.Warn("no upstream API key configured, chat requests will fail until one is set")
	}

	svc := relay.New(client, relay.Config{
		ChunkSize:      cfg.Chat.ChunkSize,
		ChunkDelay:     cfg.Chat.ChunkDelay,
		DefaultTimeout: cfg.Chat.DefaultTimeout,
		MinTimeout:     cfg.Chat.MinTimeout,
		MaxTimeout:     cfg.Chat.MaxTimeout,
		Validation:     api.DefaultValidationConfig(),
	}, logger)

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(cfg.Server.Addr),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		transporthttp.WithMetricsEnabled(cfg.Metrics.Enabled),
		transporthttp.WithLogger(logger),
	}

	authMW, err := buildAuthMiddleware(cfg.Auth)
	if err != nil {
		return err
	}
	if authMW != nil {
		authType := cfg.Auth.Type
		if authType == "" {
			authType = "none"
		}
		logger.Info("inbound auth middleware enabled", "type", authType)
		opts = append(opts, transporthttp.WithMiddleware(authMW))
	}

	srv := transporthttp.NewServer(svc, opts...)

	logger.Info("relay configured",
		"upstream", cfg.Upstream.BaseURL,
		"model", cfg.Upstream.Model,
		"max_retries", cfg.Upstream.MaxRetries,
	)
	return srv.ListenAndServe()
}

// setupLogger builds the process logger from the logging section. When a log
// file is configured, output is duplicated to it so logstats can read the
// stream later.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	level := debug.ParseLevel(cfg.Level)

	out := io.Writer(os.Stdout)
	closeLog := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeLog = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler), closeLog, nil
}

// buildAuthMiddleware wires the configured authenticator and rate limiter.
// Returns nil when auth is disabled and no rate limit is set.
func buildAuthMiddleware(cfg config.AuthConfig) (func(http.Handler) http.Handler, error) {
	var limiter auth.RateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 || len(cfg.RateLimit.Tiers) > 0 {
		tiers := make(map[string]auth.TierConfig, len(cfg.RateLimit.Tiers))
		for name, rpm := range cfg.RateLimit.Tiers {
			tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
		}
		limiter = auth.NewInProcessLimiter(tiers, cfg.RateLimit.RequestsPerMinute)
	}

	var authn auth.Authenticator
	switch cfg.Type {
	case "", "none":
		if limiter == nil {
			return nil, nil
		}
		// Rate limiting without credentials: every caller shares the
		// anonymous identity's budget, capping total inbound throughput.
		authn = &noop.Authenticator{}
	case "apikey":
		entries := make([]apikey.Entry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.Entry{Key: k.Key, Subject: k.Subject, Tier: k.Tier})
		}
		authn = apikey.New(entries)
	case "jwt":
		authn = jwt.New(jwt.Config{
			JWKSURL:  cfg.JWT.JWKSURL,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		})
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{authn},
		DefaultDecision: auth.No,
	}

	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}
