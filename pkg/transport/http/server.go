package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/minichat/relay/pkg/observability"
	"github.com/minichat/relay/pkg/transport"
)

// Server wraps an http.Server with the relay's route table and manages the
// full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	inflight   *transport.InFlightRegistry
	config     ServerConfig
	logger     *slog.Logger
	extra      []transport.Middleware
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	MetricsEnabled  bool
	Logger          *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     1 << 20, // 1 MB; chat requests are small
		ShutdownTimeout: 30 * time.Second,
		AllowedOrigins:  []string{"*"},
		MetricsEnabled:  true,
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithAllowedOrigins sets the CORS allow list. The default allows any
// origin, which the mini-program host environment requires.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		if len(origins) > 0 {
			s.config.AllowedOrigins = origins
		}
	}
}

// WithMetricsEnabled controls the /metrics route and per-request metrics
// collection. Enabled by default.
func WithMetricsEnabled(enabled bool) ServerOption {
	return func(s *Server) { s.config.MetricsEnabled = enabled }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// WithMiddleware appends middleware between the built-in chain (request ID,
// recovery, logging, metrics) and the route table, e.g. inbound auth.
func WithMiddleware(mw ...transport.Middleware) ServerOption {
	return func(s *Server) { s.extra = append(s.extra, mw...) }
}

// NewServer creates a transport server for the given service.
// Default middleware (request ID, recovery, request logging, metrics) and
// CORS are applied automatically.
func NewServer(svc transport.ChatService, opts ...ServerOption) *Server {
	s := &Server{
		config:   DefaultServerConfig(),
		logger:   slog.Default(),
		inflight: transport.NewInFlightRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	h := &handlers{
		svc:         svc,
		maxBodySize: s.config.MaxBodySize,
		inflight:    s.inflight,
		logger:      s.logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	if s.config.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/sync", h.handleChatSync)
	mux.HandleFunc("POST /api/chat/miniprogram", h.handleMiniProgram)
	mux.HandleFunc("POST /api/chat/simple", h.handleSimple)
	mux.HandleFunc("GET /api/health/network", h.handleNetworkCheck)

	chain := []transport.Middleware{
		transport.RequestID(),
		transport.Recovery(s.logger),
		transport.RequestLog(s.logger),
	}
	if s.config.MetricsEnabled {
		chain = append(chain, observability.MetricsMiddleware)
	}
	chain = append(chain, s.extra...)
	handler := transport.Chain(chain...)(mux)

	// CORS sits outermost so preflight requests bypass everything else.
	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	})

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: c.Handler(handler),
	}

	return s
}

// Handler returns the fully wrapped http.Handler. Used for testing with
// httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.listenAndServeWithContext(ctx)
}

func (s *Server) listenAndServeWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

// ServeOn starts the server on the given listener. Used for testing.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	// Active SSE streams would hold Shutdown open until the upstream stops
	// on its own; cut them loose first.
	if n := s.inflight.CancelAll(); n > 0 {
		s.logger.Info("cancelled active streams", slog.Int("count", n))
	}

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inflight.CancelAll()
	return s.httpServer.Shutdown(ctx)
}
