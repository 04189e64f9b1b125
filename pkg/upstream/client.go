package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/minichat/relay/pkg/api"
	"github.com/minichat/relay/pkg/debug"
	"github.com/minichat/relay/pkg/observability"
)

const completionsPath = "/v1/chat/completions"

// Config holds the settings for a Client.
type Config struct {
	// BaseURL is the completion API root, without the completions path.
	BaseURL string
	// APIKey is the bearer credential. An empty key is allowed at
	// construction; calls fail with a configuration error on first use.
	APIKey string
	Model  string
	// Temperature is sent on every completion request.
	Temperature float64
	// MaxRetries bounds the attempts of a non-streaming call.
	MaxRetries int
	// RequestsPerMinute enables an outbound token-bucket limiter when > 0.
	RequestsPerMinute float64
	Burst             int
	// ProbeTimeout bounds the reachability probe.
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// DefaultConfig returns a Config with the stock completion API settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://api.deepseek.com",
		Model:        "deepseek-chat",
		Temperature:  0.1,
		MaxRetries:   3,
		Burst:        5,
		ProbeTimeout: 10 * time.Second,
	}
}

// Client calls the completion API. It is safe for concurrent use; every call
// owns its own retry counter, timer, and connection.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	limiter     *rate.Limiter
	probeTO     time.Duration
	log         *slog.Logger

	// backoff computes the wait before the next attempt. Overridable in
	// tests; defaults to backoffDelay.
	backoff func(attempt int) time.Duration
}

// NewClient creates a Client from cfg, filling unset fields from
// DefaultConfig. The credential is injected here, never read from the
// environment at call time.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), cfg.Burst)
	}

	return &Client{
		// The per-request timeout bound is enforced via context deadlines,
		// not a client-wide timeout, because every call carries its own.
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		limiter:     limiter,
		probeTO:     cfg.ProbeTimeout,
		log:         cfg.Logger,
		backoff:     backoffDelay,
	}
}

// Complete performs a non-streaming completion call and returns the answer
// text. timeout bounds each attempt's transport call and is also the
// business-layer bound: a response that arrives after timeout has elapsed is
// rejected as a timeout even though the transport succeeded.
//
// Transient failures are retried up to MaxRetries with exponential backoff
// plus jitter. See retry.go for the state machine.
func (c *Client) Complete(ctx context.Context, conv api.Conversation, timeout time.Duration) (string, error) {
	if c.apiKey == "" {
		return "", api.NewConfigError("upstream API key is not configured")
	}

	payload, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    conv,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", api.NewInternalError("failed to encode upstream request: " + err.Error())
	}

	var (
		state   = stateAttempting
		attempt = 0
		answer  string
		lastErr *api.Error
	)

	for {
		switch state {
		case stateAttempting:
			res := c.attempt(ctx, payload, timeout)
			switch {
			case res.err == nil:
				observability.UpstreamAttemptsTotal.WithLabelValues("success").Inc()
				observability.UpstreamLatency.Observe(res.duration.Seconds())
				c.log.Debug("upstream call completed",
					slog.Int("attempt", attempt+1),
					slog.Int64("duration_ms", res.duration.Milliseconds()),
				)
				answer = res.answer
				state = stateSucceeded

			case !res.retryable || ctx.Err() != nil:
				observability.UpstreamAttemptsTotal.WithLabelValues(string(res.err.Kind)).Inc()
				c.log.Warn("upstream call failed",
					slog.Int("attempt", attempt+1),
					slog.String("kind", string(res.err.Kind)),
					slog.String("error", res.err.Message),
				)
				lastErr = res.err
				state = stateFailedTerminal

			case attempt >= c.maxRetries-1:
				observability.UpstreamAttemptsTotal.WithLabelValues(string(res.err.Kind)).Inc()
				c.log.Warn("upstream call failed",
					slog.Int("attempt", attempt+1),
					slog.String("kind", string(res.err.Kind)),
					slog.String("error", res.err.Message),
				)
				lastErr = exhaust(res.err, c.maxRetries)
				state = stateFailedTerminal

			default:
				observability.UpstreamAttemptsTotal.WithLabelValues(string(res.err.Kind)).Inc()
				c.log.Warn("upstream call failed",
					slog.Int("attempt", attempt+1),
					slog.String("kind", string(res.err.Kind)),
					slog.String("error", res.err.Message),
				)
				lastErr = res.err
				state = stateBackoffWait
			}

		case stateBackoffWait:
			wait := c.backoff(attempt)
			observability.UpstreamRetriesTotal.Inc()
			observability.UpstreamBackoffSeconds.Observe(wait.Seconds())
			c.log.Warn("retrying upstream call",
				slog.Int("attempt", attempt+1),
				slog.Float64("wait_s", wait.Seconds()),
				slog.String("kind", string(lastErr.Kind)),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", api.NewConnectionError("upstream call cancelled during backoff")
			}
			attempt++
			state = stateAttempting

		case stateSucceeded:
			return answer, nil

		case stateFailedTerminal:
			return "", lastErr
		}
	}
}

// attempt performs one upstream request and classifies the outcome.
func (c *Client) attempt(ctx context.Context, payload []byte, timeout time.Duration) attemptResult {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return attemptResult{err: api.NewConnectionError("upstream call cancelled"), retryable: false}
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost,
		c.baseURL+completionsPath, bytes.NewReader(payload))
	if err != nil {
		return attemptResult{err: api.NewInternalError("failed to create upstream request: " + err.Error())}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	debug.Trace("upstream", "sending completion request",
		"body", debug.Truncate(string(payload), 2048))

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		mapped := mapNetworkError(err)
		return attemptResult{err: mapped, retryable: true, duration: elapsed}
	}
	defer httpResp.Body.Close()

	return classifyResponse(httpResp, elapsed, timeout)
}

// classifyResponse turns a completed transport round trip into an
// attemptResult. elapsed is measured from just before the request was
// issued; timeout is the business-layer bound.
func classifyResponse(httpResp *http.Response, elapsed, timeout time.Duration) attemptResult {
	// Business-layer timeout: the transport finished, but too late. This is
	// terminal, not retried; a retry would only repeat the slow round trip.
	if elapsed > timeout {
		return attemptResult{
			err:      api.NewTimeoutError("upstream response exceeded the timeout bound"),
			duration: elapsed,
		}
	}

	if httpResp.StatusCode >= 400 {
		mapped := mapHTTPError(httpResp)
		return attemptResult{
			err:       mapped,
			retryable: httpResp.StatusCode >= 500,
			duration:  elapsed,
		}
	}

	var chatResp chatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return attemptResult{
			err:      api.NewMalformedError("failed to parse upstream response: " + err.Error()),
			duration: elapsed,
		}
	}
	if len(chatResp.Choices) == 0 {
		return attemptResult{
			err:      api.NewMalformedError("upstream response contained no choices"),
			duration: elapsed,
		}
	}

	return attemptResult{answer: chatResp.Choices[0].Message.Content, duration: elapsed}
}

// Stream opens the completion in streaming mode. The returned Stream is
// lazy, finite, and non-restartable; the caller must drain Events or call
// Close to release the connection. timeout is a wall-clock bound across the
// whole stream, connect included. There is no retry: any failure surfaces as
// a terminal error event or, during connect, as the returned error.
func (c *Client) Stream(ctx context.Context, conv api.Conversation, timeout time.Duration) (*Stream, error) {
	if c.apiKey == "" {
		return nil, api.NewConfigError("upstream API key is not configured")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, api.NewConnectionError("upstream call cancelled")
		}
	}

	payload, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    conv,
		Temperature: c.temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, api.NewInternalError("failed to encode upstream request: " + err.Error())
	}

	streamCtx, cancel := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost,
		c.baseURL+completionsPath, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, api.NewInternalError("failed to create upstream request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	debug.Trace("upstream", "opening completion stream",
		"body", debug.Truncate(string(payload), 2048))

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, mapNetworkError(err)
	}

	if httpResp.StatusCode >= 400 {
		mapped := mapHTTPError(httpResp)
		httpResp.Body.Close()
		cancel()
		return nil, mapped
	}

	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		c.readStream(streamCtx, httpResp.Body, ch, start.Add(timeout))
	}()

	return NewStream(ch, cancel), nil
}

// Probe checks upstream reachability by issuing a GET against the API
// origin. Any HTTP response, whatever the status, counts as reachable; the
// returned error's kind distinguishes timeout from connection failure.
func (c *Client) Probe(ctx context.Context) error {
	origin, err := apiOrigin(c.baseURL)
	if err != nil {
		return api.NewInternalError("invalid upstream base URL: " + err.Error())
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTO)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(probeCtx, http.MethodGet, origin, nil)
	if err != nil {
		return api.NewInternalError("failed to create probe request: " + err.Error())
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return mapNetworkError(err)
	}
	httpResp.Body.Close()
	return nil
}

// apiOrigin reduces a base URL to its scheme://host origin.
func apiOrigin(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("base URL has no scheme or host")
	}
	return u.Scheme + "://" + u.Host, nil
}

// Close releases idle client connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
