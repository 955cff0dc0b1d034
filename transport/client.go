// Package transport sends broker REST calls: one synchronous request with a
// deadline, an X-Request-ID, logging, metrics and rate limiting, and a single
// retry for idempotent reads.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/metrics"
	"github.com/samarthkathal/broker-go/middleware"
)

const (
	// DefaultTimeout bounds every call that does not set its own
	DefaultTimeout = 7 * time.Second
	// DefaultRetryBackoff is the pause before retrying an idempotent read
	DefaultRetryBackoff = 250 * time.Millisecond

	maxBodyBytes = 32 << 20
)

// Request is one broker REST call
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// Timeout overrides the client default when positive
	Timeout time.Duration
	// Idempotent requests are retried once on a transport failure or 5xx.
	// Order placement, modification and cancellation must leave it false.
	Idempotent bool

	// Broker and Endpoint label logs and metrics
	Broker   string
	Endpoint string
}

// Response is the raw broker answer
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Doer is the transport collaborator the adapters depend on
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Client is the default Doer backed by net/http
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	backoff    time.Duration
	logger     zerolog.Logger
}

type clientConfig struct {
	httpClient  *http.Client
	rateLimiter middleware.Waiter
	collector   *metrics.Collector
	logger      zerolog.Logger
	timeout     time.Duration
	backoff     time.Duration
}

// Option is a functional option for configuring the transport
type Option func(*clientConfig)

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped,
// the client itself is not modified.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// WithHTTPConfig builds the underlying HTTP client from a preset
func WithHTTPConfig(config *HTTPClientConfig) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = NewHTTPClient(config)
	}
}

// WithRateLimiter waits on limiter before each request
func WithRateLimiter(limiter middleware.Waiter) Option {
	return func(cfg *clientConfig) {
		cfg.rateLimiter = limiter
	}
}

// WithMetrics records per-request metrics
func WithMetrics(collector *metrics.Collector) Option {
	return func(cfg *clientConfig) {
		cfg.collector = collector
	}
}

// WithLogger sets the logger used for request logs
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithTimeout sets the default per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.timeout = d
	}
}

// WithRetryBackoff sets the pause before an idempotent retry
func WithRetryBackoff(d time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.backoff = d
	}
}

// New creates a transport for brokerName
func New(brokerName string, opts ...Option) *Client {
	cfg := &clientConfig{
		logger:  zerolog.Nop(),
		timeout: DefaultTimeout,
		backoff: DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base := cfg.httpClient
	if base == nil {
		base = NewHTTPClient(DefaultConfig())
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	logger := cfg.logger.With().Str("broker", brokerName).Logger()
	hc := *base
	hc.Transport = middleware.ChainRoundTrippers(rt,
		middleware.RecoveryRoundTripper(logger),
		middleware.RequestIDRoundTripper(),
		middleware.LoggingRoundTripper(logger),
		middleware.MetricsRoundTripper(cfg.collector, brokerName),
		middleware.RateLimitRoundTripper(cfg.rateLimiter),
	)

	return &Client{
		httpClient: &hc,
		timeout:    cfg.timeout,
		backoff:    cfg.backoff,
		logger:     logger,
	}
}

// Do sends req. Any HTTP status is returned as a Response; only failures to
// obtain a response are errors, wrapping broker.ErrTransport.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.once(ctx, req)
	if !req.Idempotent || !retryable(resp, err) {
		return resp, err
	}

	c.logger.Debug().Err(err).Str("endpoint", req.Endpoint).Msg("retrying idempotent request")
	select {
	case <-time.After(c.backoff):
	case <-ctx.Done():
		if err == nil {
			return resp, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", broker.ErrTransport, req.Endpoint, ctx.Err())
	}
	return c.once(ctx, req)
}

func retryable(resp *Response, err error) bool {
	return err != nil || resp.StatusCode >= http.StatusInternalServerError
}

func (c *Client) once(ctx context.Context, r *Request) (*Response, error) {
	timeout := c.timeout
	if r.Timeout > 0 {
		timeout = r.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if r.Endpoint != "" {
		ctx = middleware.WithEndpoint(ctx, r.Endpoint)
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", broker.ErrTransport, err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", broker.ErrTransport, r.Method, r.Endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", broker.ErrTransport, r.Endpoint, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
