package oswal

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/mapping"
	"github.com/samarthkathal/broker-go/metrics"
	"github.com/samarthkathal/broker-go/middleware"
	"github.com/samarthkathal/broker-go/symbols"
	"github.com/samarthkathal/broker-go/transport"
)

// clientConfig holds configuration for the Motilal Oswal client
type clientConfig struct {
	baseURL        string
	scripMasterURL string
	scripExchanges []string
	clientCtx      broker.ClientContext
	httpClient     *http.Client
	doer           transport.Doer
	rateLimiter    middleware.Waiter
	collector      *metrics.Collector
	logger         zerolog.Logger
	timeout        time.Duration
	mode           mapping.Mode
	resolver       symbols.Lookup
	store          symbols.Store
	now            func() time.Time
}

// Option is a functional option for configuring the client
type Option func(*clientConfig)

// WithBaseURL overrides the API root, e.g. for a test server
func WithBaseURL(url string) Option {
	return func(cfg *clientConfig) {
		cfg.baseURL = url
	}
}

// WithScripMasterURL overrides where the per-exchange scrip CSVs are downloaded from
func WithScripMasterURL(url string) Option {
	return func(cfg *clientConfig) {
		cfg.scripMasterURL = url
	}
}

// WithScripExchanges limits which exchange files a reload downloads
func WithScripExchanges(exchanges ...string) Option {
	return func(cfg *clientConfig) {
		cfg.scripExchanges = exchanges
	}
}

// WithClientContext sets the network and device identity sent as headers
func WithClientContext(cc broker.ClientContext) Option {
	return func(cfg *clientConfig) {
		cfg.clientCtx = cc
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// WithTransport replaces the HTTP transport entirely
func WithTransport(doer transport.Doer) Option {
	return func(cfg *clientConfig) {
		cfg.doer = doer
	}
}

// WithRateLimiter enables rate limiting with a custom rate limiter
// If nil is passed, the OpenAPI default limits are used
func WithRateLimiter(rateLimiter middleware.Waiter) Option {
	return func(cfg *clientConfig) {
		if rateLimiter == nil {
			cfg.rateLimiter = NewRateLimiter()
		} else {
			cfg.rateLimiter = rateLimiter
		}
	}
}

// WithDefaultRateLimiter enables rate limiting with the OpenAPI default limits
func WithDefaultRateLimiter() Option {
	return WithRateLimiter(nil)
}

// WithMetrics records requests, operations, reloads and mapping fallbacks
func WithMetrics(collector *metrics.Collector) Option {
	return func(cfg *clientConfig) {
		cfg.collector = collector
	}
}

// WithLogger sets a zerolog logger
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.timeout = d
	}
}

// WithStrictMapping rejects unknown enum values instead of defaulting them
func WithStrictMapping() Option {
	return func(cfg *clientConfig) {
		cfg.mode = mapping.Strict
	}
}

// WithResolver sets the symbol resolver, replacing the scrip master download
func WithResolver(r symbols.Lookup) Option {
	return func(cfg *clientConfig) {
		cfg.resolver = r
	}
}

// WithSymbolStore persists the scrip master so restarts can warm from disk
func WithSymbolStore(store symbols.Store) Option {
	return func(cfg *clientConfig) {
		cfg.store = store
	}
}

// WithClock overrides time.Now for session expiry checks
func WithClock(now func() time.Time) Option {
	return func(cfg *clientConfig) {
		cfg.now = now
	}
}
