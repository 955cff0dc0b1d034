// Package middleware provides http.RoundTripper wrappers used by the broker
// transports.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samarthkathal/broker-go/metrics"
)

// RequestIDHeader carries the per-call correlation id
const RequestIDHeader = "X-Request-ID"

type endpointKey struct{}

// WithEndpoint labels the request context with a stable endpoint name for
// logs and metrics, so path parameters do not explode label cardinality
func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, endpointKey{}, endpoint)
}

// Endpoint returns the endpoint label of req, falling back to the URL path
func Endpoint(req *http.Request) string {
	if ep, ok := req.Context().Value(endpointKey{}).(string); ok && ep != "" {
		return ep
	}
	return req.URL.Path
}

// RoundTripperFunc is an adapter to allow using functions as http.RoundTripper
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// ChainRoundTrippers composes multiple RoundTripper wrappers
// Wrappers are applied in order: first wrapper is outermost
func ChainRoundTrippers(transport http.RoundTripper, wrappers ...func(http.RoundTripper) http.RoundTripper) http.RoundTripper {
	result := transport
	for i := len(wrappers) - 1; i >= 0; i-- {
		result = wrappers[i](result)
	}
	return result
}

// Waiter blocks until a request to endpoint may proceed
type Waiter interface {
	Wait(ctx context.Context, endpoint string) error
}

// RateLimitRoundTripper waits on the limiter before every request, keyed by URL path
func RateLimitRoundTripper(limiter Waiter) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		if limiter == nil {
			return next
		}
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context(), req.URL.Path); err != nil {
				return nil, err
			}
			return next.RoundTrip(req)
		})
	}
}

// RequestIDRoundTripper stamps an X-Request-ID on requests that lack one
func RequestIDRoundTripper() func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				req = req.Clone(req.Context())
				req.Header.Set(RequestIDHeader, uuid.NewString())
			}
			return next.RoundTrip(req)
		})
	}
}

// LoggingRoundTripper logs HTTP requests and responses at debug level
func LoggingRoundTripper(logger zerolog.Logger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(req)

			var ev *zerolog.Event
			if err != nil {
				ev = logger.Warn().Err(err)
			} else {
				ev = logger.Debug().Int("status", resp.StatusCode)
			}
			ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("endpoint", Endpoint(req)).
				Str("request_id", req.Header.Get(RequestIDHeader)).
				Dur("took", time.Since(start)).
				Msg("http request")

			return resp, err
		})
	}
}

// MetricsRoundTripper records request counts and latency per broker and endpoint
func MetricsRoundTripper(collector *metrics.Collector, brokerName string) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		if collector == nil {
			return next
		}
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			status := 0
			if err == nil {
				status = resp.StatusCode
			}
			collector.RecordRequest(brokerName, Endpoint(req), status, time.Since(start))
			return resp, err
		})
	}
}

// RecoveryRoundTripper recovers from panics in HTTP requests
func RecoveryRoundTripper(logger zerolog.Logger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (resp *http.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str("path", req.URL.Path).
						Bytes("stack", debug.Stack()).
						Msgf("recovered from panic in HTTP request: %v", r)
					err = fmt.Errorf("panic recovered: %v", r)
					resp = nil
				}
			}()

			return next.RoundTrip(req)
		})
	}
}
