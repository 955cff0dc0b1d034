package limiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a sliding window is exhausted
var ErrRateLimited = errors.New("rate limit exceeded")

// EndpointCategory represents the category of an API endpoint
type EndpointCategory int

const (
	CategoryOrder EndpointCategory = iota
	CategoryData
	CategoryNonTrading
)

// String returns the string representation of the category
func (c EndpointCategory) String() string {
	switch c {
	case CategoryOrder:
		return "Order"
	case CategoryData:
		return "Data"
	case CategoryNonTrading:
		return "NonTrading"
	default:
		return "Unknown"
	}
}

// Limits holds one broker's published REST limits. A zero value disables
// that window.
type Limits struct {
	OrderPerSecond int
	OrderPerMinute int
	OrderPerHour   int
	OrderPerDay    int

	DataPerSecond int
	DataPerDay    int

	NonTradingPerSecond int
}

// DhanLimits are the limits from https://dhanhq.co/docs/v2/
func DhanLimits() Limits {
	return Limits{
		OrderPerSecond:      25,
		OrderPerMinute:      250,
		OrderPerHour:        1000,
		OrderPerDay:         7000,
		DataPerSecond:       5,
		DataPerDay:          100000,
		NonTradingPerSecond: 20,
	}
}

// AngelOneLimits are SmartAPI's per-endpoint limits, collapsed to the
// strictest value in each category
func AngelOneLimits() Limits {
	return Limits{
		OrderPerSecond:      20,
		OrderPerMinute:      500,
		OrderPerHour:        1000,
		DataPerSecond:       1,
		NonTradingPerSecond: 2,
	}
}

// OswalLimits are conservative limits for the Motilal Oswal OpenAPI
func OswalLimits() Limits {
	return Limits{
		OrderPerSecond:      10,
		OrderPerMinute:      200,
		DataPerSecond:       5,
		NonTradingPerSecond: 5,
	}
}

// HTTPRateLimiter enforces a broker's REST API rate limits per endpoint category
type HTTPRateLimiter struct {
	limits Limits

	orderLimiters     *multiWindowLimiter
	dataLimiters      *multiWindowLimiter
	nonTradingLimiter *rate.Limiter

	// Endpoint categorization, keyed by URL path. Keys ending in "/" match
	// as prefixes.
	endpointCategories map[string]EndpointCategory
	mu                 sync.RWMutex
}

// multiWindowLimiter handles rate limiting across multiple time windows
type multiWindowLimiter struct {
	perSecond *rate.Limiter
	perMinute *slidingWindowCounter
	perHour   *slidingWindowCounter
	perDay    *slidingWindowCounter
}

// slidingWindowCounter implements a sliding window counter for rate limiting
type slidingWindowCounter struct {
	limit    int
	window   time.Duration
	requests []time.Time
	mu       sync.Mutex
}

// NewHTTPRateLimiter creates a limiter for the given limits and endpoint
// categories. Unknown endpoints fall under CategoryNonTrading.
func NewHTTPRateLimiter(limits Limits, categories map[string]EndpointCategory) *HTTPRateLimiter {
	rl := &HTTPRateLimiter{
		limits: limits,
		orderLimiters: &multiWindowLimiter{
			perSecond: perSecond(limits.OrderPerSecond),
			perMinute: newSlidingWindowCounter(limits.OrderPerMinute, time.Minute),
			perHour:   newSlidingWindowCounter(limits.OrderPerHour, time.Hour),
			perDay:    newSlidingWindowCounter(limits.OrderPerDay, 24*time.Hour),
		},
		dataLimiters: &multiWindowLimiter{
			perSecond: perSecond(limits.DataPerSecond),
			perDay:    newSlidingWindowCounter(limits.DataPerDay, 24*time.Hour),
		},
		nonTradingLimiter:  perSecond(limits.NonTradingPerSecond),
		endpointCategories: make(map[string]EndpointCategory, len(categories)),
	}
	for ep, c := range categories {
		rl.endpointCategories[ep] = c
	}
	return rl
}

func perSecond(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(n), n)
}

// SetEndpointCategory allows customizing the category for an endpoint
func (rl *HTTPRateLimiter) SetEndpointCategory(endpoint string, category EndpointCategory) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.endpointCategories[endpoint] = category
}

// Wait blocks until the request is allowed under the per-second limit, then
// records it in the longer windows. A full window fails immediately.
func (rl *HTTPRateLimiter) Wait(ctx context.Context, endpoint string) error {
	switch rl.Category(endpoint) {
	case CategoryOrder:
		return rl.orderLimiters.wait(ctx, "order")
	case CategoryData:
		return rl.dataLimiters.wait(ctx, "data")
	default:
		if err := rl.nonTradingLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("non-trading API rate limit (per-second): %w", err)
		}
		return nil
	}
}

// Allow checks if a request is allowed without blocking
func (rl *HTTPRateLimiter) Allow(endpoint string) error {
	switch rl.Category(endpoint) {
	case CategoryOrder:
		return rl.orderLimiters.allow("order")
	case CategoryData:
		return rl.dataLimiters.allow("data")
	default:
		if !rl.nonTradingLimiter.Allow() {
			return fmt.Errorf("%w: non-trading API (%d req/sec)", ErrRateLimited, rl.limits.NonTradingPerSecond)
		}
		return nil
	}
}

// Category returns the category for an endpoint
func (rl *HTTPRateLimiter) Category(endpoint string) EndpointCategory {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if category, exists := rl.endpointCategories[endpoint]; exists {
		return category
	}

	// prefix matches for paths like /v2/orders/{id}
	best, found := "", false
	for pattern := range rl.endpointCategories {
		if strings.HasSuffix(pattern, "/") && strings.HasPrefix(endpoint, pattern) && len(pattern) > len(best) {
			best, found = pattern, true
		}
	}
	if found {
		return rl.endpointCategories[best]
	}

	return CategoryNonTrading
}

func (m *multiWindowLimiter) wait(ctx context.Context, name string) error {
	if err := m.perSecond.Wait(ctx); err != nil {
		return fmt.Errorf("%s API rate limit (per-second): %w", name, err)
	}
	return m.windows(name)
}

func (m *multiWindowLimiter) allow(name string) error {
	if !m.perSecond.Allow() {
		return fmt.Errorf("%w: %s API (per-second)", ErrRateLimited, name)
	}
	return m.windows(name)
}

func (m *multiWindowLimiter) windows(name string) error {
	for _, w := range []*slidingWindowCounter{m.perMinute, m.perHour, m.perDay} {
		if w != nil && !w.allow() {
			return fmt.Errorf("%w: %s API (%d req/%s)", ErrRateLimited, name, w.limit, w.window)
		}
	}
	return nil
}

// GetStats returns current rate limiter statistics
func (rl *HTTPRateLimiter) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"order_apis": map[string]interface{}{
			"per_second_limit": rl.limits.OrderPerSecond,
			"per_minute_limit": rl.limits.OrderPerMinute,
			"per_hour_limit":   rl.limits.OrderPerHour,
			"per_day_limit":    rl.limits.OrderPerDay,
			"per_minute_used":  rl.orderLimiters.perMinute.count(),
			"per_hour_used":    rl.orderLimiters.perHour.count(),
			"per_day_used":     rl.orderLimiters.perDay.count(),
		},
		"data_apis": map[string]interface{}{
			"per_second_limit": rl.limits.DataPerSecond,
			"per_day_limit":    rl.limits.DataPerDay,
			"per_day_used":     rl.dataLimiters.perDay.count(),
		},
		"non_trading_apis": map[string]interface{}{
			"per_second_limit": rl.limits.NonTradingPerSecond,
		},
	}
}

// newSlidingWindowCounter creates a sliding window counter, nil when limit
// disables the window
func newSlidingWindowCounter(limit int, window time.Duration) *slidingWindowCounter {
	if limit <= 0 {
		return nil
	}
	return &slidingWindowCounter{
		limit:    limit,
		window:   window,
		requests: make([]time.Time, 0, min(limit, 1024)),
	}
}

// allow checks if a new request is allowed and records it if so
func (swc *slidingWindowCounter) allow() bool {
	swc.mu.Lock()
	defer swc.mu.Unlock()

	now := time.Now()
	swc.evict(now)

	if len(swc.requests) >= swc.limit {
		return false
	}

	swc.requests = append(swc.requests, now)
	return true
}

// evict drops requests that fell out of the window
func (swc *slidingWindowCounter) evict(now time.Time) {
	windowStart := now.Add(-swc.window)
	i := 0
	for i < len(swc.requests) && !swc.requests[i].After(windowStart) {
		i++
	}
	swc.requests = swc.requests[i:]
}

// count returns the current number of requests in the window
func (swc *slidingWindowCounter) count() int {
	if swc == nil {
		return 0
	}
	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.evict(time.Now())
	return len(swc.requests)
}
