// Package metrics exposes Prometheus collectors for broker calls, symbol
// master reloads and mapping fallbacks.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for operations and reloads
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector holds every series the library records. A nil *Collector is
// valid and records nothing.
type Collector struct {
	HTTPRequests     *prometheus.CounterVec   // labels: broker, endpoint, code
	HTTPDuration     *prometheus.HistogramVec // labels: broker, endpoint
	Operations       *prometheus.CounterVec   // labels: broker, operation, outcome
	SymbolReloads    *prometheus.CounterVec   // labels: broker, result
	MappingFallbacks *prometheus.CounterVec   // labels: broker, field
}

// NewCollector creates the collectors and registers them with reg. A nil
// registerer skips registration, which keeps tests isolated.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_http_requests_total",
			Help: "Broker REST calls by endpoint and HTTP status",
		}, []string{"broker", "endpoint", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "broker_http_request_duration_seconds",
			Help:    "Broker REST call latency",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"broker", "endpoint"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_operations_total",
			Help: "Adapter operations by outcome",
		}, []string{"broker", "operation", "outcome"}),
		SymbolReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_symbol_reloads_total",
			Help: "Symbol master reloads by result",
		}, []string{"broker", "result"}),
		MappingFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_mapping_fallbacks_total",
			Help: "Order fields mapped to their default after a mismatch",
		}, []string{"broker", "field"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.HTTPRequests,
			c.HTTPDuration,
			c.Operations,
			c.SymbolReloads,
			c.MappingFallbacks,
		)
	}
	return c
}

// RecordRequest records one HTTP exchange. statusCode 0 means no response
// was received and is labelled "error".
func (c *Collector) RecordRequest(brokerName, endpoint string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	c.HTTPRequests.WithLabelValues(brokerName, endpoint, code).Inc()
	c.HTTPDuration.WithLabelValues(brokerName, endpoint).Observe(duration.Seconds())
}

// RecordOperation records the outcome of an adapter operation
func (c *Collector) RecordOperation(brokerName, operation string, err error) {
	if c == nil {
		return
	}
	c.Operations.WithLabelValues(brokerName, operation, outcome(err)).Inc()
}

// RecordSymbolReload matches symbols.ReloadHook
func (c *Collector) RecordSymbolReload(brokerName string, _ int, err error) {
	if c == nil {
		return
	}
	c.SymbolReloads.WithLabelValues(brokerName, outcome(err)).Inc()
}

// RecordEnumFallback matches mapping.FallbackHook
func (c *Collector) RecordEnumFallback(brokerName, field, _, _ string) {
	if c == nil {
		return
	}
	c.MappingFallbacks.WithLabelValues(brokerName, field).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
