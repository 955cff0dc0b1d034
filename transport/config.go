package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// HTTPClientConfig tunes the pooled HTTP client behind a broker adapter
type HTTPClientConfig struct {
	// one broker host per adapter, so the per-host limits are what matter
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	DialTimeout           time.Duration
	KeepAlive             time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration

	// Timeout caps a whole exchange including the body read. Zero leaves
	// the per-call context deadline in charge.
	Timeout time.Duration
}

// DefaultConfig suits order and portfolio calls made by a single account
func DefaultConfig() *HTTPClientConfig {
	return &HTTPClientConfig{
		MaxIdleConnsPerHost:   8,
		MaxConnsPerHost:       16,
		IdleConnTimeout:       90 * time.Second,
		DialTimeout:           5 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: DefaultTimeout,
	}
}

// OrderEntryConfig keeps connections warm and fails fast, for callers that
// place orders in bursts around market open
func OrderEntryConfig() *HTTPClientConfig {
	cfg := DefaultConfig()
	cfg.MaxIdleConnsPerHost = 16
	cfg.IdleConnTimeout = 5 * time.Minute
	cfg.DialTimeout = 2 * time.Second
	cfg.KeepAlive = 15 * time.Second
	cfg.TLSHandshakeTimeout = 3 * time.Second
	cfg.ResponseHeaderTimeout = 3 * time.Second
	return cfg
}

// ScripMasterConfig is for the reference data downloads, which are large
// files served slowly and fetched a few times a day
func ScripMasterConfig() *HTTPClientConfig {
	return &HTTPClientConfig{
		MaxIdleConnsPerHost:   6,
		MaxConnsPerHost:       6,
		IdleConnTimeout:       30 * time.Second,
		DialTimeout:           10 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		Timeout:               5 * time.Minute,
	}
}

// NewHTTPClient builds a client from config, DefaultConfig when nil.
// TLS 1.2 is the minimum version.
func NewHTTPClient(config *HTTPClientConfig) *http.Client {
	if config == nil {
		config = DefaultConfig()
	}

	dialer := &net.Dialer{
		Timeout:   config.DialTimeout,
		KeepAlive: config.KeepAlive,
	}
	return &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
			MaxConnsPerHost:       config.MaxConnsPerHost,
			IdleConnTimeout:       config.IdleConnTimeout,
			TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
			ResponseHeaderTimeout: config.ResponseHeaderTimeout,
			ForceAttemptHTTP2:     true,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}
