// Package httpclient builds the pooled *http.Client every request to the API under test
// goes through.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"petcontract/config"
)

// ClientConfig holds the transport and timeout settings of a client.
type ClientConfig struct {
	// MaxIdleConnsPerHost is the keep-alive pool for the API host. Parallel scenarios all
	// target one host, so it should be at least the runner parallelism.
	MaxIdleConnsPerHost int

	IdleConnTimeout time.Duration

	// Timeout bounds every request, including reading the body
	Timeout time.Duration

	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
}

// connectCap caps the dial and TLS handshake timeouts.
const connectCap = 3 * time.Second

// DefaultConfig returns short, bounded timeouts so a hung server surfaces as a failed
// step instead of stalling the suite.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		Timeout:               5 * time.Second,
		DialTimeout:           connectCap,
		TLSHandshakeTimeout:   connectCap,
		ResponseHeaderTimeout: 5 * time.Second,
	}
}

// FromConfig derives a ClientConfig from the http section and the runner parallelism.
// Connect timeouts never exceed the request timeout.
func FromConfig(cfg config.HTTPConfig, parallelism int) ClientConfig {
	c := DefaultConfig()
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
		c.DialTimeout = min(connectCap, cfg.Timeout)
		c.TLSHandshakeTimeout = min(connectCap, cfg.Timeout)
	}
	if cfg.ResponseHeaderTimeout > 0 {
		c.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
	}
	if parallelism > 0 {
		c.MaxIdleConnsPerHost = 2 * parallelism
	}
	return c
}

// NewHTTPClient creates a client from cfg, or from DefaultConfig when cfg is nil.
// Compression is left to the API client so Content-Encoding stays observable.
func NewHTTPClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		d := DefaultConfig()
		cfg = &d
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConnsPerHost,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}
