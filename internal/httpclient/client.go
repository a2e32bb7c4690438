// Package httpclient builds the tuned *http.Client used for upstream calls
// and remote image fetches.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout caps one upstream call. Generating a 4K image can take
// several minutes.
const DefaultTimeout = 300 * time.Second

// ClientConfig holds the transport knobs for a client.
type ClientConfig struct {
	// Timeout caps a whole request, including reading the body
	Timeout time.Duration

	// ResponseHeaderTimeout defaults to Timeout; the upstream only sends
	// headers once the image is rendered.
	ResponseHeaderTimeout time.Duration

	MaxIdleConnsPerHost int
	DialTimeout         time.Duration
}

// DefaultConfig returns a ClientConfig sized for image generation.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeout:             DefaultTimeout,
		MaxIdleConnsPerHost: 10,
		DialTimeout:         30 * time.Second,
	}
}

// WithTimeout returns DefaultConfig with both timeouts set to d. Zero or
// negative keeps the default.
func WithTimeout(d time.Duration) *ClientConfig {
	cfg := DefaultConfig()
	if d > 0 {
		cfg.Timeout = d
	}
	return &cfg
}

// NewHTTPClient creates a client from config, or from DefaultConfig when nil.
// Compression is negotiated by callers (see AcceptEncoding and ReadBody), so
// the transport's own gzip handling is off.
func NewHTTPClient(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}
	headerTimeout := config.ResponseHeaderTimeout
	if headerTimeout <= 0 {
		headerTimeout = config.Timeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          2 * config.MaxIdleConnsPerHost,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}
