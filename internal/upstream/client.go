// Package upstream is the HTTP transport to the image generation API and
// its token/model discovery endpoints. It performs exactly one call per
// method; retry policy belongs to the caller.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"genstudio/internal/core"
	"genstudio/internal/httpclient"
)

// DefaultMaxResponseBytes bounds generation responses, which carry base64 images.
const DefaultMaxResponseBytes = 256 << 20

// Config holds configuration for the upstream client.
type Config struct {
	// BaseURL is the API origin, without a trailing slash.
	BaseURL string
	// APIKey is the token key; it is sent as "Bearer sk-<key>".
	APIKey string
	// AccessToken and UserID authenticate the management endpoints
	// (token listing, per-user model listing).
	AccessToken string
	UserID      string

	MaxResponseBytes int64
}

// Client talks to the upstream API.
type Client struct {
	httpClient *http.Client
	config     Config
}

// New creates a client using the tuned default HTTP client.
func New(config Config) *Client {
	return NewWithHTTPClient(httpclient.NewHTTPClient(nil), config)
}

// NewWithHTTPClient creates a client with a custom HTTP client.
func NewWithHTTPClient(httpClient *http.Client, config Config) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.MaxResponseBytes <= 0 {
		config.MaxResponseBytes = DefaultMaxResponseBytes
	}
	return &Client{httpClient: httpClient, config: config}
}

// BaseURL returns the configured API origin.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

type apiKeyContextKey struct{}

// ContextWithAPIKey makes calls made with ctx authenticate with key instead
// of the configured API key.
func ContextWithAPIKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyContextKey{}, key)
}

// APIKeyFromContext returns the key set by ContextWithAPIKey, if any.
func APIKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(apiKeyContextKey{}).(string)
	return key
}

func apiKeyFrom(ctx context.Context, fallback string) string {
	if key := APIKeyFromContext(ctx); key != "" {
		return key
	}
	return fallback
}

// request describes one HTTP call.
type request struct {
	Method   string
	Endpoint string
	Body     any
	// Management selects access-token auth instead of the API key.
	Management bool
}

// response is a successful (2xx) reply.
type response struct {
	StatusCode int
	Body       []byte
}

// SubmitNativeMultimodal posts payload to the native generateContent endpoint.
func (c *Client) SubmitNativeMultimodal(ctx context.Context, model string, payload any) ([]byte, error) {
	resp, err := c.do(ctx, request{
		Method:   http.MethodPost,
		Endpoint: "/v1beta/models/" + url.PathEscape(model) + ":generateContent",
		Body:     payload,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// SubmitGenericImage posts payload to the image generations endpoint.
func (c *Client) SubmitGenericImage(ctx context.Context, payload any) ([]byte, error) {
	resp, err := c.do(ctx, request{
		Method:   http.MethodPost,
		Endpoint: "/v1/images/generations",
		Body:     payload,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do executes a single request. Non-2xx statuses become
// core.ParseUpstreamError; transport failures are normalized.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NormalizeTransportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := httpclient.ReadBody(resp, c.config.MaxResponseBytes)
	if err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, core.ParseUpstreamError(resp.StatusCode, nil, err)
		}
		return nil, core.NormalizeTransportError(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.ParseUpstreamError(resp.StatusCode, body, nil)
	}

	return &response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) buildRequest(ctx context.Context, req request) (*http.Request, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.config.BaseURL+req.Endpoint, bodyReader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)

	if req.Management {
		if c.config.AccessToken != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
		}
		if c.config.UserID != "" {
			httpReq.Header.Set("New-Api-User", c.config.UserID)
		}
	} else if key := apiKeyFrom(ctx, c.config.APIKey); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearerKey(key))
	}

	return httpReq, nil
}

func bearerKey(key string) string {
	if strings.HasPrefix(key, "sk-") {
		return key
	}
	return "sk-" + key
}
