package blobstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"

	"genstudio/internal/httpclient"
)

// DefaultMaxImageBytes bounds a single fetched or decoded image.
const DefaultMaxImageBytes = 64 * 1024 * 1024

// Payload is resolved image content.
type Payload struct {
	Data     []byte
	MimeType string
}

// Resolver turns a locator (data: URL or http(s) URL) into bytes.
type Resolver struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRateLimit paces remote fetches to rps requests per second.
func WithRateLimit(rps float64, burst int) ResolverOption {
	return func(r *Resolver) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithMaxBytes overrides DefaultMaxImageBytes.
func WithMaxBytes(n int64) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// NewResolver creates a Resolver that fetches remote locators with client.
func NewResolver(client *http.Client, opts ...ResolverOption) *Resolver {
	if client == nil {
		client = httpclient.NewHTTPClient(nil)
	}
	r := &Resolver{
		client:   client,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		maxBytes: DefaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches or decodes locator.
func (r *Resolver) Resolve(ctx context.Context, locator string) (*Payload, error) {
	locator = strings.TrimSpace(locator)
	switch {
	case locator == "":
		return nil, errors.New("empty locator")
	case hasPrefixFold(locator, "data:"):
		return r.decodeDataURL(locator)
	case hasPrefixFold(locator, "http://"), hasPrefixFold(locator, "https://"):
		return r.fetch(ctx, locator)
	default:
		return nil, fmt.Errorf("unsupported locator scheme: %.32s", locator)
	}
}

func (r *Resolver) decodeDataURL(locator string) (*Payload, error) {
	header, body, ok := strings.Cut(locator[len("data:"):], ",")
	if !ok {
		return nil, errors.New("malformed data URL: missing comma")
	}

	mediaType := header
	isBase64 := false
	if n := len(header) - len(";base64"); n >= 0 && strings.EqualFold(header[n:], ";base64") {
		mediaType = header[:n]
		isBase64 = true
	}

	var data []byte
	if isBase64 {
		decoded, err := decodeBase64(body)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image data: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(body)
		if err != nil {
			return nil, fmt.Errorf("invalid data URL payload: %w", err)
		}
		data = []byte(unescaped)
	}

	if len(data) == 0 {
		return nil, errors.New("data URL carries no content")
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", httpclient.ErrBodyTooLarge, r.maxBytes)
	}

	return &Payload{Data: data, MimeType: pickMimeType(mediaType, data)}, nil
}

func (r *Resolver) fetch(ctx context.Context, locator string) (*Payload, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(locator), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	req.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(locator), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", redactURL(locator), resp.StatusCode)
	}

	data, err := httpclient.ReadBody(resp, r.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redactURL(locator), err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch %s: empty body", redactURL(locator))
	}

	return &Payload{Data: data, MimeType: pickMimeType(resp.Header.Get("Content-Type"), data)}, nil
}

// decodeBase64 accepts padded and unpadded standard encoding, ignoring whitespace.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// pickMimeType prefers a declared image type and sniffs otherwise.
func pickMimeType(declared string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}
	mtype := mimetype.Detect(data).String()
	if mediaType, _, err := mime.ParseMediaType(mtype); err == nil {
		return mediaType
	}
	return mtype
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// redactURL drops the query string, which often carries signed credentials.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
