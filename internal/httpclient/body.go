package httpclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is sent on requests whose bodies are read with ReadBody.
const AcceptEncoding = "br, gzip, deflate"

// ErrBodyTooLarge is returned when a (decoded) body exceeds the read limit.
var ErrBodyTooLarge = errors.New("response body too large")

// ReadBody reads resp.Body, decoding br/gzip/deflate per Content-Encoding.
// At most limit decoded bytes are accepted; limit <= 0 disables the check.
func ReadBody(resp *http.Response, limit int64) ([]byte, error) {
	reader, err := decoder(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if limit <= 0 {
		return io.ReadAll(reader)
	}

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// DecodeBytes decodes an already-read body. Unknown encodings are returned unchanged.
func DecodeBytes(body []byte, contentEncoding string) ([]byte, error) {
	reader, err := decoder(io.NopCloser(bytes.NewReader(body)), contentEncoding)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func decoder(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	encoding := strings.ToLower(strings.TrimSpace(strings.Split(contentEncoding, ",")[0]))

	switch encoding {
	case "gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		return readCloser{Reader: zr, closers: []io.Closer{zr, body}}, nil
	case "deflate":
		fr := flate.NewReader(body)
		return readCloser{Reader: fr, closers: []io.Closer{fr, body}}, nil
	case "br":
		return readCloser{Reader: brotli.NewReader(body), closers: []io.Closer{body}}, nil
	default:
		return body, nil
	}
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
