package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Sentinel errors shared across packages.
var (
	ErrNotFound = errors.New("not found")
	ErrBusy     = errors.New("a generation is already in progress")
)

// ErrorType categorizes a generation failure.
type ErrorType string

const (
	// ErrorTypeUpstream is a 5xx (or otherwise unexpected) upstream status
	ErrorTypeUpstream ErrorType = "upstream_error"
	// ErrorTypeInvalidRequest is a 4xx status or a request rejected before sending
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeNetwork is a transport failure without a response
	ErrorTypeNetwork ErrorType = "network_error"
	// ErrorTypeTimeout is a transport deadline
	ErrorTypeTimeout ErrorType = "timeout_error"
	// ErrorTypeEmptyResult is a 2xx response carrying no images
	ErrorTypeEmptyResult ErrorType = "empty_result_error"
	// ErrorTypeStorage is a failure to persist generated images
	ErrorTypeStorage ErrorType = "storage_error"
)

// User-facing messages for failures that carry no upstream text.
const (
	MessageNetworkFailure = "network failure"
	MessageTimeout        = "timeout"
	MessageNoImageData    = "no image data returned"
)

// GenerationError is the error type returned by the generation pipeline.
type GenerationError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	Code       string    `json:"code,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure came from a 5xx upstream status.
// Application-level error codes never make an error retryable.
func (e *GenerationError) Retryable() bool {
	return e.StatusCode >= 500 && e.StatusCode <= 599
}

// HTTPStatusCode returns the status the REST surface should answer with.
func (e *GenerationError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		if e.StatusCode >= 400 && e.StatusCode < 500 {
			return e.StatusCode
		}
		return http.StatusBadRequest
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeUpstream, ErrorTypeNetwork, ErrorTypeEmptyResult:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *GenerationError) ToJSON() map[string]any {
	body := map[string]any{
		"type":    e.Type,
		"message": e.Message,
	}
	if e.Code != "" {
		body["code"] = e.Code
	}
	return map[string]any{"error": body}
}

// NewUpstreamError creates an upstream error for the given status
func NewUpstreamError(statusCode int, message string, err error) *GenerationError {
	return &GenerationError{
		Type:       ErrorTypeUpstream,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GenerationError {
	return NewInvalidRequestErrorWithStatus(http.StatusBadRequest, message, err)
}

// NewInvalidRequestErrorWithStatus creates a new invalid request error with a specific status code
func NewInvalidRequestErrorWithStatus(statusCode int, message string, err error) *GenerationError {
	return &GenerationError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewEmptyResultError is returned when a successful response holds no images.
func NewEmptyResultError() *GenerationError {
	return &GenerationError{Type: ErrorTypeEmptyResult, Message: MessageNoImageData}
}

// NewStorageError wraps a persistence failure.
func NewStorageError(message string, err error) *GenerationError {
	return &GenerationError{Type: ErrorTypeStorage, Message: message, Err: err}
}

// ParseUpstreamError builds a GenerationError from a non-2xx response.
// Both {"error":{"code","message"}} and {"code","message"} bodies are understood;
// code may be a string or a number.
func ParseUpstreamError(statusCode int, body []byte, originalErr error) *GenerationError {
	message := fmt.Sprintf("HTTP error! status: %d", statusCode)
	var code string

	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if m := parsed.Get("error.message"); m.Exists() && m.String() != "" {
			message = m.String()
		} else if m := parsed.Get("message"); m.Exists() && m.String() != "" {
			message = m.String()
		} else if e := parsed.Get("error"); e.Type == gjson.String && e.String() != "" {
			message = e.String()
		}
		if c := parsed.Get("error.code"); c.Exists() {
			code = c.String()
		} else if c := parsed.Get("code"); c.Exists() {
			code = c.String()
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 {
		message = text
	}

	var ge *GenerationError
	switch {
	case statusCode >= 400 && statusCode < 500:
		ge = NewInvalidRequestErrorWithStatus(statusCode, message, originalErr)
	default:
		ge = NewUpstreamError(statusCode, message, originalErr)
	}
	ge.Code = code
	return ge
}

// NormalizeTransportError maps a transport failure to a user-facing category.
// Raw error text is kept only in Err.
func NormalizeTransportError(err error) *GenerationError {
	if err == nil {
		return nil
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GenerationError{Type: ErrorTypeTimeout, Message: MessageTimeout, Err: err}
	}
	return &GenerationError{Type: ErrorTypeNetwork, Message: MessageNetworkFailure, Err: err}
}

// AsGenerationError returns err as a *GenerationError, normalizing anything else
// as a transport failure.
func AsGenerationError(err error) *GenerationError {
	return NormalizeTransportError(err)
}
