package domain

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/luwill/Claude-Code-Model-Router/pkg/anthropic"
)

// Error kinds as they appear on the wire in error.type.
const (
	KindInvalidModel   = "invalid_model"
	KindInvalidRequest = "invalid_request_error"
	KindAuthentication = "authentication_error"
	KindAPIError       = "api_error"
	KindTimeout        = "timeout_error"
	KindConnection     = "connection_error"
	KindInternal       = "internal_error"
	KindNotImplemented = "not_implemented"
)

// RouterError is the single failure shape produced at the forwarding
// boundary. Every transport or routing failure is converted into one of the
// defined kinds; raw errors never reach the caller.
type RouterError struct {
	// Kind is the wire error type.
	Kind string
	// Status is the HTTP status for the non-streaming surface.
	Status int
	// Message is safe to return to the client.
	Message string
	// Log carries the underlying error for server-side logging only.
	Log error
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("[%d] %s: %s", e.Status, e.Kind, e.Message)
}

func (e *RouterError) Unwrap() error { return e.Log }

// Response is the non-streaming surface: a status code plus the standard
// JSON error body.
func (e *RouterError) Response() anthropic.ErrorResponse {
	return anthropic.NewErrorResponse(e.Kind, e.Message)
}

// SSEEvent is the streaming surface: one in-band error event.
func (e *RouterError) SSEEvent() string {
	return anthropic.FormatSSEError(e.Kind, e.Message)
}

// InvalidModelError reports a model name that no configuration matches.
func InvalidModelError(msg string) *RouterError {
	return &RouterError{Kind: KindInvalidModel, Status: http.StatusBadRequest, Message: msg}
}

// InvalidRequestError reports an inbound body that failed binding.
func InvalidRequestError(msg string) *RouterError {
	return &RouterError{Kind: KindInvalidRequest, Status: http.StatusBadRequest, Message: msg}
}

// AuthenticationError reports a model whose API key is not available.
func AuthenticationError(msg string) *RouterError {
	return &RouterError{Kind: KindAuthentication, Status: http.StatusUnauthorized, Message: msg}
}

// UpstreamAPIError preserves the upstream's own status code.
func UpstreamAPIError(status int, msg string) *RouterError {
	return &RouterError{Kind: KindAPIError, Status: status, Message: msg}
}

// TimeoutError reports an outbound call that exceeded the gateway timeout.
func TimeoutError(msg string, err error) *RouterError {
	return &RouterError{Kind: KindTimeout, Status: http.StatusGatewayTimeout, Message: msg, Log: err}
}

// ConnectionError reports a transport-level failure reaching the upstream.
func ConnectionError(msg string, err error) *RouterError {
	return &RouterError{Kind: KindConnection, Status: http.StatusBadGateway, Message: msg, Log: err}
}

// InternalError covers anything unexpected.
func InternalError(msg string, err error) *RouterError {
	return &RouterError{Kind: KindInternal, Status: http.StatusInternalServerError, Message: msg, Log: err}
}

// NotImplementedError marks an endpoint the gateway does not serve yet.
func NotImplementedError(msg string) *RouterError {
	return &RouterError{Kind: KindNotImplemented, Status: http.StatusNotImplemented, Message: msg}
}

// AsRouterError returns err as a RouterError, wrapping unknown errors as
// internal failures so the mapping stays total.
func AsRouterError(err error) *RouterError {
	var re *RouterError
	if errors.As(err, &re) {
		return re
	}
	return InternalError(fmt.Sprintf("Internal server error: %v", err), err)
}
